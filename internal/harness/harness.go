package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/backend"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/catalog"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/request"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/testutil"
)

// CreatedBy is stamped on every document a scenario writes.
const CreatedBy = "harness"

// Harness executes one scenario against its own store.
type Harness struct {
	store   *store.Store
	backend *backend.Backend
	builder *request.Builder
	clock   *testutil.RequestClock
	logger  *slog.Logger
	names   map[string]model.DocumentUuid
}

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *backend.Metrics
}

// WithLogger routes backend and harness logs to logger. Default: discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records backend outcomes of the run in m. Several runs may
// share one Metrics.
func WithMetrics(m *backend.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequential uuids
// and a deterministic request clock. A returned error means the scenario
// could not be executed; failed expectations are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := &options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}

	cat, err := loadCatalog(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewRequestClock(0)
	backendOpts := []backend.Option{
		backend.WithLogger(o.logger),
		backend.WithUUIDGenerator(testutil.NewSequentialUUIDGenerator()),
		backend.WithClock(clock.Now),
		backend.WithMetrics(o.metrics),
	}
	if scenario.MaxRetries != nil {
		backendOpts = append(backendOpts, backend.WithMaxRetries(*scenario.MaxRetries))
	}

	h := &Harness{
		store:   st,
		backend: backend.New(st, backendOpts...),
		builder: request.NewBuilder(cat, CreatedBy),
		clock:   clock,
		logger:  o.logger,
		names:   make(map[string]model.DocumentUuid),
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	for _, errMsg := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Default()
	}
	return catalog.Load(dir)
}

// executeStep runs one step, records it in the trace and checks its expect
// clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	traceId := model.TraceId(fmt.Sprintf("step-%d", i))
	event := TraceEvent{Step: i, Op: step.Op, Resource: step.Resource, Target: step.Target}

	var outcome backend.Outcome
	switch step.Op {
	case OpUpsert:
		event.Timestamp = h.timestamp(step)
		req, err := h.builder.Upsert(step.Document, step.validate(), event.Timestamp, traceId)
		if err != nil {
			return err
		}
		outcome = h.backend.Upsert(ctx, req)

	case OpUpdate:
		event.Timestamp = h.timestamp(step)
		req, err := h.builder.Update(h.resolve(step.Target), step.Document, step.validate(), event.Timestamp, traceId)
		if err != nil {
			return err
		}
		outcome = h.backend.Update(ctx, req)

	case OpDelete:
		req, err := h.builder.Delete(step.Resource, h.resolve(step.Target), step.validate(), traceId)
		if err != nil {
			return err
		}
		outcome = h.backend.Delete(ctx, req)

	case OpGet:
		req, err := h.builder.Get(step.Resource, h.resolve(step.Target), traceId)
		if err != nil {
			return err
		}
		outcome = h.backend.Get(ctx, req)

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	summary := outcome.Summary()
	event.Response = summary.Response
	event.DocumentUuid = summary.DocumentUuid
	for _, b := range summary.BlockingDocuments {
		event.Blocking = append(event.Blocking, b.ResourceName)
	}
	for _, f := range summary.Failures {
		event.Missing = append(event.Missing, f.ResourceName)
	}
	result.AddTrace(event)

	if step.As != "" && summary.DocumentUuid != "" {
		h.names[step.As] = summary.DocumentUuid
	}

	if step.Expect != nil {
		for _, msg := range checkExpect(i, step, event) {
			result.AddError(msg)
		}
	}

	h.logger.Info("scenario step completed",
		"step", i,
		"op", step.Op,
		"resource", step.Resource,
		"response", event.Response,
		"document_uuid", event.DocumentUuid,
	)
	return nil
}

func (h *Harness) timestamp(step Step) int64 {
	if step.Timestamp != 0 {
		return step.Timestamp
	}
	return h.clock.Next()
}

// resolve maps a step target to a uuid. Unknown names pass through as
// literal uuids so scenarios can address documents that never existed.
func (h *Harness) resolve(target string) model.DocumentUuid {
	if uuid, ok := h.names[target]; ok {
		return uuid
	}
	return model.DocumentUuid(target)
}

func checkExpect(i int, step Step, event TraceEvent) []string {
	var errs []string
	if string(event.Response) != step.Expect.Response {
		errs = append(errs, fmt.Sprintf("step %d (%s %s): expected response %s, got %s",
			i, step.Op, step.Resource, step.Expect.Response, event.Response))
	}
	if step.Expect.Blocking != nil && !slices.Equal(step.Expect.Blocking, event.Blocking) {
		errs = append(errs, fmt.Sprintf("step %d (%s %s): expected blocking %v, got %v",
			i, step.Op, step.Resource, step.Expect.Blocking, event.Blocking))
	}
	if step.Expect.Missing != nil && !slices.Equal(step.Expect.Missing, event.Missing) {
		errs = append(errs, fmt.Sprintf("step %d (%s %s): expected missing %v, got %v",
			i, step.Op, step.Resource, step.Expect.Missing, event.Missing))
	}
	return errs
}
