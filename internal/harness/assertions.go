package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, actual %s", e.Type, e.Expected, e.Actual)
}

// evaluateAssertions checks every assertion and returns the failure
// messages in assertion order.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertDocumentCount:
		n, err := h.store.CountDocuments(ctx, a.Resource)
		if err != nil {
			return err
		}
		if n != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Count), Actual: fmt.Sprint(n)}
		}
		return nil

	case AssertDocumentExists, AssertDocumentAbsent:
		uuid, ok := h.names[a.Target]
		if !ok {
			if a.Type == AssertDocumentAbsent {
				return nil
			}
			return &AssertionError{Type: a.Type, Expected: a.Target + " stored", Actual: a.Target + " was never written"}
		}
		_, err := h.store.GetDocument(ctx, uuid)
		exists := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if exists != (a.Type == AssertDocumentExists) {
			return &AssertionError{Type: a.Type, Expected: expectedPresence(a.Type), Actual: presence(exists)}
		}
		return nil

	case AssertDocumentBody:
		uuid, ok := h.names[a.Target]
		if !ok {
			return &AssertionError{Type: a.Type, Expected: a.Target + " stored", Actual: a.Target + " was never written"}
		}
		doc, err := h.store.GetDocument(ctx, uuid)
		if err != nil {
			return err
		}
		return matchBody(doc.EdfiDoc, a.Body)

	case AssertRegistryEmpty:
		n, err := h.store.CountRegistryEntries(ctx)
		if err != nil {
			return err
		}
		if n != 0 {
			return &AssertionError{Type: a.Type, Expected: "0 registry rows", Actual: fmt.Sprintf("%d registry rows", n)}
		}
		return nil

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// matchBody checks that every field in expected has the same JSON value in
// the stored body. Fields not in expected are ignored.
func matchBody(stored json.RawMessage, expected map[string]any) error {
	var actual map[string]any
	if err := json.Unmarshal(stored, &actual); err != nil {
		return fmt.Errorf("stored body is not an object: %w", err)
	}

	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want, err := normalize(expected[k])
		if err != nil {
			return err
		}
		got, ok := actual[k]
		if !ok {
			return &AssertionError{Type: AssertDocumentBody, Expected: fmt.Sprintf("%s=%v", k, want), Actual: k + " missing"}
		}
		if !reflect.DeepEqual(want, got) {
			return &AssertionError{Type: AssertDocumentBody, Expected: fmt.Sprintf("%s=%v", k, want), Actual: fmt.Sprintf("%s=%v", k, got)}
		}
	}
	return nil
}

// normalize round-trips v through JSON so YAML ints compare equal to the
// float64 values encoding/json decodes.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding expected value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func expectedPresence(assertionType string) string {
	return presence(assertionType == AssertDocumentExists)
}

func presence(exists bool) string {
	if exists {
		return "stored"
	}
	return "not stored"
}
