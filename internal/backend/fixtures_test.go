package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/identity"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/store"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/testutil"
)

var (
	schoolResource = model.ResourceInfo{
		ProjectName: "Ed-Fi", ResourceName: "School", ResourceVersion: "3.3.1-b",
	}
	leaResource = model.ResourceInfo{
		ProjectName: "Ed-Fi", ResourceName: "LocalEducationAgency", ResourceVersion: "3.3.1-b",
	}
	academicWeekResource = model.ResourceInfo{
		ProjectName: "Ed-Fi", ResourceName: "AcademicWeek", ResourceVersion: "3.3.1-b",
	}
	sessionResource = model.ResourceInfo{
		ProjectName: "Ed-Fi", ResourceName: "Session", ResourceVersion: "3.3.1-b", AllowIdentityUpdates: true,
	}
	gradeLevelResource = model.ResourceInfo{
		ProjectName: "Ed-Fi", ResourceName: "GradeLevelDescriptor", ResourceVersion: "3.3.1-b", IsDescriptor: true,
	}
)

// fixture is a backend over a fresh file database with deterministic uuids
// and timestamps.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *store.Store
	backend *Backend
	clock   *testutil.RequestClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, store.DefaultConfig(filepath.Join(t.TempDir(), "meadowlark.db")), opts...)
}

func newFixtureWithConfig(t *testing.T, cfg store.Config, opts ...Option) *fixture {
	t.Helper()
	s, err := store.OpenWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := testutil.NewRequestClock(0)
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithUUIDGenerator(testutil.NewSequentialUUIDGenerator()),
		WithClock(clock.Now),
	}
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   s,
		backend: New(s, append(base, opts...)...),
		clock:   clock,
	}
}

func ident(pairs ...string) model.DocumentIdentity {
	id := model.DocumentIdentity{}
	for i := 0; i+1 < len(pairs); i += 2 {
		id = append(id, model.DocumentElement{Name: pairs[i], Value: pairs[i+1]})
	}
	return id.Canonical()
}

func edorgSuperclass(id model.DocumentIdentity, renamedFrom string) *model.SuperclassInfo {
	info := identity.SuperclassForm("Ed-Fi", "EducationOrganization", id, renamedFrom, "educationOrganizationId")
	return &info
}

func schoolInfo(schoolId string) model.DocumentInfo {
	id := ident("schoolId", schoolId)
	return model.DocumentInfo{DocumentIdentity: id, SuperclassInfo: edorgSuperclass(id, "schoolId")}
}

func leaInfo(leaId string) model.DocumentInfo {
	id := ident("localEducationAgencyId", leaId)
	return model.DocumentInfo{DocumentIdentity: id, SuperclassInfo: edorgSuperclass(id, "localEducationAgencyId")}
}

func schoolRef(schoolId string) model.DocumentReference {
	return model.DocumentReference{ProjectName: "Ed-Fi", ResourceName: "School", DocumentIdentity: ident("schoolId", schoolId)}
}

func edorgRef(edorgId string) model.DocumentReference {
	return model.DocumentReference{
		ProjectName: "Ed-Fi", ResourceName: "EducationOrganization",
		DocumentIdentity: ident("educationOrganizationId", edorgId),
	}
}

func gradeLevelRef(uri string) model.DocumentReference {
	return model.DocumentReference{
		ProjectName: "Ed-Fi", ResourceName: "GradeLevelDescriptor", IsDescriptor: true,
		DocumentIdentity: ident("descriptor", uri),
	}
}

func academicWeekInfo(weekId string, refs ...model.DocumentReference) model.DocumentInfo {
	return model.DocumentInfo{
		DocumentIdentity:   ident("weekIdentifier", weekId),
		DocumentReferences: refs,
	}
}

func sessionInfo(sessionName string, refs ...model.DocumentReference) model.DocumentInfo {
	return model.DocumentInfo{
		DocumentIdentity:   ident("sessionName", sessionName),
		DocumentReferences: refs,
	}
}

func payload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// upsert writes a document with the next request timestamp.
func (f *fixture) upsert(resource model.ResourceInfo, info model.DocumentInfo, validate bool) UpsertOutcome {
	f.t.Helper()
	return f.upsertPayload(resource, info, payload(info.DocumentIdentity.Map()), validate)
}

func (f *fixture) upsertPayload(resource model.ResourceInfo, info model.DocumentInfo, edfiDoc json.RawMessage, validate bool) UpsertOutcome {
	f.t.Helper()
	info.RequestTimestamp = f.clock.Next()
	return f.backend.Upsert(f.ctx, model.UpsertRequest{
		MeadowlarkId:                    identity.ForDocument(resource, info.DocumentIdentity),
		ResourceInfo:                    resource,
		DocumentInfo:                    info,
		EdfiDoc:                         edfiDoc,
		ValidateDocumentReferencesExist: validate,
		CreatedBy:                       "test-client",
		TraceId:                         "trace",
	})
}

// mustInsert upserts and requires INSERT_SUCCESS, returning the new uuid.
func (f *fixture) mustInsert(resource model.ResourceInfo, info model.DocumentInfo) model.DocumentUuid {
	f.t.Helper()
	outcome := f.upsert(resource, info, true)
	inserted, ok := outcome.(UpsertInserted)
	require.True(f.t, ok, "expected INSERT_SUCCESS, got %s (%+v)", outcome.Response(), outcome.Summary())
	return inserted.DocumentUuid
}

func (f *fixture) update(documentUuid model.DocumentUuid, resource model.ResourceInfo, info model.DocumentInfo, edfiDoc json.RawMessage, validate bool) UpdateOutcome {
	f.t.Helper()
	if info.RequestTimestamp == 0 {
		info.RequestTimestamp = f.clock.Next()
	}
	return f.backend.Update(f.ctx, model.UpdateRequest{
		DocumentUuid:                    documentUuid,
		MeadowlarkId:                    identity.ForDocument(resource, info.DocumentIdentity),
		ResourceInfo:                    resource,
		DocumentInfo:                    info,
		EdfiDoc:                         edfiDoc,
		ValidateDocumentReferencesExist: validate,
		CreatedBy:                       "test-client",
		TraceId:                         "trace",
	})
}

func (f *fixture) delete(documentUuid model.DocumentUuid, resource model.ResourceInfo, validate bool) DeleteOutcome {
	f.t.Helper()
	return f.backend.Delete(f.ctx, model.DeleteRequest{
		DocumentUuid:                   documentUuid,
		ResourceInfo:                   resource,
		ValidateNoReferencesToDocument: validate,
		TraceId:                        "trace",
	})
}

func (f *fixture) get(documentUuid model.DocumentUuid) GetOutcome {
	f.t.Helper()
	return f.backend.Get(f.ctx, model.GetRequest{DocumentUuid: documentUuid, TraceId: "trace"})
}

func (f *fixture) stored(documentUuid model.DocumentUuid) *model.MeadowlarkDocument {
	f.t.Helper()
	doc, err := f.store.GetDocument(f.ctx, documentUuid)
	require.NoError(f.t, err)
	return doc
}

func (f *fixture) registryCount() int {
	f.t.Helper()
	n, err := f.store.CountRegistryEntries(f.ctx)
	require.NoError(f.t, err)
	return n
}

var shortBusy = 50 * time.Millisecond
