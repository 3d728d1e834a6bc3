package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"approval-tracker/backend/internal/metrics"
	"approval-tracker/backend/internal/repository"
	"approval-tracker/backend/internal/workflow"
	"approval-tracker/backend/pkg/models"
)

var fixedNow = time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)

func newTestService(t *testing.T) (*TrackerService, repository.DocumentStore) {
	t.Helper()
	store, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewTrackerService(store,
		WithClock(func() time.Time { return fixedNow }),
		WithMetrics(metrics.NewRecorderWithRegistry(prometheus.NewRegistry())),
	)
	return svc, store
}

func approvalProposal(done ...string) map[string]bool {
	p, err := workflow.ProposalFromDone(workflow.Approval, done)
	if err != nil {
		panic(err)
	}
	return p
}

func TestCreateActivity_SeedsApprovalRecord(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateActivity(ctx, models.Activity{ID: " JU-HTML ", Name: "Curso HTML y CSS", Area: "TIC"})
	require.NoError(t, err)
	assert.Equal(t, "JU-HTML", a.ID)

	doc, err := store.Get(ctx, repository.CollectionActivities, "JU-HTML")
	require.NoError(t, err)
	assert.Equal(t, "Curso HTML y CSS", doc["NombreActividad"])
	assert.Equal(t, "TIC", doc["Area"])
	for _, s := range workflow.Approval.Steps() {
		f := workflow.FieldsFor(s.Key)
		assert.Equal(t, false, doc[f.Value], s.Key)
		assert.Equal(t, "", doc[f.User], s.Key)
		assert.Equal(t, "", doc[f.Timestamp], s.Key)
	}

	got, err := svc.GetActivity(ctx, "JU-HTML")
	require.NoError(t, err)
	assert.Equal(t, *a, *got)

	list, err := svc.ListActivities(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateActivity_Duplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "A"})
	require.NoError(t, err)

	_, err = svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "B"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Contains(t, err.Error(), `"JU-HTML"`)

	a, err := svc.GetActivity(ctx, "JU-HTML")
	require.NoError(t, err)
	assert.Equal(t, "A", a.Name)
}

func TestCreateActivity_RequiresIDAndName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateActivity(context.Background(), models.Activity{ID: "JU-X"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateActivity(context.Background(), models.Activity{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetActivity_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetActivity(context.Background(), "JU-NONE")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "JU-NONE")
}

func TestProgress_Approval(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)

	p, err := svc.Progress(ctx, workflow.KindApproval, "JU-HTML")
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentIndex)
	assert.Equal(t, workflow.StatusCurrent, p.Steps[0].Status)

	_, err = svc.Progress(ctx, workflow.KindCampus, "JU-HTML")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Progress(ctx, "payroll", "JU-HTML")
	assert.ErrorIs(t, err, workflow.ErrUnknownKind)
}

func TestUpdateSteps_WritesMinimalAuditedDiff(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)

	res, err := svc.UpdateSteps(ctx, workflow.KindApproval, "JU-HTML", approvalProposal("A_Diseño"), "ana")
	require.NoError(t, err)
	assert.False(t, res.Noop)
	assert.Equal(t, []string{"A_Diseño"}, res.Changed)
	assert.Equal(t, 1, res.Progress.CurrentIndex)
	assert.Equal(t, "ana", res.Progress.Steps[0].User)

	// A later edit by someone else keeps the first step's audit trail.
	later := fixedNow.Add(time.Hour)
	svc.now = func() time.Time { return later }
	res, err = svc.UpdateSteps(ctx, workflow.KindApproval, "JU-HTML", approvalProposal("A_Diseño", "A_AutorizacionINAP"), "beto")
	require.NoError(t, err)
	assert.Equal(t, workflow.Diff{
		"A_AutorizacionINAP":           true,
		"A_AutorizacionINAP_user":      "beto",
		"A_AutorizacionINAP_timestamp": "2024-03-10T16:04:05Z",
	}, res.Diff)

	doc, err := store.Get(ctx, repository.CollectionActivities, "JU-HTML")
	require.NoError(t, err)
	assert.Equal(t, "ana", doc["A_Diseño_user"])
	assert.Equal(t, "2024-03-10T15:04:05Z", doc["A_Diseño_timestamp"])
	assert.Equal(t, "beto", doc["A_AutorizacionINAP_user"])
	assert.Equal(t, "Curso", doc["NombreActividad"])
}

func TestUpdateSteps_Noop(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)

	res, err := svc.UpdateSteps(ctx, workflow.KindApproval, "JU-HTML", approvalProposal(), "ana")
	require.NoError(t, err)
	assert.True(t, res.Noop)
	assert.Empty(t, res.Diff)
	assert.Equal(t, 0, res.Progress.CurrentIndex)

	doc, err := store.Get(ctx, repository.CollectionActivities, "JU-HTML")
	require.NoError(t, err)
	assert.Equal(t, "", doc["A_Diseño_user"])
}

func TestUpdateSteps_OrderViolationWritesNothing(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)

	_, err = svc.UpdateSteps(ctx, workflow.KindApproval, "JU-HTML", approvalProposal("A_Diseño", "A_CargaSAI"), "ana")
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrOrderViolation)
	assert.Contains(t, err.Error(), "Carga SAI")

	doc, err := store.Get(ctx, repository.CollectionActivities, "JU-HTML")
	require.NoError(t, err)
	assert.Equal(t, false, doc["A_Diseño"])
}

func TestUpdateSteps_AnonymousActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)

	res, err := svc.UpdateSteps(ctx, workflow.KindApproval, "JU-HTML", approvalProposal("A_Diseño"), "  ")
	require.NoError(t, err)
	assert.Equal(t, "Anónimo", res.Diff["A_Diseño_user"])
}

func TestUpdateSteps_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateSteps(context.Background(), workflow.KindDictation, "C-404", map[string]bool{}, "ana")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "C-404")
}

func TestCommissions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)

	c, err := svc.CreateCommission(ctx, CommissionInput{
		ID: "JU-HTML-C1", ActivityID: "JU-HTML", StartDate: "2024-03-10", EndDate: "2024-04-10",
	})
	require.NoError(t, err)
	assert.Equal(t, 2024, c.Year)
	assert.Equal(t, models.CommissionRunning, c.State, "start day counts as running")

	future, err := svc.CreateCommission(ctx, CommissionInput{
		ActivityID: "JU-HTML", Year: 2025, StartDate: "2024-05-01", EndDate: "2024-06-01",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, future.ID)
	assert.Equal(t, 2025, future.Year)
	assert.Equal(t, models.CommissionPending, future.State)

	for _, coll := range []string{repository.CollectionCampus, repository.CollectionDictation} {
		doc, err := store.Get(ctx, coll, "JU-HTML-C1")
		require.NoError(t, err, coll)
		assert.Len(t, doc, 15, coll)
	}

	list, err := svc.ListCommissions(ctx, "JU-HTML")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = svc.ListCommissions(ctx, "JU-NONE")
	assert.ErrorIs(t, err, ErrNotFound)

	svc.now = func() time.Time { return time.Date(2024, 4, 11, 0, 0, 0, 0, time.UTC) }
	got, err := svc.GetCommission(ctx, "JU-HTML-C1")
	require.NoError(t, err)
	assert.Equal(t, models.CommissionFinished, got.State)

	res, err := svc.UpdateSteps(ctx, workflow.KindCampus, "JU-HTML-C1",
		map[string]bool{"C_ArmadoAula": true, "C_CargaContenidos": false, "C_AltaDocentes": false, "C_Matriculacion": false, "C_AulaHabilitada": false},
		"ana")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Progress.CurrentIndex)

	_, err = svc.CreateCommission(ctx, CommissionInput{
		ID: "JU-HTML-C1", ActivityID: "JU-HTML", StartDate: "2024-03-10", EndDate: "2024-04-10",
	})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCreateCommission_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input CommissionInput
		want  error
	}{
		{"missing activity id", CommissionInput{StartDate: "2024-01-01", EndDate: "2024-01-02"}, ErrInvalidInput},
		{"legacy date format", CommissionInput{ActivityID: "JU-HTML", StartDate: "01/01/2024", EndDate: "2024-01-02"}, ErrInvalidInput},
		{"end before start", CommissionInput{ActivityID: "JU-HTML", StartDate: "2024-02-01", EndDate: "2024-01-02"}, ErrInvalidInput},
		{"unknown activity", CommissionInput{ActivityID: "JU-NONE", StartDate: "2024-01-01", EndDate: "2024-01-02"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCommission(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// MockStore satisfies repository.DocumentStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, collection, key string) (repository.Document, error) {
	args := m.Called(ctx, collection, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Document), args.Error(1)
}

func (m *MockStore) Create(ctx context.Context, collection, key string, doc repository.Document) error {
	return m.Called(ctx, collection, key, doc).Error(0)
}

func (m *MockStore) CreateAll(ctx context.Context, docs ...repository.Insert) error {
	return m.Called(ctx, docs).Error(0)
}

func (m *MockStore) Update(ctx context.Context, collection, key string, fields repository.Document) error {
	return m.Called(ctx, collection, key, fields).Error(0)
}

func (m *MockStore) Query(ctx context.Context, collection, field string, value any) ([]repository.Entry, error) {
	args := m.Called(ctx, collection, field, value)
	return args.Get(0).([]repository.Entry), args.Error(1)
}

func (m *MockStore) List(ctx context.Context, collection string) ([]repository.Entry, error) {
	args := m.Called(ctx, collection)
	return args.Get(0).([]repository.Entry), args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error { return nil }
func (m *MockStore) Close() error                   { return nil }

func TestUpdateSteps_PersistenceError(t *testing.T) {
	store := new(MockStore)
	cause := errors.New("connection reset")
	store.On("Get", mock.Anything, repository.CollectionActivities, "JU-HTML").
		Return(repository.Document{"A_Diseño": false}, nil)
	store.On("Update", mock.Anything, repository.CollectionActivities, "JU-HTML", mock.MatchedBy(func(d repository.Document) bool {
		// The whole diff goes out in one call.
		return len(d) == 3 && d["A_Diseño"] == true
	})).Return(cause)

	svc := NewTrackerService(store, WithClock(func() time.Time { return fixedNow }))
	_, err := svc.UpdateSteps(context.Background(), workflow.KindApproval, "JU-HTML", approvalProposal("A_Diseño"), "ana")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "save activity", pe.Op)
	store.AssertExpectations(t)
}

func TestUpdateSteps_NoWriteOnNoop(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, repository.CollectionActivities, "JU-HTML").
		Return(repository.Document{"A_Diseño": true}, nil)

	svc := NewTrackerService(store)
	res, err := svc.UpdateSteps(context.Background(), workflow.KindApproval, "JU-HTML", approvalProposal("A_Diseño"), "ana")
	require.NoError(t, err)
	assert.True(t, res.Noop)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListActivities_StoreFailure(t *testing.T) {
	store := new(MockStore)
	store.On("List", mock.Anything, repository.CollectionActivities).
		Return([]repository.Entry(nil), errors.New("timeout"))

	_, err := NewTrackerService(store).ListActivities(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "list activities failed: timeout")
}

// failingStore fails every write that touches one collection.
type failingStore struct {
	repository.DocumentStore
	failOn string
}

func (f *failingStore) Create(ctx context.Context, collection, key string, doc repository.Document) error {
	if collection == f.failOn {
		return errors.New("connection reset")
	}
	return f.DocumentStore.Create(ctx, collection, key, doc)
}

func (f *failingStore) CreateAll(ctx context.Context, docs ...repository.Insert) error {
	for _, d := range docs {
		if d.Collection == f.failOn {
			return errors.New("connection reset")
		}
	}
	return f.DocumentStore.CreateAll(ctx, docs...)
}

func TestCreateCommission_FailedSeedLeavesNothing(t *testing.T) {
	store, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	flaky := &failingStore{DocumentStore: store, failOn: repository.CollectionCampus}

	svc := NewTrackerService(flaky, WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()
	_, err = svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)

	input := CommissionInput{ID: "C1", ActivityID: "JU-HTML", StartDate: "2024-03-01", EndDate: "2024-04-01"}
	_, err = svc.CreateCommission(ctx, input)
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = svc.GetCommission(ctx, "C1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Progress(ctx, workflow.KindDictation, "C1")
	assert.ErrorIs(t, err, ErrNotFound)

	flaky.failOn = ""
	c, err := svc.CreateCommission(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "C1", c.ID)
	for _, kind := range []workflow.Kind{workflow.KindCampus, workflow.KindDictation} {
		p, err := svc.Progress(ctx, kind, "C1")
		require.NoError(t, err, kind)
		assert.Equal(t, 0, p.CurrentIndex)
	}
}

func TestCreateCommission_DuplicateNamesEntity(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, repository.CollectionDictation, "C9", repository.Document{}))

	_, err = svc.CreateCommission(ctx, CommissionInput{ID: "C9", ActivityID: "JU-HTML", StartDate: "2024-03-01", EndDate: "2024-04-01"})
	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "dictation record", dup.Entity)

	_, err = svc.GetCommission(ctx, "C9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOperationsAreTraced(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	svc := NewTrackerService(store, WithClock(func() time.Time { return fixedNow }), WithTracerProvider(tp))
	ctx := context.Background()

	_, err = svc.CreateActivity(ctx, models.Activity{ID: "JU-HTML", Name: "Curso"})
	require.NoError(t, err)
	_, err = svc.CreateCommission(ctx, CommissionInput{ID: "C1", ActivityID: "JU-HTML", StartDate: "2024-03-01", EndDate: "2024-04-01"})
	require.NoError(t, err)
	_, err = svc.ListActivities(ctx)
	require.NoError(t, err)
	_, err = svc.ListCommissions(ctx, "JU-HTML")
	require.NoError(t, err)
	_, err = svc.GetCommission(ctx, "C1")
	require.NoError(t, err)
	_, err = svc.Progress(ctx, workflow.KindCampus, "C1")
	require.NoError(t, err)
	_, err = svc.UpdateSteps(ctx, workflow.KindApproval, "JU-HTML", approvalProposal(), "ana")
	require.NoError(t, err)

	var names []string
	for _, s := range exp.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Subset(t, names, []string{
		"TrackerService.CreateActivity",
		"TrackerService.CreateCommission",
		"TrackerService.ListActivities",
		"TrackerService.GetActivity",
		"TrackerService.ListCommissions",
		"TrackerService.GetCommission",
		"TrackerService.Progress",
		"TrackerService.UpdateSteps",
	})
}

func TestStoreFailureMarksSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store := new(MockStore)
	store.On("Get", mock.Anything, repository.CollectionActivities, "JU-HTML").
		Return(nil, errors.New("timeout"))

	_, err := NewTrackerService(store, WithTracerProvider(tp)).GetActivity(context.Background(), "JU-HTML")
	require.ErrorIs(t, err, ErrPersistence)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "TrackerService.GetActivity", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}
