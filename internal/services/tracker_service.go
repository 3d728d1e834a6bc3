package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"approval-tracker/backend/internal/logging"
	"approval-tracker/backend/internal/metrics"
	"approval-tracker/backend/internal/repository"
	"approval-tracker/backend/internal/workflow"
	"approval-tracker/backend/pkg/models"
)

const instrumentationName = "approval-tracker/backend/internal/services"

var meter = otel.Meter(instrumentationName)

// CommissionInput carries the fields needed to create a commission. Dates use
// models.DateLayout.
type CommissionInput struct {
	ID         string `json:"id"`
	ActivityID string `json:"activity_id"`
	Year       int    `json:"year"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

// UpdateResult is the outcome of UpdateSteps. Noop means nothing changed and
// nothing was written.
type UpdateResult struct {
	Noop     bool               `json:"noop"`
	Changed  []string           `json:"changed,omitempty"`
	Diff     workflow.Diff      `json:"diff,omitempty"`
	Progress *workflow.Progress `json:"progress"`
}

// TrackerService runs the fetch, resolve/validate, write, re-fetch loop over
// a document store.
//
// Concurrent editors of one instance are not serialized: each writes only
// the fields it changed, so the last writer wins per field.
type TrackerService struct {
	store     repository.DocumentStore
	now       func() time.Time
	metrics   *metrics.Recorder
	logger    *logging.Logger
	anonymous string
	tracer    trace.Tracer

	updateDuration metric.Float64Histogram
}

// Option configures a TrackerService.
type Option func(*TrackerService)

// WithClock sets the time source used for audit timestamps and commission
// states.
func WithClock(now func() time.Time) Option {
	return func(s *TrackerService) { s.now = now }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *TrackerService) { s.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *TrackerService) { s.logger = l }
}

// WithAnonymousActor sets the name recorded when an update has no actor.
func WithAnonymousActor(name string) Option {
	return func(s *TrackerService) { s.anonymous = name }
}

// WithTracerProvider sets the provider spans are started from. Default is the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *TrackerService) { s.tracer = tp.Tracer(instrumentationName) }
}

// NewTrackerService creates a new TrackerService.
func NewTrackerService(store repository.DocumentStore, opts ...Option) *TrackerService {
	s := &TrackerService{
		store:     store,
		now:       time.Now,
		logger:    logging.NewLoggerTo(io.Discard, false),
		anonymous: "Anónimo",
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	h, err := meter.Float64Histogram("tracker.update.duration",
		metric.WithDescription("Duration of step update requests."),
		metric.WithUnit("s"),
	)
	if err != nil {
		h, _ = noop.NewMeterProvider().Meter(instrumentationName).Float64Histogram("tracker.update.duration")
	}
	s.updateDuration = h
	return s
}

type target struct {
	def        *workflow.Definition
	collection string
	entity     string
}

func targetFor(kind workflow.Kind) (target, error) {
	def, err := workflow.Lookup(kind)
	if err != nil {
		return target{}, err
	}
	switch kind {
	case workflow.KindApproval:
		return target{def: def, collection: repository.CollectionActivities, entity: "activity"}, nil
	case workflow.KindCampus:
		return target{def: def, collection: repository.CollectionCampus, entity: "campus record"}, nil
	case workflow.KindDictation:
		return target{def: def, collection: repository.CollectionDictation, entity: "dictation record"}, nil
	}
	return target{}, &workflow.UnknownKindError{Kind: string(kind)}
}

func (s *TrackerService) storeFailure(ctx context.Context, op string, err error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	s.metrics.StoreError(op)
	s.logger.Error("document store call failed", "op", op, "error", err)
	return &PersistenceError{Op: op, Err: err}
}

// ListActivities returns every activity, sorted by id.
func (s *TrackerService) ListActivities(ctx context.Context) ([]models.Activity, error) {
	ctx, span := s.tracer.Start(ctx, "TrackerService.ListActivities")
	defer span.End()

	entries, err := s.store.List(ctx, repository.CollectionActivities)
	if err != nil {
		return nil, s.storeFailure(ctx, "list activities", err)
	}
	out := make([]models.Activity, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.ActivityFromDocument(e.Key, e.Data))
	}
	return out, nil
}

// GetActivity returns one activity.
func (s *TrackerService) GetActivity(ctx context.Context, id string) (*models.Activity, error) {
	ctx, span := s.tracer.Start(ctx, "TrackerService.GetActivity",
		trace.WithAttributes(attribute.String("activity.id", id)))
	defer span.End()

	doc, err := s.store.Get(ctx, repository.CollectionActivities, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Entity: "activity", ID: id}
		}
		return nil, s.storeFailure(ctx, "get activity", err)
	}
	a := models.ActivityFromDocument(id, doc)
	return &a, nil
}

// CreateActivity stores a new activity whose document also carries a fresh
// approval record. The key is claimed atomically by the store.
func (s *TrackerService) CreateActivity(ctx context.Context, activity models.Activity) (*models.Activity, error) {
	ctx, span := s.tracer.Start(ctx, "TrackerService.CreateActivity")
	defer span.End()

	activity.ID = strings.TrimSpace(activity.ID)
	activity.Name = strings.TrimSpace(activity.Name)
	activity.Area = strings.TrimSpace(activity.Area)
	span.SetAttributes(attribute.String("activity.id", activity.ID))

	if activity.ID == "" || activity.Name == "" {
		s.metrics.Creation("activity", "invalid")
		return nil, invalidInput("activity id and name are required")
	}

	doc := repository.Document(workflow.NewRecord(workflow.Approval))
	for k, v := range activity.ToDocument() {
		doc[k] = v
	}

	if err := s.store.Create(ctx, repository.CollectionActivities, activity.ID, doc); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			s.metrics.Creation("activity", "duplicate")
			return nil, &DuplicateIDError{Entity: "activity", ID: activity.ID}
		}
		s.metrics.Creation("activity", "error")
		return nil, s.storeFailure(ctx, "create activity", err)
	}

	s.metrics.Creation("activity", "created")
	s.logger.Info("Activity created", "id", activity.ID)
	return &activity, nil
}

// ListCommissions returns the commissions belonging to an activity, each with
// its state as of now.
func (s *TrackerService) ListCommissions(ctx context.Context, activityID string) ([]models.Commission, error) {
	ctx, span := s.tracer.Start(ctx, "TrackerService.ListCommissions",
		trace.WithAttributes(attribute.String("activity.id", activityID)))
	defer span.End()

	if _, err := s.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}

	entries, err := s.store.Query(ctx, repository.CollectionCommissions, models.FieldActivityID, activityID)
	if err != nil {
		return nil, s.storeFailure(ctx, "list commissions", err)
	}

	today := s.now()
	out := make([]models.Commission, 0, len(entries))
	for _, e := range entries {
		c, err := models.CommissionFromDocument(e.Key, e.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode commission: %w", err)
		}
		c.State = c.StateOn(today)
		out = append(out, c)
	}
	return out, nil
}

// GetCommission returns one commission with its state as of now.
func (s *TrackerService) GetCommission(ctx context.Context, id string) (*models.Commission, error) {
	ctx, span := s.tracer.Start(ctx, "TrackerService.GetCommission",
		trace.WithAttributes(attribute.String("commission.id", id)))
	defer span.End()

	doc, err := s.store.Get(ctx, repository.CollectionCommissions, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Entity: "commission", ID: id}
		}
		return nil, s.storeFailure(ctx, "get commission", err)
	}
	c, err := models.CommissionFromDocument(id, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode commission: %w", err)
	}
	c.State = c.StateOn(s.now())
	return &c, nil
}

// CreateCommission stores a new commission under an existing activity and
// seeds its campus and dictation records under the same key. An empty id
// gets a generated one; a zero year defaults to the start date's year.
func (s *TrackerService) CreateCommission(ctx context.Context, input CommissionInput) (*models.Commission, error) {
	ctx, span := s.tracer.Start(ctx, "TrackerService.CreateCommission")
	defer span.End()

	input.ID = strings.TrimSpace(input.ID)
	input.ActivityID = strings.TrimSpace(input.ActivityID)
	if input.ActivityID == "" {
		s.metrics.Creation("commission", "invalid")
		return nil, invalidInput("activity id is required")
	}
	start, err := models.ParseDate(input.StartDate)
	if err != nil {
		s.metrics.Creation("commission", "invalid")
		return nil, invalidInput("%s: %v", models.FieldStartDate, err)
	}
	end, err := models.ParseDate(input.EndDate)
	if err != nil {
		s.metrics.Creation("commission", "invalid")
		return nil, invalidInput("%s: %v", models.FieldEndDate, err)
	}
	if end.Before(start.Time) {
		s.metrics.Creation("commission", "invalid")
		return nil, invalidInput("%s %s is before %s %s", models.FieldEndDate, end, models.FieldStartDate, start)
	}

	if _, err := s.GetActivity(ctx, input.ActivityID); err != nil {
		return nil, err
	}

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.Year == 0 {
		input.Year = start.Year()
	}
	span.SetAttributes(
		attribute.String("commission.id", input.ID),
		attribute.String("activity.id", input.ActivityID),
	)

	c := models.Commission{
		ID:         input.ID,
		ActivityID: input.ActivityID,
		Year:       input.Year,
		StartDate:  start,
		EndDate:    end,
	}
	c.State = c.StateOn(s.now())

	// The commission and its step records land together or not at all, so a
	// failed create can be retried under the same id.
	inserts := []repository.Insert{{Collection: repository.CollectionCommissions, Key: c.ID, Data: c.ToDocument()}}
	for _, kind := range []workflow.Kind{workflow.KindCampus, workflow.KindDictation} {
		t, _ := targetFor(kind)
		inserts = append(inserts, repository.Insert{
			Collection: t.collection,
			Key:        c.ID,
			Data:       repository.Document(workflow.NewRecord(t.def)),
		})
	}

	if err := s.store.CreateAll(ctx, inserts...); err != nil {
		var conflict *repository.ConflictError
		if errors.As(err, &conflict) {
			s.metrics.Creation("commission", "duplicate")
			return nil, &DuplicateIDError{Entity: entityFor(conflict.Collection), ID: c.ID}
		}
		s.metrics.Creation("commission", "error")
		return nil, s.storeFailure(ctx, "create commission", err)
	}

	s.metrics.Creation("commission", "created")
	s.logger.Info("Commission created", "id", c.ID, "activity", c.ActivityID)
	return &c, nil
}

func entityFor(collection string) string {
	switch collection {
	case repository.CollectionActivities:
		return "activity"
	case repository.CollectionCommissions:
		return "commission"
	case repository.CollectionCampus:
		return "campus record"
	case repository.CollectionDictation:
		return "dictation record"
	}
	return collection
}

func (s *TrackerService) load(ctx context.Context, t target, key string) (workflow.Record, error) {
	doc, err := s.store.Get(ctx, t.collection, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Entity: t.entity, ID: key}
		}
		return nil, s.storeFailure(ctx, "load "+t.entity, err)
	}
	return workflow.Record(doc), nil
}

// Progress resolves the step record of a workflow instance.
func (s *TrackerService) Progress(ctx context.Context, kind workflow.Kind, key string) (*workflow.Progress, error) {
	ctx, span := s.tracer.Start(ctx, "TrackerService.Progress", trace.WithAttributes(
		attribute.String("workflow.kind", string(kind)),
		attribute.String("workflow.key", key),
	))
	defer span.End()

	t, err := targetFor(kind)
	if err != nil {
		return nil, err
	}
	record, err := s.load(ctx, t, key)
	if err != nil {
		return nil, err
	}
	p := workflow.Resolve(t.def, record)
	return &p, nil
}

// UpdateSteps validates proposed against the definition of kind, writes the
// minimal audited diff and returns the re-fetched progress. An empty actor is
// recorded as the anonymous placeholder. When nothing changed the result is a
// no-op and no write happens.
func (s *TrackerService) UpdateSteps(ctx context.Context, kind workflow.Kind, key string, proposed map[string]bool, actor string) (*UpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "TrackerService.UpdateSteps")
	defer span.End()
	defer func(start time.Time) {
		s.updateDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("workflow.kind", string(kind))))
	}(time.Now())
	span.SetAttributes(
		attribute.String("workflow.kind", string(kind)),
		attribute.String("workflow.key", key),
	)

	t, err := targetFor(kind)
	if err != nil {
		return nil, err
	}

	prev, err := s.load(ctx, t, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.Update(string(kind), metrics.OutcomeNotFound)
		} else {
			s.metrics.Update(string(kind), metrics.OutcomeStoreFail)
		}
		return nil, err
	}

	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = s.anonymous
	}

	diff, err := workflow.Apply(t.def, prev, proposed, actor, s.now())
	if err != nil {
		s.metrics.Update(string(kind), metrics.OutcomeRejected)
		s.logger.Debug("Update rejected", "kind", kind, "key", key, "error", err)
		return nil, err
	}

	if diff.Empty() {
		s.metrics.Update(string(kind), metrics.OutcomeNoop)
		p := workflow.Resolve(t.def, prev)
		return &UpdateResult{Noop: true, Progress: &p}, nil
	}

	if err := s.store.Update(ctx, t.collection, key, repository.Document(diff)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.Update(string(kind), metrics.OutcomeNotFound)
			return nil, &NotFoundError{Entity: t.entity, ID: key}
		}
		s.metrics.Update(string(kind), metrics.OutcomeStoreFail)
		return nil, s.storeFailure(ctx, "save "+t.entity, err)
	}

	changed := diff.ChangedSteps(t.def)
	s.metrics.Update(string(kind), metrics.OutcomeSaved)
	for _, k := range changed {
		s.metrics.StepChange(string(kind), proposed[k])
	}
	s.logger.Info("Steps updated", "kind", kind, "key", key, "actor", actor, "changed", strings.Join(changed, ","))

	current, err := s.load(ctx, t, key)
	if err != nil {
		// The write landed; fall back to the record we expect to be stored.
		s.logger.Warn("re-fetch after update failed", "kind", kind, "key", key, "error", err)
		current = workflow.Record{}
		for k, v := range prev {
			current[k] = v
		}
		for k, v := range diff {
			current[k] = v
		}
	}
	p := workflow.Resolve(t.def, current)

	return &UpdateResult{Changed: changed, Diff: diff, Progress: &p}, nil
}
