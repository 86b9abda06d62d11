package core

import (
	"context"
	"errors"
	"io"
	"time"

	"opensilex/pkg/domain"
	"opensilex/pkg/ontology"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended once with the operation error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used by the service and its coordinator.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
			s.now = clock.Now
		}
	}
}

// WithMetricsRecorder records operation outcomes.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer traces operations.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithSchema sets the ontology mapping used to validate graph fields.
func WithSchema(schema *ontology.Schema) ServiceOption {
	return func(s *Service) {
		if schema != nil {
			s.schema = schema
		}
	}
}

// WithIDSource sets the suffix source for generated identifiers.
func WithIDSource(src IDSource) ServiceOption {
	return func(s *Service) {
		if src != nil {
			s.idSource = src
		}
	}
}

// WithNamespace sets the namespace of generated identifiers.
func WithNamespace(ns string) ServiceOption {
	return func(s *Service) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// WithMaxPerQuery caps batch sizes.
func WithMaxPerQuery(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxPerQuery = n
		}
	}
}

// Service wires the stores, identity and coordinator into the aggregate
// repositories and instruments every repository operation.
type Service struct {
	graph       domain.GraphStore
	docs        domain.DocumentStore
	schema      *ontology.Schema
	identity    *Identity
	coordinator *Coordinator
	clock       Clock
	now         func() time.Time
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
	idSource    IDSource
	namespace   string
	maxPerQuery int

	moves      *Repository[domain.MoveEvent, domain.MoveFilter]
	facilities *Repository[domain.Facility, domain.FacilityFilter]
}

// NewService builds a service over graph and docs. Without WithSchema the
// embedded default ontology is used.
func NewService(graph domain.GraphStore, docs domain.DocumentStore, opts ...ServiceOption) (*Service, error) {
	if graph == nil || docs == nil {
		return nil, errors.New("core: graph and document stores are required")
	}
	clock := ClockFunc(func() time.Time { return time.Now().UTC() })
	s := &Service{
		graph:       graph,
		docs:        docs,
		clock:       clock,
		now:         clock.Now,
		logger:      noopLogger{},
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
		idSource:    UUIDSource{},
		namespace:   DefaultNamespace,
		maxPerQuery: DefaultMaxPerQuery,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.schema == nil {
		schema, err := ontology.Default()
		if err != nil {
			return nil, err
		}
		s.schema = schema
	}
	var namespaces []string
	for _, ns := range s.schema.Namespaces {
		namespaces = append(namespaces, ns)
	}
	s.identity = NewIdentity(s.namespace, s.idSource, graph, namespaces...)
	s.coordinator = NewCoordinator(graph, docs, s.logger)
	s.moves = NewRepository[domain.MoveEvent, domain.MoveFilter](graph, docs, MoveMapper{}, s.repositoryConfig())
	s.facilities = NewRepository[domain.Facility, domain.FacilityFilter](graph, docs, FacilityMapper{}, s.repositoryConfig())
	return s, nil
}

func (s *Service) repositoryConfig() RepositoryConfig {
	return RepositoryConfig{
		Identity:    s.identity,
		Coordinator: s.coordinator,
		Schema:      s.schema,
		MaxPerQuery: s.maxPerQuery,
		run:         s.run,
	}
}

// Moves returns the move event repository.
func (s *Service) Moves() *Repository[domain.MoveEvent, domain.MoveFilter] { return s.moves }

// Facilities returns the facility repository.
func (s *Service) Facilities() *Repository[domain.Facility, domain.FacilityFilter] {
	return s.facilities
}

// Entities returns an instrumented repository for raw logical entities of
// rdfType sharing the service identity and coordinator.
func (s *Service) Entities(kind, rdfType, collection string) *Repository[domain.LogicalEntity, domain.GraphQuery] {
	return NewRepository[domain.LogicalEntity, domain.GraphQuery](s.graph, s.docs, NewEntityMapper(kind, rdfType, collection), s.repositoryConfig())
}

// Identity returns the identifier resolver.
func (s *Service) Identity() *Identity { return s.identity }

// Schema returns the ontology mapping in use.
func (s *Service) Schema() *ontology.Schema { return s.schema }

// Drivers names the graph and document backends.
func (s *Service) Drivers() (graph, docs string) {
	return s.graph.Driver(), s.docs.Driver()
}

// Reconciler returns an orphan document reconciler over the service stores.
func (s *Service) Reconciler() *Reconciler {
	return NewReconciler(s.graph, s.docs, s.logger, s.now)
}

// Sweep runs an instrumented reconciliation pass over collection.
func (s *Service) Sweep(ctx context.Context, collection string, dryRun bool) (SweepReport, error) {
	var report SweepReport
	err := s.run(ctx, "sweep_"+collection, func(ctx context.Context) error {
		var err error
		report, err = s.Reconciler().Sweep(ctx, collection, dryRun)
		return err
	})
	return report, err
}

// Close releases store resources that need it.
func (s *Service) Close() error {
	var errs []error
	for _, st := range []any{s.graph, s.docs} {
		if c, ok := st.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// run wraps an operation with tracing, metrics and logging.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.now()
	err := fn(ctx)
	duration := s.now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Debug("operation failed", "operation", op, "error", err, "duration", duration)
		return err
	}
	s.logger.Debug("operation completed", "operation", op, "duration", duration)
	return nil
}
