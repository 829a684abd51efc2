package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tripledger/backend/internal/cache"
	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/ledger"
	"tripledger/backend/internal/lock"
	"tripledger/backend/internal/logging"
	"tripledger/backend/internal/report"
	"tripledger/backend/internal/store"
	"tripledger/backend/internal/xid"
)

const moduleName = "service"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	engine   *ledger.Engine
	locker   lock.Locker
	cache    cache.ReadCache
	cacheTTL time.Duration
	log      logrus.FieldLogger
}

type Option func(*Service)

func WithLocker(locker lock.Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

func WithReadCache(c cache.ReadCache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

func New(repo store.Repository, engine *ledger.Engine, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Service{
		repo:     repo,
		engine:   engine,
		locker:   lock.NewLocal(),
		cache:    cache.NoopReadCache{},
		cacheTTL: time.Minute,
		log:      discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateTrip(ctx context.Context, req domain.TripCreateRequest) (*domain.TripBook, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: trip name is required", ledger.ErrInvalidInput)
	}
	date, err := s.parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = s.engine.Today()
	}

	now := s.engine.Now()
	book, err := s.repo.CreateTrip(ctx, domain.Trip{
		ID:        xid.New("trip"),
		Name:      name,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, "trip_create", book.Trip.ID, book.Trip.ID)
	return book, nil
}

// GetTrip loads the book and re-derives it against today, so overdue states
// are current even when nothing was written since yesterday.
func (s *Service) GetTrip(ctx context.Context, tripID string) (*domain.TripBook, error) {
	book, err := s.repo.LoadBook(ctx, tripID)
	if err != nil {
		return nil, err
	}
	s.engine.Recompute(book)
	return book, nil
}

func (s *Service) ListTrips(ctx context.Context) ([]domain.TripSummary, error) {
	books, err := s.currentBooks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TripSummary, 0, len(books))
	for _, b := range books {
		out = append(out, b.Summary())
	}
	return out, nil
}

func (s *Service) UpdateTrip(ctx context.Context, tripID string, req domain.TripUpdateRequest) (domain.Trip, error) {
	var name *string
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return domain.Trip{}, fmt.Errorf("%w: trip name is required", ledger.ErrInvalidInput)
		}
		name = &trimmed
	}
	var date time.Time
	if req.Date != nil {
		parsed, err := s.parseDate("date", *req.Date)
		if err != nil {
			return domain.Trip{}, err
		}
		date = parsed
	}

	book, _, err := s.mutate(ctx, "trip_update", tripID, func(b *domain.TripBook) (string, error) {
		if name != nil {
			b.Trip.Name = *name
		}
		if !date.IsZero() {
			b.Trip.Date = date
		}
		return tripID, nil
	})
	if err != nil {
		return domain.Trip{}, err
	}
	return book.Trip, nil
}

// DeleteTrip removes the trip with everything it owns. It is refused while
// sales exist or any debt is unsettled.
func (s *Service) DeleteTrip(ctx context.Context, tripID string) error {
	release, err := s.acquire(ctx, tripID)
	if err != nil {
		return err
	}
	defer release()

	err = s.repo.DeleteTrip(ctx, tripID, func(b *domain.TripBook) error {
		s.engine.Recompute(b)
		return ledger.CheckTripDeletable(b)
	})
	if err != nil {
		return err
	}
	s.committed(ctx, "trip_delete", tripID, tripID)
	return nil
}

// RecomputeTripTotals re-derives every field of the trip and persists the
// result.
func (s *Service) RecomputeTripTotals(ctx context.Context, tripID string) (domain.TripTotals, error) {
	book, _, err := s.mutate(ctx, "trip_recompute", tripID, func(*domain.TripBook) (string, error) { return tripID, nil })
	if err != nil {
		return domain.TripTotals{}, err
	}
	return book.Totals, nil
}

func (s *Service) ExportTrip(ctx context.Context, tripID string, w io.Writer) error {
	book, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if err := report.WriteTrip(w, book); err != nil {
		logging.LogError(s.log, moduleName, "ExportTrip", "write workbook", tripID, err)
		return err
	}
	return nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	return readThrough(ctx, s, cache.KeyDashboard, func(ctx context.Context) (domain.Dashboard, error) {
		books, err := s.currentBooks(ctx)
		if err != nil {
			return domain.Dashboard{}, err
		}
		summaries := make([]domain.TripSummary, 0, len(books))
		for _, b := range books {
			summaries = append(summaries, b.Summary())
		}
		return ledger.BuildDashboard(summaries, s.engine.Now(), s.engine.Location()), nil
	})
}

func (s *Service) PersonBalances(ctx context.Context) ([]domain.PersonBalance, error) {
	return readThrough(ctx, s, cache.KeyPersons, func(ctx context.Context) ([]domain.PersonBalance, error) {
		books, err := s.currentBooks(ctx)
		if err != nil {
			return nil, err
		}
		return ledger.PersonBalances(books), nil
	})
}

func (s *Service) ProductSummaries(ctx context.Context) ([]domain.ProductSummary, error) {
	return readThrough(ctx, s, cache.KeyProducts, func(ctx context.Context) ([]domain.ProductSummary, error) {
		books, err := s.currentBooks(ctx)
		if err != nil {
			return nil, err
		}
		return ledger.ProductSummaries(books), nil
	})
}

func (s *Service) currentBooks(ctx context.Context) ([]*domain.TripBook, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		s.engine.Recompute(b)
	}
	return books, nil
}

// mutate is the single write path: the trip lock is held across the unit of
// work, fn runs on a freshly derived copy and returns the id of the record it
// touched, and the copy must pass Verify before the store commits it.
func (s *Service) mutate(ctx context.Context, op, tripID string, fn func(*domain.TripBook) (string, error)) (*domain.TripBook, string, error) {
	release, err := s.acquire(ctx, tripID)
	if err != nil {
		return nil, "", err
	}
	defer release()

	var entityID string
	book, err := s.repo.UpdateBook(ctx, tripID, func(b *domain.TripBook) error {
		s.engine.Recompute(b)
		id, err := fn(b)
		if err != nil {
			return err
		}
		entityID = id
		b.Trip.UpdatedAt = s.engine.Now()
		if err := ledger.Verify(b); err != nil {
			logging.LogError(s.log, moduleName, op, "verify before commit", tripID, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	s.committed(ctx, op, tripID, entityID)
	return book, entityID, nil
}

func (s *Service) acquire(ctx context.Context, tripID string) (func(), error) {
	release, err := s.locker.Acquire(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithFields(logrus.Fields{"module": moduleName, "trip_id": tripID}).WithError(err).Warn("release trip lock")
		}
	}, nil
}

func (s *Service) committed(ctx context.Context, op, tripID, entityID string) {
	if _, err := s.cache.Incr(ctx, cache.KeyGeneration); err != nil {
		s.log.WithFields(logrus.Fields{"module": moduleName, "op": op}).WithError(err).Warn("bump read cache generation")
	}
	if err := s.cache.Delete(ctx, cache.ReadModelKeys...); err != nil {
		s.log.WithFields(logrus.Fields{"module": moduleName, "op": op}).WithError(err).Warn("invalidate read cache")
	}
	fields := logrus.Fields{
		"module":    moduleName,
		"op":        op,
		"trip_id":   tripID,
		"entity_id": entityID,
	}
	if actor, ok := ActorFromContext(ctx); ok {
		fields["actor"] = actor.Username
	}
	s.log.WithFields(fields).Info("committed")
}

type cacheEntry[T any] struct {
	Generation int64 `json:"generation"`
	Value      T     `json:"value"`
}

// readThrough serves key from the cache when the entry was built at the
// current generation. The generation is read before build loads anything, so
// a commit landing mid-build leaves the stored entry already stale.
func readThrough[T any](ctx context.Context, s *Service, key string, build func(context.Context) (T, error)) (T, error) {
	gen, known := s.generation(ctx)
	if known {
		var entry cacheEntry[T]
		if s.cached(ctx, key, &entry) && entry.Generation == gen {
			return entry.Value, nil
		}
	}
	value, err := build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if known {
		s.remember(ctx, key, cacheEntry[T]{Generation: gen, Value: value})
	}
	return value, nil
}

func (s *Service) generation(ctx context.Context) (int64, bool) {
	var gen int64
	if _, err := s.cache.Get(ctx, cache.KeyGeneration, &gen); err != nil {
		s.log.WithFields(logrus.Fields{"module": moduleName, "key": cache.KeyGeneration}).WithError(err).Warn("read cache generation")
		return 0, false
	}
	return gen, true
}

func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.log.WithFields(logrus.Fields{"module": moduleName, "key": key}).WithError(err).Warn("read cache get")
		return false
	}
	return hit
}

func (s *Service) remember(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithFields(logrus.Fields{"module": moduleName, "key": key}).WithError(err).Warn("read cache set")
	}
}

func (s *Service) locate(ctx context.Context, kind domain.EntityKind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %s id is required", ledger.ErrInvalidInput, kind)
	}
	tripID, err := s.repo.LocateTrip(ctx, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return tripID, err
}

func (s *Service) parseDate(field, value string) (time.Time, error) {
	t, err := domain.ParseDate(strings.TrimSpace(value), s.engine.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be formatted as %s", ledger.ErrInvalidInput, field, domain.DateLayout)
	}
	return t, nil
}

func (s *Service) parseOptionalDate(field, value string) (*time.Time, error) {
	t, err := s.parseDate(field, value)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}
