package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	books           map[string]*domain.TripBook
	owners          map[string]string
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		books:           make(map[string]*domain.TripBook),
		owners:          make(map[string]string),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns an empty store with an owner and a seller account for
// dev/demo mode. Passwords come from SEED_OWNER_PASSWORD and
// SEED_SELLER_PASSWORD, falling back to dev defaults with a warning.
func NewSeeded(logger logrus.FieldLogger) *Store {
	s := New()
	s.usersByUsername = seedUsers(logger)
	return s
}

func seedUsers(logger logrus.FieldLogger) map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	sellerPwd := envOr("SEED_SELLER_PASSWORD", "seller123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_SELLER_PASSWORD") == "" {
		logger.WithField("module", "memory-store").Warn("using default dev credentials; set SEED_OWNER_PASSWORD and SEED_SELLER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"seller", sellerPwd, domain.RoleSeller},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.WithField("module", "memory-store").Fatalf("hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) CreateTrip(_ context.Context, trip domain.Trip) (*domain.TripBook, error) {
	if trip.ID == "" || strings.TrimSpace(trip.Name) == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.books[trip.ID]; exists {
		return nil, store.ErrConflict
	}
	book := domain.NewTripBook(trip)
	s.books[trip.ID] = book
	s.owners[trip.ID] = trip.ID
	return book.Clone(), nil
}

func (s *Store) LoadBook(_ context.Context, tripID string) (*domain.TripBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[tripID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return book.Clone(), nil
}

func (s *Store) ListBooks(_ context.Context) ([]*domain.TripBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]*domain.TripBook, 0, len(s.books))
	for _, book := range s.books {
		books = append(books, book.Clone())
	}
	slices.SortFunc(books, func(a, b *domain.TripBook) int {
		if c := b.Trip.Date.Compare(a.Trip.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Trip.ID, b.Trip.ID)
	})
	return books, nil
}

// UpdateBook holds the write lock for the whole of fn, so units of work on
// the memory store never interleave.
func (s *Store) UpdateBook(_ context.Context, tripID string, fn func(*domain.TripBook) error) (*domain.TripBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.books[tripID]
	if !ok {
		return nil, store.ErrNotFound
	}
	work := current.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.Trip.ID = tripID
	s.books[tripID] = work
	s.reindex(work)
	return work.Clone(), nil
}

func (s *Store) DeleteTrip(_ context.Context, tripID string, guard func(*domain.TripBook) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[tripID]
	if !ok {
		return store.ErrNotFound
	}
	if guard != nil {
		if err := guard(book.Clone()); err != nil {
			return err
		}
	}
	delete(s.books, tripID)
	s.dropIndex(tripID)
	return nil
}

func (s *Store) LocateTrip(_ context.Context, kind domain.EntityKind, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tripID, ok := s.owners[id]
	if !ok {
		return "", store.ErrNotFound
	}
	if !s.books[tripID].Owns(kind, id) {
		return "", store.ErrNotFound
	}
	return tripID, nil
}

func (s *Store) reindex(book *domain.TripBook) {
	s.dropIndex(book.Trip.ID)
	s.owners[book.Trip.ID] = book.Trip.ID
	for _, a := range book.Allocations {
		s.owners[a.ID] = book.Trip.ID
	}
	for _, sale := range book.Sales {
		s.owners[sale.ID] = book.Trip.ID
	}
	for _, d := range book.Debts {
		s.owners[d.ID] = book.Trip.ID
	}
	for _, p := range book.Payments {
		s.owners[p.ID] = book.Trip.ID
	}
}

func (s *Store) dropIndex(tripID string) {
	for id, owner := range s.owners {
		if owner == tripID {
			delete(s.owners, id)
		}
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRecord
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleSeller
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

