package store

import (
	"context"
	"errors"

	"tripledger/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidRecord = errors.New("invalid record")
)

// Repository persists trips as whole books. UpdateBook is the only way to
// change the records a trip owns: fn runs against a private copy and the copy
// is committed only when fn returns nil.
type Repository interface {
	CreateTrip(ctx context.Context, trip domain.Trip) (*domain.TripBook, error)
	LoadBook(ctx context.Context, tripID string) (*domain.TripBook, error)
	ListBooks(ctx context.Context) ([]*domain.TripBook, error)
	UpdateBook(ctx context.Context, tripID string, fn func(*domain.TripBook) error) (*domain.TripBook, error)
	DeleteTrip(ctx context.Context, tripID string, guard func(*domain.TripBook) error) error
	LocateTrip(ctx context.Context, kind domain.EntityKind, id string) (string, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
