package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
)

func newTrip(t *testing.T, s *Store, id string) {
	t.Helper()
	if _, err := s.CreateTrip(context.Background(), domain.Trip{ID: id, Name: "Trip " + id, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("create trip: %v", err)
	}
}

func TestUpdateBookDiscardsFailedWork(t *testing.T) {
	s := New()
	ctx := context.Background()
	newTrip(t, s, "trip-1")

	boom := errors.New("boom")
	_, err := s.UpdateBook(ctx, "trip-1", func(b *domain.TripBook) error {
		b.Sales = append(b.Sales, domain.Sale{ID: "sale-1", TripID: "trip-1"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	book, err := s.LoadBook(ctx, "trip-1")
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	if len(book.Sales) != 0 {
		t.Fatalf("expected failed unit of work to leave no sales, got %d", len(book.Sales))
	}
	if _, err := s.LocateTrip(ctx, domain.KindSale, "sale-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected sale-1 to be unknown, got %v", err)
	}
}

func TestUpdateBookIndexesRecords(t *testing.T) {
	s := New()
	ctx := context.Background()
	newTrip(t, s, "trip-1")
	newTrip(t, s, "trip-2")

	if _, err := s.UpdateBook(ctx, "trip-2", func(b *domain.TripBook) error {
		b.Debts = append(b.Debts, domain.Debt{ID: "debt-1", TripID: "trip-2"})
		b.Payments = append(b.Payments, domain.Payment{ID: "pay-1", TripID: "trip-2", DebtID: "debt-1"})
		return nil
	}); err != nil {
		t.Fatalf("update book: %v", err)
	}

	tripID, err := s.LocateTrip(ctx, domain.KindPayment, "pay-1")
	if err != nil || tripID != "trip-2" {
		t.Fatalf("locate payment: trip=%q err=%v", tripID, err)
	}
	if _, err := s.LocateTrip(ctx, domain.KindSale, "pay-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected kind mismatch to be not found, got %v", err)
	}

	if _, err := s.UpdateBook(ctx, "trip-2", func(b *domain.TripBook) error {
		b.RemoveDebt("debt-1")
		return nil
	}); err != nil {
		t.Fatalf("remove debt: %v", err)
	}
	if _, err := s.LocateTrip(ctx, domain.KindPayment, "pay-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected payment to leave the index with its debt, got %v", err)
	}
}

func TestLoadBookReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	newTrip(t, s, "trip-1")

	book, err := s.LoadBook(ctx, "trip-1")
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	book.Trip.Name = "changed outside"

	again, err := s.LoadBook(ctx, "trip-1")
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	if again.Trip.Name != "Trip trip-1" {
		t.Fatalf("expected stored trip to be unaffected, got %q", again.Trip.Name)
	}
}

func TestDeleteTripHonorsGuard(t *testing.T) {
	s := New()
	ctx := context.Background()
	newTrip(t, s, "trip-1")

	blocked := errors.New("blocked")
	if err := s.DeleteTrip(ctx, "trip-1", func(*domain.TripBook) error { return blocked }); !errors.Is(err, blocked) {
		t.Fatalf("expected guard error, got %v", err)
	}
	if err := s.DeleteTrip(ctx, "trip-1", nil); err != nil {
		t.Fatalf("delete trip: %v", err)
	}
	if _, err := s.LoadBook(ctx, "trip-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted trip to be gone, got %v", err)
	}
	if err := s.DeleteTrip(ctx, "trip-1", nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected second delete to be not found, got %v", err)
	}
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateUser(ctx, domain.UserAccount{Username: " Rina ", Password: "hash"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, domain.UserAccount{Username: "rina", Password: "hash"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].Username != "rina" || users[0].Role != domain.RoleSeller {
		t.Fatalf("unexpected users: %+v", users)
	}
}
