package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/ledger"
	"tripledger/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("TRIPLEDGER_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set TRIPLEDGER_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	s, err := New(ctx, databaseURL, logger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestUpdateBookCommitsAndDeletesRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	tripID := fmt.Sprintf("trip-it-%d", stamp)
	allocID := fmt.Sprintf("alloc-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	t.Cleanup(func() {
		_ = s.DeleteTrip(ctx, tripID, nil)
	})

	now := time.Now().UTC()
	if _, err := s.CreateTrip(ctx, domain.Trip{ID: tripID, Name: "Integration", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if _, err := s.CreateTrip(ctx, domain.Trip{ID: tripID, Name: "Again"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on duplicate trip, got %v", err)
	}

	_, err := s.UpdateBook(ctx, tripID, func(b *domain.TripBook) error {
		b.Allocations = append(b.Allocations, domain.ProductAllocation{
			ID: allocID, TripID: tripID, ProductRef: "rice", QuantityStocked: 10,
			PurchasePrice: decimal.NewFromInt(5), SalePrice: decimal.NewFromInt(8), CreatedAt: now,
		})
		b.Sales = append(b.Sales, domain.Sale{
			ID: saleID, TripID: tripID, AllocationID: allocID, Quantity: 2,
			Channel: domain.ChannelCash, Date: b.Trip.Date, CreatedAt: now, Status: domain.SalePaid,
		})
		return nil
	})
	if err != nil {
		t.Fatalf("update book: %v", err)
	}

	owner, err := s.LocateTrip(ctx, domain.KindSale, saleID)
	if err != nil || owner != tripID {
		t.Fatalf("locate sale: owner=%q err=%v", owner, err)
	}

	boom := errors.New("boom")
	if _, err := s.UpdateBook(ctx, tripID, func(b *domain.TripBook) error {
		b.Sales = nil
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}
	book, err := s.LoadBook(ctx, tripID)
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	if len(book.Sales) != 1 {
		t.Fatalf("expected rolled back book to keep its sale, got %d", len(book.Sales))
	}

	if _, err := s.UpdateBook(ctx, tripID, func(b *domain.TripBook) error {
		b.RemoveSale(saleID)
		return nil
	}); err != nil {
		t.Fatalf("remove sale: %v", err)
	}
	if _, err := s.LocateTrip(ctx, domain.KindSale, saleID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected removed sale to be gone, got %v", err)
	}
	book, err = s.LoadBook(ctx, tripID)
	if err != nil {
		t.Fatalf("load book: %v", err)
	}
	if len(book.Allocations) != 1 || !book.Allocations[0].SalePrice.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("unexpected allocations after reload: %+v", book.Allocations)
	}
}

func TestReadsSeeConsistentBooksDuringPayments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	engine, err := ledger.NewEngine()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	tripID := fmt.Sprintf("trip-snap-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = s.DeleteTrip(ctx, tripID, nil)
	})

	now := time.Now().UTC()
	if _, err := s.CreateTrip(ctx, domain.Trip{ID: tripID, Name: "Snapshot", Date: now, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	var debtID string
	if _, err := s.UpdateBook(ctx, tripID, func(b *domain.TripBook) error {
		a, err := engine.AddAllocation(b, ledger.AllocationInput{
			ProductRef: "rice", Quantity: 10,
			PurchasePrice: decimal.NewFromInt(5), SalePrice: decimal.NewFromInt(8),
		})
		if err != nil {
			return err
		}
		d, err := engine.AddDebt(b, ledger.DebtInput{PersonRef: "ana", AllocationID: a.ID, Quantity: 10})
		if err != nil {
			return err
		}
		debtID = d.ID
		return nil
	}); err != nil {
		t.Fatalf("seed book: %v", err)
	}

	const payments = 20
	writeErr := make(chan error, 1)
	go func() {
		defer close(writeErr)
		for i := 0; i < payments; i++ {
			_, err := s.UpdateBook(ctx, tripID, func(b *domain.TripBook) error {
				engine.Recompute(b)
				if _, err := engine.RecordPayment(b, debtID, ledger.PaymentInput{
					Amount: decimal.NewFromInt(1), Channel: domain.ChannelCash, Date: time.Now().UTC(),
				}); err != nil {
					return err
				}
				return ledger.Verify(b)
			})
			if err != nil {
				writeErr <- err
				return
			}
		}
	}()

	reads := 0
	for done := false; !done; {
		select {
		case err, open := <-writeErr:
			if err != nil {
				t.Fatalf("record payment: %v", err)
			}
			done = !open
		default:
		}

		books, err := s.ListBooks(ctx)
		if err != nil {
			t.Fatalf("list books: %v", err)
		}
		for _, b := range books {
			if b.Trip.ID != tripID {
				continue
			}
			if err := ledger.Verify(b); err != nil {
				t.Fatalf("list read %d saw a torn book: %v", reads, err)
			}
		}
		book, err := s.LoadBook(ctx, tripID)
		if err != nil {
			t.Fatalf("load book: %v", err)
		}
		if err := ledger.Verify(book); err != nil {
			t.Fatalf("load read %d saw a torn book: %v", reads, err)
		}
		reads++
	}

	book, err := s.LoadBook(ctx, tripID)
	if err != nil {
		t.Fatalf("final load: %v", err)
	}
	if got := len(book.Payments); got != payments {
		t.Fatalf("expected %d payments, got %d", payments, got)
	}
	if d := book.Debt(debtID); d == nil || !d.AmountPaid.Equal(decimal.NewFromInt(payments)) {
		t.Fatalf("expected debt paid %d, got %+v", payments, d)
	}
}
