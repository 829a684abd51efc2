package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/ledger"
)

func (s *Service) CreateAllocation(ctx context.Context, req domain.AllocationCreateRequest) (domain.ProductAllocation, error) {
	tripID := strings.TrimSpace(req.TripID)
	if tripID == "" {
		return domain.ProductAllocation{}, fmt.Errorf("%w: trip id is required", ledger.ErrInvalidInput)
	}
	book, id, err := s.mutate(ctx, "allocation_create", tripID, func(b *domain.TripBook) (string, error) {
		a, err := s.engine.AddAllocation(b, ledger.AllocationInput{
			ProductRef:    req.ProductRef,
			Quantity:      req.Quantity,
			PurchasePrice: req.PurchasePrice,
			SalePrice:     req.SalePrice,
		})
		if err != nil {
			return "", err
		}
		return a.ID, nil
	})
	if err != nil {
		return domain.ProductAllocation{}, err
	}
	return *book.Allocation(id), nil
}

func (s *Service) UpdateAllocation(ctx context.Context, id string, req domain.AllocationUpdateRequest) (domain.ProductAllocation, error) {
	tripID, err := s.locate(ctx, domain.KindAllocation, id)
	if err != nil {
		return domain.ProductAllocation{}, err
	}
	book, _, err := s.mutate(ctx, "allocation_update", tripID, func(b *domain.TripBook) (string, error) {
		_, err := s.engine.UpdateAllocation(b, id, ledger.AllocationPatch{
			QuantityStocked: req.QuantityStocked,
			PurchasePrice:   req.PurchasePrice,
			SalePrice:       req.SalePrice,
		})
		return id, err
	})
	if err != nil {
		return domain.ProductAllocation{}, err
	}
	return *book.Allocation(id), nil
}

func (s *Service) DeleteAllocation(ctx context.Context, id string) error {
	tripID, err := s.locate(ctx, domain.KindAllocation, id)
	if err != nil {
		return err
	}
	_, _, err = s.mutate(ctx, "allocation_delete", tripID, func(b *domain.TripBook) (string, error) {
		return id, s.engine.RemoveAllocation(b, id)
	})
	return err
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	tripID := strings.TrimSpace(req.TripID)
	if tripID == "" {
		located, err := s.locate(ctx, domain.KindAllocation, req.AllocationID)
		if err != nil {
			return domain.Sale{}, err
		}
		tripID = located
	}
	due, err := s.parseOptionalDate("due_date", req.DueDate)
	if err != nil {
		return domain.Sale{}, err
	}
	date, err := s.parseDate("date", req.Date)
	if err != nil {
		return domain.Sale{}, err
	}

	book, id, err := s.mutate(ctx, "sale_create", tripID, func(b *domain.TripBook) (string, error) {
		sale, err := s.engine.AddSale(b, ledger.SaleInput{
			AllocationID: req.AllocationID,
			Quantity:     req.Quantity,
			Channel:      req.Channel,
			PersonRef:    req.PersonRef,
			DueDate:      due,
			Date:         date,
		})
		if err != nil {
			return "", err
		}
		return sale.ID, nil
	})
	if err != nil {
		return domain.Sale{}, err
	}
	return *book.Sale(id), nil
}

func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	tripID, err := s.locate(ctx, domain.KindSale, id)
	if err != nil {
		return domain.Sale{}, err
	}
	var due *time.Time
	if req.DueDate != nil {
		if due, err = s.parseOptionalDate("due_date", *req.DueDate); err != nil {
			return domain.Sale{}, err
		}
	}

	book, _, err := s.mutate(ctx, "sale_update", tripID, func(b *domain.TripBook) (string, error) {
		_, err := s.engine.UpdateSale(b, id, ledger.SalePatch{
			AllocationID: req.AllocationID,
			Quantity:     req.Quantity,
			Channel:      req.Channel,
			PersonRef:    req.PersonRef,
			DueDate:      due,
		})
		return id, err
	})
	if err != nil {
		return domain.Sale{}, err
	}
	return *book.Sale(id), nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	tripID, err := s.locate(ctx, domain.KindSale, id)
	if err != nil {
		return err
	}
	_, _, err = s.mutate(ctx, "sale_delete", tripID, func(b *domain.TripBook) (string, error) {
		return id, s.engine.RemoveSale(b, id)
	})
	return err
}

// CreateDebt records units taken on credit against an allocation; the trip
// is the one owning that allocation.
func (s *Service) CreateDebt(ctx context.Context, req domain.DebtCreateRequest) (domain.Debt, error) {
	tripID, err := s.locate(ctx, domain.KindAllocation, req.AllocationID)
	if err != nil {
		return domain.Debt{}, err
	}
	due, err := s.parseOptionalDate("due_date", req.DueDate)
	if err != nil {
		return domain.Debt{}, err
	}

	book, id, err := s.mutate(ctx, "debt_create", tripID, func(b *domain.TripBook) (string, error) {
		d, err := s.engine.AddDebt(b, ledger.DebtInput{
			PersonRef:    req.PersonRef,
			AllocationID: req.AllocationID,
			Quantity:     req.Quantity,
			DueDate:      due,
		})
		if err != nil {
			return "", err
		}
		return d.ID, nil
	})
	if err != nil {
		return domain.Debt{}, err
	}
	return *book.Debt(id), nil
}

func (s *Service) UpdateDebt(ctx context.Context, id string, req domain.DebtUpdateRequest) (domain.Debt, error) {
	tripID, err := s.locate(ctx, domain.KindDebt, id)
	if err != nil {
		return domain.Debt{}, err
	}
	var due *time.Time
	if req.DueDate != nil {
		if due, err = s.parseOptionalDate("due_date", *req.DueDate); err != nil {
			return domain.Debt{}, err
		}
	}

	book, _, err := s.mutate(ctx, "debt_update", tripID, func(b *domain.TripBook) (string, error) {
		_, err := s.engine.UpdateDebt(b, id, ledger.DebtPatch{
			PersonRef:    req.PersonRef,
			Quantity:     req.Quantity,
			DueDate:      due,
			ClearDueDate: req.ClearDueDate,
		})
		return id, err
	})
	if err != nil {
		return domain.Debt{}, err
	}
	return *book.Debt(id), nil
}

func (s *Service) DeleteDebt(ctx context.Context, id string) error {
	tripID, err := s.locate(ctx, domain.KindDebt, id)
	if err != nil {
		return err
	}
	_, _, err = s.mutate(ctx, "debt_delete", tripID, func(b *domain.TripBook) (string, error) {
		return id, s.engine.RemoveDebt(b, id)
	})
	return err
}

// SettleDebt pays off whatever is pending with a single payment.
func (s *Service) SettleDebt(ctx context.Context, id string, req domain.SettleDebtRequest) (domain.Debt, error) {
	tripID, err := s.locate(ctx, domain.KindDebt, id)
	if err != nil {
		return domain.Debt{}, err
	}
	date, err := s.parseDate("date", req.Date)
	if err != nil {
		return domain.Debt{}, err
	}

	book, _, err := s.mutate(ctx, "debt_settle", tripID, func(b *domain.TripBook) (string, error) {
		_, err := s.engine.SettleDebt(b, id, req.Channel, date)
		return id, err
	})
	if err != nil {
		return domain.Debt{}, err
	}
	return *book.Debt(id), nil
}

func (s *Service) ReopenDebt(ctx context.Context, id string) (domain.Debt, error) {
	tripID, err := s.locate(ctx, domain.KindDebt, id)
	if err != nil {
		return domain.Debt{}, err
	}
	book, _, err := s.mutate(ctx, "debt_reopen", tripID, func(b *domain.TripBook) (string, error) {
		_, err := s.engine.ReopenDebt(b, id)
		return id, err
	})
	if err != nil {
		return domain.Debt{}, err
	}
	return *book.Debt(id), nil
}

func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	tripID, err := s.locate(ctx, domain.KindDebt, req.DebtID)
	if err != nil {
		return domain.Payment{}, err
	}
	date, err := s.parseDate("date", req.Date)
	if err != nil {
		return domain.Payment{}, err
	}

	book, id, err := s.mutate(ctx, "payment_create", tripID, func(b *domain.TripBook) (string, error) {
		p, err := s.engine.RecordPayment(b, req.DebtID, ledger.PaymentInput{
			Amount:  req.Amount,
			Channel: req.Channel,
			Date:    date,
		})
		if err != nil {
			return "", err
		}
		return p.ID, nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return *book.Payment(id), nil
}

func (s *Service) UpdatePayment(ctx context.Context, id string, req domain.PaymentUpdateRequest) (domain.Payment, error) {
	tripID, err := s.locate(ctx, domain.KindPayment, id)
	if err != nil {
		return domain.Payment{}, err
	}
	var date *time.Time
	if req.Date != nil {
		if date, err = s.parseOptionalDate("date", *req.Date); err != nil {
			return domain.Payment{}, err
		}
	}

	book, _, err := s.mutate(ctx, "payment_update", tripID, func(b *domain.TripBook) (string, error) {
		_, err := s.engine.UpdatePayment(b, id, ledger.PaymentPatch{
			Amount:  req.Amount,
			Channel: req.Channel,
			Status:  req.Status,
			Date:    date,
		})
		return id, err
	})
	if err != nil {
		return domain.Payment{}, err
	}
	return *book.Payment(id), nil
}

func (s *Service) DeletePayment(ctx context.Context, id string) error {
	tripID, err := s.locate(ctx, domain.KindPayment, id)
	if err != nil {
		return err
	}
	_, _, err = s.mutate(ctx, "payment_delete", tripID, func(b *domain.TripBook) (string, error) {
		return id, s.engine.RemovePayment(b, id)
	})
	return err
}
