package report

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"tripledger/backend/internal/domain"
)

const (
	SheetSummary     = "Summary"
	SheetAllocations = "Allocations"
	SheetSales       = "Sales"
	SheetDebts       = "Debts"
	SheetPayments    = "Payments"
)

// WriteTrip writes the book as an xlsx workbook with one sheet per record
// kind and a totals sheet first.
func WriteTrip(w io.Writer, b *domain.TripBook) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetAllocations, SheetSales, SheetDebts, SheetPayments} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	t := b.Totals
	summary := [][]any{
		{"Trip", b.Trip.Name},
		{"Date", day(b.Trip.Date)},
		{"Capital invested", money(t.CapitalInvested)},
		{"Cash", money(t.CashTotal)},
		{"Transfer", money(t.TransferTotal)},
		{"Other", money(t.OtherTotal)},
		{"Debt outstanding", money(t.DebtOutstanding)},
		{"Total sold", money(t.TotalSold)},
		{"Realized profit", money(t.RealizedProfit)},
		{"Potential profit", money(t.PotentialProfit)},
		{"Profit % (real)", money(t.ProfitPercentReal)},
		{"Profit % (potential)", money(t.ProfitPercentPotential)},
	}
	if err := writeRows(f, SheetSummary, nil, summary); err != nil {
		return err
	}

	allocations := make([][]any, 0, len(b.Allocations))
	for _, a := range b.Allocations {
		allocations = append(allocations, []any{
			a.ID, a.ProductRef, a.QuantityStocked, a.QuantitySold, a.QuantityRemaining,
			money(a.PurchasePrice), money(a.SalePrice), money(a.CapitalInvested),
			money(a.ActualProfit), money(a.PotentialProfit),
		})
	}
	if err := writeRows(f, SheetAllocations, []any{
		"ID", "Product", "Stocked", "Sold", "Remaining", "Purchase price", "Sale price", "Capital", "Actual profit", "Potential profit",
	}, allocations); err != nil {
		return err
	}

	products := make(map[string]string, len(b.Allocations))
	for _, a := range b.Allocations {
		products[a.ID] = a.ProductRef
	}

	sales := make([][]any, 0, len(b.Sales))
	for _, s := range b.Sales {
		sales = append(sales, []any{
			s.ID, day(s.Date), products[s.AllocationID], s.Quantity, string(s.Channel), s.PersonRef,
			money(s.UnitPrice), money(s.Total), money(s.Profit), string(s.Status), string(s.SettlementChannel),
		})
	}
	if err := writeRows(f, SheetSales, []any{
		"ID", "Date", "Product", "Quantity", "Channel", "Person", "Unit price", "Total", "Profit", "Status", "Settled via",
	}, sales); err != nil {
		return err
	}

	debts := make([][]any, 0, len(b.Debts))
	for _, d := range b.Debts {
		debts = append(debts, []any{
			d.ID, d.PersonRef, products[d.AllocationID], d.Quantity, optionalDay(d.DueDate),
			money(d.AmountTotal), money(d.AmountPaid), money(d.AmountPending), string(d.State), optionalDay(d.PaidDate),
		})
	}
	if err := writeRows(f, SheetDebts, []any{
		"ID", "Person", "Product", "Quantity", "Due", "Total", "Paid", "Pending", "State", "Paid on",
	}, debts); err != nil {
		return err
	}

	payments := make([][]any, 0, len(b.Payments))
	for _, p := range b.Payments {
		payments = append(payments, []any{
			p.ID, p.DebtID, day(p.Date), money(p.Amount), string(p.Channel), string(p.Status),
		})
	}
	if err := writeRows(f, SheetPayments, []any{
		"ID", "Debt", "Date", "Amount", "Channel", "Status",
	}, payments); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, header []any, rows [][]any) error {
	next := 1
	if header != nil {
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		next = 2
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, next+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, next+i, err)
		}
	}
	return nil
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func optionalDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return day(*t)
}
