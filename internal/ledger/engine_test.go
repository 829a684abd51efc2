package ledger

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripledger/backend/internal/derive"
	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
)

var fixedNow = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return e
}

func newBook() *domain.TripBook {
	return domain.NewTripBook(domain.Trip{ID: "trip-1", Name: "Coast run", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}

func addAllocation(t *testing.T, e *Engine, b *domain.TripBook, stocked int, purchase, sale string) string {
	t.Helper()
	a, err := e.AddAllocation(b, AllocationInput{ProductRef: "rice", Quantity: stocked, PurchasePrice: dec(purchase), SalePrice: dec(sale)})
	require.NoError(t, err)
	return a.ID
}

func addDebt(t *testing.T, e *Engine, b *domain.TripBook, allocationID string, qty int) string {
	t.Helper()
	d, err := e.AddDebt(b, DebtInput{PersonRef: "ana", AllocationID: allocationID, Quantity: qty})
	require.NoError(t, err)
	return d.ID
}

func TestCashSaleUpdatesAllocation(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")

	_, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 6, Channel: domain.ChannelCash})
	require.NoError(t, err)

	a := b.Allocation(allocID)
	assert.Equal(t, 6, a.QuantitySold)
	assert.Equal(t, 4, a.QuantityRemaining)
	assertDec(t, "50", a.CapitalInvested, "capital")
	assertDec(t, "18", a.ActualProfit, "actual profit")
	assertDec(t, "30", a.PotentialProfit, "potential profit")
	assertDec(t, "48", b.Totals.CashTotal, "cash total")
	assertDec(t, "48", b.Totals.TotalSold, "total sold")
	assertDec(t, "36", b.Totals.ProfitPercentReal, "real percent")
	require.NoError(t, Verify(b))
}

func TestPaymentsSettleDebtAndSale(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 20, "5", "10")
	debtID := addDebt(t, e, b, allocID, 10)
	assertDec(t, "100", b.Debt(debtID).AmountTotal, "debt total")

	_, err := e.RecordPayment(b, debtID, PaymentInput{Amount: dec("40"), Channel: domain.ChannelCash})
	require.NoError(t, err)
	d := b.Debt(debtID)
	assertDec(t, "40", d.AmountPaid, "paid")
	assertDec(t, "60", d.AmountPending, "pending")
	assert.Equal(t, domain.DebtPartial, d.State)
	assert.Equal(t, domain.SalePartial, b.Sale(d.SaleID).Status)

	_, err = e.RecordPayment(b, debtID, PaymentInput{Amount: dec("60"), Channel: domain.ChannelTransfer})
	require.NoError(t, err)
	d = b.Debt(debtID)
	assertDec(t, "0", d.AmountPending, "pending")
	assert.Equal(t, domain.DebtPaid, d.State)
	require.NotNil(t, d.PaidDate)
	assert.Equal(t, e.Today(), *d.PaidDate)

	s := b.Sale(d.SaleID)
	assert.Equal(t, domain.SalePaid, s.Status)
	assert.Equal(t, domain.ChannelTransfer, s.SettlementChannel)
	assert.Equal(t, domain.ChannelCredit, s.Channel)

	assertDec(t, "40", b.Totals.CashTotal, "cash")
	assertDec(t, "60", b.Totals.TransferTotal, "transfer")
	assertDec(t, "0", b.Totals.DebtOutstanding, "outstanding")
	assertDec(t, "100", b.Totals.TotalSold, "total sold")
	require.NoError(t, Verify(b))
}

func TestPaymentAbovePendingLeavesBookUnchanged(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 20, "5", "10")
	debtID := addDebt(t, e, b, allocID, 10)
	_, err := e.RecordPayment(b, debtID, PaymentInput{Amount: dec("40"), Channel: domain.ChannelCash})
	require.NoError(t, err)
	before := b.Clone()

	_, err = e.RecordPayment(b, debtID, PaymentInput{Amount: dec("80"), Channel: domain.ChannelCash})
	var exceeds *PaymentExceedsPendingError
	require.ErrorAs(t, err, &exceeds)
	assertDec(t, "60", exceeds.Pending, "pending")
	assert.ErrorIs(t, err, ErrPaymentExceedsPending)
	assert.Equal(t, before, b)
}

func TestSaleBeyondStockFails(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 5, "5", "8")
	_, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 3, Channel: domain.ChannelCash})
	require.NoError(t, err)
	_, err = e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 2, Channel: domain.ChannelTransfer})
	require.NoError(t, err)

	_, err = e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 1, Channel: domain.ChannelCash})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 0, short.Available)
	assert.Len(t, b.Sales, 2)
}

func TestEmptyTripTotalsAreZero(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()

	totals := e.Recompute(b)
	for name, v := range map[string]decimal.Decimal{
		"capital":           totals.CapitalInvested,
		"cash":              totals.CashTotal,
		"transfer":          totals.TransferTotal,
		"outstanding":       totals.DebtOutstanding,
		"total sold":        totals.TotalSold,
		"realized":          totals.RealizedProfit,
		"potential":         totals.PotentialProfit,
		"percent real":      totals.ProfitPercentReal,
		"percent potential": totals.ProfitPercentPotential,
	} {
		assert.Truef(t, v.IsZero(), "%s = %s", name, v)
	}
}

func TestDebtCountsAgainstStockOnce(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 5, "5", "8")
	addDebt(t, e, b, allocID, 3)

	a := b.Allocation(allocID)
	assert.Equal(t, 3, a.QuantitySold)
	assert.Equal(t, 2, a.QuantityRemaining)
	assert.Equal(t, domain.SaleDraft, b.Sales[0].Status)

	_, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 3, Channel: domain.ChannelCash})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 2, short.Available)
}

func TestCreditSaleOpensDebt(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")
	due := e.Today().AddDate(0, 0, 10)

	s, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 2, Channel: domain.ChannelCredit, PersonRef: "budi", DueDate: &due})
	require.NoError(t, err)
	require.NotEmpty(t, s.DebtID)
	assert.Equal(t, domain.SaleDebt, s.Status)

	d := b.Debt(s.DebtID)
	assertDec(t, "16", d.AmountTotal, "debt total")
	assert.Equal(t, domain.DebtPending, d.State)
	assert.Equal(t, 10, d.DaysUntilDue)
	assertDec(t, "16", b.Totals.DebtOutstanding, "outstanding")
	assert.Equal(t, 2, b.Allocation(allocID).QuantitySold)

	_, err = e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 1, Channel: domain.ChannelCredit})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPastDueDateRejected(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")
	yesterday := e.Today().AddDate(0, 0, -1)

	_, err := e.AddDebt(b, DebtInput{PersonRef: "ana", AllocationID: allocID, Quantity: 1, DueDate: &yesterday})
	assert.ErrorIs(t, err, ErrPastDueDate)

	debtID := addDebt(t, e, b, allocID, 1)
	_, err = e.UpdateDebt(b, debtID, DebtPatch{DueDate: &yesterday})
	assert.ErrorIs(t, err, ErrPastDueDate)

	today := e.Today()
	_, err = e.UpdateDebt(b, debtID, DebtPatch{DueDate: &today})
	require.NoError(t, err)
}

func TestDebtBecomesOverdueAsDaysPass(t *testing.T) {
	now := fixedNow
	e, err := NewEngine(WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")
	due := e.Today().AddDate(0, 0, 2)
	d, err := e.AddDebt(b, DebtInput{PersonRef: "ana", AllocationID: allocID, Quantity: 1, DueDate: &due})
	require.NoError(t, err)
	debtID := d.ID
	assert.Equal(t, domain.DebtPending, b.Debt(debtID).State)

	now = fixedNow.AddDate(0, 0, 5)
	e.Recompute(b)
	assert.Equal(t, domain.DebtOverdue, b.Debt(debtID).State)
	assert.Equal(t, -3, b.Debt(debtID).DaysUntilDue)
}

func TestPaymentReversalRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "10")
	debtID := addDebt(t, e, b, allocID, 5)
	before := b.Debt(debtID).AmountPending

	p, err := e.RecordPayment(b, debtID, PaymentInput{Amount: dec("20"), Channel: domain.ChannelCard})
	require.NoError(t, err)
	assertDec(t, "20", b.Totals.OtherTotal, "other total")

	require.NoError(t, e.RemovePayment(b, p.ID))
	d := b.Debt(debtID)
	assert.True(t, before.Equal(d.AmountPending))
	assertDec(t, "0", d.AmountPaid, "paid")
	assert.Equal(t, domain.DebtPending, d.State)
	assertDec(t, "0", b.Totals.OtherTotal, "other total")
	require.NoError(t, Verify(b))
}

func TestUpdatePaymentReappliesAmount(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "10")
	debtID := addDebt(t, e, b, allocID, 5)
	p, err := e.RecordPayment(b, debtID, PaymentInput{Amount: dec("20"), Channel: domain.ChannelCash})
	require.NoError(t, err)
	payID := p.ID

	amount := dec("50")
	_, err = e.UpdatePayment(b, payID, PaymentPatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, domain.DebtPaid, b.Debt(debtID).State)

	tooMuch := dec("51")
	_, err = e.UpdatePayment(b, payID, PaymentPatch{Amount: &tooMuch})
	var exceeds *PaymentExceedsPendingError
	require.ErrorAs(t, err, &exceeds)
	assertDec(t, "50", exceeds.Pending, "pending before this payment")
	assertDec(t, "50", b.Payment(payID).Amount, "amount kept")

	cancelled := domain.PaymentCancelled
	_, err = e.UpdatePayment(b, payID, PaymentPatch{Status: &cancelled})
	require.NoError(t, err)
	assertDec(t, "0", b.Debt(debtID).AmountPaid, "paid after cancel")
	assert.Equal(t, domain.DebtPending, b.Debt(debtID).State)
	assert.Nil(t, b.Debt(debtID).PaidDate)

	zero := decimal.Zero
	_, err = e.UpdatePayment(b, payID, PaymentPatch{Amount: &zero})
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	require.NoError(t, Verify(b))
}

func TestSettleAndReopenDebt(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "10")
	debtID := addDebt(t, e, b, allocID, 4)
	_, err := e.RecordPayment(b, debtID, PaymentInput{Amount: dec("15"), Channel: domain.ChannelCash})
	require.NoError(t, err)

	d, err := e.SettleDebt(b, debtID, domain.ChannelTransfer, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.DebtPaid, d.State)
	require.Len(t, b.Payments, 2)
	assertDec(t, "25", b.Payments[1].Amount, "settling payment")
	assertDec(t, "25", b.Totals.TransferTotal, "transfer")

	_, err = e.SettleDebt(b, debtID, "", time.Time{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	d, err = e.ReopenDebt(b, debtID)
	require.NoError(t, err)
	assert.Equal(t, domain.DebtPending, d.State)
	assertDec(t, "40", d.AmountPending, "pending")
	assert.Nil(t, d.PaidDate)
	for _, p := range b.Payments {
		assert.Equal(t, domain.PaymentCancelled, p.Status)
	}
	assertDec(t, "0", b.Totals.CashTotal, "cash")
	require.NoError(t, Verify(b))
}

func TestDebtWithPaymentsIsLocked(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "10")
	debtID := addDebt(t, e, b, allocID, 4)
	saleID := b.Debt(debtID).SaleID
	_, err := e.RecordPayment(b, debtID, PaymentInput{Amount: dec("10"), Channel: domain.ChannelCash})
	require.NoError(t, err)

	qty := 5
	_, err = e.UpdateDebt(b, debtID, DebtPatch{Quantity: &qty})
	assert.ErrorIs(t, err, ErrDebtLocked)
	assert.ErrorIs(t, e.RemoveDebt(b, debtID), ErrDebtLocked)
	assert.ErrorIs(t, e.RemoveSale(b, saleID), ErrDebtLocked)

	price := dec("12")
	_, err = e.UpdateAllocation(b, allocID, AllocationPatch{SalePrice: &price})
	assert.ErrorIs(t, err, ErrDebtLocked)

	person := "ana maria"
	d, err := e.UpdateDebt(b, debtID, DebtPatch{PersonRef: &person})
	require.NoError(t, err)
	assert.Equal(t, "ana maria", b.Sale(d.SaleID).PersonRef)
}

func TestUpdateSaleMovesBetweenChannels(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")
	s, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 2, Channel: domain.ChannelCash})
	require.NoError(t, err)
	saleID := s.ID

	credit := domain.ChannelCredit
	person := "citra"
	s, err = e.UpdateSale(b, saleID, SalePatch{Channel: &credit, PersonRef: &person})
	require.NoError(t, err)
	require.NotEmpty(t, s.DebtID)
	assertDec(t, "16", b.Totals.DebtOutstanding, "outstanding")
	assertDec(t, "0", b.Totals.CashTotal, "cash")

	qty := 3
	_, err = e.UpdateSale(b, saleID, SalePatch{Quantity: &qty})
	require.NoError(t, err)
	assertDec(t, "24", b.DebtForSale(saleID).AmountTotal, "debt follows sale quantity")

	cash := domain.ChannelCash
	s, err = e.UpdateSale(b, saleID, SalePatch{Channel: &cash})
	require.NoError(t, err)
	assert.Empty(t, s.DebtID)
	assert.Empty(t, b.Debts)
	assertDec(t, "24", b.Totals.CashTotal, "cash")
	require.NoError(t, Verify(b))
}

func TestCreditSaleRejectsBlankPerson(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")
	s, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 2, Channel: domain.ChannelCredit, PersonRef: "budi"})
	require.NoError(t, err)

	blank := "  "
	_, err = e.UpdateSale(b, s.ID, SalePatch{PersonRef: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "budi", b.Sale(s.ID).PersonRef)
	assert.Equal(t, "budi", b.DebtForSale(s.ID).PersonRef)

	qty := 3
	_, err = e.UpdateSale(b, s.ID, SalePatch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "budi", b.DebtForSale(s.ID).PersonRef)
}

func TestUpdateSaleExcludesItsOwnClaim(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 5, "5", "8")
	s, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 4, Channel: domain.ChannelCash})
	require.NoError(t, err)

	qty := 5
	_, err = e.UpdateSale(b, s.ID, SalePatch{Quantity: &qty})
	require.NoError(t, err)

	qty = 6
	_, err = e.UpdateSale(b, s.ID, SalePatch{Quantity: &qty})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 5, short.Available)
	assert.Equal(t, 5, b.Sale(s.ID).Quantity)
}

func TestDraftSaleCannotLeaveCredit(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 5, "5", "8")
	debtID := addDebt(t, e, b, allocID, 1)

	cash := domain.ChannelCash
	_, err := e.UpdateSale(b, b.Debt(debtID).SaleID, SalePatch{Channel: &cash})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, e.RemoveDebt(b, debtID))
	assert.Empty(t, b.Sales)
	assert.Equal(t, 0, b.Allocation(allocID).QuantitySold)
}

func TestAllocationStockCannotDropBelowSold(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")
	_, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 6, Channel: domain.ChannelCash})
	require.NoError(t, err)

	stock := 5
	_, err = e.UpdateAllocation(b, allocID, AllocationPatch{QuantityStocked: &stock})
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 4, short.Available)

	stock = 6
	a, err := e.UpdateAllocation(b, allocID, AllocationPatch{QuantityStocked: &stock})
	require.NoError(t, err)
	assert.Equal(t, 0, a.QuantityRemaining)
	assertDec(t, "30", b.Totals.CapitalInvested, "capital")

	price := dec("0")
	_, err = e.UpdateAllocation(b, allocID, AllocationPatch{PurchasePrice: &price})
	assert.ErrorIs(t, err, ErrNonPositiveAmount)

	var blocked *DeleteBlockedError
	require.ErrorAs(t, e.RemoveAllocation(b, allocID), &blocked)
	assert.Equal(t, domain.KindAllocation, blocked.Kind)
}

func TestSalePriceChangeFlowsToTotals(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")
	_, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 2, Channel: domain.ChannelCash})
	require.NoError(t, err)
	addDebt(t, e, b, allocID, 1)

	price := dec("9")
	_, err = e.UpdateAllocation(b, allocID, AllocationPatch{SalePrice: &price})
	require.NoError(t, err)

	assertDec(t, "18", b.Totals.CashTotal, "cash")
	assertDec(t, "9", b.Totals.DebtOutstanding, "outstanding")
	assertDec(t, "27", b.Totals.TotalSold, "total sold")
	assertDec(t, "12", b.Totals.RealizedProfit, "realized")
}

func TestCheckTripDeletable(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	require.NoError(t, CheckTripDeletable(b))

	allocID := addAllocation(t, e, b, 10, "5", "8")
	addDebt(t, e, b, allocID, 1)

	var blocked *DeleteBlockedError
	require.ErrorAs(t, CheckTripDeletable(b), &blocked)
	assert.Equal(t, "1 sales recorded, 1 debts unsettled", blocked.Reason)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "8")
	_, err := e.AddSale(b, SaleInput{AllocationID: allocID, Quantity: 3, Channel: domain.ChannelTransfer})
	require.NoError(t, err)
	debtID := addDebt(t, e, b, allocID, 2)
	_, err = e.RecordPayment(b, debtID, PaymentInput{Amount: dec("4.5"), Channel: domain.ChannelCash})
	require.NoError(t, err)

	first, err := json.Marshal(b)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		e.Recompute(b)
		again, err := json.Marshal(b)
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(again))
	}
}

func TestOperationsKeepInvariants(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	rice := addAllocation(t, e, b, 12, "3", "5")
	oil := addAllocation(t, e, b, 4, "10", "14")

	_, err := e.AddSale(b, SaleInput{AllocationID: rice, Quantity: 5, Channel: domain.ChannelCash})
	require.NoError(t, err)
	s, err := e.AddSale(b, SaleInput{AllocationID: oil, Quantity: 2, Channel: domain.ChannelCredit, PersonRef: "dewi"})
	require.NoError(t, err)
	creditDebt := s.DebtID
	draftDebt := addDebt(t, e, b, rice, 4)

	steps := []func() error{
		func() error {
			_, err := e.RecordPayment(b, creditDebt, PaymentInput{Amount: dec("10"), Channel: domain.ChannelTransfer})
			return err
		},
		func() error {
			_, err := e.RecordPayment(b, draftDebt, PaymentInput{Amount: dec("20"), Channel: domain.ChannelCash})
			return err
		},
		func() error {
			_, err := e.SettleDebt(b, creditDebt, domain.ChannelCheck, time.Time{})
			return err
		},
		func() error {
			_, err := e.ReopenDebt(b, draftDebt)
			return err
		},
		func() error {
			qty := 3
			_, err := e.UpdateDebt(b, draftDebt, DebtPatch{Quantity: &qty})
			return err
		},
	}
	for i, step := range steps {
		require.NoErrorf(t, step(), "step %d", i)
		require.NoErrorf(t, Verify(b), "step %d", i)
		for _, d := range b.Debts {
			assert.Falsef(t, d.AmountPending.IsNegative(), "step %d: debt %s pending %s", i, d.ID, d.AmountPending)
		}
	}

	assert.Equal(t, 8, b.Allocation(rice).QuantitySold)
	assertDec(t, "25", b.Totals.CashTotal, "cash")
	assertDec(t, "10", b.Totals.TransferTotal, "transfer")
	assertDec(t, "18", b.Totals.OtherTotal, "other")
	assertDec(t, "15", b.Totals.DebtOutstanding, "outstanding")
	assertDec(t, "68", b.Totals.TotalSold, "total sold")
}

func TestVerifyDetectsDrift(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()
	allocID := addAllocation(t, e, b, 10, "5", "10")
	debtID := addDebt(t, e, b, allocID, 2)

	b.Debt(debtID).AmountPaid = dec("5")
	assert.ErrorIs(t, Verify(b), ErrLedgerDrift)
}

func TestCycleInRulesFailsAtConstruction(t *testing.T) {
	noop := func(*frame) {}
	_, err := newEngine([]derive.Rule[*frame]{
		{Field: FieldDebtPending, DependsOn: []string{FieldDebtState}, Compute: noop},
		{Field: FieldDebtState, DependsOn: []string{FieldDebtPending}, Compute: noop},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyCycle)

	var cycle *derive.CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Contains(t, cycle.Fields, FieldDebtPending)
	assert.Contains(t, cycle.Fields, FieldDebtState)
}

func TestDeclaredRulesFormADag(t *testing.T) {
	e := newTestEngine(t)
	order := e.Fields()
	pos := make(map[string]int, len(order))
	for i, f := range order {
		pos[f] = i
	}
	for _, r := range rules() {
		for _, dep := range r.DependsOn {
			if p, ok := pos[dep]; ok {
				assert.Lessf(t, p, pos[r.Field], "%s must run before %s", dep, r.Field)
			}
		}
	}
	assert.Contains(t, e.Dependents(FieldDebtAmountPaid), FieldDebtPending)
}

func TestMissingRecordsReportNotFound(t *testing.T) {
	e := newTestEngine(t)
	b := newBook()

	_, err := e.AddSale(b, SaleInput{AllocationID: "alloc-x", Quantity: 1, Channel: domain.ChannelCash})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = e.RecordPayment(b, "debt-x", PaymentInput{Amount: dec("1"), Channel: domain.ChannelCash})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, e.RemovePayment(b, "pay-x"), store.ErrNotFound)
}
