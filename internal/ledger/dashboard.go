package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tripledger/backend/internal/domain"
)

// DashboardMonths is how many calendar months the monthly series covers,
// ending with the current one.
const DashboardMonths = 6

// BuildDashboard folds trip summaries into the dashboard. It only reads the
// totals it is given and returns zeros for an empty set.
func BuildDashboard(summaries []domain.TripSummary, now time.Time, loc *time.Location) domain.Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	dash := domain.Dashboard{
		TotalTrips:  len(summaries),
		Months:      trailingMonths(now.In(loc), DashboardMonths),
		GeneratedAt: now.UTC(),
	}
	index := make(map[string]int, len(dash.Months))
	for i, m := range dash.Months {
		index[m.Month] = i
	}

	for _, s := range summaries {
		t := s.Totals
		dash.TotalInvested = dash.TotalInvested.Add(t.CapitalInvested)
		dash.TotalSales = dash.TotalSales.Add(t.TotalSold)
		dash.TotalRealizedProfit = dash.TotalRealizedProfit.Add(t.RealizedProfit)
		dash.TotalDebt = dash.TotalDebt.Add(t.DebtOutstanding)
		switch {
		case t.RealizedProfit.IsPositive():
			dash.ProfitableTrips++
		case t.RealizedProfit.IsNegative():
			dash.LossTrips++
		}

		if i, ok := index[s.Trip.Date.Format("2006-01")]; ok {
			m := &dash.Months[i]
			m.RealizedProfit = m.RealizedProfit.Add(t.RealizedProfit)
			m.TotalSold = m.TotalSold.Add(t.TotalSold)
		}
	}
	dash.AverageROI = percentOf(dash.TotalRealizedProfit, dash.TotalInvested)
	return dash
}

func trailingMonths(now time.Time, n int) []domain.MonthlyPoint {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]domain.MonthlyPoint, n)
	for i := 0; i < n; i++ {
		m := first.AddDate(0, i-n+1, 0)
		months[i] = domain.MonthlyPoint{
			Month:          m.Format("2006-01"),
			Label:          m.Format("Jan"),
			RealizedProfit: decimal.Zero,
			TotalSold:      decimal.Zero,
		}
	}
	return months
}

// PersonBalances groups credit activity by person across all books.
func PersonBalances(books []*domain.TripBook) []domain.PersonBalance {
	byPerson := map[string]*domain.PersonBalance{}
	get := func(ref string) *domain.PersonBalance {
		pb, ok := byPerson[ref]
		if !ok {
			pb = &domain.PersonBalance{PersonRef: ref, PendingDebt: decimal.Zero, TotalPurchases: decimal.Zero}
			byPerson[ref] = pb
		}
		return pb
	}

	for _, b := range books {
		for _, s := range b.Sales {
			if s.PersonRef == "" {
				continue
			}
			pb := get(s.PersonRef)
			pb.TotalPurchases = pb.TotalPurchases.Add(s.Total)
		}
		for _, d := range b.Debts {
			if d.State == domain.DebtPaid {
				continue
			}
			pb := get(d.PersonRef)
			pb.PendingDebt = pb.PendingDebt.Add(d.AmountPending)
			pb.OpenDebts++
		}
	}

	out := make([]domain.PersonBalance, 0, len(byPerson))
	for _, pb := range byPerson {
		out = append(out, *pb)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PendingDebt.Equal(out[j].PendingDebt) {
			return out[i].PendingDebt.GreaterThan(out[j].PendingDebt)
		}
		return out[i].PersonRef < out[j].PersonRef
	})
	return out
}

// ProductSummaries groups allocations by product across all books.
func ProductSummaries(books []*domain.TripBook) []domain.ProductSummary {
	byProduct := map[string]*domain.ProductSummary{}
	for _, b := range books {
		products := make(map[string]string, len(b.Allocations))
		for _, a := range b.Allocations {
			ps, ok := byProduct[a.ProductRef]
			if !ok {
				ps = &domain.ProductSummary{ProductRef: a.ProductRef}
				byProduct[a.ProductRef] = ps
			}
			ps.QuantityStocked += a.QuantityStocked
			ps.QuantitySold += a.QuantitySold
			products[a.ID] = a.ProductRef
		}
		for _, s := range b.Sales {
			if ref, ok := products[s.AllocationID]; ok {
				byProduct[ref].SaleCount++
			}
		}
		for _, d := range b.Debts {
			if d.State == domain.DebtPaid {
				continue
			}
			if ref, ok := products[d.AllocationID]; ok {
				byProduct[ref].PendingDebts++
			}
		}
	}

	out := make([]domain.ProductSummary, 0, len(byProduct))
	for _, ps := range byProduct {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductRef < out[j].ProductRef })
	return out
}
