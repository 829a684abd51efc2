package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"tripledger/backend/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (a *API) handleTrips(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		trips, err := a.service.ListTrips(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trips": trips})
	case http.MethodPost:
		if !requireOwner(w, r) {
			return
		}
		var req domain.TripCreateRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		book, err := a.service.CreateTrip(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"trip": book})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleTripActions serves /api/v1/trips/{id} and its sub-resources:
// recompute, export, allocations and sales.
func (a *API) handleTripActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/trips/")
	if len(parts) == 0 || len(parts) > 2 {
		writeError(w, http.StatusNotFound, errors.New("unknown trip path"))
		return
	}
	tripID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			book, err := a.service.GetTrip(r.Context(), tripID)
			if err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"trip": book})
		case http.MethodPatch:
			if !requireOwner(w, r) {
				return
			}
			var req domain.TripUpdateRequest
			if !a.decodeValid(w, r, &req) {
				return
			}
			trip, err := a.service.UpdateTrip(r.Context(), tripID, req)
			if err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"trip": trip})
		case http.MethodDelete:
			if !requireOwner(w, r) || !a.approveWithPIN(w, r, "trip-delete") {
				return
			}
			if err := a.service.DeleteTrip(r.Context(), tripID); err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": tripID})
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "recompute":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if !requireOwner(w, r) {
			return
		}
		totals, err := a.service.RecomputeTripTotals(r.Context(), tripID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
	case "export":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		if !requireOwner(w, r) {
			return
		}
		var buf bytes.Buffer
		if err := a.service.ExportTrip(r.Context(), tripID, &buf); err != nil {
			a.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", tripID+".xlsx"))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	case "allocations":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if !requireOwner(w, r) {
			return
		}
		var req domain.AllocationCreateRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		req.TripID = tripID
		alloc, err := a.service.CreateAllocation(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"allocation": alloc})
	case "sales":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.SaleCreateRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		req.TripID = tripID
		sale, err := a.service.CreateSale(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown trip path"))
	}
}

func (a *API) handleAllocationActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/allocations/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, errors.New("unknown allocation path"))
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodPatch:
		var req domain.AllocationUpdateRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		alloc, err := a.service.UpdateAllocation(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"allocation": alloc})
	case http.MethodDelete:
		if err := a.service.DeleteAllocation(r.Context(), id); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/sales/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, errors.New("unknown sale path"))
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodPatch:
		var req domain.SaleUpdateRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		sale, err := a.service.UpdateSale(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case http.MethodDelete:
		if err := a.service.DeleteSale(r.Context(), id); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDebts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.DebtCreateRequest
	if !a.decodeValid(w, r, &req) {
		return
	}
	debt, err := a.service.CreateDebt(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"debt": debt})
}

// handleDebtActions serves /api/v1/debts/{id} plus settle, reopen and
// payments.
func (a *API) handleDebtActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/debts/")
	if len(parts) == 0 || len(parts) > 2 {
		writeError(w, http.StatusNotFound, errors.New("unknown debt path"))
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPatch:
			var req domain.DebtUpdateRequest
			if !a.decodeValid(w, r, &req) {
				return
			}
			debt, err := a.service.UpdateDebt(r.Context(), id, req)
			if err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
		case http.MethodDelete:
			if err := a.service.DeleteDebt(r.Context(), id); err != nil {
				a.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	switch parts[1] {
	case "settle":
		var req domain.SettleDebtRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		debt, err := a.service.SettleDebt(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
	case "reopen":
		if !requireOwner(w, r) || !a.approveWithPIN(w, r, "debt-reopen") {
			return
		}
		debt, err := a.service.ReopenDebt(r.Context(), id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"debt": debt})
	case "payments":
		var req domain.PaymentCreateRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		req.DebtID = id
		payment, err := a.service.RecordPayment(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"payment": payment})
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown debt path"))
	}
}

func (a *API) handlePaymentActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/api/v1/payments/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, errors.New("unknown payment path"))
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodPatch:
		var req domain.PaymentUpdateRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		payment, err := a.service.UpdatePayment(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payment": payment})
	case http.MethodDelete:
		if !requireOwner(w, r) || !a.approveWithPIN(w, r, "payment-delete") {
			return
		}
		if err := a.service.DeletePayment(r.Context(), id); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	dash, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (a *API) handlePersons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	persons, err := a.service.PersonBalances(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"persons": persons})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	products, err := a.service.ProductSummaries(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleSellers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sellers, err := a.auth.ListSellers(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sellers": sellers})
	case http.MethodPost:
		var req domain.SellerCreateRequest
		if !a.decodeValid(w, r, &req) {
			return
		}
		user, err := a.auth.CreateSeller(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"seller": user})
	default:
		writeMethodNotAllowed(w)
	}
}
