package httpapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tripledger/backend/internal/ledger"
	"tripledger/backend/internal/lock"
	"tripledger/backend/internal/logging"
	"tripledger/backend/internal/store"
)

// newValidator reports fields by their json names and sees decimals as
// numbers, so tags like max= apply to money.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"code":   "validation_failed",
		"fields": fields,
	})
}

// fail maps service and ledger errors onto a status and a stable code.
// Contextual errors add what the caller needs to retry: the units still
// available, the amount still pending, or why a delete was refused.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	body := map[string]any{"error": err.Error()}

	var stock *ledger.InsufficientStockError
	var pending *ledger.PaymentExceedsPendingError
	var blocked *ledger.DeleteBlockedError

	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, store.ErrInvalidRecord):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.As(err, &stock):
		status, code = http.StatusUnprocessableEntity, "insufficient_stock"
		body["available"] = stock.Available
	case errors.As(err, &pending):
		status, code = http.StatusUnprocessableEntity, "payment_exceeds_pending"
		body["pending"] = pending.Pending
	case errors.Is(err, ledger.ErrNonPositiveAmount):
		status, code = http.StatusUnprocessableEntity, "non_positive_amount"
	case errors.Is(err, ledger.ErrPastDueDate):
		status, code = http.StatusUnprocessableEntity, "past_due_date"
	case errors.Is(err, ledger.ErrDebtLocked):
		status, code = http.StatusConflict, "debt_locked"
	case errors.As(err, &blocked):
		status, code = http.StatusConflict, "delete_blocked"
		body["reason"] = blocked.Reason
	case errors.Is(err, store.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, lock.ErrNotObtained):
		status, code = http.StatusConflict, "trip_busy"
	}

	if status >= 500 {
		logging.LogError(a.log, "httpapi", "fail", r.Method+" "+r.URL.Path, nil, err)
		body = map[string]any{"error": "internal server error"}
	}
	body["code"] = code
	writeJSON(w, status, body)
}
