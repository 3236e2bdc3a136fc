package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/ledger"
	"github.com/boddenberg/finledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Expenses
// ============================================================

func listExpensesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses")
		defer span.End()

		expenses, err := svc.ListExpenses(ctx, UsernameFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, expenses)
	}
}

func addExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/expenses")
		defer span.End()

		var in domain.ExpenseInput
		if err := decodeBody(r, &in, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		expenses, err := svc.AddExpense(ctx, UsernameFromContext(ctx), in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, expenses)
	}
}

func updateExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/expenses/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("expense.id", id))

		var patch domain.ExpensePatch
		if err := decodeBody(r, &patch, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpdateExpense(ctx, UsernameFromContext(ctx), id, patch); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Success: true, Message: "expense updated"})
	}
}

func deleteExpenseHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/expenses/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("expense.id", id))

		if err := svc.DeleteExpense(ctx, UsernameFromContext(ctx), id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Success: true, Message: "expense deleted"})
	}
}

// exportExpensesHandler streams the filtered expenses as CSV. Without a
// year query parameter every year is exported.
func exportExpensesHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expenses/export")
		defer span.End()

		filter, err := parseFilter(r, 0)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		expenses, err := svc.ExportExpenses(ctx, UsernameFromContext(ctx), filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var buf bytes.Buffer
		if err := ledger.WriteCSV(&buf, expenses); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		name := "expenses.csv"
		if filter.Year != 0 {
			name = fmt.Sprintf("expenses-%d.csv", filter.Year)
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

// ============================================================
// Credits
// ============================================================

func listCreditsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/credits")
		defer span.End()

		credits, err := svc.ListCredits(ctx, UsernameFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, credits)
	}
}

func addCreditHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/credits")
		defer span.End()

		var in domain.CreditInput
		if err := decodeBody(r, &in, false); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		credits, err := svc.AddCredit(ctx, UsernameFromContext(ctx), in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, credits)
	}
}
