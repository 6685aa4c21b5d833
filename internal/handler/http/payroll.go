package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

type PayrollHandler interface {
	// Calculation
	Calculate(w http.ResponseWriter, r *http.Request)
	CalculateBatch(w http.ResponseWriter, r *http.Request)

	// Salary records
	GetRecord(w http.ResponseWriter, r *http.Request)
	UpdateStatus(w http.ResponseWriter, r *http.Request)

	// Rule sets
	GetActiveRuleSet(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== CALCULATION ==========

func (h *payrollHandlerImpl) Calculate(w http.ResponseWriter, r *http.Request) {
	var req payroll.CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	companyID, err := companyIDFromClaims(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	record, err := h.payrollService.Calculate(r.Context(), companyID, req.StaffID, req.Year, req.Month)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Salary calculated", record)
}

// CalculateBatch calculates the listed staff members of the caller's company,
// or the whole company when staff_ids is empty.
func (h *payrollHandlerImpl) CalculateBatch(w http.ResponseWriter, r *http.Request) {
	var req payroll.BatchCalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	companyID, err := companyIDFromClaims(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var result payroll.BatchResult
	if len(req.StaffIDs) == 0 {
		result, err = h.payrollService.CalculateCompany(r.Context(), companyID, req.Year, req.Month)
	} else {
		result, err = h.payrollService.CalculateBatch(r.Context(), companyID, req.StaffIDs, req.Year, req.Month)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.WarnContext(r.Context(), "payroll batch interrupted", "run_id", result.RunID, "error", err)
			response.SuccessWithMessage(w, "Batch interrupted, partial result", payroll.NewBatchResultResponse(result, true))
			return
		}
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewBatchResultResponse(result, false))
}

// ========== SALARY RECORDS ==========

func (h *payrollHandlerImpl) GetRecord(w http.ResponseWriter, r *http.Request) {
	staffID, year, month, err := recordKey(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	companyID, err := companyIDFromClaims(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	record, err := h.payrollService.GetRecord(r.Context(), companyID, staffID, year, month)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, record)
}

func (h *payrollHandlerImpl) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	staffID, year, month, err := recordKey(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req payroll.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	companyID, err := companyIDFromClaims(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	record, err := h.payrollService.UpdateStatus(r.Context(), companyID, staffID, year, month, req.Target())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salary record status updated", record)
}

// ========== RULE SETS ==========

func (h *payrollHandlerImpl) GetActiveRuleSet(w http.ResponseWriter, r *http.Request) {
	on := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, ok := validator.IsValidDate(dateStr)
		if !ok {
			response.HandleError(w, payroll.ValidationFailure(validator.ValidationErrors{
				{Field: "date", Message: "must be in YYYY-MM-DD format"},
			}))
			return
		}
		on = date
	}

	rules, err := h.payrollService.ActiveRuleSet(r.Context(), on)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewRuleSetResponse(rules))
}

// ========== HELPERS ==========

func recordKey(r *http.Request) (staffID string, year, month int, err error) {
	var errs validator.ValidationErrors

	staffID = chi.URLParam(r, "staffID")
	if validator.IsEmpty(staffID) {
		errs = append(errs, validator.ValidationError{Field: "staff_id", Message: "is required"})
	}

	year, yerr := strconv.Atoi(chi.URLParam(r, "year"))
	month, merr := strconv.Atoi(chi.URLParam(r, "month"))
	if yerr != nil {
		errs = append(errs, validator.ValidationError{Field: "year", Message: "must be a number"})
	}
	if merr != nil {
		errs = append(errs, validator.ValidationError{Field: "month", Message: "must be a number"})
	}
	if yerr == nil && merr == nil {
		errs = append(errs, payroll.ValidatePeriod(year, month)...)
	}

	return staffID, year, month, payroll.ValidationFailure(errs)
}

func companyIDFromClaims(r *http.Request) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", jwt.ErrInvalidToken
	}
	companyID, ok := claims["company_id"].(string)
	if !ok || companyID == "" {
		slog.ErrorContext(r.Context(), "company_id not found in JWT claims")
		return "", jwt.ErrMissingCompanyID
	}
	return companyID, nil
}
