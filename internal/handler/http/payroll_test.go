package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-engine/internal/pkg/jwt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type fakePayrollService struct {
	calculate        func(staffID string, year, month int) (payroll.SalaryRecord, error)
	calculateBatch   func(staffIDs []string, year, month int) (payroll.BatchResult, error)
	calculateCompany func(companyID string, year, month int) (payroll.BatchResult, error)
	getRecord        func(staffID string, year, month int) (payroll.SalaryRecord, error)
	updateStatus     func(staffID string, year, month int, status payroll.SalaryStatus) (payroll.SalaryRecord, error)
	activeRuleSet    func(on time.Time) (payroll.LaborLawRuleSet, error)

	// companies records the company passed to every staff-keyed call.
	companies []string
}

func (f *fakePayrollService) Calculate(_ context.Context, companyID, staffID string, year, month int) (payroll.SalaryRecord, error) {
	f.companies = append(f.companies, companyID)
	return f.calculate(staffID, year, month)
}

func (f *fakePayrollService) CalculateBatch(_ context.Context, companyID string, staffIDs []string, year, month int) (payroll.BatchResult, error) {
	f.companies = append(f.companies, companyID)
	return f.calculateBatch(staffIDs, year, month)
}

func (f *fakePayrollService) CalculateCompany(_ context.Context, companyID string, year, month int) (payroll.BatchResult, error) {
	return f.calculateCompany(companyID, year, month)
}

func (f *fakePayrollService) GetRecord(_ context.Context, companyID, staffID string, year, month int) (payroll.SalaryRecord, error) {
	f.companies = append(f.companies, companyID)
	return f.getRecord(staffID, year, month)
}

func (f *fakePayrollService) UpdateStatus(_ context.Context, companyID, staffID string, year, month int, status payroll.SalaryStatus) (payroll.SalaryRecord, error) {
	f.companies = append(f.companies, companyID)
	return f.updateStatus(staffID, year, month, status)
}

func (f *fakePayrollService) ActiveRuleSet(_ context.Context, on time.Time) (payroll.LaborLawRuleSet, error) {
	return f.activeRuleSet(on)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type testServer struct {
	handler http.Handler
	jwt     jwt.Service
}

func newTestServer(t *testing.T, svc payroll.PayrollService) *testServer {
	t.Helper()
	jwtService := jwt.NewJWTService(handlerTestSecret)
	router := NewRouter(jwtService, NewPayrollHandler(svc), RouterOptions{
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AllowedOrigins: []string{"http://localhost:3000"},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("payroll_calculations_total 0\n"))
		}),
	})
	return &testServer{handler: router, jwt: jwtService}
}

func (s *testServer) token(t *testing.T, role string) string {
	t.Helper()
	return s.companyToken(t, "company-1", role)
}

// companyToken mints an access token in the HRIS auth service claim layout.
// An empty companyID leaves the claim out.
func (s *testServer) companyToken(t *testing.T, companyID, role string) string {
	t.Helper()
	claims := map[string]interface{}{
		"user_id": "user-1",
		"role":    role,
		"type":    "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	if companyID != "" {
		claims["company_id"] = companyID
	}
	_, token, err := s.jwt.JWTAuth().Encode(claims)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func sampleRecord(staffID string) payroll.SalaryRecord {
	return payroll.SalaryRecord{
		StaffID:         staffID,
		Year:            2024,
		Month:           3,
		TotalGrossPay:   580000,
		TotalDeductions: 102795,
		NetPay:          477205,
		Status:          payroll.SalaryStatusDraft,
		RuleSetVersion:  "KR-2024",
	}
}

func TestPayrollRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{})

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate", "", map[string]any{"staff_id": "s1", "year": 2024, "month": 3})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
}

func TestPayrollRoutes_EmployeeCannotCalculate(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{})

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate", srv.token(t, jwt.RoleEmployee),
		map[string]any{"staff_id": "s1", "year": 2024, "month": 3})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestCalculate_Success(t *testing.T) {
	var got []any
	srv := newTestServer(t, &fakePayrollService{
		calculate: func(staffID string, year, month int) (payroll.SalaryRecord, error) {
			got = []any{staffID, year, month}
			return sampleRecord(staffID), nil
		},
	})

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate", srv.token(t, jwt.RoleManager),
		map[string]any{"staff_id": "s1", "year": 2024, "month": 3})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []any{"s1", 2024, 3}, got)

	var record map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &record))
	assert.Equal(t, float64(477205), record["net_pay"])
	assert.Equal(t, "DRAFT", record["status"])
	assert.Equal(t, "KR-2024", record["rule_set_version"])
}

func TestStaffRoutes_ScopedToTokenCompany(t *testing.T) {
	// Staff s1 belongs to company-1; the service hides it from other companies.
	svc := &fakePayrollService{}
	svc.calculate = func(staffID string, year, month int) (payroll.SalaryRecord, error) {
		if svc.companies[len(svc.companies)-1] != "company-1" {
			return payroll.SalaryRecord{}, payroll.ErrStaffNotFound
		}
		return sampleRecord(staffID), nil
	}
	svc.getRecord = svc.calculate
	svc.updateStatus = func(staffID string, year, month int, _ payroll.SalaryStatus) (payroll.SalaryRecord, error) {
		return svc.calculate(staffID, year, month)
	}
	svc.calculateBatch = func(staffIDs []string, year, month int) (payroll.BatchResult, error) {
		result := payroll.BatchResult{RunID: "run-x", Year: year, Month: month}
		for _, id := range staffIDs {
			if _, err := svc.calculate(id, year, month); err != nil {
				result.Failed = append(result.Failed, payroll.BatchFailure{StaffID: id, Reason: err.Error(), Err: err})
			}
		}
		return result, nil
	}
	srv := newTestServer(t, svc)
	foreign := srv.companyToken(t, "company-2", jwt.RoleManager)

	rec, _ := srv.do(t, http.MethodGet, "/api/v1/payroll/records/s1/2024/3", foreign, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = srv.do(t, http.MethodPatch, "/api/v1/payroll/records/s1/2024/3/status", foreign, map[string]string{"status": "CONFIRMED"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/payroll/calculate", foreign, map[string]any{"staff_id": "s1", "year": 2024, "month": 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate/batch", foreign,
		map[string]any{"staff_ids": []string{"s1"}, "year": 2024, "month": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	var body payroll.BatchResultResponse
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.Zero(t, body.SucceededCount)
	assert.Equal(t, 1, body.FailedCount)

	assert.Equal(t, []string{"company-2", "company-2", "company-2", "company-2"}, svc.companies)
}

func TestStaffRoutes_RequireCompanyClaim(t *testing.T) {
	svc := &fakePayrollService{}
	srv := newTestServer(t, svc)
	token := srv.companyToken(t, "", jwt.RoleOwner)

	rec, _ := srv.do(t, http.MethodGet, "/api/v1/payroll/records/s1/2024/3", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/payroll/calculate", token, map[string]any{"staff_id": "s1", "year": 2024, "month": 3})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = srv.do(t, http.MethodPost, "/api/v1/payroll/calculate/batch", token,
		map[string]any{"staff_ids": []string{"s1"}, "year": 2024, "month": 3})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Empty(t, svc.companies)
}

func TestCalculate_ValidationError(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{})

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate", srv.token(t, jwt.RoleOwner),
		map[string]any{"staff_id": "", "year": 2024, "month": 13})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "month")
	assert.Contains(t, resp.Error.Details, "staff_id")
}

func TestCalculate_InvalidBody(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/calculate", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+srv.token(t, jwt.RoleOwner))
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name: "below minimum wage",
			err: &payroll.MinimumWageError{
				HourlyRate:  decimal.NewFromInt(9000),
				MinimumWage: decimal.NewFromInt(9860),
				RuleSet:     "KR-2024",
			},
			status: http.StatusUnprocessableEntity,
			code:   "BELOW_MINIMUM_WAGE",
		},
		{
			name:   "invalid attendance",
			err:    &payroll.InvalidRecordError{StaffID: "s1", Date: "2024-03-04", Reason: "check-out before check-in"},
			status: http.StatusUnprocessableEntity,
			code:   "INVALID_ATTENDANCE",
		},
		{
			name:   "staff not found",
			err:    payroll.ErrStaffNotFound,
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "no attendance data",
			err:    &payroll.DataUnavailableError{StaffID: "s1", Year: 2024, Month: 3},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "record locked",
			err:    payroll.ErrRecordLocked,
			status: http.StatusConflict,
			code:   "CONFLICT",
		},
		{
			name:   "no active rule set",
			err:    &payroll.ConfigurationError{Date: time.Date(1999, 1, 31, 0, 0, 0, 0, time.UTC), Err: payroll.ErrNoActiveRuleSet},
			status: http.StatusServiceUnavailable,
			code:   "CONFIGURATION_ERROR",
		},
		{
			name:   "unexpected",
			err:    &payroll.CalculationError{StaffID: "s1"},
			status: http.StatusInternalServerError,
			code:   "INTERNAL_SERVER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakePayrollService{
				calculate: func(string, int, int) (payroll.SalaryRecord, error) {
					return payroll.SalaryRecord{}, tt.err
				},
			})

			rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate", srv.token(t, jwt.RoleManager),
				map[string]any{"staff_id": "s1", "year": 2024, "month": 3})

			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCalculateBatch_ExplicitStaff(t *testing.T) {
	var gotIDs []string
	srv := newTestServer(t, &fakePayrollService{
		calculateBatch: func(staffIDs []string, year, month int) (payroll.BatchResult, error) {
			gotIDs = staffIDs
			return payroll.BatchResult{
				RunID: "run-1", Year: year, Month: month,
				Succeeded: []payroll.SalaryRecord{sampleRecord("a"), sampleRecord("c")},
				Failed:    []payroll.BatchFailure{{StaffID: "b", Reason: "staff member not found"}},
			}, nil
		},
	})

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate/batch", srv.token(t, jwt.RoleManager),
		map[string]any{"staff_ids": []string{"a", "b", "c"}, "year": 2024, "month": 3})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b", "c"}, gotIDs)

	var body payroll.BatchResultResponse
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, 2, body.SucceededCount)
	assert.Equal(t, 1, body.FailedCount)
	assert.Equal(t, "b", body.Failures[0].StaffID)
	assert.False(t, body.Incomplete)
}

func TestCalculateBatch_WholeCompanyFromToken(t *testing.T) {
	var gotCompany string
	srv := newTestServer(t, &fakePayrollService{
		calculateCompany: func(companyID string, year, month int) (payroll.BatchResult, error) {
			gotCompany = companyID
			return payroll.BatchResult{RunID: "run-2", Year: year, Month: month}, nil
		},
	})

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate/batch", srv.token(t, jwt.RoleOwner),
		map[string]any{"year": 2024, "month": 3})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "company-1", gotCompany)

	var body payroll.BatchResultResponse
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.Empty(t, body.Records)
	assert.NotNil(t, body.Records)
}

func TestCalculateBatch_ConfigurationAborts(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{
		calculateBatch: func([]string, int, int) (payroll.BatchResult, error) {
			return payroll.BatchResult{}, &payroll.ConfigurationError{
				Date: time.Date(1999, 1, 31, 0, 0, 0, 0, time.UTC),
				Err:  payroll.ErrNoActiveRuleSet,
			}
		},
	})

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate/batch", srv.token(t, jwt.RoleManager),
		map[string]any{"staff_ids": []string{"a"}, "year": 1999, "month": 1})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "CONFIGURATION_ERROR", resp.Error.Code)
}

func TestCalculateBatch_PartialOnTimeout(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{
		calculateBatch: func([]string, int, int) (payroll.BatchResult, error) {
			return payroll.BatchResult{
				RunID: "run-3", Year: 2024, Month: 3,
				Succeeded: []payroll.SalaryRecord{sampleRecord("a")},
			}, context.DeadlineExceeded
		},
	})

	rec, resp := srv.do(t, http.MethodPost, "/api/v1/payroll/calculate/batch", srv.token(t, jwt.RoleManager),
		map[string]any{"staff_ids": []string{"a", "b"}, "year": 2024, "month": 3})

	require.Equal(t, http.StatusOK, rec.Code)
	var body payroll.BatchResultResponse
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.True(t, body.Incomplete)
	assert.Equal(t, 1, body.SucceededCount)
}

func TestGetRecord(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{
		getRecord: func(staffID string, year, month int) (payroll.SalaryRecord, error) {
			if staffID == "missing" {
				return payroll.SalaryRecord{}, payroll.ErrSalaryRecordNotFound
			}
			return sampleRecord(staffID), nil
		},
	})
	token := srv.token(t, jwt.RoleManager)

	rec, resp := srv.do(t, http.MethodGet, "/api/v1/payroll/records/s1/2024/3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var record payroll.SalaryRecord
	require.NoError(t, json.Unmarshal(resp.Data, &record))
	assert.Equal(t, "s1", record.StaffID)
	assert.Equal(t, int64(580000), record.TotalGrossPay)

	rec, _ = srv.do(t, http.MethodGet, "/api/v1/payroll/records/missing/2024/3", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = srv.do(t, http.MethodGet, "/api/v1/payroll/records/s1/2024/march", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Error.Details, "month")
}

func TestUpdateStatus(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{
		updateStatus: func(staffID string, year, month int, status payroll.SalaryStatus) (payroll.SalaryRecord, error) {
			if status == payroll.SalaryStatusDraft {
				return payroll.SalaryRecord{}, payroll.ErrInvalidStatusTransition
			}
			rec := sampleRecord(staffID)
			rec.Status = status
			return rec, nil
		},
	})
	token := srv.token(t, jwt.RoleOwner)
	path := "/api/v1/payroll/records/s1/2024/3/status"

	rec, resp := srv.do(t, http.MethodPatch, path, token, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)
	var record payroll.SalaryRecord
	require.NoError(t, json.Unmarshal(resp.Data, &record))
	assert.Equal(t, payroll.SalaryStatusConfirmed, record.Status)

	rec, _ = srv.do(t, http.MethodPatch, path, token, map[string]string{"status": "DRAFT"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = srv.do(t, http.MethodPatch, path, token, map[string]string{"status": "ARCHIVED"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Error.Details, "status")
}

func TestGetActiveRuleSet(t *testing.T) {
	var gotDate time.Time
	srv := newTestServer(t, &fakePayrollService{
		activeRuleSet: func(on time.Time) (payroll.LaborLawRuleSet, error) {
			gotDate = on
			return payroll.LaborLawRuleSet{
				Version:        "KR-2024",
				EffectiveDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				MinimumWage:    decimal.NewFromInt(9860),
				NightStartHour: 22,
				NightEndHour:   6,
			}, nil
		},
	})

	// Any authenticated role may read the rule set.
	rec, resp := srv.do(t, http.MethodGet, "/api/v1/payroll/rule-sets/active?date=2024-06-15", srv.token(t, jwt.RoleEmployee), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), gotDate)

	var body payroll.RuleSetResponse
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.Equal(t, "KR-2024", body.Version)
	assert.Equal(t, "9860", body.MinimumWage)
	assert.Equal(t, "22:00-06:00", body.NightWindow)
}

func TestGetActiveRuleSet_BadDate(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{})

	rec, resp := srv.do(t, http.MethodGet, "/api/v1/payroll/rule-sets/active?date=15-06-2024", srv.token(t, jwt.RoleManager), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Error.Details, "date")
}

func TestRouter_HeartbeatAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakePayrollService{})

	rec, _ := srv.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payroll_calculations_total")
}
