package requestshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/fundproxy"
	"staffdesk/internal/domain/requests"
	"staffdesk/internal/transport/http/middleware"
)

type fakeRequests struct {
	mu          sync.Mutex
	vacations   []requests.VacationInput
	funds       []requests.FundInput
	generals    []requests.GeneralInput
	transitions []requests.TransitionInput
	filter      requests.ListFilter
	assigned    string
	stored      requests.Request
}

func (f *fakeRequests) CreateVacation(_ context.Context, p auth.Principal, in requests.VacationInput) (requests.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.StartDate == nil || in.EndDate == nil {
		return requests.Request{}, apperr.Invalid("payload validation failed", apperr.FieldIssue{Field: "startDate", Reason: "is required"})
	}
	f.vacations = append(f.vacations, in)
	return requests.Request{ID: "v1", Kind: requests.KindVacation, EmployeeID: p.EmployeeID, Status: requests.StatusPending, StartDate: in.StartDate, EndDate: in.EndDate}, nil
}

func (f *fakeRequests) CreateFund(_ context.Context, p auth.Principal, in requests.FundInput) (requests.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funds = append(f.funds, in)
	return requests.Request{ID: "f1", Kind: requests.KindFund, EmployeeID: p.EmployeeID, Status: requests.StatusPending, FundType: in.FundType}, nil
}

func (f *fakeRequests) CreateGeneral(_ context.Context, p auth.Principal, in requests.GeneralInput) (requests.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generals = append(f.generals, in)
	return requests.Request{ID: "g1", Kind: requests.KindGeneral, EmployeeID: p.EmployeeID, Status: requests.StatusPending, Subject: in.Subject}, nil
}

func (f *fakeRequests) List(_ context.Context, _ auth.Principal, _ requests.Kind, filter requests.ListFilter) ([]requests.Request, error) {
	f.filter = filter
	return []requests.Request{f.stored}, nil
}

func (f *fakeRequests) Get(_ context.Context, _ auth.Principal, kind requests.Kind, id string) (requests.Request, error) {
	if id != f.stored.ID || kind != f.stored.Kind {
		return requests.Request{}, apperr.NotFound(string(kind) + " request not found")
	}
	return f.stored, nil
}

func (f *fakeRequests) Transition(_ context.Context, _ auth.Principal, kind requests.Kind, id string, in requests.TransitionInput) (requests.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, in)
	if f.stored.Status != requests.StatusPending {
		return requests.Request{}, apperr.Conflict("request has already been processed")
	}
	f.stored.Status = in.Status
	return f.stored, nil
}

func (f *fakeRequests) Delete(_ context.Context, _ auth.Principal, _ requests.Kind, _ string) error {
	if f.stored.Status != requests.StatusPending {
		return apperr.Conflict("only pending requests can be deleted")
	}
	return nil
}

func (f *fakeRequests) Assign(_ context.Context, _ auth.Principal, _ string, assigneeUserID string) (requests.Request, error) {
	f.assigned = assigneeUserID
	return f.stored, nil
}

func (f *fakeRequests) ApprovedVacation(_ context.Context, _ auth.Principal, id string) (requests.Request, error) {
	if f.stored.Status != requests.StatusApproved {
		return requests.Request{}, apperr.Conflict("a slip is only available for approved requests")
	}
	return f.stored, nil
}

type fakeFunds struct {
	resp fundproxy.Response
	err  error
	body []byte
}

func (f *fakeFunds) Submit(_ context.Context, _ auth.Principal, _ string, _ string, body []byte) (fundproxy.Response, error) {
	f.body = body
	return f.resp, f.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var (
	alice    = auth.Principal{UserID: "u-alice", Role: auth.RoleEmployee, EmployeeID: "e-alice"}
	manager  = auth.Principal{UserID: "u-mgr", Role: auth.RoleManager, EmployeeID: "e-mgr"}
	director = auth.Principal{UserID: "u-dir", Role: auth.RoleDirector, EmployeeID: "e-dir"}
	payroll  = auth.Principal{UserID: "u-pay", Role: auth.RolePayroll, EmployeeID: "e-pay"}
)

func newRouter(svc RequestService, funds FundSubmitter, as *auth.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if as != nil {
		user := *as
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
			})
		})
	}
	h := NewHandler(svc, funds, nil, "Staffdesk Ltd", nil)
	h.now = func() time.Time { return time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC) }
	h.RegisterRoutes(r)
	return r
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestCreateEachKind(t *testing.T) {
	svc := &fakeRequests{}
	router := newRouter(svc, nil, &alice)

	rec := send(router, http.MethodPost, "/requests/vacation", `{"startDate":"2026-07-06","endDate":"2026-07-10","reason":"summer"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, svc.vacations, 1)
	assert.Equal(t, 6, svc.vacations[0].StartDate.Day())
	assert.Nil(t, svc.vacations[0].Days)

	rec = send(router, http.MethodPost, "/requests/fund", `{"fundType":"TRAINING","amount":350.5,"reason":"course"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.funds, 1)
	assert.InDelta(t, 350.5, svc.funds[0].Amount, 0.001)

	rec = send(router, http.MethodPost, "/requests/general", `{"requestType":"IT","subject":"new laptop"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.generals, 1)
	assert.Equal(t, "new laptop", svc.generals[0].Subject)
}

func TestCreateVacationRejectsMalformedDate(t *testing.T) {
	svc := &fakeRequests{}
	rec := send(newRouter(svc, nil, &alice), http.MethodPost, "/requests/vacation", `{"startDate":"06/07/2026","endDate":"2026-07-10"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Empty(t, svc.vacations)
}

func TestCreateRejectsMalformedPayload(t *testing.T) {
	rec := send(newRouter(&fakeRequests{}, nil, &alice), http.MethodPost, "/requests/general", `{"subject":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", decode(t, rec).Error.Code)
}

func TestRequestsRequireAuthentication(t *testing.T) {
	rec := send(newRouter(&fakeRequests{}, nil, nil), http.MethodGet, "/requests/vacation", ``)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownKindIsNotFound(t *testing.T) {
	rec := send(newRouter(&fakeRequests{}, nil, &alice), http.MethodGet, "/requests/sabbatical", ``)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPassesFilter(t *testing.T) {
	svc := &fakeRequests{stored: requests.Request{ID: "v1", Kind: requests.KindVacation}}
	rec := send(newRouter(svc, nil, &manager), http.MethodGet, "/requests/vacation?employeeId=e-alice&status=pending&limit=5", ``)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, requests.ListFilter{EmployeeID: "e-alice", Status: "pending", Limit: 5}, svc.filter)
}

func TestTransitionRouteGuard(t *testing.T) {
	tests := []struct {
		name     string
		as       auth.Principal
		path     string
		wantCode int
	}{
		{name: "employee cannot approve vacation", as: alice, path: "/requests/vacation/r1", wantCode: http.StatusForbidden},
		{name: "payroll cannot approve fund", as: payroll, path: "/requests/fund/r1", wantCode: http.StatusForbidden},
		{name: "director cannot approve vacation", as: director, path: "/requests/vacation/r1", wantCode: http.StatusForbidden},
		{name: "director approves general", as: director, path: "/requests/general/r1", wantCode: http.StatusOK},
		{name: "manager approves vacation", as: manager, path: "/requests/vacation/r1", wantCode: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeRequests{stored: requests.Request{ID: "r1", Status: requests.StatusPending}}
			rec := send(newRouter(svc, nil, &tc.as), http.MethodPut, tc.path, `{"status":"APPROVED","response":"ok"}`)
			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode == http.StatusForbidden {
				assert.Empty(t, svc.transitions)
			}
		})
	}
}

func TestTransitionTwiceConflicts(t *testing.T) {
	svc := &fakeRequests{stored: requests.Request{ID: "r1", Kind: requests.KindFund, Status: requests.StatusPending}}
	router := newRouter(svc, nil, &manager)

	first := send(router, http.MethodPut, "/requests/fund/r1", `{"status":"REJECTED"}`)
	second := send(router, http.MethodPut, "/requests/fund/r1", `{"status":"APPROVED"}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "conflict", decode(t, second).Error.Code)
}

func TestDeleteNonPendingConflicts(t *testing.T) {
	svc := &fakeRequests{stored: requests.Request{ID: "g1", Kind: requests.KindGeneral, Status: requests.StatusApproved}}
	rec := send(newRouter(svc, nil, &alice), http.MethodDelete, "/requests/general/g1", ``)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAssignGeneral(t *testing.T) {
	svc := &fakeRequests{stored: requests.Request{ID: "g1", Kind: requests.KindGeneral, Status: requests.StatusPending}}

	rec := send(newRouter(svc, nil, &alice), http.MethodPut, "/requests/general/g1/assign", `{"assigneeId":"u-mgr"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.assigned)

	rec = send(newRouter(svc, nil, &director), http.MethodPut, "/requests/general/g1/assign", `{"assigneeId":"u-mgr"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-mgr", svc.assigned)
}

func TestVacationSlip(t *testing.T) {
	start := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	svc := &fakeRequests{stored: requests.Request{
		ID: "v1", Kind: requests.KindVacation, Status: requests.StatusApproved,
		EmployeeName: "Alice Doe", StartDate: &start, EndDate: &end, Days: 5,
	}}

	rec := send(newRouter(svc, nil, &alice), http.MethodGet, "/requests/vacation/v1/slip", ``)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "vacation-v1.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	svc.stored.Status = requests.StatusPending
	rec = send(newRouter(svc, nil, &alice), http.MethodGet, "/requests/vacation/v1/slip", ``)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFundSubmitRelaysDownstreamResponse(t *testing.T) {
	funds := &fakeFunds{resp: fundproxy.Response{StatusCode: http.StatusUnprocessableEntity, ContentType: "application/problem+json", Body: []byte(`{"title":"limit exceeded"}`)}}
	rec := send(newRouter(&fakeRequests{}, funds, &alice), http.MethodPost, "/requests/fund/submit", `{"amount":99999}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"title":"limit exceeded"}`, rec.Body.String())
	assert.JSONEq(t, `{"amount":99999}`, string(funds.body))
}

func TestFundSubmitFailures(t *testing.T) {
	tests := []struct {
		name     string
		funds    FundSubmitter
		wantCode int
		wantErr  string
	}{
		{name: "not configured", funds: &fakeFunds{err: fundproxy.ErrUnavailable}, wantCode: http.StatusServiceUnavailable, wantErr: "fund_service_unavailable"},
		{name: "no submitter", funds: nil, wantCode: http.StatusServiceUnavailable, wantErr: "fund_service_unavailable"},
		{name: "transport failure", funds: &fakeFunds{err: fundproxy.ErrUpstream}, wantCode: http.StatusBadGateway, wantErr: "fund_service_error"},
		{name: "no employee", funds: &fakeFunds{err: apperr.Forbidden("an employee profile is required")}, wantCode: http.StatusForbidden, wantErr: "forbidden"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := send(newRouter(&fakeRequests{}, tc.funds, &alice), http.MethodPost, "/requests/fund/submit", `{}`)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantErr, decode(t, rec).Error.Code)
		})
	}
}
