package fundproxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/auth"
)

const testSecret = "fund-assertion-secret"

var employee = auth.Principal{UserID: "u1", Role: auth.RoleEmployee, EmployeeID: "e1"}

func TestSubmitForwardsWithAssertion(t *testing.T) {
	var gotBody string
	var gotHeaders http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ticket":"F-17"}`))
	}))
	defer upstream.Close()

	proxy := New(Options{URL: upstream.URL, Secret: testSecret, Timeout: time.Second}, zaptest.NewLogger(t))
	resp, err := proxy.Submit(context.Background(), employee, "req-123", "application/json", []byte(`{"amount":10}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, `{"ticket":"F-17"}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType)
	assert.Equal(t, `{"amount":10}`, gotBody)
	assert.Equal(t, "req-123", gotHeaders.Get(HeaderRequestID))
	assert.Empty(t, gotHeaders.Get("X-User-Id"))
	assert.Empty(t, gotHeaders.Get("X-User-Role"))

	claims, err := verifyAssertion(testSecret, gotHeaders.Get(HeaderAssertion))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, auth.RoleEmployee, claims.Role)
	assert.Equal(t, "e1", claims.EmployeeID)
	assert.WithinDuration(t, claims.IssuedAt.Time.Add(AssertionTTL), claims.ExpiresAt.Time, time.Second)
}

func TestSubmitRelaysUpstreamErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"amount too high"}`))
	}))
	defer upstream.Close()

	proxy := New(Options{URL: upstream.URL, Secret: testSecret}, zaptest.NewLogger(t))
	resp, err := proxy.Submit(context.Background(), employee, "req-1", "", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, `{"error":"amount too high"}`, string(resp.Body))
}

func TestSubmitUnconfigured(t *testing.T) {
	proxy := New(Options{}, zaptest.NewLogger(t))
	_, err := proxy.Submit(context.Background(), employee, "req-1", "", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSubmitTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	proxy := New(Options{URL: url, Secret: testSecret, Timeout: time.Second}, zaptest.NewLogger(t))
	_, err := proxy.Submit(context.Background(), employee, "req-1", "", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestSubmitRequiresEmployee(t *testing.T) {
	proxy := New(Options{URL: "http://unused", Secret: testSecret}, zaptest.NewLogger(t))
	_, err := proxy.Submit(context.Background(), auth.Principal{UserID: "admin", Role: auth.RoleAdmin}, "req-1", "", nil)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

func TestSubmitRejectsOversizedReply(t *testing.T) {
	reply := strings.Repeat("x", 2000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(reply))
	}))
	defer upstream.Close()

	proxy := New(Options{URL: upstream.URL, Secret: testSecret, MaxBodyBytes: 1024}, zaptest.NewLogger(t))
	resp, err := proxy.Submit(context.Background(), employee, "req-1", "", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Empty(t, resp.Body)
}

func TestSubmitRelaysReplyAtLimit(t *testing.T) {
	reply := strings.Repeat("x", 1024)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(reply))
	}))
	defer upstream.Close()

	proxy := New(Options{URL: upstream.URL, Secret: testSecret, MaxBodyBytes: 1024}, zaptest.NewLogger(t))
	resp, err := proxy.Submit(context.Background(), employee, "req-1", "", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, reply, string(resp.Body))
}
