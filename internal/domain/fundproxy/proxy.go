package fundproxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"staffdesk/internal/apperr"
	"staffdesk/internal/domain/auth"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderAssertion = "X-Identity-Assertion"
)

var (
	// ErrUnavailable means no fund service URL is configured.
	ErrUnavailable = errors.New("fund service unavailable")
	// ErrUpstream wraps transport failures talking to the fund service.
	ErrUpstream = errors.New("fund service request failed")
)

type Options struct {
	URL          string
	Secret       string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Response is the downstream reply, relayed to the caller unchanged.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type Proxy struct {
	target  string
	secret  string
	maxBody int64
	client  *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

func New(opts Options, logger *zap.Logger) *Proxy {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Proxy{
		target:  strings.TrimSpace(opts.URL),
		secret:  opts.Secret,
		maxBody: maxBody,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("fundproxy"),
		now:     time.Now,
	}
}

func (p *Proxy) Configured() bool {
	return p != nil && p.target != ""
}

// Submit forwards body to the fund service on behalf of principal.
func (p *Proxy) Submit(ctx context.Context, principal auth.Principal, requestID, contentType string, body []byte) (Response, error) {
	if !principal.HasEmployee() {
		return Response{}, apperr.Forbidden("an employee profile is required to submit fund requests")
	}
	if !p.Configured() {
		return Response{}, ErrUnavailable
	}

	assertion, err := SignAssertion(p.secret, principal, p.now())
	if err != nil {
		return Response{}, fmt.Errorf("sign identity assertion: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.target, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set(HeaderAssertion, assertion)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("fund service call failed", zap.String("request_id", requestID), zap.Error(err))
		return Response{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if int64(len(payload)) > p.maxBody {
		p.logger.Warn("fund service reply too large",
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.Int64("limit", p.maxBody),
		)
		return Response{}, fmt.Errorf("%w: reply exceeds %d bytes", ErrUpstream, p.maxBody)
	}
	p.logger.Info("fund service responded",
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	}, nil
}
