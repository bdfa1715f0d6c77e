package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/config"
	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/model"
)

// maxResponseBytes caps how much of a backend response body is read.
const maxResponseBytes = 10 << 20

// forwardedResponseHeaders are copied from backend responses into
// InvocationResult.Headers. Everything else is dropped.
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Retry-After",
	"X-Correlation-Id",
	"X-Request-Id",
	"X-Total-Count",
	"X-Trace-Id",
}

// outbound is a fully built backend request.
type outbound struct {
	method string
	url    string
	header http.Header
}

// backend is the connection to one configured service: its HTTP client,
// its breaker and its retry policy.
type backend struct {
	id      string
	client  *http.Client
	breaker *CircuitBreaker
	retry   config.RetryConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

func newBackend(id string, cfg config.ServiceConfig, logger *zap.Logger, metrics *observability.Metrics) *backend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := cfg.CircuitBreaker
	b := &backend{
		id: id,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		breaker: NewCircuitBreaker(cb.FailureThreshold, cb.SuccessThreshold, cb.Timeout),
		retry:   cfg.Retry,
		logger:  logger.With(zap.String("service_id", id)),
		metrics: metrics,
	}
	if metrics != nil {
		b.breaker.OnStateChange(func(s BreakerState) {
			metrics.SetBackendCircuitBreakerState(id, s.GaugeValue())
		})
	}
	return b
}

// call sends out, retrying idempotent requests on transport errors and
// transient statuses. When every attempt fails the last outcome is returned
// as is.
func (b *backend) call(ctx context.Context, out outbound) (model.InvocationResult, error) {
	attempts := 1
	if idempotent(out.method) && b.retry.MaxAttempts > 1 {
		attempts = b.retry.MaxAttempts
	}

	for n := 1; ; n++ {
		res, err := b.once(ctx, out)
		if n >= attempts || !worthRetrying(res, err) {
			return res, err
		}

		b.logger.Debug("retrying backend call",
			zap.Int("attempt", n),
			zap.Int("max_attempts", attempts),
			zap.Int("status", res.StatusCode),
			zap.Error(err),
		)
		if b.metrics != nil {
			b.metrics.RecordBackendRetry(b.id)
		}

		select {
		case <-ctx.Done():
			return model.InvocationResult{}, model.NewBackendTimeoutError()
		case <-time.After(backoffDelay(b.retry, n)):
		}
	}
}

// once performs a single attempt and feeds its outcome to the breaker.
// Client errors say nothing about backend health and are not counted.
func (b *backend) once(ctx context.Context, out outbound) (model.InvocationResult, error) {
	if b.breaker.Allow() != nil {
		return model.InvocationResult{}, model.NewBackendUnavailableError()
	}

	req, err := http.NewRequestWithContext(ctx, out.method, out.url, nil)
	if err != nil {
		return model.InvocationResult{}, fmt.Errorf("invoker: build request: %w", err)
	}
	req.Header = out.header.Clone()

	resp, err := b.client.Do(req)
	if err != nil {
		b.breaker.RecordFailure()
		return model.InvocationResult{}, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		b.breaker.RecordFailure()
		return model.InvocationResult{}, fmt.Errorf("invoker: read %s response: %w", b.id, err)
	}

	switch {
	case resp.StatusCode >= 500:
		b.breaker.RecordFailure()
	case resp.StatusCode < 400:
		b.breaker.RecordSuccess()
	}

	res := model.InvocationResult{
		StatusCode: resp.StatusCode,
		Headers:    keepHeaders(resp.Header),
	}
	if len(raw) > 0 {
		var body any
		if json.Unmarshal(raw, &body) == nil {
			res.Body = body
		}
	}
	return res, nil
}

// classifyTransportError turns a failed round trip into the envelope the
// caller reports. Deadlines become BACKEND_TIMEOUT and refused or
// unresolvable hosts BACKEND_UNAVAILABLE. Anything else is wrapped and left
// retryable.
func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewBackendTimeoutError()
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return model.NewBackendUnavailableError()
	}
	return fmt.Errorf("invoker: request failed: %w", err)
}

func keepHeaders(h http.Header) map[string]string {
	kept := make(map[string]string)
	for _, key := range forwardedResponseHeaders {
		if v := h.Get(key); v != "" {
			kept[key] = v
		}
	}
	return kept
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// worthRetrying reports whether an attempt's outcome may change on retry.
// Envelope errors are decisions (breaker open, deadline gone) and final.
func worthRetrying(res model.InvocationResult, err error) bool {
	if err != nil {
		var env *model.ErrorEnvelope
		return !errors.As(err, &env)
	}
	switch res.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoffDelay is the wait after failed attempt n (1-based): initial delay
// grown by the multiplier per attempt and capped at the maximum.
func backoffDelay(cfg config.RetryConfig, n int) time.Duration {
	initial := positiveOr(cfg.BackoffInitial, 100*time.Millisecond)
	ceiling := positiveOr(cfg.BackoffMax, 2*time.Second)
	factor := cfg.BackoffMultiplier
	if factor <= 0 {
		factor = 2
	}

	delay := float64(initial)
	for range n - 1 {
		delay *= factor
		if delay >= float64(ceiling) {
			return ceiling
		}
	}
	return min(time.Duration(delay), ceiling)
}
