package metrics

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Transport records every request made through Next.
type Transport struct {
	Next     http.RoundTripper
	Registry *Registry
	Logger   *zap.Logger
}

// NewTransport wraps next (http.DefaultTransport when nil).
func NewTransport(reg *Registry, logger *zap.Logger, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{Next: next, Registry: reg, Logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Registry != nil {
		t.Registry.InFlightInc()
		defer t.Registry.InFlightDec()
	}

	start := time.Now()
	resp, err := t.Next.RoundTrip(req)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if t.Registry != nil {
		t.Registry.RecordRequest(req.URL.Host, status, duration.Seconds())
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	}
	if err != nil {
		t.Logger.Warn("http request failed", append(fields, zap.Error(err))...)
	} else {
		t.Logger.Debug("http request", fields...)
	}
	return resp, err
}
