// Package transport queues serialized beacon events and ships them to
// a collector endpoint in batches, with payload-size enforcement,
// jittered exponential backoff, and at most one POST in flight per
// destination.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sender is the injected network primitive. Implementations must map
// every outcome to the same (error|nil) contract.
type Sender interface {
	Send(ctx context.Context, url string, body []byte) error
}

// HTTPSender posts beacon payloads over a keepalive HTTP client.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender creates an HTTP sender with the given request timeout.
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSender) Send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create beacon request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send beacon: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("collector rejected beacon: status %d", resp.StatusCode)
	}
	return nil
}

// FireAndForgetSender is the final-dispatch path used on destroy: it
// hands the payload off without waiting for the response, so teardown
// never blocks on the network. Delivery is best effort.
type FireAndForgetSender struct {
	inner   Sender
	timeout time.Duration
}

// NewFireAndForgetSender wraps inner with detached delivery.
func NewFireAndForgetSender(inner Sender, timeout time.Duration) *FireAndForgetSender {
	return &FireAndForgetSender{inner: inner, timeout: timeout}
}

func (s *FireAndForgetSender) Send(_ context.Context, url string, body []byte) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.inner.Send(ctx, url, body); err != nil {
			log.WithField("prefix", "transport").WithError(err).Debug("final beacon send failed")
		}
	}()
	return nil
}

// ChainSender tries each sender in priority order until one accepts
// the payload, mirroring the sendBeacon -> fetch -> XHR fallback.
type ChainSender []Sender

func (c ChainSender) Send(ctx context.Context, url string, body []byte) error {
	var lastErr error
	for _, s := range c {
		if lastErr = s.Send(ctx, url, body); lastErr == nil {
			return nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no senders configured")
	}
	return lastErr
}

// NoopSender discards payloads; used when tracking is disabled.
type NoopSender struct{}

func (NoopSender) Send(context.Context, string, []byte) error { return nil }
