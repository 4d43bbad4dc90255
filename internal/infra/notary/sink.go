package notary

import (
	"context"
	"log"
	"time"

	"ledgerd/internal/config"
	"ledgerd/internal/domain"
	"ledgerd/internal/metrics"
)

const backoffMultiplier = 1.6

// Sink wraps the notary client with bounded retries and multiplicative
// backoff. It never propagates failure: once attempts are exhausted the
// anchor simply stays unnotarized, which is valid by design.
type Sink struct {
	client   *Client
	enabled  bool
	attempts int
	backoff  time.Duration

	// sleep is injectable so tests can assert retry counts without
	// wall-clock delay.
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewSink(client *Client, attempts int, backoff time.Duration) *Sink {
	if attempts <= 0 {
		attempts = 5
	}
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	return &Sink{
		client:   client,
		enabled:  client != nil,
		attempts: attempts,
		backoff:  backoff,
		sleep:    sleepCtx,
	}
}

// NewSinkFromConfig returns a disabled sink when notarization is turned
// off or no endpoint is configured.
func NewSinkFromConfig(cfg config.Config) *Sink {
	if !cfg.NotaryEnabled || cfg.NotaryURL == "" {
		return &Sink{}
	}
	client, err := NewClient(cfg.NotaryURL, cfg.NotaryToken, cfg.NotaryTimeout(), nil)
	if err != nil {
		log.Printf("notary disabled: %v", err)
		return &Sink{}
	}
	return NewSink(client, cfg.NotaryRetries, cfg.NotaryBackoff())
}

func (s *Sink) Enabled() bool {
	return s != nil && s.enabled && s.client != nil
}

// WithSleep replaces the retry sleeper; for tests.
func (s *Sink) WithSleep(sleep func(ctx context.Context, d time.Duration) bool) *Sink {
	s.sleep = sleep
	return s
}

// Publish tries to notarize the anchor hash, retrying with backoff that
// grows by ×1.6 per attempt. A nil result means every attempt failed.
func (s *Sink) Publish(ctx context.Context, anchorID, anchorHash, kid string) *domain.ProofRecord {
	if !s.Enabled() {
		return nil
	}
	backoff := s.backoff
	for attempt := 1; attempt <= s.attempts; attempt++ {
		providerID, err := s.client.Notarize(ctx, anchorID, anchorHash, kid)
		if err == nil {
			metrics.NotaryPublishes.WithLabelValues("ok").Inc()
			return &domain.ProofRecord{
				AnchorID:   anchorID,
				Provider:   domain.ProofProviderHTTPSNotary,
				ProviderID: providerID,
				URL:        s.client.URL(),
				KID:        kid,
			}
		}
		metrics.NotaryPublishes.WithLabelValues("error").Inc()
		log.Printf("notary publish anchor=%s attempt=%d/%d: %v", anchorID, attempt, s.attempts, err)
		if attempt == s.attempts {
			break
		}
		if !s.sleep(ctx, backoff) {
			break
		}
		backoff = time.Duration(float64(backoff) * backoffMultiplier)
	}
	metrics.NotaryExhaustions.Inc()
	log.Printf("notary publish anchor=%s: all %d attempts failed, anchor remains unnotarized", anchorID, s.attempts)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
