package translator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

type ThrottleConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	RateLimitRetries  int           `mapstructure:"rate_limit_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
}

// Throttled admits calls to the wrapped provider through a token bucket and
// retries calls the provider rejected as rate limited. Every other failure,
// transient ones included, is returned unchanged.
type Throttled struct {
	Provider
	limiter *rate.Limiter
	cfg     ThrottleConfig
	logger  *slog.Logger
}

func NewThrottled(p Provider, cfg ThrottleConfig, logger *slog.Logger) *Throttled {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.RateLimitRetries < 0 {
		cfg.RateLimitRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Throttled{
		Provider: p,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		cfg:      cfg,
		logger:   logger,
	}
}

func (t *Throttled) TranslateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	return throttle(ctx, t, "translate", func() (*TextResult, error) {
		return t.Provider.TranslateText(ctx, req)
	})
}

func (t *Throttled) UploadDocument(ctx context.Context, req DocumentRequest) (*DocumentHandle, error) {
	return throttle(ctx, t, "upload document", func() (*DocumentHandle, error) {
		return t.Provider.UploadDocument(ctx, req)
	})
}

// WaitForDocument admits every status poll through the limiter and retries
// polls rejected as rate limited. Providers that do not poll are waited on
// directly.
func (t *Throttled) WaitForDocument(ctx context.Context, doc DocumentHandle, onProgress func(DocumentStatus)) (*DocumentStatus, error) {
	p, ok := t.Provider.(documentPoller)
	if !ok {
		return t.Provider.WaitForDocument(ctx, doc, onProgress)
	}
	interval, timeout := p.pollSettings()
	status := func(ctx context.Context, doc DocumentHandle) (*DocumentStatus, error) {
		return throttle(ctx, t, "document status", func() (*DocumentStatus, error) {
			return p.DocumentStatus(ctx, doc)
		})
	}
	return pollDocument(ctx, t.Name(), doc, interval, timeout, status, onProgress)
}

func (t *Throttled) DownloadDocument(ctx context.Context, doc DocumentHandle) ([]byte, error) {
	return throttle(ctx, t, "download document", func() ([]byte, error) {
		return t.Provider.DownloadDocument(ctx, doc)
	})
}

func (t *Throttled) CreateGlossary(ctx context.Context, name, sourceLang, targetLang string, entries []GlossaryEntry) (string, error) {
	return throttle(ctx, t, "create glossary", func() (string, error) {
		return t.Provider.CreateGlossary(ctx, name, sourceLang, targetLang, entries)
	})
}

func (t *Throttled) DeleteGlossary(ctx context.Context, glossaryID string) error {
	_, err := throttle(ctx, t, "delete glossary", func() (struct{}, error) {
		return struct{}{}, t.Provider.DeleteGlossary(ctx, glossaryID)
	})
	return err
}

func throttle[T any](ctx context.Context, t *Throttled, op string, call func() (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = t.cfg.InitialBackoff
	exp.MaxElapsedTime = 0
	hinted := &retryAfterBackOff{BackOff: exp}

	b := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(t.cfg.RateLimitRetries)), ctx)

	attempt := func() (T, error) {
		if err := t.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		v, err := call()
		if err == nil {
			return v, nil
		}
		var pe *Error
		if errors.As(err, &pe) && pe.Kind == KindRateLimited {
			hinted.after = pe.RetryAfter
			return v, err
		}
		return v, backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		t.logger.Warn("provider rate limited, backing off",
			"provider", t.Name(), "op", op, "wait", wait, "error", err)
	}

	return backoff.RetryNotifyWithData(attempt, b, notify)
}

// retryAfterBackOff waits at least as long as the provider asked for.
type retryAfterBackOff struct {
	backoff.BackOff
	after time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.after > next {
		next = b.after
	}
	b.after = 0
	return next
}
