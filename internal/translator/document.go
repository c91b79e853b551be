package translator

import (
	"context"
	"fmt"
	"time"
)

// documentPoller is implemented by adapters whose document wait is a loop of
// status calls. Throttled drives that loop itself so every poll is admitted
// through its limiter.
type documentPoller interface {
	DocumentStatus(ctx context.Context, doc DocumentHandle) (*DocumentStatus, error)
	pollSettings() (interval, timeout time.Duration)
}

type statusFunc func(ctx context.Context, doc DocumentHandle) (*DocumentStatus, error)

// pollDocument calls status every interval until the document reaches a
// terminal state or timeout elapses. Hitting timeout before the caller's own
// deadline yields a KindTransient *Error that does not wrap
// context.DeadlineExceeded; the caller's cancellation is returned as is.
func pollDocument(ctx context.Context, provider string, doc DocumentHandle, interval, timeout time.Duration,
	status statusFunc, onProgress func(DocumentStatus)) (*DocumentStatus, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := status(pollCtx, doc)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, waitExpired(ctx, provider, timeout)
			}
			return nil, err
		}
		if onProgress != nil {
			onProgress(*st)
		}

		if st.State.Terminal() {
			if st.State == DocumentError {
				msg := st.ErrorMessage
				if msg == "" {
					msg = "document translation failed"
				}
				return st, &Error{Kind: KindDocumentFailed, Provider: provider, Op: "wait for document", Message: msg}
			}
			return st, nil
		}

		select {
		case <-pollCtx.Done():
			return nil, waitExpired(ctx, provider, timeout)
		case <-ticker.C:
		}
	}
}

func waitExpired(ctx context.Context, provider string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &Error{
		Kind:     KindTransient,
		Provider: provider,
		Op:       "wait for document",
		Message:  fmt.Sprintf("document not finished after %s", timeout),
	}
}
