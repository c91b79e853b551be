package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Outbox writes each notification as an HTML page plus a plain-text
// alternative into a directory, for a mailer to pick up.
type Outbox struct {
	dir string
	now func() time.Time
}

func NewOutbox(dir string) (*Outbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create outbox: %w", err)
	}
	return &Outbox{dir: dir, now: time.Now}, nil
}

func (o *Outbox) TranslationReady(_ context.Context, ev ReadyEvent) error {
	return o.write("ready", ev.JobID, ReadyMarkdown(ev))
}

func (o *Outbox) CorrectionSubmitted(_ context.Context, ev CorrectionEvent) error {
	return o.write("correction", ev.JobID, CorrectionMarkdown(ev))
}

func (o *Outbox) write(kind, jobID, md string) error {
	stem := fmt.Sprintf("%s-%s-%s", o.now().UTC().Format("20060102T150405.000000000"), kind, jobID)

	if err := os.WriteFile(filepath.Join(o.dir, stem+".txt"), []byte(toPlainText([]byte(md))), 0o644); err != nil {
		return fmt.Errorf("failed to write %s notification: %w", kind, err)
	}
	if err := os.WriteFile(filepath.Join(o.dir, stem+".html"), []byte(toHTML([]byte(md))), 0o644); err != nil {
		return fmt.Errorf("failed to write %s notification: %w", kind, err)
	}
	return nil
}
