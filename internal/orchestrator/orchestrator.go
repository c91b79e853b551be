// Package orchestrator drives translation jobs from submission to a terminal
// state. A submission with one target language becomes a single job; more
// target languages become a parent job with one child per language, processed
// in batches.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dutchyankee87/weconnect-translate/internal/detector"
	"github.com/dutchyankee87/weconnect-translate/internal/files"
	"github.com/dutchyankee87/weconnect-translate/internal/job"
	"github.com/dutchyankee87/weconnect-translate/internal/memory"
	"github.com/dutchyankee87/weconnect-translate/internal/notify"
	"github.com/dutchyankee87/weconnect-translate/internal/store"
	"github.com/dutchyankee87/weconnect-translate/internal/translator"
	"github.com/dutchyankee87/weconnect-translate/internal/validator"
)

var (
	ErrClosed     = errors.New("orchestrator is shut down")
	ErrNotRunning = errors.New("job is not running")
)

// Store is the persistence the orchestrator needs.
type Store interface {
	memory.Store
	CreateJob(ctx context.Context, j *job.Job) error
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListChildJobs(ctx context.Context, parentID string) ([]*job.Job, error)
	MarkProcessing(ctx context.Context, id string) error
	CompleteJob(ctx context.Context, id string, c store.Completion, qa job.QAResult) error
	FailJob(ctx context.Context, id, msg string) error
	FinishParent(ctx context.Context, id string, status job.Status, outputPath, note string, billed, applied int) error
	GetQAResult(ctx context.Context, jobID string) (*job.QAResult, error)
}

type Config struct {
	BatchSize         int           `mapstructure:"batch_size"`
	BatchDelay        time.Duration `mapstructure:"batch_delay"`
	OverrideThreshold float64       `mapstructure:"override_threshold"`
	DocumentTimeout   time.Duration `mapstructure:"document_timeout"`
	MaxSegmentChars   int           `mapstructure:"max_segment_chars"`
	ReviewBaseURL     string        `mapstructure:"review_base_url"`
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 3
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.OverrideThreshold <= 0 {
		c.OverrideThreshold = memory.DefaultOverrideThreshold
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = 15 * time.Minute
	}
	if c.MaxSegmentChars <= 0 {
		c.MaxSegmentChars = 5000
	}
	return c
}

// Deps are the collaborators of an Orchestrator. Detector and Notifier are
// optional. With a Detector, "auto" source languages are resolved and the
// language of translated text files is checked.
type Deps struct {
	Store    Store
	Provider translator.Provider
	Applier  *memory.Applier
	Files    *files.Store
	Detector *detector.Detector
	Notifier notify.Notifier
	Logger   *slog.Logger
}

type Orchestrator struct {
	store     Store
	provider  translator.Provider
	applier   *memory.Applier
	files     *files.Store
	detector  *detector.Detector
	validator *validator.Validator
	notifier  notify.Notifier
	logger    *slog.Logger
	cfg       Config

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]context.CancelFunc
}

func New(deps Deps, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	applier := deps.Applier
	if applier == nil {
		applier = memory.NewApplier(deps.Store, deps.Provider, logger)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: logger}
	}

	var langCheck *validator.Validator
	if deps.Detector != nil {
		langCheck = validator.New(deps.Detector)
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		store:     deps.Store,
		provider:  deps.Provider,
		applier:   applier,
		files:     deps.Files,
		detector:  deps.Detector,
		validator: langCheck,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		baseCtx:   ctx,
		stop:      stop,
		running:   make(map[string]context.CancelFunc),
	}
}

// Wait blocks until every submitted job has reached a terminal state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown stops accepting submissions, cancels in-flight jobs and waits for
// them to be recorded as failed, or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops a running job. Cancelling a parent cancels all its children.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	o.mu.Lock()
	cancel, ok := o.running[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
		o.logger.Info("job cancellation requested", "job_id", jobID)
		return nil
	}

	if _, err := o.store.GetJob(ctx, jobID); err != nil {
		return err
	}
	return fmt.Errorf("job %s: %w", jobID, ErrNotRunning)
}

// JobView is a job together with its children and QA results.
type JobView struct {
	Job      *job.Job      `json:"job"`
	Children []ChildView   `json:"childJobs,omitempty"`
	QA       *job.QAResult `json:"qaResult,omitempty"`
}

type ChildView struct {
	*job.Job
	QA *job.QAResult `json:"qaResult,omitempty"`
}

// Lookup returns the current state of a job.
func (o *Orchestrator) Lookup(ctx context.Context, id string) (*JobView, error) {
	j, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &JobView{Job: j}

	if view.QA, err = o.qaResult(ctx, id); err != nil {
		return nil, err
	}

	if j.MultiLanguage {
		children, err := o.store.ListChildJobs(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			qa, err := o.qaResult(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			view.Children = append(view.Children, ChildView{Job: c, QA: qa})
		}
	}
	return view, nil
}

func (o *Orchestrator) qaResult(ctx context.Context, id string) (*job.QAResult, error) {
	qa, err := o.store.GetQAResult(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return qa, err
}

// track registers a cancellable context for jobID derived from parent.
func (o *Orchestrator) track(parent context.Context, jobID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	o.mu.Lock()
	o.running[jobID] = cancel
	o.mu.Unlock()
	return ctx, func() {
		o.mu.Lock()
		delete(o.running, jobID)
		o.mu.Unlock()
		cancel()
	}
}

func (o *Orchestrator) reviewURL(jobID string) string {
	if o.cfg.ReviewBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/jobs/%s/review", o.cfg.ReviewBaseURL, jobID)
}
