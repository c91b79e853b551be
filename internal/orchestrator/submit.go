package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/dutchyankee87/weconnect-translate/internal/files"
	"github.com/dutchyankee87/weconnect-translate/internal/job"
)

// AutoDetect as source language asks for the language to be detected.
const AutoDetect = "AUTO"

// ValidationError rejects a submission before any job is created.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type SubmitRequest struct {
	UserID     string
	FileName   string
	Data       []byte
	SourceLang string
	// TargetLangs may hold comma-separated lists.
	TargetLangs []string
	GlossaryID  string
}

// Submission is returned once the job records exist. Processing continues
// in the background.
type Submission struct {
	JobID          string            `json:"jobId"`
	Status         job.Status        `json:"status"`
	SourceFileName string            `json:"sourceFileName"`
	SourceLang     string            `json:"sourceLanguage"`
	TargetLangs    []string          `json:"targetLanguages"`
	MultiLanguage  bool              `json:"isMultiLanguage"`
	ChildJobIDs    map[string]string `json:"childJobIds,omitempty"`
}

// textExtensions are translated segment by segment; everything else in
// documentExtensions goes through the provider's document API.
var (
	textExtensions     = map[string]bool{".txt": true, ".md": true, ".markdown": true}
	documentExtensions = map[string]bool{
		".docx": true, ".pptx": true, ".xlsx": true, ".pdf": true,
		".htm": true, ".html": true, ".xlf": true, ".xliff": true, ".srt": true,
	}
)

func isTextFile(name string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

// Submit validates req, stores the upload, creates the job records and
// starts processing.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	name, src, targets, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	rootID := uuid.NewString()
	path, err := o.files.SaveUpload(rootID, name, bytes.NewReader(req.Data))
	if err != nil {
		return nil, err
	}

	base := job.Job{
		UserID:         req.UserID,
		SourceLang:     src,
		SourceFileName: name,
		SourceFilePath: path,
		GlossaryID:     strings.TrimSpace(req.GlossaryID),
		Status:         job.StatusPending,
	}

	sub := &Submission{
		JobID:          rootID,
		Status:         job.StatusPending,
		SourceFileName: name,
		SourceLang:     src,
		TargetLangs:    targets,
		MultiLanguage:  len(targets) > 1,
	}

	if len(targets) == 1 {
		j := base
		j.ID = rootID
		j.TargetLang = targets[0]
		if err := o.store.CreateJob(ctx, &j); err != nil {
			return nil, err
		}
		o.start(rootID, func(ctx context.Context) { o.runSingle(ctx, &j) })
		return sub, nil
	}

	parent := base
	parent.ID = rootID
	parent.TargetLang = strings.Join(targets, ",")
	parent.MultiLanguage = true
	if err := o.store.CreateJob(ctx, &parent); err != nil {
		return nil, err
	}

	children := make([]*job.Job, 0, len(targets))
	sub.ChildJobIDs = make(map[string]string, len(targets))
	for _, lang := range targets {
		c := base
		c.ID = uuid.NewString()
		c.TargetLang = lang
		c.ParentID = rootID
		if err := o.store.CreateJob(ctx, &c); err != nil {
			o.abandon(ctx, &parent, children, err)
			return nil, err
		}
		children = append(children, &c)
		sub.ChildJobIDs[lang] = c.ID
	}

	o.start(rootID, func(ctx context.Context) { o.runParent(ctx, &parent, children) })
	return sub, nil
}

// start runs fn in the background under a context cancellable by jobID.
func (o *Orchestrator) start(jobID string, fn func(ctx context.Context)) {
	ctx, done := o.track(o.baseCtx, jobID)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer done()
		fn(ctx)
	}()
}

func (o *Orchestrator) abandon(ctx context.Context, parent *job.Job, children []*job.Job, cause error) {
	msg := fmt.Sprintf("failed to create child jobs: %v", cause)
	for _, c := range children {
		if err := o.store.FailJob(ctx, c.ID, msg); err != nil {
			o.logger.Error("failed to mark child failed", "job_id", c.ID, "error", err)
		}
	}
	if err := o.store.FinishParent(ctx, parent.ID, job.StatusFailed, "", msg, 0, 0); err != nil {
		o.logger.Error("failed to mark parent failed", "job_id", parent.ID, "error", err)
	}
}

func (o *Orchestrator) validate(req SubmitRequest) (name, src string, targets []string, err error) {
	if len(req.Data) == 0 || strings.TrimSpace(req.FileName) == "" {
		return "", "", nil, invalid("file", "a file is required")
	}
	name, err = files.CleanName(req.FileName)
	if err != nil {
		return "", "", nil, invalid("file", "%v", err)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !textExtensions[ext] && !documentExtensions[ext] {
		return "", "", nil, invalid("file", "unsupported file type %q", ext)
	}

	src = strings.ToUpper(strings.TrimSpace(req.SourceLang))
	switch {
	case src == "":
		return "", "", nil, invalid("sourceLanguage", "a source language is required")
	case src == AutoDetect:
		if !isTextFile(name) {
			return "", "", nil, invalid("sourceLanguage", "automatic detection is only available for text files")
		}
		if src, err = o.detect(req.Data); err != nil {
			return "", "", nil, err
		}
	default:
		if src, err = NormalizeLang(src); err != nil {
			return "", "", nil, invalid("sourceLanguage", "%v", err)
		}
	}

	seen := make(map[string]bool)
	for _, raw := range req.TargetLangs {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lang, err := NormalizeLang(part)
			if err != nil {
				return "", "", nil, invalid("targetLanguages", "%v", err)
			}
			if seen[lang] {
				return "", "", nil, invalid("targetLanguages", "%s is requested twice", lang)
			}
			if baseLang(lang) == baseLang(src) {
				return "", "", nil, invalid("targetLanguages", "%s is the source language", lang)
			}
			seen[lang] = true
			targets = append(targets, lang)
		}
	}
	if len(targets) == 0 {
		return "", "", nil, invalid("targetLanguages", "at least one target language is required")
	}
	return name, src, targets, nil
}

func (o *Orchestrator) detect(data []byte) (string, error) {
	if o.detector == nil {
		return "", invalid("sourceLanguage", "automatic detection is not enabled")
	}
	code, ok := o.detector.DetectISO(string(data))
	if !ok {
		return "", invalid("sourceLanguage", "could not detect the source language")
	}
	return NormalizeLang(code)
}

// NormalizeLang validates a language code and returns it upper-cased, as in
// "DE" or "EN-GB".
func NormalizeLang(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("invalid language code %q", code)
	}
	base, _ := tag.Base()
	out := base.String()
	if region, conf := tag.Region(); conf == language.Exact {
		out += "-" + region.String()
	} else if script, conf := tag.Script(); conf == language.Exact {
		out += "-" + script.String()
	}
	return strings.ToUpper(out), nil
}

func baseLang(code string) string {
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	return code
}
