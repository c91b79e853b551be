package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dutchyankee87/weconnect-translate/internal/chunker"
	"github.com/dutchyankee87/weconnect-translate/internal/files"
	"github.com/dutchyankee87/weconnect-translate/internal/job"
	"github.com/dutchyankee87/weconnect-translate/internal/notify"
	"github.com/dutchyankee87/weconnect-translate/internal/placeholder"
	"github.com/dutchyankee87/weconnect-translate/internal/qa"
	"github.com/dutchyankee87/weconnect-translate/internal/store"
	"github.com/dutchyankee87/weconnect-translate/internal/translator"
)

// result is the terminal outcome of one leaf job.
type result struct {
	job        *job.Job
	completion store.Completion
	qa         job.QAResult
	err        error
}

func (r result) completed() bool { return r.err == nil }

// output is what a successful translation produced before it is persisted.
type output struct {
	data    []byte
	billed  int
	applied int
	qa      job.QAResult
}

func (o *Orchestrator) runSingle(ctx context.Context, j *job.Job) {
	res := o.process(ctx, j, j.ID)
	if res.completed() {
		o.notifyReady(j, []result{res})
	}
}

// runParent processes the children batch by batch and then settles the
// parent. A batch starts only after every child of the previous batch is
// terminal.
func (o *Orchestrator) runParent(ctx context.Context, parent *job.Job, children []*job.Job) {
	log := o.logger.With("job_id", parent.ID)
	if err := o.store.MarkProcessing(ctx, parent.ID); err != nil {
		log.Error("failed to mark parent processing", "error", err)
	}

	results := make([]result, len(children))
	for start := 0; start < len(children); start += o.cfg.BatchSize {
		if start > 0 && o.cfg.BatchDelay > 0 {
			// A cancelled parent skips the pause; its remaining children
			// still run and fail fast on the cancelled context.
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.BatchDelay):
			}
		}

		end := min(start+o.cfg.BatchSize, len(children))
		log.Debug("starting batch", "from", start, "to", end)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				childCtx, done := o.track(ctx, children[i].ID)
				defer done()
				results[i] = o.process(childCtx, children[i], parent.ID)
			}(i)
		}
		wg.Wait()
	}

	o.settleParent(parent, results)
}

// settleParent records the aggregated outcome once every child is terminal:
// completed when at least one child completed, failed when none did.
func (o *Orchestrator) settleParent(parent *job.Job, results []result) {
	ctx := context.WithoutCancel(o.baseCtx)

	var completed []result
	var failures []string
	billed, applied := 0, 0
	for _, r := range results {
		if r.completed() {
			completed = append(completed, r)
			billed += r.completion.BilledCharacters
			applied += r.completion.AppliedCorrections
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %v", r.job.TargetLang, r.err))
	}

	status := job.StatusCompleted
	outputPath := o.files.OutputDir(parent.ID)
	note := ""
	switch {
	case len(completed) == 0:
		status = job.StatusFailed
		outputPath = ""
		note = "translation failed for all languages: " + strings.Join(failures, "; ")
	case len(failures) > 0:
		note = "translation failed for " + strings.Join(failures, "; ")
	}

	if err := o.store.FinishParent(ctx, parent.ID, status, outputPath, note, billed, applied); err != nil {
		o.logger.Error("failed to settle parent job", "job_id", parent.ID, "error", err)
	}
	o.logger.Info("multi-language job finished", "job_id", parent.ID, "status", status,
		"completed", len(completed), "failed", len(failures))

	if len(completed) > 0 {
		o.notifyReady(parent, completed)
	}
}

// process runs the single-language procedure for j and leaves it in a
// terminal state. Errors never escape: they become the job's error message.
func (o *Orchestrator) process(ctx context.Context, j *job.Job, outputGroup string) result {
	log := o.logger.With("job_id", j.ID, "target_lang", j.TargetLang)
	if j.IsChild() {
		log = log.With("parent_id", j.ParentID)
	}

	if err := o.store.MarkProcessing(ctx, j.ID); err != nil {
		return o.fail(j, fmt.Errorf("failed to start job: %w", err))
	}

	out, err := o.translate(ctx, j)
	if err != nil {
		return o.fail(j, err)
	}

	name := files.OutputName(j.SourceFileName, j.TargetLang)
	path, err := o.files.WriteOutput(outputGroup, name, out.data)
	if err != nil {
		return o.fail(j, err)
	}

	c := store.Completion{
		OutputFileName:     name,
		OutputFilePath:     path,
		BilledCharacters:   out.billed,
		AppliedCorrections: out.applied,
	}
	out.qa.JobID = j.ID
	if err := o.store.CompleteJob(context.WithoutCancel(ctx), j.ID, c, out.qa); err != nil {
		return o.fail(j, fmt.Errorf("failed to save translation: %w", err))
	}

	log.Info("job completed", "billed_characters", out.billed, "applied_corrections", out.applied,
		"quality_score", out.qa.Score)
	return result{job: j, completion: c, qa: out.qa}
}

// translate obtains the effective glossary, translates and always releases
// the glossary afterwards.
func (o *Orchestrator) translate(ctx context.Context, j *job.Job) (*output, error) {
	data, err := o.files.Read(j.SourceFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}

	glossary, err := o.applier.PrepareEnhancedGlossary(ctx, j.SourceLang, j.TargetLang, j.GlossaryID)
	if err != nil {
		return nil, err
	}
	defer o.applier.Cleanup(ctx, glossary)

	var out *output
	if isTextFile(j.SourceFileName) {
		out, err = o.translateSegments(ctx, j, string(data), glossary.ID)
	} else {
		out, err = o.translateDocument(ctx, j, data, glossary.ID)
	}
	if err != nil {
		return nil, err
	}
	out.applied += glossary.Terms
	return out, nil
}

func (o *Orchestrator) translateSegments(ctx context.Context, j *job.Job, doc, glossaryID string) (*output, error) {
	segs := chunker.Segments(doc, o.cfg.MaxSegmentChars)
	translated := make([]string, len(segs))
	pairs := make([]qa.Segment, len(segs))
	out := &output{}

	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if text, ok := o.applier.TryExactOverride(ctx, seg.Text, j.SourceLang, j.TargetLang, o.cfg.OverrideThreshold); ok {
			translated[i] = text
			out.applied++
		} else {
			text, billed, err := o.translateSegment(ctx, j, seg.Text, glossaryID)
			if err != nil {
				return nil, err
			}
			translated[i] = text
			out.billed += billed
		}
		pairs[i] = qa.Segment{Source: seg.Text, Target: translated[i]}
	}

	terms, err := o.store.ListTerms(ctx, j.SourceLang, j.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("failed to load glossary terms: %w", err)
	}
	glossaryTerms := make([]qa.GlossaryTerm, 0, len(terms))
	for _, t := range terms {
		glossaryTerms = append(glossaryTerms, qa.GlossaryTerm{Source: t.SourceTerm, Target: t.TargetTerm})
	}

	out.qa = qa.Evaluate(pairs, glossaryTerms)
	joined := chunker.Join(segs, translated)
	if o.validator != nil {
		if err := o.validator.Check(joined, j.TargetLang); err != nil {
			o.logger.Warn("translation may be in the wrong language", "job_id", j.ID, "target_lang", j.TargetLang, "error", err)
		}
	}
	out.data = []byte(joined)
	if strings.HasSuffix(doc, "\n") {
		out.data = append(out.data, '\n')
	}
	return out, nil
}

// translateSegment shields markup from the provider. Segments that are
// nothing but markup are kept verbatim.
func (o *Orchestrator) translateSegment(ctx context.Context, j *job.Job, text, glossaryID string) (string, int, error) {
	protected := placeholder.Protect(text)
	if !protected.Translatable() {
		return text, 0, nil
	}

	res, err := o.provider.TranslateText(ctx, translator.TextRequest{
		Text:       protected.Text,
		SourceLang: j.SourceLang,
		TargetLang: j.TargetLang,
		GlossaryID: glossaryID,
	})
	if err != nil {
		return "", 0, err
	}

	restored, missing := protected.Restore(res.Text)
	if len(missing) > 0 {
		o.logger.Warn("provider dropped protected markup", "job_id", j.ID, "markers", missing)
	}
	return restored, res.BilledCharacters, nil
}

func (o *Orchestrator) translateDocument(ctx context.Context, j *job.Job, data []byte, glossaryID string) (*output, error) {
	handle, err := o.provider.UploadDocument(ctx, translator.DocumentRequest{
		Data:       data,
		FileName:   j.SourceFileName,
		SourceLang: j.SourceLang,
		TargetLang: j.TargetLang,
		GlossaryID: glossaryID,
	})
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.DocumentTimeout)
	defer cancel()
	status, err := o.provider.WaitForDocument(waitCtx, *handle, func(s translator.DocumentStatus) {
		o.logger.Debug("document progress", "job_id", j.ID, "status", s.State, "seconds_remaining", s.SecondsRemaining)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("document translation did not finish in time (limit %s)", o.cfg.DocumentTimeout)
		}
		return nil, err
	}

	translated, err := o.provider.DownloadDocument(ctx, *handle)
	if err != nil {
		return nil, err
	}
	return &output{data: translated, billed: status.BilledCharacters, qa: qa.Placeholder()}, nil
}

// fail records err as the job's error message.
func (o *Orchestrator) fail(j *job.Job, err error) result {
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "translation cancelled"
	}

	log := o.logger.With("job_id", j.ID, "target_lang", j.TargetLang)
	if kind := translator.KindOf(err); kind != translator.KindUnknown {
		log = log.With("kind", kind.String(), "retryable", translator.IsRetryable(err))
	}
	log.Warn("job failed", "error", msg)

	if err := o.store.FailJob(context.WithoutCancel(o.baseCtx), j.ID, msg); err != nil {
		log.Error("failed to record job failure", "error", err)
	}
	return result{job: j, err: errors.New(msg)}
}

func (o *Orchestrator) notifyReady(root *job.Job, completed []result) {
	ev := notify.ReadyEvent{
		JobID:          root.ID,
		UserID:         root.UserID,
		SourceFileName: root.SourceFileName,
		SourceLang:     root.SourceLang,
		ReviewURL:      o.reviewURL(root.ID),
		At:             time.Now().UTC(),
	}
	for _, r := range completed {
		ev.Languages = append(ev.Languages, notify.LanguageResult{
			Lang:           r.job.TargetLang,
			JobID:          r.job.ID,
			OutputFileName: r.completion.OutputFileName,
			QualityScore:   r.qa.Score,
			Warnings:       r.qa.WarningCount,
			Evaluated:      r.qa.Evaluated,
		})
	}

	if err := o.notifier.TranslationReady(context.WithoutCancel(o.baseCtx), ev); err != nil {
		o.logger.Warn("failed to send ready notification", "job_id", root.ID, "error", err)
	}
}
