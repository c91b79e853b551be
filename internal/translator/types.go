package translator

import (
	"context"
	"time"
)

// ServiceConfig configures a provider adapter.
type ServiceConfig struct {
	Credentials     string        `mapstructure:"credentials" json:"credentials"`
	APIKey          string        `mapstructure:"api_key" json:"api_key"`
	BaseURL         string        `mapstructure:"base_url" json:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID       string        `mapstructure:"project_id" json:"project_id"`
	PollInterval    time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	DocumentTimeout time.Duration `mapstructure:"document_timeout" json:"document_timeout"`
}

type TextRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	GlossaryID string `json:"glossary_id,omitempty"`
}

type TextResult struct {
	Text             string        `json:"text"`
	DetectedLang     string        `json:"detected_source_language,omitempty"`
	BilledCharacters int           `json:"billed_characters"`
	Latency          time.Duration `json:"latency"`
}

type DocumentRequest struct {
	Data       []byte `json:"-"`
	FileName   string `json:"file_name"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	GlossaryID string `json:"glossary_id,omitempty"`
}

// DocumentHandle identifies an uploaded document on the provider side.
type DocumentHandle struct {
	ID  string `json:"document_id"`
	Key string `json:"document_key"`
}

type DocumentState string

const (
	DocumentQueued      DocumentState = "queued"
	DocumentTranslating DocumentState = "translating"
	DocumentDone        DocumentState = "done"
	DocumentError       DocumentState = "error"
)

// Terminal reports whether polling can stop.
func (s DocumentState) Terminal() bool {
	return s == DocumentDone || s == DocumentError
}

type DocumentStatus struct {
	ID               string        `json:"document_id"`
	State            DocumentState `json:"status"`
	SecondsRemaining int           `json:"seconds_remaining,omitempty"`
	BilledCharacters int           `json:"billed_characters,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
}

type GlossaryEntry struct {
	Source string
	Target string
}

// Provider is the subset of a machine-translation provider the orchestrator
// depends on. Every method returns a *Error on provider failure.
type Provider interface {
	Name() string
	TranslateText(ctx context.Context, req TextRequest) (*TextResult, error)
	UploadDocument(ctx context.Context, req DocumentRequest) (*DocumentHandle, error)
	// WaitForDocument polls until the document reaches a terminal state,
	// ctx is done or the adapter's own timeout expires. A document that
	// ends in the error state is reported as a DocumentFailed error.
	WaitForDocument(ctx context.Context, doc DocumentHandle, onProgress func(DocumentStatus)) (*DocumentStatus, error)
	DownloadDocument(ctx context.Context, doc DocumentHandle) ([]byte, error)
	CreateGlossary(ctx context.Context, name, sourceLang, targetLang string, entries []GlossaryEntry) (string, error)
	DeleteGlossary(ctx context.Context, glossaryID string) error
}
