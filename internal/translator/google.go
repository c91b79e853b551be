package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleService translates text through Cloud Translation. It has no
// document or glossary support.
type GoogleService struct {
	opts []option.ClientOption
}

func NewGoogleService(cfg ServiceConfig) *GoogleService {
	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	return &GoogleService{opts: opts}
}

func (s *GoogleService) Name() string {
	return "google"
}

func (s *GoogleService) TranslateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	const op = "translate"
	start := time.Now()

	if req.GlossaryID != "" {
		return nil, s.unsupported("translate with glossary")
	}

	targetTag, err := language.Parse(req.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("invalid target language %q: %w", req.TargetLang, err)
	}

	client, err := translate.NewClient(ctx, s.opts...)
	if err != nil {
		return nil, &Error{Kind: KindAuthentication, Provider: s.Name(), Op: op, Err: err}
	}
	defer client.Close()

	var opts *translate.Options
	if src := sourceLang(req.SourceLang); src != "" {
		sourceTag, err := language.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("invalid source language %q: %w", req.SourceLang, err)
		}
		opts = &translate.Options{Source: sourceTag, Format: translate.Text}
	}

	translations, err := client.Translate(ctx, []string{req.Text}, targetTag, opts)
	if err != nil {
		return nil, s.classify(op, err)
	}
	if len(translations) == 0 {
		return nil, &Error{Kind: KindMalformedResponse, Provider: s.Name(), Op: op, Message: "no translation returned"}
	}

	res := &TextResult{
		Text:             translations[0].Text,
		BilledCharacters: len([]rune(req.Text)),
		Latency:          time.Since(start),
	}
	if translations[0].Source != language.Und {
		res.DetectedLang = translations[0].Source.String()
	}
	return res, nil
}

func (s *GoogleService) UploadDocument(context.Context, DocumentRequest) (*DocumentHandle, error) {
	return nil, s.unsupported("upload document")
}

func (s *GoogleService) WaitForDocument(context.Context, DocumentHandle, func(DocumentStatus)) (*DocumentStatus, error) {
	return nil, s.unsupported("wait for document")
}

func (s *GoogleService) DownloadDocument(context.Context, DocumentHandle) ([]byte, error) {
	return nil, s.unsupported("download document")
}

func (s *GoogleService) CreateGlossary(context.Context, string, string, string, []GlossaryEntry) (string, error) {
	return "", s.unsupported("create glossary")
}

func (s *GoogleService) DeleteGlossary(context.Context, string) error {
	return s.unsupported("delete glossary")
}

func (s *GoogleService) unsupported(op string) error {
	return &Error{Kind: KindUnsupported, Provider: s.Name(), Op: op, Message: "not supported by this provider"}
}

func (s *GoogleService) classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &Error{
			Kind:       kindForStatus(gerr.Code),
			Provider:   s.Name(),
			Op:         op,
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			RetryAfter: parseRetryAfter(gerr.Header),
			Err:        err,
		}
	}
	return &Error{Kind: KindTransient, Provider: s.Name(), Op: op, Err: err}
}
