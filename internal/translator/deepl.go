package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	deeplFreeURL = "https://api-free.deepl.com"
	deeplProURL  = "https://api.deepl.com"

	defaultPollInterval    = 2 * time.Second
	defaultDocumentTimeout = 15 * time.Minute
)

// DeepLService talks to the DeepL v2 REST API.
type DeepLService struct {
	apiKey          string
	baseURL         string
	client          *http.Client
	pollInterval    time.Duration
	documentTimeout time.Duration
}

func NewDeepLService(cfg ServiceConfig) *DeepLService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		// Free-tier keys carry a ":fx" suffix and use a separate host.
		baseURL = deeplProURL
		if strings.HasSuffix(cfg.APIKey, ":fx") {
			baseURL = deeplFreeURL
		}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	docTimeout := cfg.DocumentTimeout
	if docTimeout <= 0 {
		docTimeout = defaultDocumentTimeout
	}

	return &DeepLService{
		apiKey:          cfg.APIKey,
		baseURL:         baseURL,
		client:          &http.Client{Timeout: timeout},
		pollInterval:    poll,
		documentTimeout: docTimeout,
	}
}

func (s *DeepLService) Name() string {
	return "deepl"
}

func (s *DeepLService) TranslateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	start := time.Now()

	body := map[string]any{
		"text":                   []string{req.Text},
		"target_lang":            strings.ToUpper(req.TargetLang),
		"show_billed_characters": true,
	}
	if src := sourceLang(req.SourceLang); src != "" {
		body["source_lang"] = src
	}
	if req.GlossaryID != "" {
		body["glossary_id"] = req.GlossaryID
	}

	var out struct {
		Translations []struct {
			DetectedSourceLanguage string `json:"detected_source_language"`
			Text                   string `json:"text"`
			BilledCharacters       int    `json:"billed_characters"`
		} `json:"translations"`
	}
	if err := s.doJSON(ctx, "translate", http.MethodPost, "/v2/translate", body, &out); err != nil {
		return nil, err
	}
	if len(out.Translations) == 0 {
		return nil, &Error{Kind: KindMalformedResponse, Provider: s.Name(), Op: "translate", Message: "no translations in response"}
	}

	t := out.Translations[0]
	billed := t.BilledCharacters
	if billed == 0 {
		billed = len([]rune(req.Text))
	}
	return &TextResult{
		Text:             t.Text,
		DetectedLang:     t.DetectedSourceLanguage,
		BilledCharacters: billed,
		Latency:          time.Since(start),
	}, nil
}

func (s *DeepLService) UploadDocument(ctx context.Context, req DocumentRequest) (*DocumentHandle, error) {
	const op = "upload document"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{"target_lang": strings.ToUpper(req.TargetLang)}
	if src := sourceLang(req.SourceLang); src != "" {
		fields["source_lang"] = src
	}
	if req.GlossaryID != "" {
		fields["glossary_id"] = req.GlossaryID
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}
	fw, err := mw.CreateFormFile("file", req.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(req.Data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/document", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out DocumentHandle
	if err := s.do(httpReq, op, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.Key == "" {
		return nil, &Error{Kind: KindMalformedResponse, Provider: s.Name(), Op: op, Message: "missing document id or key"}
	}
	return &out, nil
}

// DocumentStatus fetches the current state of an uploaded document.
func (s *DeepLService) DocumentStatus(ctx context.Context, doc DocumentHandle) (*DocumentStatus, error) {
	var out DocumentStatus
	path := "/v2/document/" + url.PathEscape(doc.ID)
	if err := s.doJSON(ctx, "document status", http.MethodPost, path, map[string]string{"document_key": doc.Key}, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = doc.ID
	}
	return &out, nil
}

func (s *DeepLService) WaitForDocument(ctx context.Context, doc DocumentHandle, onProgress func(DocumentStatus)) (*DocumentStatus, error) {
	return pollDocument(ctx, s.Name(), doc, s.pollInterval, s.documentTimeout, s.DocumentStatus, onProgress)
}

func (s *DeepLService) pollSettings() (time.Duration, time.Duration) {
	return s.pollInterval, s.documentTimeout
}

func (s *DeepLService) DownloadDocument(ctx context.Context, doc DocumentHandle) ([]byte, error) {
	const op = "download document"

	payload, err := json.Marshal(map[string]string{"document_key": doc.Key})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v2/document/"+url.PathEscape(doc.ID)+"/result", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, transportError(s.Name(), op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.statusError(op, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(s.Name(), op, err)
	}
	return data, nil
}

func (s *DeepLService) CreateGlossary(ctx context.Context, name, sourceLang, targetLang string, entries []GlossaryEntry) (string, error) {
	const op = "create glossary"
	if len(entries) == 0 {
		return "", &Error{Kind: KindUnknown, Provider: s.Name(), Op: op, Message: "glossary has no entries"}
	}

	var tsv strings.Builder
	for _, e := range entries {
		src := strings.TrimSpace(strings.ReplaceAll(e.Source, "\t", " "))
		tgt := strings.TrimSpace(strings.ReplaceAll(e.Target, "\t", " "))
		if src == "" || tgt == "" {
			continue
		}
		tsv.WriteString(src)
		tsv.WriteByte('\t')
		tsv.WriteString(tgt)
		tsv.WriteByte('\n')
	}

	body := map[string]string{
		"name":           name,
		"source_lang":    glossaryLang(sourceLang),
		"target_lang":    glossaryLang(targetLang),
		"entries":        tsv.String(),
		"entries_format": "tsv",
	}
	var out struct {
		GlossaryID string `json:"glossary_id"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, "/v2/glossaries", body, &out); err != nil {
		return "", err
	}
	if out.GlossaryID == "" {
		return "", &Error{Kind: KindMalformedResponse, Provider: s.Name(), Op: op, Message: "missing glossary id"}
	}
	return out.GlossaryID, nil
}

func (s *DeepLService) DeleteGlossary(ctx context.Context, glossaryID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		s.baseURL+"/v2/glossaries/"+url.PathEscape(glossaryID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return s.do(httpReq, "delete glossary", nil)
}

func (s *DeepLService) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return s.do(httpReq, op, out)
}

// do sends req and decodes a JSON response into out when out is non-nil.
func (s *DeepLService) do(req *http.Request, op string, out any) error {
	req.Header.Set("Authorization", "DeepL-Auth-Key "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return transportError(s.Name(), op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindMalformedResponse, Provider: s.Name(), Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func (s *DeepLService) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	var decoded struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &decoded) == nil && decoded.Message != "" {
		msg = decoded.Message
		if decoded.Detail != "" {
			msg += ": " + decoded.Detail
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{
		Kind:       kindForStatus(resp.StatusCode),
		Provider:   s.Name(),
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    msg,
		RetryAfter: parseRetryAfter(resp.Header),
	}
}

// sourceLang maps the submission source language onto the API form. Source
// languages carry no regional variant and "auto" means let the provider detect.
func sourceLang(lang string) string {
	lang = strings.ToUpper(strings.TrimSpace(lang))
	if lang == "" || lang == "AUTO" {
		return ""
	}
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// glossaryLang returns the lower-case base language glossaries are keyed on.
func glossaryLang(lang string) string {
	return strings.ToLower(sourceLang(lang))
}
