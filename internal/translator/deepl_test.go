package translator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeepL(t *testing.T, h http.HandlerFunc) *DeepLService {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewDeepLService(ServiceConfig{
		APIKey:          "test-key",
		BaseURL:         server.URL,
		PollInterval:    5 * time.Millisecond,
		DocumentTimeout: time.Second,
	})
}

func TestDeepLService_BaseURL(t *testing.T) {
	assert.Equal(t, deeplFreeURL, NewDeepLService(ServiceConfig{APIKey: "abc:fx"}).baseURL)
	assert.Equal(t, deeplProURL, NewDeepLService(ServiceConfig{APIKey: "abc"}).baseURL)
	assert.Equal(t, "http://local", NewDeepLService(ServiceConfig{BaseURL: "http://local/"}).baseURL)
}

func TestDeepLService_TranslateText(t *testing.T) {
	svc := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/translate", r.URL.Path)
		assert.Equal(t, "DeepL-Auth-Key test-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DE", body["target_lang"])
		assert.Equal(t, "EN", body["source_lang"])
		assert.Equal(t, "gloss-1", body["glossary_id"])
		assert.Equal(t, true, body["show_billed_characters"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"translations":[{"detected_source_language":"EN","text":"Hallo Welt","billed_characters":11}]}`))
	})

	res, err := svc.TranslateText(context.Background(), TextRequest{
		Text:       "Hello world",
		SourceLang: "en-GB",
		TargetLang: "de",
		GlossaryID: "gloss-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hallo Welt", res.Text)
	assert.Equal(t, "EN", res.DetectedLang)
	assert.Equal(t, 11, res.BilledCharacters)
}

func TestDeepLService_TranslateText_AutoSource(t *testing.T) {
	svc := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, ok := body["source_lang"]
		assert.False(t, ok, "auto source must not be sent")
		w.Write([]byte(`{"translations":[{"text":"Bonjour"}]}`))
	})

	res, err := svc.TranslateText(context.Background(), TextRequest{Text: "Hello", SourceLang: "auto", TargetLang: "FR"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", res.Text)
	assert.Equal(t, 5, res.BilledCharacters)
}

func TestDeepLService_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
		retry  bool
	}{
		{"payload too large", http.StatusRequestEntityTooLarge, KindPayloadTooLarge, false},
		{"unauthorized", http.StatusUnauthorized, KindAuthentication, false},
		{"forbidden", http.StatusForbidden, KindAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, KindRateLimited, true},
		{"quota", 456, KindQuotaExceeded, false},
		{"not found", http.StatusNotFound, KindNotFound, false},
		{"unavailable", http.StatusServiceUnavailable, KindTransient, true},
		{"bad request", http.StatusBadRequest, KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			})

			_, err := svc.TranslateText(context.Background(), TextRequest{Text: "x", TargetLang: "DE"})
			require.Error(t, err)

			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, "nope", pe.Message)
			assert.Equal(t, 3*time.Second, pe.RetryAfter)
			assert.Equal(t, tt.retry, IsRetryable(err))
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestDeepLService_MalformedResponse(t *testing.T) {
	svc := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := svc.TranslateText(context.Background(), TextRequest{Text: "x", TargetLang: "DE"})
	assert.Equal(t, KindMalformedResponse, KindOf(err))
}

func TestDeepLService_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	svc := NewDeepLService(ServiceConfig{APIKey: "k", BaseURL: url})
	_, err := svc.TranslateText(context.Background(), TextRequest{Text: "x", TargetLang: "DE"})
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestDeepLService_DocumentRoundTrip(t *testing.T) {
	var polls atomic.Int32
	svc := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/document":
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "DE", r.FormValue("target_lang"))
			assert.Equal(t, "EN", r.FormValue("source_lang"))
			f, hdr, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				return
			}
			data, _ := io.ReadAll(f)
			assert.Equal(t, "report.docx", hdr.Filename)
			assert.Equal(t, "payload", string(data))
			w.Write([]byte(`{"document_id":"doc-1","document_key":"key-1"}`))
		case "/v2/document/doc-1":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "key-1", body["document_key"])
			if polls.Add(1) < 3 {
				w.Write([]byte(`{"document_id":"doc-1","status":"translating","seconds_remaining":2}`))
				return
			}
			w.Write([]byte(`{"document_id":"doc-1","status":"done","billed_characters":42}`))
		case "/v2/document/doc-1/result":
			w.Write([]byte("translated bytes"))
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	handle, err := svc.UploadDocument(ctx, DocumentRequest{Data: []byte("payload"), FileName: "report.docx", SourceLang: "EN", TargetLang: "DE"})
	require.NoError(t, err)
	assert.Equal(t, DocumentHandle{ID: "doc-1", Key: "key-1"}, *handle)

	var seen []DocumentState
	st, err := svc.WaitForDocument(ctx, *handle, func(s DocumentStatus) { seen = append(seen, s.State) })
	require.NoError(t, err)
	assert.Equal(t, DocumentDone, st.State)
	assert.Equal(t, 42, st.BilledCharacters)
	assert.Equal(t, []DocumentState{DocumentTranslating, DocumentTranslating, DocumentDone}, seen)

	data, err := svc.DownloadDocument(ctx, *handle)
	require.NoError(t, err)
	assert.Equal(t, "translated bytes", string(data))
}

func TestDeepLService_WaitForDocument_Error(t *testing.T) {
	svc := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"document_id":"doc-1","status":"error","error_message":"Unsupported file"}`))
	})

	st, err := svc.WaitForDocument(context.Background(), DocumentHandle{ID: "doc-1", Key: "k"}, nil)
	require.Error(t, err)
	assert.Equal(t, KindDocumentFailed, KindOf(err))
	assert.Contains(t, err.Error(), "Unsupported file")
	assert.Equal(t, DocumentError, st.State)
}

func TestDeepLService_WaitForDocument_Cancelled(t *testing.T) {
	svc := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"document_id":"doc-1","status":"queued"}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := svc.WaitForDocument(ctx, DocumentHandle{ID: "doc-1", Key: "k"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeepLService_WaitForDocument_OwnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"document_id":"doc-1","status":"translating"}`))
	}))
	t.Cleanup(server.Close)
	svc := NewDeepLService(ServiceConfig{
		APIKey:          "test-key",
		BaseURL:         server.URL,
		PollInterval:    5 * time.Millisecond,
		DocumentTimeout: 30 * time.Millisecond,
	})

	_, err := svc.WaitForDocument(context.Background(), DocumentHandle{ID: "doc-1", Key: "k"}, nil)
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "document not finished after 30ms")
}

func TestDocumentState_Terminal(t *testing.T) {
	assert.False(t, DocumentQueued.Terminal())
	assert.False(t, DocumentTranslating.Terminal())
	assert.True(t, DocumentDone.Terminal())
	assert.True(t, DocumentError.Terminal())
}

func TestDeepLService_DefaultDocumentTimeout(t *testing.T) {
	assert.Equal(t, 15*time.Minute, NewDeepLService(ServiceConfig{APIKey: "k"}).documentTimeout)
}

func TestDeepLService_Glossaries(t *testing.T) {
	var deleted atomic.Bool
	svc := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/glossaries":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "learned-EN-DE-1", body["name"])
			assert.Equal(t, "en", body["source_lang"])
			assert.Equal(t, "de", body["target_lang"])
			assert.Equal(t, "tsv", body["entries_format"])
			assert.Equal(t, "invoice\tRechnung\nterms\tAGB\n", body["entries"])
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"glossary_id":"g-123"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/v2/glossaries/g-123":
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	id, err := svc.CreateGlossary(ctx, "learned-EN-DE-1", "EN", "DE-DE", []GlossaryEntry{
		{Source: "invoice", Target: "Rechnung"},
		{Source: " ", Target: "ignored"},
		{Source: "terms", Target: "AGB"},
	})
	require.NoError(t, err)
	assert.Equal(t, "g-123", id)

	require.NoError(t, svc.DeleteGlossary(ctx, id))
	assert.True(t, deleted.Load())

	err = svc.DeleteGlossary(ctx, "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestDeepLService_CreateGlossary_Empty(t *testing.T) {
	svc := NewDeepLService(ServiceConfig{APIKey: "k", BaseURL: "http://unused"})
	_, err := svc.CreateGlossary(context.Background(), "n", "EN", "DE", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no entries"))
}

func TestGoogleService_Unsupported(t *testing.T) {
	svc := NewGoogleService(ServiceConfig{})
	ctx := context.Background()

	_, err := svc.UploadDocument(ctx, DocumentRequest{})
	assert.Equal(t, KindUnsupported, KindOf(err))
	_, err = svc.CreateGlossary(ctx, "n", "EN", "DE", nil)
	assert.Equal(t, KindUnsupported, KindOf(err))
	assert.Equal(t, KindUnsupported, KindOf(svc.DeleteGlossary(ctx, "g")))
	_, err = svc.TranslateText(ctx, TextRequest{Text: "x", TargetLang: "DE", GlossaryID: "g"})
	assert.Equal(t, KindUnsupported, KindOf(err))
}
