package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
	"github.com/dutchyankee87/weconnect-translate/internal/orchestrator"
	"github.com/dutchyankee87/weconnect-translate/internal/review"
	"github.com/dutchyankee87/weconnect-translate/internal/store"
)

type fakeJobs struct {
	submitFunc func(req orchestrator.SubmitRequest) (*orchestrator.Submission, error)
	lookupFunc func(id string) (*orchestrator.JobView, error)
	cancelFunc func(id string) error
}

func (f *fakeJobs) Submit(_ context.Context, req orchestrator.SubmitRequest) (*orchestrator.Submission, error) {
	return f.submitFunc(req)
}

func (f *fakeJobs) Lookup(_ context.Context, id string) (*orchestrator.JobView, error) {
	return f.lookupFunc(id)
}

func (f *fakeJobs) Cancel(_ context.Context, id string) error {
	return f.cancelFunc(id)
}

type fakeCorrections struct {
	submitFunc func(sub review.Submission) (*review.Result, error)
}

func (f *fakeCorrections) Submit(_ context.Context, sub review.Submission) (*review.Result, error) {
	return f.submitFunc(sub)
}

func newTestServer(jobs *fakeJobs, corr *fakeCorrections, maxUpload int64) http.Handler {
	return New(jobs, corr, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), maxUpload).Handler()
}

func multipartBody(t *testing.T, fields map[string][]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	if fileName != "" {
		fw, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestSubmitJob(t *testing.T) {
	var got orchestrator.SubmitRequest
	jobs := &fakeJobs{submitFunc: func(req orchestrator.SubmitRequest) (*orchestrator.Submission, error) {
		got = req
		return &orchestrator.Submission{
			JobID: "parent-1", Status: job.StatusPending, SourceFileName: req.FileName, SourceLang: "EN",
			TargetLangs: []string{"DE", "FR"}, MultiLanguage: true,
			ChildJobIDs: map[string]string{"DE": "c1", "FR": "c2"},
		}, nil
	}}
	h := newTestServer(jobs, nil, 0)

	body, ctype := multipartBody(t, map[string][]string{
		"sourceLanguage":  {"en"},
		"targetLanguages": {"DE,FR"},
		"userId":          {"user-7"},
		"glossaryId":      {"g-1"},
	}, "brochure.md", []byte("# Hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "brochure.md", got.FileName)
	assert.Equal(t, []byte("# Hello"), got.Data)
	assert.Equal(t, "en", got.SourceLang)
	assert.Equal(t, []string{"DE,FR"}, got.TargetLangs)
	assert.Equal(t, "user-7", got.UserID)
	assert.Equal(t, "g-1", got.GlossaryID)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "parent-1", resp["jobId"])
	assert.Equal(t, true, resp["isMultiLanguage"])
	assert.Equal(t, "pending", resp["status"])
}

func TestSubmitJob_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fileName string
		want     int
	}{
		{"missing file", nil, "", http.StatusBadRequest},
		{"validation", &orchestrator.ValidationError{Field: "targetLanguages", Message: "at least one target language is required"}, "a.md", http.StatusBadRequest},
		{"shut down", orchestrator.ErrClosed, "a.md", http.StatusServiceUnavailable},
		{"internal", errors.New("disk full"), "a.md", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{submitFunc: func(orchestrator.SubmitRequest) (*orchestrator.Submission, error) {
				return nil, tt.err
			}}
			h := newTestServer(jobs, nil, 0)

			body, ctype := multipartBody(t, map[string][]string{"sourceLanguage": {"EN"}}, tt.fileName, []byte("x"))
			req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
			req.Header.Set("Content-Type", ctype)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "disk full")
		})
	}
}

func TestSubmitJob_TooLarge(t *testing.T) {
	jobs := &fakeJobs{submitFunc: func(orchestrator.SubmitRequest) (*orchestrator.Submission, error) {
		t.Fatal("submit must not be called")
		return nil, nil
	}}
	h := newTestServer(jobs, nil, 1024)

	body, ctype := multipartBody(t, nil, "big.txt", bytes.Repeat([]byte("a"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetJob(t *testing.T) {
	jobs := &fakeJobs{lookupFunc: func(id string) (*orchestrator.JobView, error) {
		if id != "j1" {
			return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
		}
		return &orchestrator.JobView{
			Job: &job.Job{ID: "j1", Status: job.StatusCompleted, SourceLang: "EN", TargetLang: "DE"},
			QA:  &job.QAResult{JobID: "j1", Score: 85, WarningCount: 1, Evaluated: true},
		}, nil
	}}
	h := newTestServer(jobs, nil, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Job struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"job"`
		QA struct {
			Score int `json:"qualityScore"`
		} `json:"qaResult"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "j1", resp.Job.ID)
	assert.Equal(t, "completed", resp.Job.Status)
	assert.Equal(t, 85, resp.QA.Score)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJob(t *testing.T) {
	jobs := &fakeJobs{cancelFunc: func(id string) error {
		switch id {
		case "running":
			return nil
		case "done":
			return fmt.Errorf("job done: %w", orchestrator.ErrNotRunning)
		}
		return store.ErrNotFound
	}}
	h := newTestServer(jobs, nil, 0)

	for id, want := range map[string]int{
		"running": http.StatusAccepted,
		"done":    http.StatusConflict,
		"missing": http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/"+id+"/cancel", nil))
		assert.Equal(t, want, rec.Code, id)
	}
}

func TestSubmitCorrections(t *testing.T) {
	var got review.Submission
	corr := &fakeCorrections{submitFunc: func(sub review.Submission) (*review.Result, error) {
		got = sub
		switch sub.JobID {
		case "missing":
			return nil, fmt.Errorf("job missing: %w", store.ErrNotFound)
		case "bad":
			return nil, &review.ValidationError{Field: "submittedBy", Message: "not a valid email address"}
		}
		return &review.Result{JobID: sub.JobID, Saved: 1, Terminology: 1}, nil
	}}
	h := newTestServer(nil, corr, 0)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/corrections", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"jobId":"j1","targetLanguage":"DE","countryCode":"DE","submittedBy":"rev@example.com",
		"corrections":[{"originalText":"invoice","correctedText":"Rechnung","type":"terminology"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "rev@example.com", got.SubmittedBy)
	require.Len(t, got.Corrections, 1)
	assert.Equal(t, job.CorrectionTerminology, got.Corrections[0].Type)
	assert.JSONEq(t, `{"jobId":"j1","saved":1,"terminology":1,"phrasing":0}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, post(`{"jobId":`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"jobId":"bad"}`).Code)
	assert.Equal(t, http.StatusNotFound, post(`{"jobId":"missing"}`).Code)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(nil, nil, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
