// Package server exposes job submission, job lookup and correction
// submission over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dutchyankee87/weconnect-translate/internal/orchestrator"
	"github.com/dutchyankee87/weconnect-translate/internal/review"
	"github.com/dutchyankee87/weconnect-translate/internal/store"
)

type Jobs interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (*orchestrator.Submission, error)
	Lookup(ctx context.Context, id string) (*orchestrator.JobView, error)
	Cancel(ctx context.Context, id string) error
}

type Corrections interface {
	Submit(ctx context.Context, sub review.Submission) (*review.Result, error)
}

type Server struct {
	jobs        Jobs
	corrections Corrections
	logger      *slog.Logger
	maxUpload   int64
	router      *gin.Engine
}

// New builds the router. maxUpload bounds the request body of a job
// submission; zero means 32 MiB.
func New(jobs Jobs, corrections Corrections, logger *slog.Logger, maxUpload int64) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		jobs:        jobs,
		corrections: corrections,
		logger:      logger,
		maxUpload:   maxUpload,
		router:      gin.New(),
	}
	s.router.Use(gin.Recovery(), s.logRequests)

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api")
	api.POST("/jobs", s.submitJob)
	api.GET("/jobs/:id", s.getJob)
	api.POST("/jobs/:id/cancel", s.cancelJob)
	api.POST("/corrections", s.submitCorrections)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully within
// grace.
func (s *Server) Run(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("http server listening", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request", "method", c.Request.Method, "path", c.FullPath(),
		"status", c.Writer.Status(), "duration", time.Since(start))
}

func (s *Server) submitJob(c *gin.Context) {
	if c.Request.ContentLength > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "a file is required", "field": "file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.internalError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.internalError(c, err)
		return
	}

	sub, err := s.jobs.Submit(c.Request.Context(), orchestrator.SubmitRequest{
		UserID:      c.PostForm("userId"),
		FileName:    fh.Filename,
		Data:        data,
		SourceLang:  c.PostForm("sourceLanguage"),
		TargetLangs: c.PostFormArray("targetLanguages"),
		GlossaryID:  c.PostForm("glossaryId"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, sub)
}

func (s *Server) getJob(c *gin.Context) {
	view, err := s.jobs.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) cancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := s.jobs.Cancel(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": id, "status": "cancelling"})
}

func (s *Server) submitCorrections(c *gin.Context) {
	var sub review.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	res, err := s.corrections.Submit(c.Request.Context(), sub)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) writeError(c *gin.Context, err error) {
	var jobErr *orchestrator.ValidationError
	var reviewErr *review.ValidationError
	switch {
	case errors.As(err, &jobErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": jobErr.Message, "field": jobErr.Field})
	case errors.As(err, &reviewErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": reviewErr.Message, "field": reviewErr.Field})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.Is(err, orchestrator.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.internalError(c, err)
	}
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
