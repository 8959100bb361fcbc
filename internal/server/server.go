// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the conversion orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/pdiddy/mdconvert/internal/httputil"
	"github.com/pdiddy/mdconvert/internal/orchestrator"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// Client-facing error messages.
const (
	msgNoFilePart     = "No file part in the request"
	msgInvalidRequest = "Invalid multipart request"
	msgTooLarge       = "Upload too large"
)

// formField is the multipart field carrying the PDF.
const formField = "file"

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temporary file.
const multipartMemory = 32 << 20

// Converter runs one conversion. *orchestrator.Orchestrator implements it.
type Converter interface {
	Convert(ctx context.Context, req orchestrator.Request) orchestrator.Result
}

// Server holds the HTTP handlers.
type Server struct {
	conv      Converter
	maxUpload int64
	log       zerolog.Logger
}

// New returns a Server.
func New(conv Converter, cfg types.ServerConfig, log zerolog.Logger) *Server {
	return &Server{conv: conv, maxUpload: cfg.MaxUploadBytes, log: log}
}

// Routes returns the router with all middleware installed.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(withRequestID)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Post("/convert", s.handleConvert)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// withRequestID adds chi's request ID to the request logger.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimiddleware.GetReqID(r.Context())
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		log := hlog.FromRequest(r).With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(log.WithContext(r.Context())))
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type convertResponse struct {
	Markdown string `json:"markdown"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			log.Warn().Int64("limit", tooLarge.Limit).Msg("upload rejected: too large")
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		case errors.Is(err, http.ErrNotMultipart):
			httputil.WriteError(w, http.StatusBadRequest, msgNoFilePart)
		default:
			log.Warn().Err(err).Msg("upload rejected: malformed multipart body")
			httputil.WriteError(w, http.StatusBadRequest, msgInvalidRequest)
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formField)
	if err != nil {
		// A part without a filename is parsed as a plain value.
		if _, ok := r.MultipartForm.Value[formField]; ok {
			httputil.WriteError(w, http.StatusBadRequest, orchestrator.InvalidMessage)
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, msgNoFilePart)
		return
	}
	defer file.Close()

	res := s.conv.Convert(r.Context(), orchestrator.Request{Filename: header.Filename, Body: file})
	if res.ID != "" {
		w.Header().Set("X-Conversion-ID", res.ID)
	}

	switch {
	case res.OK:
		httputil.WriteJSON(w, http.StatusOK, convertResponse{Markdown: res.Markdown})
	case res.Kind == types.KindValidation:
		httputil.WriteError(w, http.StatusBadRequest, res.Error)
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorBody{
			Error:    res.Error,
			Details:  res.Details,
			Attempts: res.Attempts,
		})
	}
}
