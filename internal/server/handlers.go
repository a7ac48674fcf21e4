package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/ai"
	"github.com/TechFutureAIFPT/hr-support/internal/extract"
	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
	"github.com/TechFutureAIFPT/hr-support/internal/scoring"
)

const ndjson = "application/x-ndjson"

// Form fields of POST /api/analyze.
const (
	fieldJobDescription = "jobDescription"
	fieldScoring        = "scoring"
	fieldLanguage       = "language"
	fieldFiles          = "files"
)

type statusResponse struct {
	Type    string        `json:"type"`
	Payload statusPayload `json:"payload"`
}

type statusPayload struct {
	Busy bool `json:"busy"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorEvent{Type: "error", Message: message})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Type: "status", Payload: statusPayload{Busy: s.lock.Busy()}})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in, err := s.input(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acquired, err := s.lock.RunExclusive(r.Context(), func(ctx context.Context) error {
		return s.stream(ctx, w, in)
	})
	switch {
	case !acquired && err == nil:
		writeError(w, http.StatusConflict, "another analysis is running, try again later")
	case !acquired:
		s.logger.Error("acquiring analysis lock", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "could not acquire the analysis lock")
	case err != nil:
		// The stream already carries the error event.
		s.logger.Warn("analysis ended with error", zap.Error(err))
	}
}

func (s *Server) input(form *multipart.Form) (pipeline.Input, error) {
	in := pipeline.Input{
		JobDescription: strings.TrimSpace(first(form.Value[fieldJobDescription])),
		Scoring:        s.scoring,
		Language:       first(form.Value[fieldLanguage]),
	}
	if in.JobDescription == "" {
		return in, errors.New("job description is required")
	}
	if in.Language == "" {
		in.Language = s.cfg.Language
	}

	if raw := first(form.Value[fieldScoring]); strings.TrimSpace(raw) != "" {
		cfg, err := scoring.Parse([]byte(raw))
		if err != nil {
			return in, fmt.Errorf("scoring: %w", err)
		}
		in.Scoring = cfg
	}

	headers := form.File[fieldFiles]
	if len(headers) == 0 {
		return in, errors.New("at least one file is required")
	}
	for _, h := range headers {
		f, err := readPart(h)
		if err != nil {
			return in, err
		}
		in.Files = append(in.Files, f)
	}
	return in, nil
}

func readPart(h *multipart.FileHeader) (extract.File, error) {
	src, err := h.Open()
	if err != nil {
		return extract.File{}, fmt.Errorf("open %s: %w", h.Filename, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return extract.File{}, fmt.Errorf("read %s: %w", h.Filename, err)
	}

	mediaType := h.Header.Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = extract.MediaTypeFor(h.Filename)
	}
	return extract.File{Name: h.Filename, Size: h.Size, MediaType: mediaType, Data: data}, nil
}

// stream writes every event as one JSON line. A terminal error becomes a final
// {"type":"error"} line since the status code is already sent.
func (s *Server) stream(ctx context.Context, w http.ResponseWriter, in pipeline.Input) error {
	w.Header().Set("Content-Type", ndjson)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)

	st := s.runner.Run(ctx, in)
	defer st.Close()

	for ev := range st.Events() {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("writing event: %w", err)
		}
		_ = rc.Flush()
	}

	if err := st.Err(); err != nil {
		_ = enc.Encode(errorEvent{Type: "error", Message: err.Error()})
		_ = rc.Flush()
		return err
	}
	return nil
}

type adviseRequest struct {
	JobTitle   string               `json:"jobTitle"`
	Language   string               `json:"language"`
	Question   string               `json:"question"`
	Candidates []pipeline.Candidate `json:"candidates"`
}

// maxAdviseBody bounds the JSON body of an advice request.
const maxAdviseBody = 4 << 20

func (s *Server) advise(w http.ResponseWriter, r *http.Request) {
	var req adviseRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdviseBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Language == "" {
		req.Language = s.cfg.Language
	}

	advice, err := s.advisor.Advise(r.Context(), ai.Batch{
		JobTitle:   req.JobTitle,
		Language:   req.Language,
		Candidates: req.Candidates,
	}, req.Question)
	switch {
	case errors.Is(err, ai.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("advice request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "the assistant is currently unavailable")
		return
	}

	if advice.CandidateIDs == nil {
		advice.CandidateIDs = []string{}
	}
	writeJSON(w, http.StatusOK, advice)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
