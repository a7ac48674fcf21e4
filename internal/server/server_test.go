package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TechFutureAIFPT/hr-support/internal/ai"
	"github.com/TechFutureAIFPT/hr-support/internal/extract"
	"github.com/TechFutureAIFPT/hr-support/internal/llm"
	"github.com/TechFutureAIFPT/hr-support/internal/lock"
	"github.com/TechFutureAIFPT/hr-support/internal/metrics"
	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
)

type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, f extract.File, progress extract.ProgressFunc) (*extract.Result, error) {
	if f.Name == "broken.pdf" {
		return nil, extract.ErrUnsupportedFormat
	}
	progress("read text file")
	return &extract.Result{SourceFile: f.Name, Text: string(f.Data), Method: extract.MethodDirectRead}, nil
}

type fakeSubmitter struct {
	mu   sync.Mutex
	out  string
	err  error
	reqs []llm.Request
}

func (f *fakeSubmitter) Submit(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

type busyLock struct{}

func (busyLock) RunExclusive(context.Context, func(context.Context) error) (bool, error) {
	return false, nil
}

func (busyLock) Busy() bool { return true }

func newTestServer(t *testing.T, sub *fakeSubmitter, excl Exclusive) *Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	if excl == nil {
		medium := lock.NewLeaseMedium(lock.NewMemoryStore(), lock.NewHub(), lock.Config{}, "")
		excl = lock.NewCoordinator(medium, lock.Config{}, lock.Deps{Logger: log})
	}

	reg := prometheus.NewRegistry()
	metrics.New(reg).CacheHit()

	return New(Config{}, Deps{
		Runner:   pipeline.New(pipeline.Deps{Extractor: textExtractor{}, Submitter: sub, Logger: log}),
		Lock:     excl,
		Gatherer: reg,
		Logger:   log,
	})
}

type upload struct {
	name string
	data string
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(fieldFiles, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeLines(t *testing.T, body io.Reader) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), "line %q", sc.Text())
		out = append(out, line)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestAnalyzeStreamsEvents(t *testing.T) {
	sub := &fakeSubmitter{out: `[
		{"candidateName": "Bob", "fileName": "bob.txt", "analysis": {"totalScore": 55}},
		{"candidateName": "Ann", "fileName": "ann.txt", "analysis": {"totalScore": 80}}
	]`}
	srv := newTestServer(t, sub, nil)

	body, contentType := multipartBody(t,
		map[string]string{fieldJobDescription: "Backend engineer, Go", fieldLanguage: "ENGLISH"},
		upload{"bob.txt", "Bob CV"}, upload{"broken.pdf", "%PDF"}, upload{"ann.txt", "Ann CV"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ndjson, rec.Header().Get("Content-Type"))

	lines := decodeLines(t, rec.Body)
	var progress, results []map[string]any
	for _, line := range lines {
		switch line["type"] {
		case "progress":
			progress = append(progress, line)
		case "result":
			results = append(results, line["candidate"].(map[string]any))
		default:
			t.Fatalf("unexpected line %v", line)
		}
	}

	require.Equal(t, "processing file 1/3: bob.txt", progress[0]["message"])
	require.Len(t, results, 3)
	require.Equal(t, "FAILED", results[0]["status"])
	require.Equal(t, "broken.pdf", results[0]["fileName"])
	require.Equal(t, "Ann", results[1]["candidateName"])
	require.Equal(t, "Bob", results[2]["candidateName"])

	require.Len(t, sub.reqs, 1)
	require.Len(t, sub.reqs[0].Parts, 3)
	require.Contains(t, sub.reqs[0].Parts[0].Text, "ENGLISH")
}

func TestAnalyzeReportsSubmissionFailure(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("all API keys failed")}
	srv := newTestServer(t, sub, nil)

	body, contentType := multipartBody(t, map[string]string{fieldJobDescription: "JD"}, upload{"a.txt", "A"})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	lines := decodeLines(t, rec.Body)
	last := lines[len(lines)-1]
	require.Equal(t, "error", last["type"])
	require.Contains(t, last["message"], "all API keys failed")
}

func TestAnalyzeRejectsWhenBusy(t *testing.T) {
	sub := &fakeSubmitter{out: "[]"}
	srv := newTestServer(t, sub, busyLock{})

	body, contentType := multipartBody(t, map[string]string{fieldJobDescription: "JD"}, upload{"a.txt", "A"})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Empty(t, sub.reqs)
}

func TestAnalyzeValidatesInput(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		want   string
	}{
		{name: "missing job description", files: []upload{{"a.txt", "A"}}, want: "job description is required"},
		{name: "missing files", fields: map[string]string{fieldJobDescription: "JD"}, want: "at least one file"},
		{
			name:   "bad weights",
			fields: map[string]string{fieldJobDescription: "JD", fieldScoring: "criteria:\n  - {key: a, name: A, weight: 10}\n"},
			files:  []upload{{"a.txt", "A"}},
			want:   "scoring",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeSubmitter{}, nil)
			body, contentType := multipartBody(t, tt.fields, tt.files...)
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestStatusHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeSubmitter{}, busyLock{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"type":"status","payload":{"busy":true}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "hr_support_cache_lookups_total"))
}

func TestAdvise(t *testing.T) {
	log := zaptest.NewLogger(t)
	sub := &fakeSubmitter{out: `{"responseText": "Ann is the strongest.", "candidateIds": ["cand_ann"]}`}
	srv := New(Config{Language: "ENGLISH"}, Deps{
		Runner:  pipeline.New(pipeline.Deps{Extractor: textExtractor{}, Submitter: sub, Logger: log}),
		Lock:    busyLock{},
		Advisor: ai.NewAdvisor(sub, log, 0),
		Logger:  log,
	})

	body := `{"jobTitle": "Go engineer", "question": "who is best?", "candidates": [
		{"id": "cand_ann", "status": "SUCCESS", "candidateName": "Ann", "fileName": "ann.pdf", "analysis": {"totalScore": 80, "grade": "A"}}
	]}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/advise", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"responseText": "Ann is the strongest.", "candidateIds": ["cand_ann"]}`, rec.Body.String())
	require.Contains(t, sub.reqs[0].Parts[0].Text, "MUST BE ENGLISH")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/advise", strings.NewReader(`{"question": " "}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
