package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dealgraph/internal/pipeline"
	"dealgraph/internal/prompt"
	"dealgraph/internal/store"

	"go.uber.org/zap"
)

type fakeIngestor struct {
	sessions []string
	fail     bool
}

func (f *fakeIngestor) IngestPDF(_ context.Context, sessionID, path string) (int, error) {
	f.sessions = append(f.sessions, sessionID)
	if f.fail {
		return 0, fmt.Errorf("simulated ingest failure")
	}
	return 3, nil
}

type fakeRetriever struct{}

func (fakeRetriever) Retrieve(_ context.Context, sessionID, query string) ([]store.Passage, error) {
	return []store.Passage{{Text: "passage for " + query, Rank: 1}}, nil
}

// fakeCompleter answers the risk-flag prompt with an empty array, each
// scoring prompt with a breakdown matching that stage's rubric, and chat
// prompts with prose. Stages are told apart by phrases unique to their
// templates.
type fakeCompleter struct{}

func breakdownJSON(entries ...[2]string) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf(`{"criteria": %q, "score": 4, "weight": %s, "weightedScore": %s, "reason": "r"}`,
			e[0], e[1], "0") // weightedScore intentionally wrong; the parser recomputes it
	}
	return `{"scoreBreakdown": [` + strings.Join(parts, ",") + `], "totalScore": 0}`
}

func (fakeCompleter) Complete(_ context.Context, p string) (string, error) {
	switch {
	case strings.Contains(p, "RED FLAGS"):
		return "[]", nil
	case strings.Contains(p, "DealGPT"):
		return "Proceed with caution.", nil
	case strings.Contains(p, "strategic deal advisor"):
		return breakdownJSON([2]string{"Market Alignment", "0.10"}, [2]string{"Win Probability", "0.10"},
			[2]string{"Delivery Capability", "0.10"}, [2]string{"Business Justification", "0.05"}), nil
	case strings.Contains(p, "customer readiness"):
		return breakdownJSON([2]string{"Stakeholder Clarity", "0.10"}, [2]string{"Decision-Maker Access", "0.05"},
			[2]string{"Project Background", "0.05"}), nil
	case strings.Contains(p, "strategic upside"):
		return breakdownJSON([2]string{"Long-Term Potential", "0.10"}, [2]string{"Brand or Market Value", "0.05"}), nil
	case strings.Contains(p, "deal pursuit strategist"):
		return breakdownJSON([2]string{"Relevant Experience", "0.10"}, [2]string{"Differentiators", "0.10"},
			[2]string{"Client Relationship", "0.10"}), nil
	default:
		return "", fmt.Errorf("unrecognized prompt")
	}
}

func newTestServer(t *testing.T, ingestor Ingestor) (*Server, *pipeline.MemoryCache) {
	t.Helper()
	registry := prompt.NewRegistry()
	cache := pipeline.NewMemoryCache()
	orch := pipeline.NewOrchestrator(fakeRetriever{}, fakeCompleter{}, registry)
	svc := pipeline.NewService(orch, cache, pipeline.NewSynthesizer(fakeCompleter{}, registry))
	return New(Config{Addr: ":0"}, ingestor, svc, zap.NewNop()), cache
}

func multipartBody(t *testing.T, sessionID string, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if withFile {
		fw, err := mw.CreateFormFile("file", "deal.pdf")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("%PDF-1.4 fake body"))
	}
	if sessionID != "" {
		mw.WriteField("sessionId", sessionID)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestUploadPDFRunsFullEvaluation(t *testing.T) {
	ingestor := &fakeIngestor{}
	srv, cache := newTestServer(t, ingestor)

	body, contentType := multipartBody(t, "deal-42", true)
	req := httptest.NewRequest("POST", "/upload-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if resp["sessionId"] != "deal-42" || resp["message"] == "" {
		t.Errorf("unexpected response: %v", resp)
	}
	if len(ingestor.sessions) != 1 || ingestor.sessions[0] != "deal-42" {
		t.Errorf("ingestor saw sessions %v", ingestor.sessions)
	}
	if _, ok := cache.Get("deal-42"); !ok {
		t.Error("evaluation result not cached after upload")
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}
}

func TestUploadPDFDefaultsSession(t *testing.T) {
	ingestor := &fakeIngestor{}
	srv, _ := newTestServer(t, ingestor)

	body, contentType := multipartBody(t, "", true)
	req := httptest.NewRequest("POST", "/upload-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["sessionId"] != DefaultSession {
		t.Errorf("sessionId = %q, want %q", resp["sessionId"], DefaultSession)
	}
}

func TestUploadPDFWithoutFileIs400(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngestor{})

	body, contentType := multipartBody(t, "s1", false)
	req := httptest.NewRequest("POST", "/upload-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["error"] == "" {
		t.Error("missing error payload")
	}
}

func TestUploadPDFOverLimitIs400(t *testing.T) {
	registry := prompt.NewRegistry()
	cache := pipeline.NewMemoryCache()
	orch := pipeline.NewOrchestrator(fakeRetriever{}, fakeCompleter{}, registry)
	svc := pipeline.NewService(orch, cache, pipeline.NewSynthesizer(fakeCompleter{}, registry))
	srv := New(Config{Addr: ":0", MaxUploadBytes: 16}, &fakeIngestor{}, svc, zap.NewNop())

	body, contentType := multipartBody(t, "s1", true)
	req := httptest.NewRequest("POST", "/upload-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized upload", rec.Code)
	}
}

func TestUploadPDFIngestFailureIs500(t *testing.T) {
	srv, cache := newTestServer(t, &fakeIngestor{fail: true})

	body, contentType := multipartBody(t, "s1", true)
	req := httptest.NewRequest("POST", "/upload-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if _, ok := cache.Get("s1"); ok {
		t.Error("failed ingestion must not cache a result")
	}
}

func TestAskDealAgentAnswersFromCache(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngestor{})

	// Seed the cache via a real upload.
	body, contentType := multipartBody(t, "s1", true)
	up := httptest.NewRequest("POST", "/upload-pdf", body)
	up.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, up)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload failed: %d", rec.Code)
	}

	ask := httptest.NewRequest("POST", "/ask-deal-agent",
		strings.NewReader(`{"question": "should we bid?", "sessionId": "s1"}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, ask)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody(t, rec); resp["answer"] != "Proceed with caution." {
		t.Errorf("answer = %q", resp["answer"])
	}
}

func TestAskDealAgentValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngestor{})

	cases := []struct {
		name string
		body string
	}{
		{"missing question", `{"sessionId": "s1"}`},
		{"unknown session", `{"question": "q", "sessionId": "never-seen"}`},
		{"broken json", `{"question": `},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/ask-deal-agent", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if resp := decodeBody(t, rec); resp["error"] == "" {
				t.Error("missing error payload")
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngestor{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["status"] != "ok" {
		t.Errorf("body = %v", resp)
	}
}
