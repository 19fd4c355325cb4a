package gateway_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wasm-oj/wark/internal/gateway"
)

func newTestServer(t *testing.T) *gateway.Server {
	t.Helper()
	srv, err := gateway.New(gateway.Config{
		AppSecret:        "s3cret",
		CORSOrigins:      []string{"*"},
		MaxCost:          1000,
		MaxMemoryMB:      64,
		JudgeMaxCost:     1_000_000_000,
		JudgeMaxMemoryMB: 2048,
		CacheDir:         t.TempDir(),
	})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	return srv
}

func TestHandleIndex(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "I am WARK." {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHandleInfo(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"version", "commit", "built_at", "os"} {
		if _, ok := body[field]; !ok {
			t.Errorf("missing field %q in %v", field, body)
		}
	}
}

func TestHandleValidate(t *testing.T) {
	srv := newTestServer(t)

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/validate", nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("correct token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/validate", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]bool
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !body["valid"] {
			t.Errorf("expected valid=true, got %v", body)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/validate", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", w.Code)
		}
	})
}

func TestHandleRunRejectsUnauthenticated(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHandleRunRejectsOverCeilings(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"cost too high", `{"wasm":"","input":"","cost":5000,"memory":10}`, "invalid cost limit"},
		{"memory too high", `{"wasm":"","input":"","cost":10,"memory":5000}`, "invalid memory limit"},
		{"bad base64", `{"wasm":"not-base64!!","input":"","cost":10,"memory":10}`, "invalid wasm"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewReader([]byte(c.body)))
			req.Header.Set("Authorization", "Bearer s3cret")
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["success"] != false {
				t.Errorf("expected success=false, got %v", body)
			}
			if body["message"] != c.want {
				t.Errorf("message = %v, want %q", body["message"], c.want)
			}
		})
	}
}

func TestHandleJudgeRejectsSchemaViolation(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/judge", bytes.NewReader([]byte(`{"wasm":"Zm9v"}`)))
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandleJudgeRejectsBadBase64(t *testing.T) {
	srv := newTestServer(t)

	body := `{"wasm":"not-base64!!","specs":[{"output_hash":"abc","cost":1,"memory":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/judge", bytes.NewReader([]byte(body)))
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var results struct {
		Results []struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results.Results) != 1 || results.Results[0].Success {
		t.Fatalf("results = %+v", results)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/run", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestVersionHeaders(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Powered-By") == "" {
		t.Error("expected X-Powered-By header")
	}
	if w.Header().Get("X-Version") == "" {
		t.Error("expected X-Version header")
	}
}
