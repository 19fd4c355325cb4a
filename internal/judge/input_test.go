package judge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMakeInputInline(t *testing.T) {
	got, err := MakeInput(context.Background(), Spec{Input: "3 4"}, t.TempDir())
	if err != nil {
		t.Fatalf("MakeInput: %v", err)
	}
	if got != "3 4" {
		t.Errorf("got %q, want %q", got, "3 4")
	}
}

func TestMakeInputFetchesURLAndChecksAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("fetched input\n"))
	}))
	defer srv.Close()

	got, err := MakeInput(context.Background(), Spec{InputURL: srv.URL, InputAuth: "secret-token"}, t.TempDir())
	if err != nil {
		t.Fatalf("MakeInput: %v", err)
	}
	if got != "fetched input\n" {
		t.Errorf("got %q", got)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
}

func TestMakeInputNoSource(t *testing.T) {
	if _, err := MakeInput(context.Background(), Spec{}, t.TempDir()); err == nil {
		t.Errorf("expected error for spec with neither input nor input_url")
	}
}
