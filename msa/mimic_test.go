package msa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestMimic_ByName(t *testing.T) {
	lookups := atomic.Int32{}

	mux := http.NewServeMux()
	mux.HandleFunc("/lookup/Alice", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{
			"name": "Alice",
			"id":   "11111111222233334444555555555555",
		})
	})
	mux.HandleFunc("/session/11111111222233334444555555555555", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("unsigned") != "false" {
			t.Errorf("Expected unsigned=false, got query %q", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name": "Alice",
			"id":   "11111111222233334444555555555555",
			"properties": []map[string]string{
				{"name": "textures", "value": "abc", "signature": "sig"},
			},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	exec, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	profile, err := Mimic(context.Background(), exec, testEndpoints(server.URL), zap.NewNop(), "Alice")
	if err != nil {
		t.Fatalf("Mimic() error = %v", err)
	}
	if profile.Name != "Alice" {
		t.Errorf("Expected name 'Alice', got %q", profile.Name)
	}
	if got := profile.UUID.String(); got != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("Expected dashed UUID, got %s", got)
	}
	if profile.Token != "" {
		t.Errorf("Expected no token when mimicking, got %q", profile.Token)
	}
	if profile.Properties == "" {
		t.Error("Expected raw profile properties to be carried")
	}
	if lookups.Load() != 1 {
		t.Errorf("Expected 1 name lookup, got %d", lookups.Load())
	}
}

func TestMimic_ByUUID(t *testing.T) {
	lookups := atomic.Int32{}

	mux := http.NewServeMux()
	mux.HandleFunc("/lookup/", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]string{})
	})
	mux.HandleFunc("/session/11111111222233334444555555555555", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name": "Alice",
			"id":   "11111111222233334444555555555555",
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	exec, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	// Both dashed and undashed ids skip the name lookup.
	for _, player := range []string{
		"11111111-2222-3333-4444-555555555555",
		"11111111222233334444555555555555",
	} {
		profile, err := Mimic(context.Background(), exec, testEndpoints(server.URL), zap.NewNop(), player)
		if err != nil {
			t.Fatalf("Mimic(%q) error = %v", player, err)
		}
		if profile.Name != "Alice" {
			t.Errorf("Expected name 'Alice', got %q", profile.Name)
		}
	}
	if lookups.Load() != 0 {
		t.Errorf("Expected no name lookups for UUID input, got %d", lookups.Load())
	}
}

func TestMimic_UnknownPlayer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lookup/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	exec, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	if _, err := Mimic(context.Background(), exec, testEndpoints(server.URL), zap.NewNop(), "NoSuchPlayer"); err == nil {
		t.Error("Expected error for unknown player")
	}
}
