package msa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestExecute_BodyReturnedOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"authorization_pending"}`))
	}))
	defer server.Close()

	exec, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	resp, err := exec.Execute(context.Background(), http.MethodPost, server.URL, "x=1", formHeaders)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Status != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Status)
	}
	if resp.Body != `{"error":"authorization_pending"}` {
		t.Errorf("Expected error body to be readable, got %q", resp.Body)
	}
}

func TestExecute_RetriesServerError(t *testing.T) {
	attempts := atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	exec, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	resp, err := exec.Execute(context.Background(), http.MethodGet, server.URL, "", nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Status != http.StatusOK || resp.Body != "ok" {
		t.Errorf("Expected retried request to succeed, got %d %q", resp.Status, resp.Body)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestExecute_HeadersAndBodySent(t *testing.T) {
	var gotContentType string
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	exec, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	_, err = exec.Execute(
		context.Background(), http.MethodPost, server.URL, `{"a":1}`, jsonHeaders,
	)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", gotContentType)
	}
	if gotBody != `{"a":1}` {
		t.Errorf("Expected body to be forwarded, got %q", gotBody)
	}
}

func TestExecute_InvalidMethod(t *testing.T) {
	exec, err := NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	_, err = exec.Execute(context.Background(), "BAD METHOD", "http://example.com", "", nil)
	if err == nil {
		t.Error("Expected error for invalid method, got nil")
	}
}
