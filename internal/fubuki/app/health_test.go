package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticUserCounter int

func (c staticUserCounter) CountUsers(ctx context.Context) (int, error) {
	return int(c), nil
}

func TestHealthEndpoint(t *testing.T) {
	hs := NewHealthServer(":0", staticUserCounter(0), 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	hs.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestStatusEndpoint(t *testing.T) {
	hs := NewHealthServer(":0", staticUserCounter(7), 3)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	hs.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserCount != 7 {
		t.Errorf("UserCount = %d, want 7", resp.UserCount)
	}
	if resp.CatalogEntries != 3 {
		t.Errorf("CatalogEntries = %d, want 3", resp.CatalogEntries)
	}
}

func TestUnknownPath(t *testing.T) {
	hs := NewHealthServer(":0", nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	hs.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
