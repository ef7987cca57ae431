package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leadstack/leadsync/internal/model"
)

func testClient(serverURL string) *Client {
	return NewClient(serverURL, "test-token",
		WithRetries(2, 10*time.Millisecond),
	)
}

func TestClient_GetLead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leads/ld-1" {
			t.Errorf("path = %q, want /leads/ld-1", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewEncoder(w).Encode(SingleLeadResponse{
			Lead: APILead{ID: "ld-1", CompanyName: "Acme", Stage: "qualified", Score: 72},
		})
	}))
	defer server.Close()

	lead, err := testClient(server.URL).GetLead(context.Background(), "ld-1")
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if lead.ID != "ld-1" || lead.CompanyName != "Acme" || lead.Score != 72 {
		t.Errorf("unexpected lead: %+v", lead)
	}
}

func TestClient_GetAllLeads_Pagination(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		cursor := r.URL.Query().Get("cursor")

		switch n {
		case 1:
			if cursor != "" {
				t.Errorf("first page cursor = %q, want empty", cursor)
			}
			json.NewEncoder(w).Encode(LeadsResponse{
				Leads:  []APILead{{ID: "ld-1"}, {ID: "ld-2"}},
				Cursor: "page2",
			})
		case 2:
			if cursor != "page2" {
				t.Errorf("second page cursor = %q, want page2", cursor)
			}
			json.NewEncoder(w).Encode(LeadsResponse{
				Leads: []APILead{{ID: "ld-3"}},
			})
		default:
			t.Error("unexpected extra page fetch")
		}
	}))
	defer server.Close()

	leads, err := testClient(server.URL).GetAllLeads(context.Background())
	if err != nil {
		t.Fatalf("GetAllLeads failed: %v", err)
	}
	if len(leads) != 3 {
		t.Fatalf("got %d leads, want 3", len(leads))
	}
	if leads[2].ID != "ld-3" {
		t.Errorf("leads[2].ID = %q, want ld-3", leads[2].ID)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(AgentsResponse{Agents: []APIAgent{{ID: "ag-1"}}})
	}))
	defer server.Close()

	agents, err := testClient(server.URL).GetAgents(context.Background())
	if err != nil {
		t.Fatalf("GetAgents failed: %v", err)
	}
	if len(agents) != 1 {
		t.Errorf("got %d agents, want 1", len(agents))
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such lead", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetLead(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("404 was retried: %d calls", calls.Load())
	}
}

func TestClient_MutationsNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateLead(context.Background(), CreateLeadRequest{
		ClientRef:   "ref-1",
		CompanyName: "Acme",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("mutation was retried: %d calls", calls.Load())
	}
}

func TestClient_CreateLead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/leads" {
			t.Errorf("%s %s, want POST /leads", r.Method, r.URL.Path)
		}
		var req CreateLeadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if req.ClientRef != "ref-42" {
			t.Errorf("ClientRef = %q, want ref-42", req.ClientRef)
		}
		json.NewEncoder(w).Encode(SingleLeadResponse{
			Lead: APILead{ID: "ld-9", ClientRef: req.ClientRef, CompanyName: req.CompanyName, Stage: "new"},
		})
	}))
	defer server.Close()

	lead, err := testClient(server.URL).CreateLead(context.Background(), CreateLeadRequest{
		ClientRef:   "ref-42",
		CompanyName: "Initech",
	})
	if err != nil {
		t.Fatalf("CreateLead failed: %v", err)
	}
	if lead.ID != "ld-9" || lead.ClientRef != "ref-42" {
		t.Errorf("unexpected lead: %+v", lead)
	}
}

func TestClient_UpdateLead_PatchBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		var got map[string]any
		json.NewDecoder(r.Body).Decode(&got)

		// Only the fields the patch names appear in the body
		if _, ok := got["stage"]; !ok {
			t.Error("patch body missing stage")
		}
		if _, ok := got["company_name"]; ok {
			t.Error("patch body carries unset field company_name")
		}

		json.NewEncoder(w).Encode(SingleLeadResponse{
			Lead: APILead{ID: "ld-1", Stage: "won"},
		})
	}))
	defer server.Close()

	stage := "won"
	lead, err := testClient(server.URL).UpdateLead(context.Background(), "ld-1", model.LeadPatch{Stage: &stage})
	if err != nil {
		t.Fatalf("UpdateLead failed: %v", err)
	}
	if lead.Stage != "won" {
		t.Errorf("Stage = %q, want won", lead.Stage)
	}
}

func TestClient_DeleteLead(t *testing.T) {
	var deleted atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/leads/ld-1" {
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	if err := testClient(server.URL).DeleteLead(context.Background(), "ld-1"); err != nil {
		t.Fatalf("DeleteLead failed: %v", err)
	}
	if !deleted.Load() {
		t.Error("server never saw the delete")
	}
}

func TestClient_GetQuotas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(QuotasResponse{Quotas: []APIQuota{
			{ID: "enrichment", Used: 40, Limit: 100},
		}})
	}))
	defer server.Close()

	quotas, err := testClient(server.URL).GetQuotas(context.Background())
	if err != nil {
		t.Fatalf("GetQuotas failed: %v", err)
	}
	if len(quotas) != 1 || quotas[0].ID != "enrichment" {
		t.Errorf("unexpected quotas: %+v", quotas)
	}

	q := quotas[0].ToModel()
	if q.Remaining() != 60 {
		t.Errorf("Remaining = %d, want 60", q.Remaining())
	}
}

func TestAPIError_Classification(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		auth      bool
	}{
		{http.StatusInternalServerError, true, false},
		{http.StatusBadGateway, true, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusForbidden, false, true},
		{http.StatusNotFound, false, false},
		{http.StatusBadRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.code), func(t *testing.T) {
			e := &APIError{StatusCode: tt.code}
			if e.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", e.IsRetryable(), tt.retryable)
			}
			if e.IsAuth() != tt.auth {
				t.Errorf("IsAuth = %v, want %v", e.IsAuth(), tt.auth)
			}
		})
	}
}
