package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dariak/consentshare/internal/aggregate"
	"github.com/dariak/consentshare/internal/catalog"
	"github.com/dariak/consentshare/internal/consent"
	"github.com/dariak/consentshare/internal/coordinator"
	"github.com/dariak/consentshare/internal/domain"
	"github.com/dariak/consentshare/internal/records"
)

var testParties = []string{"FinTech Insights", "Market Research Co"}

func newTestHandler(t *testing.T, store records.Store) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scopes := domain.KnownDataTypes()

	registry := consent.NewRegistry(store, scopes)
	cat := catalog.New(registry, testParties)
	registry.SetObserver(coordinator.New(store, aggregate.NewEngine(), cat, logger))

	api := NewAPIHandlers(logger, registry, cat, store, scopes)
	return NewRouter(logger, RouterDependencies{
		Health: RecordsHealthService{Store: probeStore(store)},
		API:    api,
	})
}

func probeStore(store records.Store) StoreProber {
	if prober, ok := store.(StoreProber); ok {
		return prober
	}
	return nil
}

func seededStore(t *testing.T) *records.MemoryStore {
	t.Helper()

	store := records.NewMemoryStore()
	ctx := context.Background()
	individual := domain.Individual{
		ID:           "IND-1",
		FullName:     "Jane Doe",
		AgeGroup:     "25-35",
		City:         "Seattle",
		TotalBalance: decimal.NewFromInt(150000),
	}
	if err := store.UpsertIndividual(ctx, individual); err != nil {
		t.Fatalf("seed individual: %v", err)
	}
	txs := []domain.Transaction{
		{ID: "TX-1", Amount: decimal.NewFromInt(2500), Category: "Dining", Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		{ID: "TX-2", Amount: decimal.NewFromInt(500), Category: "Dining", Timestamp: time.Date(2024, 1, 15, 19, 0, 0, 0, time.UTC)},
		{ID: "TX-3", Amount: decimal.NewFromInt(1000), Category: "Transport", Timestamp: time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)},
	}
	for _, tx := range txs {
		if err := store.UpsertTransaction(ctx, "IND-1", tx); err != nil {
			t.Fatalf("seed transaction %s: %v", tx.ID, err)
		}
	}
	return store
}

func postConsent(t *testing.T, handler http.Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/consents", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestSubmitConsentAndFetchAggregates(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	rec := postConsent(t, handler, map[string]any{
		"individualId": "IND-1",
		"partyId":      "FinTech Insights",
		"scopes":       []string{"category_spending", "average_bill"},
		"active":       true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	submitted := decodeBody[consentResponse](t, rec)
	if !submitted.Active || len(submitted.Scopes) != 2 {
		t.Errorf("unexpected consent response: %+v", submitted)
	}
	if submitted.Status != "" {
		t.Errorf("expected no status annotation on a clean submit, got %q", submitted.Status)
	}

	rec = get(t, handler, "/aggregates/FinTech%20Insights")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	aggregates := decodeBody[aggregatesResponse](t, rec)
	if aggregates.TotalDatasets != 2 {
		t.Fatalf("expected 2 datasets, got %d", aggregates.TotalDatasets)
	}
	for _, summary := range aggregates.Data {
		if summary.SampleSize != 1 {
			t.Errorf("expected sample size 1, got %d", summary.SampleSize)
		}
	}

	// The de-identified payload must never carry the individual's key.
	if bytes.Contains(rec.Body.Bytes(), []byte("IND-1")) {
		t.Errorf("aggregate payload leaked the individual ID: %s", rec.Body.String())
	}
}

func TestRevocationHidesAggregates(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	rec := postConsent(t, handler, map[string]any{
		"individualId": "IND-1",
		"partyId":      "FinTech Insights",
		"scopes":       []string{"category_spending"},
		"active":       true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("grant: expected 200, got %d", rec.Code)
	}

	rec = postConsent(t, handler, map[string]any{
		"individualId": "IND-1",
		"partyId":      "FinTech Insights",
		"scopes":       []string{},
		"active":       false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = get(t, handler, "/aggregates/FinTech%20Insights")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	aggregates := decodeBody[aggregatesResponse](t, rec)
	if aggregates.TotalDatasets != 0 {
		t.Fatalf("expected no datasets after revocation, got %d", aggregates.TotalDatasets)
	}
}

func TestSubmitConsentValidation(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "unknown scope",
			body: map[string]any{
				"individualId": "IND-1",
				"partyId":      "FinTech Insights",
				"scopes":       []string{"shoe_size"},
				"active":       true,
			},
			want: http.StatusBadRequest,
		},
		{
			name: "active without scopes",
			body: map[string]any{
				"individualId": "IND-1",
				"partyId":      "FinTech Insights",
				"scopes":       []string{},
				"active":       true,
			},
			want: http.StatusBadRequest,
		},
		{
			name: "missing party",
			body: map[string]any{
				"individualId": "IND-1",
				"scopes":       []string{"category_spending"},
				"active":       true,
			},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown party",
			body: map[string]any{
				"individualId": "IND-1",
				"partyId":      "Nobody Inc",
				"scopes":       []string{"category_spending"},
				"active":       true,
			},
			want: http.StatusNotFound,
		},
		{
			name: "unknown individual",
			body: map[string]any{
				"individualId": "IND-404",
				"partyId":      "FinTech Insights",
				"scopes":       []string{"category_spending"},
				"active":       true,
			},
			want: http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postConsent(t, handler, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

type brokenStore struct {
	*records.MemoryStore
}

func (s *brokenStore) GetTransactions(context.Context, string) ([]domain.Transaction, error) {
	return nil, context.DeadlineExceeded
}

func TestSubmitConsentAggregationDeferredReturns202(t *testing.T) {
	store := &brokenStore{MemoryStore: seededStore(t)}
	handler := newTestHandler(t, store)

	rec := postConsent(t, handler, map[string]any{
		"individualId": "IND-1",
		"partyId":      "FinTech Insights",
		"scopes":       []string{"category_spending"},
		"active":       true,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	response := decodeBody[consentResponse](t, rec)
	if response.Status != "aggregation_deferred" {
		t.Errorf("expected aggregation_deferred status, got %q", response.Status)
	}
	if !response.Active {
		t.Errorf("deferred submission must still store the consent record")
	}
}

func TestGetConsent(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	postConsent(t, handler, map[string]any{
		"individualId": "IND-1",
		"partyId":      "FinTech Insights",
		"scopes":       []string{"category_spending"},
		"active":       true,
	})

	rec := get(t, handler, "/consents?individualId=IND-1&partyId=FinTech%20Insights")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	record := decodeBody[consentResponse](t, rec)
	if record.PartyID != "FinTech Insights" {
		t.Errorf("unexpected record: %+v", record)
	}

	rec = get(t, handler, "/consents?individualId=IND-1&partyId=Market%20Research%20Co")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing record, got %d", rec.Code)
	}
}

func TestIndividualEndpoints(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	rec := get(t, handler, "/individuals")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ids := decodeBody[[]string](t, rec)
	if len(ids) != 1 || ids[0] != "IND-1" {
		t.Errorf("unexpected individual list: %v", ids)
	}

	rec = get(t, handler, "/individuals/IND-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	profile := decodeBody[individualResponse](t, rec)
	if profile.FullName != "Jane Doe" || profile.TransactionCount != 3 {
		t.Errorf("unexpected profile: %+v", profile)
	}

	rec = get(t, handler, "/individuals/IND-404")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestIndividualConsentsAndAuditEndpoints(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	postConsent(t, handler, map[string]any{
		"individualId": "IND-1",
		"partyId":      "FinTech Insights",
		"scopes":       []string{"category_spending"},
		"active":       true,
	})
	postConsent(t, handler, map[string]any{
		"individualId": "IND-1",
		"partyId":      "FinTech Insights",
		"scopes":       []string{},
		"active":       false,
	})

	rec := get(t, handler, "/individuals/IND-1/consents")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	consents := decodeBody[[]consentResponse](t, rec)
	if len(consents) != 1 || consents[0].Active {
		t.Errorf("expected single inactive record, got %+v", consents)
	}

	rec = get(t, handler, "/individuals/IND-1/audit")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	trail := decodeBody[[]auditEntryResponse](t, rec)
	if len(trail) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(trail))
	}
	if trail[0].Transition != consent.TransitionGranted || trail[1].Transition != consent.TransitionRevoked {
		t.Errorf("unexpected transitions: %s, %s", trail[0].Transition, trail[1].Transition)
	}
}

func TestEnumerationEndpoints(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	rec := get(t, handler, "/parties")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	parties := decodeBody[[]string](t, rec)
	if len(parties) != len(testParties) {
		t.Errorf("unexpected parties: %v", parties)
	}

	rec = get(t, handler, "/data-types")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	types := decodeBody[[]string](t, rec)
	if len(types) != len(domain.KnownDataTypes()) {
		t.Errorf("unexpected data types: %v", types)
	}
}

func TestAggregatesUnknownParty(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	rec := get(t, handler, "/aggregates/Nobody%20Inc")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	rec := get(t, handler, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decodeBody[map[string]any](t, rec)
	if payload["status"] != "ok" {
		t.Errorf("unexpected health payload: %v", payload)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, seededStore(t))

	req := httptest.NewRequest(http.MethodDelete, "/consents", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow == "" {
		t.Errorf("expected Allow header")
	}
}
