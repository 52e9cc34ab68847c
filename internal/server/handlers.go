package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dariak/consentshare/internal/catalog"
	"github.com/dariak/consentshare/internal/consent"
	"github.com/dariak/consentshare/internal/coordinator"
	"github.com/dariak/consentshare/internal/domain"
	"github.com/dariak/consentshare/internal/records"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger   *slog.Logger
	registry *consent.Registry
	catalog  *catalog.Catalog
	store    records.Store
	scopes   []domain.DataType
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, registry *consent.Registry, cat *catalog.Catalog, store records.Store, scopes []domain.DataType) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		registry: registry,
		catalog:  cat,
		store:    store,
		scopes:   scopes,
	}
}

func (h *APIHandlers) handleConsents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.submitConsent(w, r)
	case http.MethodGet:
		h.getConsent(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) submitConsent(w http.ResponseWriter, r *http.Request) {
	var payload consentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.IndividualID == "" || payload.PartyID == "" {
		writeError(w, http.StatusBadRequest, "individualId and partyId are required")
		return
	}
	if !h.catalog.KnownParty(payload.PartyID) {
		writeError(w, http.StatusNotFound, "unknown party")
		return
	}

	record, err := h.registry.Submit(r.Context(), consent.SubmitInput{
		IndividualID: payload.IndividualID,
		PartyID:      payload.PartyID,
		Scopes:       payload.Scopes,
		Active:       payload.Active,
	})
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, toConsentResponse(record, ""))
	case errors.Is(err, coordinator.ErrAggregationDeferred):
		// The consent record is stored; only the aggregation needs a retry.
		respondJSON(w, http.StatusAccepted, toConsentResponse(record, "aggregation_deferred"))
	case errors.Is(err, records.ErrIndividualNotFound):
		writeError(w, http.StatusNotFound, "individual not found")
	case errors.Is(err, consent.ErrInvalidScope):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("consent submission failed", "error", err,
			"individualId", payload.IndividualID, "partyId", payload.PartyID)
		writeError(w, http.StatusInternalServerError, "failed to process consent")
	}
}

func (h *APIHandlers) getConsent(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	individualID := query.Get("individualId")
	partyID := query.Get("partyId")
	if individualID == "" || partyID == "" {
		writeError(w, http.StatusBadRequest, "individualId and partyId are required")
		return
	}

	record, err := h.registry.Get(individualID, partyID)
	if err != nil {
		writeError(w, http.StatusNotFound, "consent record not found")
		return
	}
	respondJSON(w, http.StatusOK, toConsentResponse(record, ""))
}

func (h *APIHandlers) handleIndividuals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/individuals"), "/")
	switch {
	case rest == "":
		h.listIndividuals(w, r)
	case strings.HasSuffix(rest, "/consents"):
		h.listConsents(w, r, strings.TrimSuffix(rest, "/consents"))
	case strings.HasSuffix(rest, "/audit"):
		h.auditTrail(w, strings.TrimSuffix(rest, "/audit"))
	case !strings.Contains(rest, "/"):
		h.getIndividual(w, r, rest)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *APIHandlers) listIndividuals(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.ListIndividualIDs(r.Context())
	if err != nil {
		h.logger.Error("failed to list individuals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list individuals")
		return
	}
	respondJSON(w, http.StatusOK, ids)
}

func (h *APIHandlers) getIndividual(w http.ResponseWriter, r *http.Request, individualID string) {
	individualID = strings.Trim(individualID, "/")
	if individualID == "" {
		writeError(w, http.StatusBadRequest, "individual ID is required")
		return
	}

	individual, err := h.store.GetIndividual(r.Context(), individualID)
	if err != nil {
		if errors.Is(err, records.ErrIndividualNotFound) {
			writeError(w, http.StatusNotFound, "individual not found")
			return
		}
		h.logger.Error("failed to load individual", "error", err, "individualId", individualID)
		writeError(w, http.StatusInternalServerError, "failed to load individual")
		return
	}

	txs, err := h.store.GetTransactions(r.Context(), individualID)
	if err != nil {
		h.logger.Error("failed to load transactions", "error", err, "individualId", individualID)
		writeError(w, http.StatusInternalServerError, "failed to load individual")
		return
	}

	respondJSON(w, http.StatusOK, individualResponse{
		IndividualID:     individual.ID,
		FullName:         individual.FullName,
		AgeGroup:         individual.AgeGroup,
		City:             individual.City,
		TotalBalance:     individual.TotalBalance.String(),
		TransactionCount: len(txs),
	})
}

func (h *APIHandlers) listConsents(w http.ResponseWriter, r *http.Request, individualID string) {
	individualID = strings.Trim(individualID, "/")
	if individualID == "" {
		writeError(w, http.StatusBadRequest, "individual ID is required")
		return
	}

	consents := h.registry.ListForIndividual(individualID)
	response := make([]consentResponse, 0, len(consents))
	for _, record := range consents {
		response = append(response, toConsentResponse(record, ""))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) auditTrail(w http.ResponseWriter, individualID string) {
	individualID = strings.Trim(individualID, "/")
	if individualID == "" {
		writeError(w, http.StatusBadRequest, "individual ID is required")
		return
	}

	entries := h.registry.AuditTrail(individualID)
	response := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, auditEntryResponse{
			ID:           entry.ID,
			IndividualID: entry.IndividualID,
			PartyID:      entry.PartyID,
			Scopes:       scopesToStrings(entry.Scopes),
			Active:       entry.Active,
			Transition:   entry.Transition,
			At:           formatTime(entry.At),
		})
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) handleAggregates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	partyID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/aggregates/"), "/")
	if partyID == "" {
		writeError(w, http.StatusBadRequest, "party ID is required")
		return
	}

	summaries, err := h.catalog.FetchForParty(partyID)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownParty) {
			writeError(w, http.StatusNotFound, "unknown party")
			return
		}
		h.logger.Error("failed to fetch aggregates", "error", err, "partyId", partyID)
		writeError(w, http.StatusInternalServerError, "failed to fetch aggregates")
		return
	}

	// The summaries are keyed internally by individual, but never expose
	// that key to the party: the payload carries statistics only.
	data := make([]summaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		data = append(data, summaryResponse{
			DataType:    string(summary.DataType),
			Metrics:     summary.Metrics,
			SampleSize:  summary.SampleSize,
			GeneratedAt: formatTime(summary.GeneratedAt),
		})
	}
	respondJSON(w, http.StatusOK, aggregatesResponse{
		Party:         partyID,
		TotalDatasets: len(data),
		Data:          data,
	})
}

func (h *APIHandlers) handleParties(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, h.catalog.Parties())
}

func (h *APIHandlers) handleDataTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, scopesToStrings(h.scopes))
}

type consentRequest struct {
	IndividualID string   `json:"individualId"`
	PartyID      string   `json:"partyId"`
	Scopes       []string `json:"scopes"`
	Active       bool     `json:"active"`
}

type consentResponse struct {
	IndividualID string   `json:"individualId"`
	PartyID      string   `json:"partyId"`
	Scopes       []string `json:"scopes"`
	Active       bool     `json:"active"`
	LastUpdated  string   `json:"lastUpdated"`
	Status       string   `json:"status,omitempty"`
}

type individualResponse struct {
	IndividualID     string `json:"individualId"`
	FullName         string `json:"fullName"`
	AgeGroup         string `json:"ageGroup"`
	City             string `json:"city"`
	TotalBalance     string `json:"totalBalance"`
	TransactionCount int    `json:"transactionCount"`
}

type auditEntryResponse struct {
	ID           string   `json:"id"`
	IndividualID string   `json:"individualId"`
	PartyID      string   `json:"partyId"`
	Scopes       []string `json:"scopes"`
	Active       bool     `json:"active"`
	Transition   string   `json:"transition"`
	At           string   `json:"at"`
}

type summaryResponse struct {
	DataType    string         `json:"dataType"`
	Metrics     domain.Metrics `json:"metrics"`
	SampleSize  int            `json:"sampleSize"`
	GeneratedAt string         `json:"generatedAt"`
}

type aggregatesResponse struct {
	Party         string            `json:"party"`
	TotalDatasets int               `json:"totalDatasets"`
	Data          []summaryResponse `json:"data"`
}

func toConsentResponse(record domain.ConsentRecord, status string) consentResponse {
	return consentResponse{
		IndividualID: record.IndividualID,
		PartyID:      record.PartyID,
		Scopes:       scopesToStrings(record.Scopes),
		Active:       record.Active,
		LastUpdated:  formatTime(record.LastUpdated),
		Status:       status,
	}
}

func scopesToStrings(scopes []domain.DataType) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, string(s))
	}
	return out
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
