// Package api exposes the service's HTTP handlers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/marcnester/glycofy-api/internal/auth"
	"github.com/marcnester/glycofy-api/internal/domain"
	"github.com/marcnester/glycofy-api/internal/persistence"
	"github.com/marcnester/glycofy-api/internal/strava"
)

// Provider is the single remote source this deployment syncs from.
const Provider = "strava"

type syncRunner interface {
	RunOnce(ctx context.Context, account *domain.LinkedAccount, since *time.Time) domain.SyncResult
}

// Handler coordinates HTTP requests with the sync engine and storage.
type Handler struct {
	accounts   domain.AccountRepository
	activities domain.ActivityRepository
	client     *strava.Client
	syncer     syncRunner
}

// NewHandler builds a Handler.
func NewHandler(accounts domain.AccountRepository, activities domain.ActivityRepository, client *strava.Client, syncer syncRunner) *Handler {
	return &Handler{accounts: accounts, activities: activities, client: client, syncer: syncer}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.listActivities)
	mux.HandleFunc("/v1/sync/run", h.runSync)
	mux.HandleFunc("/v1/strava/authorize", h.authorizeURL)
	mux.HandleFunc("/v1/strava/callback", h.oauthCallback)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.activities.ListByUser(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}

	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSyncRun) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sync:run required")
		return
	}

	account, err := h.accounts.FindByUser(r.Context(), claims.Subject, Provider)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if account == nil || !account.Linked {
		writeJSON(w, http.StatusOK, SyncRunResponse{Linked: false, Provider: Provider})
		return
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "since must be YYYY-MM-DD")
			return
		}
		since = &parsed
	}

	result := h.syncer.RunOnce(r.Context(), account, since)

	resp := SyncRunResponse{
		Linked:   true,
		Provider: Provider,
		Created:  result.Created,
		Updated:  result.Updated,
		Skipped:  result.Skipped,
		Pages:    result.Pages,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) authorizeURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !h.client.Configured() {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "strava credentials not configured")
		return
	}

	// State round-trips the user id through the provider redirect.
	writeJSON(w, http.StatusOK, AuthorizeURLResponse{
		URL: h.client.AuthorizeURL(claims.Subject, r.URL.Query().Get("scope")),
	})
}

func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	code := r.URL.Query().Get("code")
	userID := r.URL.Query().Get("state")
	if code == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing code or state")
		return
	}

	token, err := h.client.ExchangeCode(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, "exchange_failed", err.Error())
		return
	}

	account, err := h.accounts.Link(r.Context(), domain.LinkedAccount{
		UserID:       userID,
		Provider:     Provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		AthleteID:    token.Athlete.ID.String(),
		Scope:        r.URL.Query().Get("scope"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LinkAccountResponse{
		Linked:    true,
		Provider:  Provider,
		AthleteID: account.AthleteID,
	})
}

// ActivityView is the wire representation of a canonical activity.
type ActivityView struct {
	ActivityID  string    `json:"activity_id"`
	Provider    string    `json:"provider"`
	ExternalID  string    `json:"external_id"`
	Sport       string    `json:"sport"`
	Title       string    `json:"title"`
	StartedAt   time.Time `json:"started_at"`
	DurationSec int       `json:"duration_sec"`
	DistanceM   int       `json:"distance_m,omitempty"`
	Kcal        int       `json:"kcal,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:  a.ID,
		Provider:    a.Provider,
		ExternalID:  a.ExternalID,
		Sport:       a.Sport,
		Title:       a.Title,
		StartedAt:   a.StartedAt,
		DurationSec: a.DurationSec,
		DistanceM:   a.DistanceM,
		Kcal:        a.Kcal,
		UpdatedAt:   a.UpdatedAt,
	}
}

// ListActivitiesResponse is the payload for GET /v1/activities.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// SyncRunResponse is the payload for POST /v1/sync/run.
type SyncRunResponse struct {
	Linked   bool   `json:"linked"`
	Provider string `json:"provider"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	Pages    int    `json:"pages"`
	Error    string `json:"error,omitempty"`
}

// AuthorizeURLResponse is the payload for GET /v1/strava/authorize.
type AuthorizeURLResponse struct {
	URL string `json:"url"`
}

// LinkAccountResponse is the payload for GET /v1/strava/callback.
type LinkAccountResponse struct {
	Linked    bool   `json:"linked"`
	Provider  string `json:"provider"`
	AthleteID string `json:"athlete_id,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
