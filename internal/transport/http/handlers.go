package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"trip-monitor/internal/auth"
	"trip-monitor/internal/domain"
	"trip-monitor/internal/geo"
	"trip-monitor/internal/monitor"
	"trip-monitor/internal/store"
)

// TrackingStore is the slice of the Redis store the HTTP API uses.
type TrackingStore interface {
	AppendPing(ctx context.Context, p *domain.Ping) error
	LatestPing(ctx context.Context, tripID int64) (*domain.Ping, error)
	RecentPings(ctx context.Context, tripID int64, limit int64) ([]*domain.Ping, error)
	SaveRoster(ctx context.Context, entry store.RosterEntry) error
	Monitoring(ctx context.Context, companyIDs []int64) (map[string]monitor.RouteMonitoring, error)
}

// LiveFeed upgrades a request to a live monitoring stream scoped to the
// given companies.
type LiveFeed interface {
	Subscribe(w http.ResponseWriter, r *http.Request, companyIDs []int64)
}

type Handler struct {
	tracking TrackingStore
	mw       *AuthMiddleware
	apiURL   string
	client   *http.Client
	onPing   func()
	live     LiveFeed
	webhook  http.Handler
}

// NewHandler wires the API surface. onPing may be nil; apiURL empty disables
// roster forwarding to the upstream trip API.
func NewHandler(tracking TrackingStore, authSvc *auth.Service, apiURL string, onPing func()) *Handler {
	return &Handler{
		tracking: tracking,
		mw:       NewAuthMiddleware(authSvc),
		apiURL:   apiURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		onPing:   onPing,
	}
}

// WithLiveFeed enables the live monitoring WebSocket endpoint.
func (h *Handler) WithLiveFeed(feed LiveFeed) *Handler {
	h.live = feed
	return h
}

// WithTelegramWebhook enables the Telegram webhook endpoint.
func (h *Handler) WithTelegramWebhook(webhook http.Handler) *Handler {
	h.webhook = webhook
	return h
}

// Routes registers all API routes on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.Handle("POST /trips/{tripId}/pings", h.mw.WrapDriver(http.HandlerFunc(h.handlePostPing)))
	mux.HandleFunc("GET /trips/{tripId}/pings/latest", h.handleLatestPing)
	mux.HandleFunc("GET /trips/{tripId}/pings", h.handlePingHistory)
	mux.Handle("PUT /trips/{tripId}/roster", http.HandlerFunc(h.handleRoster))
	mux.Handle("GET /monitoring/status", h.mw.WrapOperator(http.HandlerFunc(h.handleStatus)))
	if h.live != nil {
		mux.Handle("GET /monitoring/live", h.mw.WrapOperator(http.HandlerFunc(h.handleLive)))
	}
	if h.webhook != nil {
		mux.Handle("POST /telegram/webhook", h.webhook)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type pingRequest struct {
	VehicleID int64   `json:"vehicleId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) handlePostPing(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trip id")
		return
	}
	var req pingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	claims := driverFromContext(r.Context())

	ping := &domain.Ping{
		TripID:    tripID,
		DriverID:  claims.DriverID,
		VehicleID: req.VehicleID,
		Time:      time.Now(),
		Location:  geo.EncodeLocation(req.Latitude, req.Longitude),
	}
	if err := h.tracking.AppendPing(r.Context(), ping); err != nil {
		logrus.WithError(err).WithField("tripId", tripID).Error("ping write failed")
		writeError(w, http.StatusBadGateway, "failed to record ping")
		return
	}
	if h.onPing != nil {
		h.onPing()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"item": ping})
}

func (h *Handler) handleLatestPing(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trip id")
		return
	}
	ping, err := h.tracking.LatestPing(r.Context(), tripID)
	if err != nil {
		logrus.WithError(err).WithField("tripId", tripID).Error("latest ping read failed")
		writeError(w, http.StatusInternalServerError, "failed to read pings")
		return
	}
	if ping == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, ping)
}

func (h *Handler) handlePingHistory(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trip id")
		return
	}
	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && n > 0 {
			limit = n
		}
	}
	pings, err := h.tracking.RecentPings(r.Context(), tripID, limit)
	if err != nil {
		logrus.WithError(err).WithField("tripId", tripID).Error("ping history read failed")
		writeError(w, http.StatusInternalServerError, "failed to read pings")
		return
	}
	writeJSON(w, http.StatusOK, pings)
}

type rosterRequest struct {
	VehicleID int64 `json:"vehicleId"`
}

// handleRoster forwards the driver assignment to the upstream trip API and,
// on success, records the roster entry.
func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trip id")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var req rosterRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	authorization := r.Header.Get("Authorization")
	token, err := auth.BearerToken(authorization)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	claims, err := h.mw.auth.ParseDriverToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid driver token")
		return
	}

	var upstream []byte
	if h.apiURL != "" {
		upstream, err = h.forwardSetDriver(r.Context(), tripID, body, authorization)
		if err != nil {
			logrus.WithError(err).WithField("tripId", tripID).Error("setDriver forward failed")
			writeError(w, http.StatusBadGateway, "upstream setDriver failed")
			return
		}
	}

	entry := store.RosterEntry{
		TripID:    tripID,
		DriverID:  claims.DriverID,
		VehicleID: req.VehicleID,
		Time:      time.Now(),
	}
	if err := h.tracking.SaveRoster(r.Context(), entry); err != nil {
		logrus.WithError(err).WithField("tripId", tripID).Error("roster write failed")
		writeError(w, http.StatusInternalServerError, "failed to record roster")
		return
	}

	if len(upstream) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(upstream)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"item": entry})
}

func (h *Handler) forwardSetDriver(ctx context.Context, tripID int64, body []byte, authorization string) ([]byte, error) {
	url := fmt.Sprintf("%s/trips/%d/setDriver", h.apiURL, tripID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, data)
	}
	return data, nil
}

// handleStatus merges the latest monitoring snapshots for every company the
// operator is entitled to.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	claims := operatorFromContext(r.Context())
	merged, err := h.tracking.Monitoring(r.Context(), claims.TransportCompanyIDs)
	if err != nil {
		logrus.WithError(err).Error("monitoring read failed")
		writeError(w, http.StatusInternalServerError, "failed to read monitoring state")
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

// handleLive hands the connection to the WebSocket hub, scoped to the
// operator's companies.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	claims := operatorFromContext(r.Context())
	h.live.Subscribe(w, r, claims.TransportCompanyIDs)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
