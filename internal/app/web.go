// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/relabs-tech/posture_guard/internal/config"
	"github.com/relabs-tech/posture_guard/internal/counter"
	"github.com/relabs-tech/posture_guard/internal/metrics"
	"github.com/relabs-tech/posture_guard/internal/monitor"
	"github.com/relabs-tech/posture_guard/internal/posture"
	"github.com/relabs-tech/posture_guard/internal/reminder"
	"github.com/relabs-tech/posture_guard/internal/settings"
)

const maxBodyBytes = 1 << 20

// API serves the posture HTTP endpoints.
type API struct {
	ctrl   Controller
	hub    *Hub
	logger *zap.Logger
}

// NewRouter builds the HTTP routes. hub may be nil, which disables /ws.
// staticDir, when set, is served at the root.
func NewRouter(ctrl Controller, hub *Hub, staticDir string, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &API{ctrl: ctrl, hub: hub, logger: logger}

	router := mux.NewRouter()
	router.Use(api.requestMetrics)

	router.HandleFunc("/health", api.health).Methods(http.MethodGet)
	router.HandleFunc("/api/posture", api.getPosture).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", api.getStats).Methods(http.MethodGet)
	router.HandleFunc("/api/config", api.getConfig).Methods(http.MethodGet)
	router.HandleFunc("/api/config", api.putConfig).Methods(http.MethodPut)
	router.HandleFunc("/api/monitoring", api.postMonitoring).Methods(http.MethodPost)
	router.HandleFunc("/api/rotation", api.putRotation).Methods(http.MethodPut)
	router.Handle("/metrics", promhttp.Handler())
	if hub != nil {
		router.HandleFunc("/ws", hub.ServeWS)
	}
	if staticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return router
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) getPosture(w http.ResponseWriter, r *http.Request) {
	st, err := a.ctrl.Status(r.Context())
	if err != nil {
		a.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (a *API) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.ctrl.Stats(r.Context())
	if err != nil {
		a.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (a *API) getConfig(w http.ResponseWriter, r *http.Request) {
	st, err := a.ctrl.Status(r.Context())
	if err != nil {
		a.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st.Settings)
}

func (a *API) putConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	s, err := DecodeSettings(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, p := range s.Postures {
		if err := p.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := a.ctrl.UpdateSettings(r.Context(), s); err != nil {
		a.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (a *API) postMonitoring(w http.ResponseWriter, r *http.Request) {
	var msg ControlMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := a.ctrl.SetMonitoring(r.Context(), msg.Monitoring); err != nil {
		a.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

func (a *API) putRotation(w http.ResponseWriter, r *http.Request) {
	var msg RotationMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rot, err := posture.ParseRotation(msg.Rotation)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.ctrl.SetRotation(r.Context(), rot); err != nil {
		a.respondControllerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RotationMessage{Rotation: int(rot)})
}

func (a *API) respondControllerError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnavailable) {
		respondError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	a.logger.Error("controller error", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the websocket upgrade pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (a *API) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(rec.status)).Inc()
		a.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("web server stopped")
	return nil
}

// remoteController mirrors a posture monitor running in another process.
// Status and stats come from retained MQTT topics; commands are published.
type remoteController struct {
	pub    Publisher
	topics CommandTopics

	mu        sync.RWMutex
	status    monitor.Status
	haveState bool
	stats     counter.Stats
	haveStats bool
}

func newRemoteController(pub Publisher, topics CommandTopics) *remoteController {
	return &remoteController{pub: pub, topics: topics}
}

func (c *remoteController) onStatus(payload []byte) error {
	var st monitor.Status
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	c.mu.Lock()
	c.status, c.haveState = st, true
	c.mu.Unlock()
	return nil
}

func (c *remoteController) onStats(payload []byte) error {
	var stats counter.Stats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	c.mu.Lock()
	c.stats, c.haveStats = stats, true
	c.mu.Unlock()
	return nil
}

func (c *remoteController) Status(context.Context) (monitor.Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.haveState {
		return monitor.Status{}, ErrUnavailable
	}
	return c.status, nil
}

func (c *remoteController) Stats(context.Context) (counter.Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.haveStats {
		return counter.Stats{}, ErrUnavailable
	}
	return c.stats, nil
}

func (c *remoteController) UpdateSettings(_ context.Context, s settings.Settings) error {
	return publishJSON(c.pub, c.topics.Config, true, s)
}

func (c *remoteController) SetMonitoring(_ context.Context, on bool) error {
	return publishJSON(c.pub, c.topics.Control, false, ControlMessage{Monitoring: on})
}

func (c *remoteController) SetRotation(_ context.Context, r posture.Rotation) error {
	return publishJSON(c.pub, c.topics.Rotation, true, RotationMessage{Rotation: int(r)})
}

// RunWeb serves the dashboard API for a posture monitor reached over MQTT.
// Live events are relayed to websocket clients.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	ctrl := newRemoteController(mqttPublisher{client: client}, commandTopics(cfg))
	hub := NewHub(logger)
	defer hub.Close()

	handlers := map[string]func(string, []byte){
		cfg.TopicStatus: func(_ string, payload []byte) {
			if err := ctrl.onStatus(payload); err != nil {
				logger.Warn("bad status payload", zap.Error(err))
			}
		},
		cfg.TopicStats: func(_ string, payload []byte) {
			if err := ctrl.onStats(payload); err != nil {
				logger.Warn("bad stats payload", zap.Error(err))
				return
			}
			stats, _ := ctrl.Stats(ctx)
			hub.Broadcast(StatsEvent{Kind: KindStats, Stats: stats})
		},
		cfg.TopicPosture: func(_ string, payload []byte) {
			var ev monitor.PostureEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				logger.Warn("bad posture payload", zap.Error(err))
				return
			}
			hub.Broadcast(monitor.Event{Kind: monitor.KindPosture, Posture: &ev})
		},
		cfg.TopicReminder: func(_ string, payload []byte) {
			var ev reminder.Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				logger.Warn("bad reminder payload", zap.Error(err))
				return
			}
			hub.Broadcast(monitor.Event{Kind: monitor.KindReminder, Reminder: &ev})
		},
	}
	for topic, h := range handlers {
		if err := subscribe(client, topic, h, logger); err != nil {
			return err
		}
	}

	router := NewRouter(ctrl, hub, "web", logger)
	return Serve(ctx, fmt.Sprintf(":%d", cfg.WebServerPort), router, logger)
}

func commandTopics(cfg *config.Config) CommandTopics {
	return CommandTopics{
		Config:      cfg.TopicConfig,
		Control:     cfg.TopicControl,
		Rotation:    cfg.TopicRotation,
		Interaction: cfg.TopicInteraction,
	}
}
