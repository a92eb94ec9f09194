// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/edl_robot/internal/config"
	"github.com/relabs-tech/edl_robot/internal/gps"
	"github.com/relabs-tech/edl_robot/internal/livegraph"
)

// WebServer keeps the latest pose and fix, a pose graph and a GPS speed
// graph, and serves them over HTTP and websockets.
type WebServer struct {
	series    string
	staticDir string
	renderer  *livegraph.ImageRenderer

	Pose *livegraph.Graph
	GPS  *livegraph.Graph
	Hub  *Hub

	mu       sync.RWMutex
	lastPose PoseMessage
	havePose bool
	lastFix  gps.Fix
	haveFix  bool
}

// NewWebServer builds the graphs; extra sinks receive pose graph renders.
// The GPS graph has no sinks and is only rendered on request.
func NewWebServer(cfg *config.Config, extra ...livegraph.Sink) (*WebServer, error) {
	hub := NewHub()
	poseGraph, err := livegraph.New(livegraph.Options{
		Title:          cfg.Graph.Series,
		Capacity:       cfg.Graph.Capacity,
		UpdateInterval: cfg.Graph.UpdateInterval,
	}, append([]livegraph.Sink{hub}, extra...)...)
	if err != nil {
		return nil, err
	}
	gpsGraph, err := livegraph.New(livegraph.Options{
		Title:          "speed kn",
		Capacity:       cfg.Graph.Capacity,
		UpdateInterval: cfg.Graph.UpdateInterval,
	})
	if err != nil {
		return nil, err
	}
	return &WebServer{
		series:    cfg.Graph.Series,
		staticDir: cfg.Web.StaticDir,
		renderer:  livegraph.NewImageRenderer(cfg.Graph.Width, cfg.Graph.Height),
		Pose:      poseGraph,
		GPS:       gpsGraph,
		Hub:       hub,
	}, nil
}

// OnPose records a pose message and feeds the pose graph. The reference
// angle becomes the secondary series.
func (s *WebServer) OnPose(m PoseMessage) {
	s.mu.Lock()
	s.lastPose, s.havePose = m, true
	s.mu.Unlock()

	var secondary *float64
	if m.Reference != nil && (s.series != "yaw" || m.HasHeading) {
		v := SeriesValue(*m.Reference, s.series)
		secondary = &v
	}
	s.Pose.AddDataPoint(SeriesValue(m.Pose, s.series), secondary, true)
}

// OnFix records a GPS fix. Void fixes are kept as invalid points so the
// speed line breaks while the receiver has no lock.
func (s *WebServer) OnFix(f gps.Fix) {
	s.mu.Lock()
	s.lastFix, s.haveFix = f, true
	s.mu.Unlock()
	s.GPS.AddDataPoint(f.SpeedKnots, nil, f.Valid())
}

func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orientation", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		m, ok := s.lastPose, s.havePose
		s.mu.RUnlock()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, m)
	})
	mux.HandleFunc("/api/gps", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		f, ok := s.lastFix, s.haveFix
		s.mu.RUnlock()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, f)
	})
	mux.HandleFunc("/api/graph", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.Pose.Snapshot())
	})
	mux.HandleFunc("/api/graph.png", s.servePNG(s.Pose))
	mux.HandleFunc("/api/gps/graph.png", s.servePNG(s.GPS))
	mux.Handle("/ws/graph", s.Hub)
	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	return mux
}

func (s *WebServer) servePNG(g *livegraph.Graph) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img := s.renderer.Draw(g.Snapshot())
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, img); err != nil {
			log.Warnf("web: png encode: %v", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}

// RunWeb subscribes to the pose and GPS topics and serves the dashboard
// until ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	var extra []livegraph.Sink
	if cfg.Graph.PNGPath != "" {
		extra = append(extra, &livegraph.PNGSink{
			Path:     cfg.Graph.PNGPath,
			Renderer: livegraph.NewImageRenderer(cfg.Graph.Width, cfg.Graph.Height),
		})
	}
	srv, err := NewWebServer(cfg, extra...)
	if err != nil {
		return err
	}
	if err := srv.Pose.Start(ctx); err != nil {
		return err
	}
	defer srv.Pose.Stop()

	client, err := ConnectMQTT(cfg.MQTT, cfg.MQTT.ClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	if err := SubscribeJSON(client, cfg.Topics.Pose, srv.OnPose); err != nil {
		return err
	}
	if err := SubscribeJSON(client, cfg.Topics.GPS, srv.OnFix); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Web.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: server listening on %s", cfg.Web.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
