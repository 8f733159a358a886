package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/store"
)

const (
	qrSize            = 256
	defaultMatchLimit = 20
	maxMatchLimit     = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Server bundles what the HTTP handlers need
type Server struct {
	cfg       Config
	log       *slog.Logger
	hub       *Hub
	manager   *room.Manager
	db        *store.DB        // nil without persistence
	analytics *store.Analytics // nil without persistence
}

// Routes configures the HTTP routes
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /rooms", s.handleRooms)
	mux.HandleFunc("GET /rooms/qr", s.handleQR)
	mux.HandleFunc("GET /matches", s.handleMatches)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	if !s.hub.CanAccept(ip) {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade", "ip", ip, "err", err)
		return
	}
	s.hub.TrackConnect(ip)

	client := NewClient(s.hub, conn, ip, protocol.ParseFormat(r.URL.Query().Get("format")))
	s.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.ListPublicRooms())
}

// handleQR renders the join link of a private room as a PNG
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("code")))
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	if _, err := s.manager.JoinRoomByCode(code); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	link := s.cfg.PublicURL + "/?code=" + url.QueryEscape(code)
	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		s.log.Error("qr encode", "code", code, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, []store.MatchRow{})
		return
	}
	limit := defaultMatchLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxMatchLimit)
	}
	matches, err := s.db.RecentMatches(r.Context(), limit)
	if err != nil {
		s.log.Error("recent matches", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []store.MatchRow{}
	}
	writeJSON(w, http.StatusOK, matches)
}

type healthResponse struct {
	Status      string         `json:"status"`
	Connections int            `json:"connections"`
	Stats       room.Stats     `json:"stats"`
	Events      map[string]int `json:"events_last_hour,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Connections: s.hub.TotalConns(),
		Stats:       s.manager.Stats(),
	}
	if s.analytics != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if events, err := s.analytics.EventCounts(ctx, time.Now().Add(-time.Hour)); err == nil {
			resp.Events = events
		} else {
			s.log.Warn("event counts", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
