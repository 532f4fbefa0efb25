package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"cloudboost-metrics/internal/query"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func isWebsocket(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// stream pushes the metric result on connect and again whenever an append
// changes it. The client only needs to read.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := parseWindow(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter, err := parseFilter(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]

	changes, cancel, err := s.svc.Watch(id, filter, window)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "metric", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()
	go s.drain(conn, stop)

	log := s.log.With("metric", id, "window", window.String(), "remote", r.RemoteAddr)
	log.Debug("stream opened")

	var last *query.MetricResult
	push := func() bool {
		res, err := s.svc.GetMetric(ctx, id, filter, window)
		if err != nil {
			log.Warn("stream compute failed", "error", err)
			return ctx.Err() == nil
		}
		if last != nil && sameResult(last, res) {
			return true
		}
		last = res
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(res); err != nil {
			log.Debug("stream write failed", "error", err)
			return false
		}
		return true
	}

	if !push() {
		return
	}
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("stream closed")
			return
		case <-changes:
			if !push() {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain reads and discards client frames so control messages are processed,
// and calls stop when the connection goes away.
func (s *Server) drain(conn *websocket.Conn, stop context.CancelFunc) {
	defer stop()
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func sameResult(a, b *query.MetricResult) bool {
	return a.Value == b.Value && a.RecordCount == b.RecordCount && a.Status == b.Status
}
