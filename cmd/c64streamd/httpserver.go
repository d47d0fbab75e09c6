/*
NAME
  httpserver.go

DESCRIPTION
  httpserver.go exposes the daemon's Prometheus metrics, a JSON
  statistics snapshot and a live statistics feed over a websocket.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/waltermfi/c64stream/stream"
)

// statusServer serves the daemon's HTTP surface: metrics, a JSON
// snapshot of the last known stream format, and a websocket feed that
// pushes the same snapshot on every update.
type statusServer struct {
	logger *zap.Logger
	s      *stream.Stream
	reg    *prometheus.Registry

	mu       sync.RWMutex
	snapshot statusSnapshot
	upgrader websocket.Upgrader
	clients  map[chan statusSnapshot]struct{}
}

type statusSnapshot struct {
	Format     string    `json:"format"`
	FPS        float64   `json:"fps"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newStatusServer(logger *zap.Logger, s *stream.Stream, reg *prometheus.Registry) *statusServer {
	return &statusServer{
		logger:  logger,
		s:       s,
		reg:     reg,
		clients: make(map[chan statusSnapshot]struct{}),
	}
}

// update records the latest stream format/fps and fans it out to any
// connected websocket clients; called from the daemon's tick loop.
func (srv *statusServer) update(now time.Time) {
	format, fps := srv.s.Format()
	snap := statusSnapshot{Format: format.String(), FPS: fps, UpdatedAt: now}

	srv.mu.Lock()
	srv.snapshot = snap
	for ch := range srv.clients {
		select {
		case ch <- snap:
		default:
		}
	}
	srv.mu.Unlock()
}

func (srv *statusServer) addClient() chan statusSnapshot {
	ch := make(chan statusSnapshot, 4)
	srv.mu.Lock()
	srv.clients[ch] = struct{}{}
	srv.mu.Unlock()
	return ch
}

func (srv *statusServer) removeClient(ch chan statusSnapshot) {
	srv.mu.Lock()
	delete(srv.clients, ch)
	srv.mu.Unlock()
	close(ch)
}

func (srv *statusServer) handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(srv.reg, promhttp.HandlerOpts{})))

	r.GET("/stats", func(c *gin.Context) {
		srv.mu.RLock()
		snap := srv.snapshot
		srv.mu.RUnlock()
		c.JSON(http.StatusOK, snap)
	})

	r.GET("/ws", func(c *gin.Context) {
		conn, err := srv.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			srv.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		go srv.serveWS(conn)
	})

	return r
}

func (srv *statusServer) serveWS(conn *websocket.Conn) {
	defer conn.Close()
	ch := srv.addClient()
	defer srv.removeClient(ch)
	for snap := range ch {
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}
}
