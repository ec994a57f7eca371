// go-stpv3
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-stpv3.
//
// go-stpv3 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-stpv3 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-stpv3; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package bridge exposes a reader over HTTP and websocket. Tag presence
// events from a polling.Scanner are streamed to websocket clients, and a
// small JSON API gives access to reader identification, one-shot
// inventories and system parameters. The service can advertise itself
// over mDNS.
package bridge

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/ZaparooProject/go-stpv3/polling"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// mDNS advertisement
const (
	ServiceType   = "_stpv3._tcp"
	ServiceDomain = "local."
	DefaultAddr   = ":8765"
)

// Config holds the bridge configuration
type Config struct {
	// Addr is the HTTP listen address
	Addr string
	// ServiceName is the mDNS instance name. Empty disables advertisement.
	ServiceName string
	// Polling configures the tag presence scanner
	Polling *polling.Config
	// WriteTimeout bounds every websocket write
	WriteTimeout time.Duration
}

// Server is a running bridge
type Server struct {
	reader     *stpv3.Reader
	scanner    *polling.Scanner
	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener
	mdnsServer *zeroconf.Server
	clients    map[*websocket.Conn]*client
	log        *logrus.Entry
	upgrader   websocket.Upgrader
	config     Config
	clientsMu  sync.Mutex
	lifecycle  sync.Mutex
}

// New creates a bridge for reader
func New(reader *stpv3.Reader, config Config) (*Server, error) {
	if reader == nil {
		return nil, errors.New("reader cannot be nil")
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	scanner, err := polling.NewScanner(reader, config.Polling)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scanner")
	}

	s := &Server{
		reader:  reader,
		scanner: scanner,
		config:  config,
		clients: make(map[*websocket.Conn]*client),
		log:     stpv3.Logger().WithField("component", "bridge"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router = s.routes()

	scanner.OnTagDetected = func(tag *stpv3.Tag) error {
		s.broadcast(newEvent(EventTagDetected, tag))
		return nil
	}
	scanner.OnTagRemoved = func(tag *stpv3.Tag) {
		s.broadcast(newEvent(EventTagRemoved, tag))
	}
	scanner.OnError = func(err error) {
		ev := newEvent(EventError, nil)
		ev.Error = err.Error()
		s.broadcast(ev)
	}
	return s, nil
}

// Handler returns the HTTP handler of the bridge
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins scanning, listening and, when configured, mDNS
// advertisement. It returns once the listener is open.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.httpServer != nil {
		return errors.New("bridge already started")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.config.Addr)
	}

	if err := s.scanner.Start(ctx); err != nil {
		_ = ln.Close()
		return errors.Wrap(err, "failed to start scanner")
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}(s.httpServer)
	s.log.WithField("addr", ln.Addr().String()).Info("bridge listening")

	if s.config.ServiceName != "" {
		if err := s.startMDNS(ln.Addr()); err != nil {
			s.log.WithError(err).Warn("mDNS advertisement disabled")
		}
	}
	return nil
}

// Addr returns the listen address once started
func (s *Server) Addr() string {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the bridge and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the scanner, withdraws the mDNS record, closes every
// websocket client and stops the HTTP server. The reader stays open.
func (s *Server) Shutdown(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	_ = s.scanner.Stop()

	if s.mdnsServer != nil {
		s.mdnsServer.Shutdown()
		s.mdnsServer = nil
	}

	s.closeClients()

	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.listener = nil
	if err != nil {
		return errors.Wrap(err, "http shutdown failed")
	}
	return nil
}

// startMDNS registers the bridge for discovery on the local network
func (s *Server) startMDNS(addr net.Addr) error {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return errors.Errorf("cannot advertise non-TCP address %s", addr)
	}

	txt := []string{
		"protocol=websocket",
		"path=" + wsRoute,
		"api=" + apiBase,
	}
	if info, err := s.reader.Info(context.Background()); err == nil {
		txt = append(txt, "serial="+info.SerialNumber, "firmware="+info.FirmwareVersion)
	}

	server, err := zeroconf.Register(s.config.ServiceName, ServiceType, ServiceDomain, tcpAddr.Port, txt, nil)
	if err != nil {
		return errors.Wrap(err, "failed to register mDNS service")
	}
	s.mdnsServer = server
	s.log.WithField("service", s.config.ServiceName).
		WithField("port", strconv.Itoa(tcpAddr.Port)).
		Info("mDNS service registered")
	return nil
}
