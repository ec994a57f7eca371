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

package bridge

import (
	"net/http"
	"sync"
	"time"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event types sent to websocket clients
const (
	EventHello       = "hello"
	EventTagDetected = "tagDetected"
	EventTagRemoved  = "tagRemoved"
	EventPresent     = "present"
	EventError       = "error"
)

// TagDTO is the JSON form of a tag
type TagDTO struct {
	Type     string `json:"type"`
	TID      string `json:"tid"`
	TypeCode uint16 `json:"typeCode"`
}

func newTagDTO(tag *stpv3.Tag) *TagDTO {
	if tag == nil {
		return nil
	}
	return &TagDTO{Type: tag.Type.String(), TypeCode: uint16(tag.Type), TID: tag.TIDHex()}
}

func newTagDTOs(tags []*stpv3.Tag) []*TagDTO {
	out := make([]*TagDTO, 0, len(tags))
	for _, tag := range tags {
		out = append(out, newTagDTO(tag))
	}
	return out
}

// Event is a message pushed to websocket clients
type Event struct {
	Time     time.Time `json:"time"`
	Tag      *TagDTO   `json:"tag,omitempty"`
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	ClientID string    `json:"clientId,omitempty"`
	Error    string    `json:"error,omitempty"`
	Tags     []*TagDTO `json:"tags,omitempty"`
}

func newEvent(kind string, tag *stpv3.Tag) *Event {
	return &Event{
		ID:   uuid.NewString(),
		Type: kind,
		Time: time.Now().UTC(),
		Tag:  newTagDTO(tag),
	}
}

// Request is a message sent by a websocket client
type Request struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
}

// client serializes writes to one connection
type client struct {
	conn *websocket.Conn
	id   uuid.UUID
	mu   sync.Mutex
}

func (c *client) send(ev *Event, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(ev)
}

// handleWebSocket upgrades the connection, greets the client with the
// tags currently present and then answers requests until it disconnects
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, id: uuid.New()}
	log := s.log.WithField("client", c.id.String())

	hello := newEvent(EventHello, nil)
	hello.ClientID = c.id.String()
	hello.Tags = newTagDTOs(s.scanner.Present())
	if err := c.send(hello, s.config.WriteTimeout); err != nil {
		log.WithError(err).Debug("websocket hello failed")
		_ = conn.Close()
		return
	}

	s.register(c)
	defer s.unregister(c)
	log.Debug("websocket client connected")

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			log.WithError(err).Debug("websocket client disconnected")
			return
		}

		var reply *Event
		switch req.Type {
		case EventPresent:
			reply = newEvent(EventPresent, nil)
			reply.Tags = newTagDTOs(s.scanner.Present())
		default:
			reply = newEvent(EventError, nil)
			reply.Error = "unknown request type " + req.Type
		}
		if req.ID != "" {
			reply.ID = req.ID
		}
		if err := c.send(reply, s.config.WriteTimeout); err != nil {
			log.WithError(err).Debug("websocket write failed")
			return
		}
	}
}

func (s *Server) register(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[c.conn] = c
}

func (s *Server) unregister(c *client) {
	s.clientsMu.Lock()
	delete(s.clients, c.conn)
	s.clientsMu.Unlock()
	_ = c.conn.Close()
}

// ClientCount returns the number of connected websocket clients
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// broadcast sends ev to every client. Clients that cannot be written to
// are dropped.
func (s *Server) broadcast(ev *Event) {
	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		if err := c.send(ev, s.config.WriteTimeout); err != nil {
			s.log.WithError(err).WithField("client", c.id.String()).Debug("dropping websocket client")
			s.unregister(c)
		}
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	clients := s.clients
	s.clients = make(map[*websocket.Conn]*client)
	s.clientsMu.Unlock()

	for conn := range clients {
		_ = conn.Close()
	}
}
