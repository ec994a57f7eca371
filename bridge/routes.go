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
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ZaparooProject/go-stpv3"
	"github.com/gorilla/mux"
)

const (
	apiBase       = "/api/v1"
	readerRoute   = apiBase + "/reader"
	tagsRoute     = apiBase + "/tags"
	inventoryRoot = apiBase + "/inventory"
	paramRoute    = apiBase + "/params/{param}"
	wsRoute       = "/ws"
)

// ParamDTO is the JSON form of a system parameter value
type ParamDTO struct {
	Name    string `json:"name"`
	Store   string `json:"store"`
	Value   string `json:"value"`
	Address uint16 `json:"address"`
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(readerRoute, s.getReader).Methods(http.MethodGet)
	r.HandleFunc(tagsRoute, s.getTags).Methods(http.MethodGet)
	r.HandleFunc(inventoryRoot, s.runInventory).Methods(http.MethodPost)
	r.HandleFunc(paramRoute, s.getParam).Methods(http.MethodGet)
	r.HandleFunc(wsRoute, s.handleWebSocket)
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Debug("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.WithError(err).WithField("status", status).Warn("request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps reader errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case stpv3.IsTimeout(err):
		return http.StatusGatewayTimeout
	case isDeviceFault(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isDeviceFault(err error) bool {
	_, ok := stpv3.IsDeviceFault(err)
	return ok
}

func (s *Server) getReader(w http.ResponseWriter, r *http.Request) {
	info, err := s.reader.Info(r.Context())
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) getTags(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, newTagDTOs(s.scanner.Present()))
}

// runInventory performs one inventory pass, optionally restricted with
// ?type=<tag type name or code>
func (s *Server) runInventory(w http.ResponseWriter, r *http.Request) {
	var filter *stpv3.Tag
	if name := r.URL.Query().Get("type"); name != "" {
		tagType, err := stpv3.ParseTagType(name)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		filter = stpv3.NewTag(tagType, nil)
	}

	tags, err := s.reader.SelectTags(r.Context(), filter)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, newTagDTOs(tags))
}

// getParam reads a system parameter by name or address.
// ?store=default reads the stored default instead of the current value.
func (s *Server) getParam(w http.ResponseWriter, r *http.Request) {
	param, err := stpv3.ParseSystemParameter(mux.Vars(r)["param"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	store := stpv3.Current
	if r.URL.Query().Get("store") == stpv3.Default.String() {
		store = stpv3.Default
	}

	value, err := s.reader.ReadParameter(r.Context(), store, param)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	if value == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "parameter not available"})
		return
	}

	s.writeJSON(w, http.StatusOK, ParamDTO{
		Name:    param.String(),
		Store:   store.String(),
		Address: uint16(param),
		Value:   strings.ToUpper(hex.EncodeToString(value)),
	})
}
