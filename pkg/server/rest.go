// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// newStatusServer builds an HTTP server exposing the flow registry as JSON,
// listing all flows on /status and a single flow on /status/{id}.
func newStatusServer(addr string, registry *Registry) *http.Server {
	router := mux.NewRouter()

	router.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(registry.Snapshot()); err != nil {
			log.WithError(err).Warn("Error encoding the status response")
		}
	}).Methods(http.MethodGet)

	router.HandleFunc("/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		status, ok := registry.Get(mux.Vars(r)["id"])
		if !ok {
			http.Error(w, "no such flow", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.WithError(err).Warn("Error encoding the status response")
		}
	}).Methods(http.MethodGet)

	return &http.Server{
		Addr:    addr,
		Handler: router,
	}
}
