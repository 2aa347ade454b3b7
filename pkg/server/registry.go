// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package server

import (
	"sync"
	"time"
)

// FlowStatus is one flow's snapshot, as exposed by the status endpoint.
type FlowStatus struct {
	ID          string    `json:"id"`
	Remote      string    `json:"remote"`
	Mode        string    `json:"mode,omitempty"`
	State       string    `json:"state"`
	Units       uint64    `json:"units"`
	Bytes       uint64    `json:"bytes"`
	ParseErrors uint64    `json:"parse_errors"`
	StartedAt   time.Time `json:"started_at"`
	LastArrival time.Time `json:"last_arrival,omitempty"`
}

// Registry tracks the receiver's flows for the status endpoint. Closed flows
// stay visible with their final counters.
type Registry struct {
	mutex sync.RWMutex
	flows map[string]*FlowStatus
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		flows: make(map[string]*FlowStatus),
	}
}

func (r *Registry) put(status FlowStatus) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, known := r.flows[status.ID]; !known {
		r.order = append(r.order, status.ID)
	}

	r.flows[status.ID] = &status
}

// Snapshot returns all known flows in order of their first appearance.
func (r *Registry) Snapshot() []FlowStatus {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snapshot := make([]FlowStatus, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, *r.flows[id])
	}
	return snapshot
}

// Get returns the flow registered under id.
func (r *Registry) Get(id string) (FlowStatus, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	status, known := r.flows[id]
	if !known {
		return FlowStatus{}, false
	}
	return *status, true
}
