// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package server implements the receiving side of the benchmark: a listener
// accepting one flow per inbound QUIC connection, per-flow receive handlers
// writing independent event logs, and an optional REST status endpoint.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/quic-go/quic-go"
	log "github.com/sirupsen/logrus"

	"github.com/quicbench/quicbench/pkg/transport"
)

const (
	defaultOutputDir   = "results"
	defaultIdleTimeout = 5 * time.Second
	defaultDrainWindow = 500 * time.Millisecond
)

// Config describes the receiver daemon.
type Config struct {
	// ListenAddress is the UDP host:port to accept flows on.
	ListenAddress string

	// OutputDir collects the per-flow receive logs.
	OutputDir string

	// FlushEvery is the event logs' flush cadence in records.
	FlushEvery int

	// IdleTimeout ends connections without traffic; it doubles as the
	// drain fallback for datagram flows whose final marker was lost.
	IdleTimeout time.Duration

	// DrainWindow keeps a datagram flow's connection up after its final
	// marker so reordered stragglers still get recorded.
	DrainWindow time.Duration

	// StatusAddress, if set, serves the REST status endpoint.
	StatusAddress string
}

// Validate checks the configuration and fills in defaults.
func (cfg *Config) Validate() error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("no listen address configured")
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.DrainWindow <= 0 {
		cfg.DrainWindow = defaultDrainWindow
	}

	return nil
}

// Listener accepts benchmark flows, one per inbound connection, and receives
// them concurrently and independently.
type Listener struct {
	cfg      Config
	registry *Registry

	listener *quic.Listener
	status   *http.Server

	mutex  sync.Mutex
	open   map[string]*flowHandler
	nextID uint64

	handlers sync.WaitGroup
}

// NewListener creates a Listener for the given configuration.
func NewListener(cfg Config) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Listener{
		cfg:      cfg,
		registry: NewRegistry(),
		open:     make(map[string]*flowHandler),
	}, nil
}

// Registry exposes the flow registry, e.g. for the status endpoint or tests.
func (l *Listener) Registry() *Registry {
	return l.registry
}

// Addr returns the bound UDP address once Start succeeded.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Start binds the QUIC listener and, if configured, the status endpoint.
func (l *Listener) Start() error {
	log.WithField("address", l.cfg.ListenAddress).Info("Starting benchmark receiver")

	listener, err := quic.ListenAddr(l.cfg.ListenAddress,
		transport.GenerateListenerTLSConfig(),
		transport.GenerateQUICConfig(l.cfg.IdleTimeout, true))
	if err != nil {
		log.WithError(err).Error("Error creating the QUIC listener")
		return err
	}
	l.listener = listener

	if l.cfg.StatusAddress != "" {
		l.status = newStatusServer(l.cfg.StatusAddress, l.registry)
		go func() {
			if err := l.status.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Status endpoint failed")
			}
		}()
	}

	go l.handle()

	return nil
}

func (l *Listener) handle() {
	log.WithField("address", l.cfg.ListenAddress).Info("Listening for benchmark flows")

	for {
		conn, err := l.listener.Accept(context.Background())
		if err != nil {
			if err.Error() == "quic: Server closed" {
				log.WithField("address", l.cfg.ListenAddress).Info("Listener shutting down")
				return
			}

			log.WithFields(log.Fields{
				"address": l.cfg.ListenAddress,
				"error":   err,
			}).Error("Error accepting a connection")
			continue
		}

		l.mutex.Lock()
		l.nextID++
		id := fmt.Sprintf("flow-%d", l.nextID)
		handler := newFlowHandler(id, conn, l.cfg, l.registry)
		l.open[id] = handler
		l.mutex.Unlock()

		log.WithFields(log.Fields{
			"flow": id,
			"peer": conn.RemoteAddr(),
		}).Info("Accepted new flow connection")

		l.handlers.Add(1)
		go func() {
			defer l.handlers.Done()
			handler.handle()

			l.mutex.Lock()
			delete(l.open, id)
			l.mutex.Unlock()
		}()
	}
}

// Close stops accepting flows, tears every open flow down and waits until
// all receive logs are flushed and closed.
func (l *Listener) Close() error {
	var result *multierror.Error

	if l.listener != nil {
		if err := l.listener.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	l.mutex.Lock()
	for _, handler := range l.open {
		handler.shutdown()
	}
	l.mutex.Unlock()

	l.handlers.Wait()

	if l.status != nil {
		if err := l.status.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
