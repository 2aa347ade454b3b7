// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/pkg/profile"

	"github.com/quicbench/quicbench/pkg/flow"
)

// Exit codes, one per failure class. With multiple flows the most severe
// class across all flows wins.
const (
	exitOk        = 0
	exitTransport = 1
	exitConfig    = 2
	exitConnect   = 3
)

func exitCode(class flow.FailureClass) int {
	switch class {
	case flow.FailureConfig:
		return exitConfig
	case flow.FailureConnect:
		return exitConnect
	case flow.FailureTransport:
		return exitTransport
	default:
		return exitOk
	}
}

// severity orders failure classes: configuration mistakes outrank everything,
// unreachable receivers outrank mid-run losses.
func severity(code int) int {
	switch code {
	case exitConfig:
		return 3
	case exitConnect:
		return 2
	case exitTransport:
		return 1
	default:
		return 0
	}
}

func main() {
	os.Exit(run())
}

// run is separated from main so deferred teardown still happens before the
// process exits with a code.
func run() int {
	if len(os.Args) != 2 {
		log.Fatalf("Usage: %s configuration.toml", os.Args[0])
	}

	flows, profiling, err := parseFlows(os.Args[1])
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Failed to parse config")
		return exitConfig
	}

	if profiling {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalSyn := make(chan os.Signal, 1)
	signal.Notify(signalSyn, os.Interrupt)
	go func() {
		<-signalSyn
		log.Info("Interrupted, stopping all flows..")
		cancel()
	}()

	var (
		wg    sync.WaitGroup
		mutex sync.Mutex
		worst = exitOk
	)

	for _, cfg := range flows {
		wg.Add(1)
		go func(cfg flow.Config) {
			defer wg.Done()

			err := flow.Run(ctx, cfg)
			if err != nil {
				log.WithFields(log.Fields{
					"flow":  cfg.Name,
					"error": err,
				}).Error("Flow failed")
			}

			code := exitCode(flow.Classify(err))
			mutex.Lock()
			if severity(code) > severity(worst) {
				worst = code
			}
			mutex.Unlock()
		}(cfg)
	}

	wg.Wait()

	if worst == exitOk {
		log.Info("All flows finished")
	}
	return worst
}
