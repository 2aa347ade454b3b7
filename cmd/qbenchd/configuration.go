// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/quicbench/quicbench/pkg/server"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Listen  listenConf
	Output  outputConf
	Status  statusConf
	Logging logConf
}

// listenConf describes the Listen-configuration block.
type listenConf struct {
	Endpoint    string
	IdleTimeout string `toml:"idle-timeout"`
	DrainWindow string `toml:"drain-window"`
}

// outputConf describes the Output-configuration block.
type outputConf struct {
	Directory  string
	FlushEvery int `toml:"flush-every"`
}

// statusConf describes the Status-configuration block.
type statusConf struct {
	Listen string
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
	Profiling    bool
}

func configureLogging(conf logConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}
}

func parseDuration(field, value string) (d time.Duration, err error) {
	if value == "" {
		return 0, nil
	}
	if d, err = time.ParseDuration(value); err != nil {
		log.WithFields(log.Fields{
			"field": field,
			"value": value,
			"error": err,
		}).Error("Failed to parse duration")
	}
	return
}

// parseListener reads the configuration file and builds the receiver.
func parseListener(filename string) (listener *server.Listener, profiling bool, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	configureLogging(conf.Logging)

	idleTimeout, err := parseDuration("listen.idle-timeout", conf.Listen.IdleTimeout)
	if err != nil {
		return
	}
	drainWindow, err := parseDuration("listen.drain-window", conf.Listen.DrainWindow)
	if err != nil {
		return
	}

	listener, err = server.NewListener(server.Config{
		ListenAddress: conf.Listen.Endpoint,
		OutputDir:     conf.Output.Directory,
		FlushEvery:    conf.Output.FlushEvery,
		IdleTimeout:   idleTimeout,
		DrainWindow:   drainWindow,
		StatusAddress: conf.Status.Listen,
	})
	if err != nil {
		return
	}

	profiling = conf.Logging.Profiling
	return
}
