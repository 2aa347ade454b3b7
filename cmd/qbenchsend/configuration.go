// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/quicbench/quicbench/pkg/flow"
	"github.com/quicbench/quicbench/pkg/wire"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Logging logConf
	Flow    []flowConf
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
	Profiling    bool
}

// flowConf describes one Flow-configuration block. Every block becomes one
// concurrently running flow.
type flowConf struct {
	Name             string
	Address          string
	Mode             string
	Input            string
	RateMbps         float64 `toml:"rate-mbps"`
	ChunkBytes       int     `toml:"chunk-bytes"`
	SendLog          string  `toml:"send-log"`
	CCA              string  `toml:"cca"`
	MaxDatagramBytes int     `toml:"max-datagram-bytes"`
	MaxChunks        uint64  `toml:"max-chunks"`
	Timeout          string
	ConnectAttempts  int    `toml:"connect-attempts"`
	ConnectBackoff   string `toml:"connect-backoff"`
	DrainTimeout     string `toml:"drain-timeout"`
	IdleTimeout      string `toml:"idle-timeout"`
	FlushEvery       int    `toml:"flush-every"`
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
		err = fmt.Errorf("parsing %s: %w", field, err)
	}
	return
}

// parseFlow converts one configuration block into a flow.Config. Defaults and
// full validation belong to flow.Config.Validate.
func parseFlow(conf flowConf) (cfg flow.Config, err error) {
	cfg = flow.Config{
		Name:             conf.Name,
		Address:          conf.Address,
		Mode:             wire.Mode(conf.Mode),
		InputPath:        conf.Input,
		RateMbps:         conf.RateMbps,
		ChunkBytes:       conf.ChunkBytes,
		SendLogPath:      conf.SendLog,
		CCA:              conf.CCA,
		MaxDatagramBytes: conf.MaxDatagramBytes,
		MaxChunks:        conf.MaxChunks,
		ConnectAttempts:  conf.ConnectAttempts,
		FlushEvery:       conf.FlushEvery,
	}

	if cfg.Timeout, err = parseDuration("flow.timeout", conf.Timeout); err != nil {
		return
	}
	if cfg.ConnectBackoff, err = parseDuration("flow.connect-backoff", conf.ConnectBackoff); err != nil {
		return
	}
	if cfg.DrainTimeout, err = parseDuration("flow.drain-timeout", conf.DrainTimeout); err != nil {
		return
	}
	if cfg.IdleTimeout, err = parseDuration("flow.idle-timeout", conf.IdleTimeout); err != nil {
		return
	}

	return
}

// parseFlows reads the configuration file and builds every flow.
func parseFlows(filename string) (flows []flow.Config, profiling bool, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	configureLogging(conf.Logging)

	if len(conf.Flow) == 0 {
		err = fmt.Errorf("no flow configured")
		return
	}

	for _, fc := range conf.Flow {
		var cfg flow.Config
		if cfg, err = parseFlow(fc); err != nil {
			return
		}
		flows = append(flows, cfg)
	}

	profiling = conf.Logging.Profiling
	return
}
