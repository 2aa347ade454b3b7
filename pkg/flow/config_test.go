// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package flow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quicbench/quicbench/pkg/wire"
)

func validConfig(t *testing.T) Config {
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(inputPath, make([]byte, 4096), 0644); err != nil {
		t.Fatal(err)
	}

	return Config{
		Address:          "localhost:4433",
		Mode:             wire.ModeDatagram,
		InputPath:        inputPath,
		RateMbps:         1.0,
		ChunkBytes:       1000,
		SendLogPath:      filepath.Join(dir, "send.csv"),
		MaxDatagramBytes: 1200,
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if cfg.Name == "" || cfg.ConnectAttempts != defaultConnectAttempts ||
		cfg.DrainTimeout != defaultDrainTimeout || cfg.IdleTimeout != defaultIdleTimeout {
		t.Fatalf("defaults were not applied: %+v", cfg)
	}
}

func TestConfigRejectsOversizedChunks(t *testing.T) {
	cfg := validConfig(t)
	cfg.ChunkBytes = cfg.MaxDatagramBytes - wire.DatagramOverhead + 1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected the chunk size to be rejected against the datagram limit")
	}

	// the same chunk size is fine for streams
	cfg.Mode = wire.ModeStream
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigRejectsUnreadableInput(t *testing.T) {
	cfg := validConfig(t)
	cfg.InputPath = filepath.Join(t.TempDir(), "missing.bin")

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an unreadable input to be rejected")
	}
}

func TestConfigRejectsBadValues(t *testing.T) {
	mutations := []func(*Config){
		func(c *Config) { c.Address = "" },
		func(c *Config) { c.Mode = "carrier-pigeon" },
		func(c *Config) { c.RateMbps = 0 },
		func(c *Config) { c.ChunkBytes = -1 },
		func(c *Config) { c.SendLogPath = "" },
		func(c *Config) { c.MaxDatagramBytes = 0 },
	}

	for i, mutate := range mutations {
		cfg := validConfig(t)
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("mutation %d: expected a validation error", i)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err   error
		class FailureClass
	}{
		{err: nil, class: FailureNone},
		{err: configError(os.ErrNotExist), class: FailureConfig},
		{err: connectError(os.ErrDeadlineExceeded), class: FailureConnect},
		{err: transportError(os.ErrClosed), class: FailureTransport},
		{err: os.ErrInvalid, class: FailureTransport},
	}

	for i, test := range tests {
		if class := Classify(test.err); class != test.class {
			t.Fatalf("test %d: classified as %v, expected %v", i, class, test.class)
		}
	}
}
