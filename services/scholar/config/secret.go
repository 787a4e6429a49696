// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
)

// Environment variables holding secrets. The values are moved into
// memguard enclaves on first load and scrubbed from the process
// environment so later code cannot read them in plain form.
const (
	EnvNeo4jPassword = "BIBLIOGRAPH_NEO4J_PASSWORD"
	EnvOpenAIKey     = "BIBLIOGRAPH_OPENAI_API_KEY"
	EnvInfluxToken   = "BIBLIOGRAPH_INFLUX_TOKEN"
)

var (
	// memguardInitOnce ensures memguard initialization happens only once.
	memguardInitOnce sync.Once

	secretsOnce sync.Once
	secretsMu   sync.RWMutex
	secrets     map[string]*memguard.Enclave
)

// initMemguard performs one-time memguard setup.
//
// CatchInterrupt wipes all enclaves on SIGINT/SIGTERM so secrets never
// outlive the process in memory dumps.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
	})
}

// LoadSecrets moves known secret environment variables into enclaves.
//
// Safe to call more than once; only the first call reads the
// environment. Missing variables are simply absent afterwards, callers
// check with HasNeo4jPassword / HasOpenAIKey.
func LoadSecrets() {
	secretsOnce.Do(func() {
		initMemguard()
		secretsMu.Lock()
		defer secretsMu.Unlock()
		if secrets == nil {
			secrets = make(map[string]*memguard.Enclave)
		}
		for _, name := range []string{EnvNeo4jPassword, EnvOpenAIKey, EnvInfluxToken} {
			value := os.Getenv(name)
			if value == "" {
				continue
			}
			// NewEnclave wipes the source slice after sealing
			secrets[name] = memguard.NewEnclave([]byte(value))
			if err := os.Unsetenv(name); err != nil {
				slog.Warn("could not scrub secret from environment", "var", name)
			}
			slog.Debug("secret loaded into enclave", "var", name)
		}
	})
}

// HasNeo4jPassword reports whether the Neo4j password was provided.
func HasNeo4jPassword() bool { return hasSecret(EnvNeo4jPassword) }

// HasOpenAIKey reports whether the OpenAI API key was provided.
func HasOpenAIKey() bool { return hasSecret(EnvOpenAIKey) }

// HasInfluxToken reports whether the InfluxDB token was provided.
func HasInfluxToken() bool { return hasSecret(EnvInfluxToken) }

func hasSecret(name string) bool {
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	_, ok := secrets[name]
	return ok
}

// WithNeo4jPassword opens the Neo4j password enclave and passes the
// plaintext to fn. The backing buffer is destroyed when fn returns, so
// fn must not retain the string beyond the call.
func WithNeo4jPassword(fn func(password string) error) error {
	return withSecret(EnvNeo4jPassword, fn)
}

// WithOpenAIKey opens the OpenAI key enclave and passes the plaintext
// to fn. Same retention rule as WithNeo4jPassword.
func WithOpenAIKey(fn func(key string) error) error {
	return withSecret(EnvOpenAIKey, fn)
}

// WithInfluxToken opens the InfluxDB token enclave and passes the
// plaintext to fn. Same retention rule as WithNeo4jPassword.
func WithInfluxToken(fn func(token string) error) error {
	return withSecret(EnvInfluxToken, fn)
}

func withSecret(name string, fn func(string) error) error {
	secretsMu.RLock()
	enclave, ok := secrets[name]
	secretsMu.RUnlock()
	if !ok {
		return fmt.Errorf("secret %s not loaded", name)
	}

	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("open secret %s: %w", name, err)
	}
	defer buf.Destroy()

	// Re-seal for future use; Open consumes the enclave's buffer but
	// the enclave itself stays valid, a fresh copy keeps it reusable.
	secretsMu.Lock()
	secrets[name] = memguard.NewEnclave(append([]byte(nil), buf.Bytes()...))
	secretsMu.Unlock()

	return fn(buf.String())
}

// SetSecret stores a secret directly, bypassing the environment.
//
// Used by tests and by CLI flows that prompt for credentials.
func SetSecret(name, value string) {
	initMemguard()
	secretsMu.Lock()
	defer secretsMu.Unlock()
	if secrets == nil {
		secrets = make(map[string]*memguard.Enclave)
	}
	secrets[name] = memguard.NewEnclave([]byte(value))
}

// PurgeSecrets wipes all enclaves. Called during graceful shutdown.
func PurgeSecrets() {
	secretsMu.Lock()
	secrets = nil
	secretsMu.Unlock()
	memguard.Purge()
	slog.Info("purged secret enclaves")
}
