package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 30s", cfg.Server.WriteTimeout)
	}
	if !cfg.Definitions.ValidateLabels {
		t.Error("Definitions.ValidateLabels = false, want true")
	}
	if len(cfg.Specs.Sources) != 1 {
		t.Errorf("Specs.Sources = %d entries, want 1", len(cfg.Specs.Sources))
	}

	svc, ok := cfg.Services["leads-svc"]
	if !ok {
		t.Fatal("Services[leads-svc] not found")
	}
	if svc.BaseURL != "https://leads.internal" {
		t.Errorf("leads-svc.BaseURL = %q", svc.BaseURL)
	}
	if svc.Timeout != 10*time.Second {
		t.Errorf("leads-svc.Timeout = %v, want 10s", svc.Timeout)
	}
	if svc.Pagination.SizeParam != "limit" {
		t.Errorf("leads-svc.Pagination.SizeParam = %q, want limit", svc.Pagination.SizeParam)
	}
	if svc.CircuitBreaker.FailureThreshold != 5 {
		t.Errorf("leads-svc.CircuitBreaker.FailureThreshold = %d, want 5", svc.CircuitBreaker.FailureThreshold)
	}

	if cfg.Options.Cache.TTL != 2*time.Minute {
		t.Errorf("Options.Cache.TTL = %v, want 2m", cfg.Options.Cache.TTL)
	}
	if cfg.Options.Store.Driver != "redis" {
		t.Errorf("Options.Store.Driver = %q, want redis", cfg.Options.Store.Driver)
	}
	if !cfg.Options.Warmup.Enabled {
		t.Error("Options.Warmup.Enabled = false, want true")
	}
	if cfg.Sessions.TTL != 10*time.Minute {
		t.Errorf("Sessions.TTL = %v, want 10m", cfg.Sessions.TTL)
	}
	if cfg.Observability.LogFile.Path != "/var/log/backoffice/app.log" {
		t.Errorf("LogFile.Path = %q", cfg.Observability.LogFile.Path)
	}
	if cfg.Observability.LogFile.MaxBackups != 5 {
		t.Errorf("LogFile.MaxBackups = %d, want default 5", cfg.Observability.LogFile.MaxBackups)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_invalid_store_driver(t *testing.T) {
	_, err := Load("testdata/invalid_store.yaml")
	if err == nil {
		t.Fatal("Load() with unknown store driver should return error")
	}
	if !strings.Contains(err.Error(), "memcached") {
		t.Errorf("error = %v, want mention of memcached", err)
	}
}

func TestLoad_bad_warmup_schedule(t *testing.T) {
	_, err := Load("testdata/bad_schedule.yaml")
	if err == nil {
		t.Fatal("Load() with bad schedule should return error")
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("BACKOFFICE_SERVER_PORT", "7070")
	t.Setenv("BACKOFFICE_OBSERVABILITY_LOG_LEVEL", "warn")
	t.Setenv("BACKOFFICE_DEFINITIONS_DIRECTORIES", "/a,/b")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.Observability.LogLevel)
	}
	if len(cfg.Definitions.Directories) != 2 {
		t.Errorf("Definitions.Directories = %v, want 2 entries", cfg.Definitions.Directories)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Options.Cache.TTL != 5*time.Minute {
		t.Errorf("default Options.Cache.TTL = %v, want 5m", cfg.Options.Cache.TTL)
	}
	if cfg.Options.Store.Driver != "memory" {
		t.Errorf("default Options.Store.Driver = %q, want memory", cfg.Options.Store.Driver)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults().Validate() = %v", err)
	}
}

func TestValidate_pageSizes(t *testing.T) {
	cfg := Defaults()
	cfg.Listing.MaxPageSize = 5
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject max_page_size below default_page_size")
	}
}

func TestValidate_serviceBaseURL(t *testing.T) {
	cfg := Defaults()
	cfg.Services = map[string]ServiceConfig{"leads-svc": {}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "leads-svc") {
		t.Errorf("Validate() = %v, want base_url error", err)
	}
}
