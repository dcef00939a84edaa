package main

import (
	"testing"

	"github.com/caarlos0/env/v11"
)

func TestParseRuntimeEnv(t *testing.T) {
	cases := []struct {
		name      string
		vars      map[string]string
		backend   string
		admin     bool
		pprof     bool
		expectErr bool
	}{
		{name: "defaults", vars: map[string]string{}, backend: "sqlite", admin: true},
		{name: "production hides admin", vars: map[string]string{"DEPLOY_ENV": "Production"}, backend: "sqlite"},
		{name: "explicit admin wins", vars: map[string]string{"DEPLOY_ENV": "staging", "MUD_ENABLE_ADMIN_HTTP": "true"}, backend: "sqlite", admin: true},
		{name: "backend and pprof", vars: map[string]string{"MUD_INDEX_BACKEND": " NONE ", "MUD_ENABLE_PPROF_HTTP": "1"}, backend: "none", admin: true, pprof: true},
		{name: "bad bool", vars: map[string]string{"MUD_ENABLE_PPROF_HTTP": "maybe"}, expectErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := parseRuntimeEnv(env.Options{Environment: tc.vars})
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if cfg.IndexBackend != tc.backend || cfg.EnableAdminHTTP != tc.admin || cfg.EnablePprofHTTP != tc.pprof {
				t.Fatalf("cfg: %+v", cfg)
			}
		})
	}
}

func TestOpenRuntimeIndexBackends(t *testing.T) {
	dir := t.TempDir()
	if idx, err := openRuntimeIndex(dir, "none", false); err != nil || idx != nil {
		t.Fatalf("none: %v %v", idx, err)
	}
	if idx, err := openRuntimeIndex(dir, "sqlite", true); err != nil || idx != nil {
		t.Fatalf("disabled: %v %v", idx, err)
	}
	if _, err := openRuntimeIndex(dir, "postgres", false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	idx, err := openRuntimeIndex(dir, "sqlite", false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: %v", err)
	}
	_ = idx.Close()
}
