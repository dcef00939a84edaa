package main

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// runtimeEnv carries the deployment switches that are set per host rather
// than per world.
type runtimeEnv struct {
	IndexBackend    string `env:"MUD_INDEX_BACKEND" envDefault:"sqlite"`
	DeployEnv       string `env:"DEPLOY_ENV"`
	EnableAdminHTTP bool   `env:"MUD_ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool   `env:"MUD_ENABLE_PPROF_HTTP"`
}

func loadRuntimeEnv() (runtimeEnv, error) {
	return parseRuntimeEnv(env.Options{})
}

// parseRuntimeEnv reads DEPLOY_ENV first so the admin surface defaults off in
// staging and production unless MUD_ENABLE_ADMIN_HTTP says otherwise.
func parseRuntimeEnv(opts env.Options) (runtimeEnv, error) {
	var deploy struct {
		DeployEnv string `env:"DEPLOY_ENV"`
	}
	if err := env.ParseWithOptions(&deploy, opts); err != nil {
		return runtimeEnv{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := runtimeEnv{EnableAdminHTTP: defaultEnableAdminHTTP(deploy.DeployEnv)}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return runtimeEnv{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.IndexBackend = strings.ToLower(strings.TrimSpace(cfg.IndexBackend))
	return cfg, nil
}

func defaultEnableAdminHTTP(deployEnv string) bool {
	switch strings.ToLower(strings.TrimSpace(deployEnv)) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
