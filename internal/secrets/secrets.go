// Package secrets implements SecretResolver over the process environment:
// each secret name is an environment variable holding a JSON connection
// config. Deployments with a real secret store substitute their own
// resolver behind the same interface.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/faucetdb/api-maker/internal/connection"
)

// EnvResolver resolves a secret name by reading the identically named
// environment variable and decoding it as a JSON connection config:
//
//	{"engine":"postgres","host":"db","port":5432,"dbname":"app",
//	 "username":"u","password":"p"}
type EnvResolver struct{}

type configJSON struct {
	Engine   string `json:"engine"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbname"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Resolve implements connection.SecretResolver.
func (EnvResolver) Resolve(_ context.Context, name string) (connection.ConnectionConfig, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return connection.ConnectionConfig{}, fmt.Errorf("secret %q is not set", name)
	}
	var cfg configJSON
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return connection.ConnectionConfig{}, fmt.Errorf("secret %q: %w", name, err)
	}
	return connection.ConnectionConfig{
		Engine:   cfg.Engine,
		Host:     cfg.Host,
		Port:     cfg.Port,
		DBName:   cfg.DBName,
		Username: cfg.Username,
		Password: cfg.Password,
	}, nil
}

// Static is a fixed name-to-config resolver, used by tests and by the CLI
// when credentials arrive on the command line instead of a secret store.
type Static map[string]connection.ConnectionConfig

// Resolve implements connection.SecretResolver.
func (s Static) Resolve(_ context.Context, name string) (connection.ConnectionConfig, error) {
	cfg, ok := s[name]
	if !ok {
		return connection.ConnectionConfig{}, fmt.Errorf("secret %q is not configured", name)
	}
	return cfg, nil
}

// ParseMapping decodes the SECRETS environment value: a JSON object mapping
// logical database names to secret names.
func ParseMapping(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	out := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parsing secrets mapping: %w", err)
	}
	return out, nil
}
