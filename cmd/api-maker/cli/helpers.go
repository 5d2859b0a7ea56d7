package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/faucetdb/api-maker/internal/adminstore"
	"github.com/faucetdb/api-maker/internal/engines"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/secrets"
	"github.com/faucetdb/api-maker/internal/txservice"
)

// resolveSpecPath returns the spec document path from the flag value or the
// API_SPEC environment binding.
func resolveSpecPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := viper.GetString("spec"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no spec document given: pass --spec or set API_SPEC")
}

// loadModel reads and parses the annotated OpenAPI document at path.
func loadModel(ctx context.Context, path string) (*model.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spec %q: %w", path, err)
	}
	defer f.Close()

	m, err := model.NewFactory().Load(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load spec %q: %w", path, err)
	}
	return m, nil
}

// resolveDataDir returns the bookkeeping directory, defaulting to
// ~/.api-maker.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".api-maker"
	}
	return filepath.Join(home, ".api-maker")
}

// buildService wires the transactional service: default engine provider,
// environment-backed secret resolution cached through the bookkeeping store,
// and the SECRETS database-to-secret mapping.
func buildService(m *model.Model, store *adminstore.Store, logger *slog.Logger) (*txservice.Service, error) {
	mapping, err := secrets.ParseMapping(viper.GetString("secrets"))
	if err != nil {
		return nil, err
	}

	var resolver = secrets.EnvResolver{}
	if store != nil {
		return txservice.New(m, engines.DefaultProvider(),
			adminstore.CachingResolver{Store: store, Next: resolver}, mapping, logger), nil
	}
	return txservice.New(m, engines.DefaultProvider(), resolver, mapping, logger), nil
}

// newLogger builds the process logger: JSON to stderr, level from the
// API_MAKER_LOG_LEVEL binding when present.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch viper.GetString("log_level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
