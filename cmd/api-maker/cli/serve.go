package cli

import (
	"context"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpadapter "github.com/faucetdb/api-maker/internal/adapter/http"
	"github.com/faucetdb/api-maker/internal/adapter/http/middleware"
	"github.com/faucetdb/api-maker/internal/adminstore"
	"github.com/faucetdb/api-maker/internal/gateway"
	"github.com/faucetdb/api-maker/internal/mcp"
	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		specPath    string
		host        string
		port        int
		enableCORS  bool
		corsOrigins []string
		rateLimit   int
		jwtSecret   string
		mcpAddr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CRUD service",
		Long: `Load the annotated OpenAPI document, build the model, and serve the derived
CRUD API over HTTP. Database credentials are resolved per logical database
through the SECRETS mapping; each secret name is read from the environment as
a JSON connection config.`,
		Example: `  api-maker serve --spec chinook.yaml
  API_SPEC=chinook.yaml SECRETS='{"chinook":"CHINOOK_DB"}' api-maker serve
  api-maker serve --spec chinook.yaml --jwt-secret "$JWT_SECRET" --mcp-addr :3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(specPath, host, port, enableCORS, corsOrigins, rateLimit, jwtSecret, mcpAddr)
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "", "Path to the annotated OpenAPI document (or set API_SPEC)")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Listen host")
	cmd.Flags().IntVar(&port, "port", 8080, "Listen port")
	cmd.Flags().BoolVar(&enableCORS, "cors", false, "Serve cross-origin requests and declare the preflight section in the gateway spec")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", []string{"*"}, "Allowed CORS origins (with --cors)")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 600, "Maximum requests per minute per client IP (0 disables)")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "HMAC secret enabling the bearer-token authorizer (or set API_MAKER_JWT_SECRET)")
	cmd.Flags().StringVar(&mcpAddr, "mcp-addr", "", "Also serve MCP over streamable HTTP on this address (e.g. :3001)")

	return cmd
}

func runServe(specPath, host string, port int, enableCORS bool, corsOrigins []string, rateLimit int, jwtSecret, mcpAddr string) error {
	logger := newLogger()
	ctx := context.Background()

	path, err := resolveSpecPath(specPath)
	if err != nil {
		return err
	}
	m, err := loadModel(ctx, path)
	if err != nil {
		return err
	}

	store, err := adminstore.NewStore(resolveDataDir())
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := buildService(m, store, logger)
	if err != nil {
		return err
	}

	tracker := telemetry.New(ctx, store, func() telemetry.Properties {
		return modelProperties(m)
	})
	if tracker != nil {
		telemetry.PrintNotice()
		tracker.Start()
		defer tracker.Shutdown()
	}

	cfg := httpadapter.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.EnableCORS = enableCORS
	cfg.CORSOrigins = corsOrigins
	cfg.RateLimitPerMinute = rateLimit

	if jwtSecret == "" {
		jwtSecret = viper.GetString("jwt_secret")
	}
	if jwtSecret != "" {
		cfg.Authorizer = middleware.JWTAuthorizer{Secret: []byte(jwtSecret)}
	}

	// The gateway document and the adapter share one CORS decision: the
	// preflight section is declared iff the adapter will serve it.
	gatewayDoc := gateway.Generate(m, gateway.Config{
		Title:       "api-maker",
		Version:     appVersion,
		EnableCORS:  enableCORS,
		CORSOrigins: corsOrigins,
	})

	exec := adminstore.AuditingExecutor{
		Store:     store,
		Next:      svc,
		RequestID: middleware.GetRequestID,
	}

	if mcpAddr != "" {
		mcpServer := mcp.NewMCPServer(exec, m, logger)
		go func() {
			if err := mcpServer.ServeHTTP(mcpAddr); err != nil {
				logger.Error("MCP server stopped", "error", err)
			}
		}()
	}

	server := httpadapter.New(cfg, exec, m, gatewayDoc, logger)
	return server.ListenAndServe()
}

// modelProperties summarizes the loaded model for the telemetry heartbeat.
func modelProperties(m *model.Model) telemetry.Properties {
	engineSet := map[string]bool{}
	relations, versioned := 0, 0
	schemas := m.SchemaObjects()
	for _, s := range schemas {
		engineSet[string(s.Engine)] = true
		relations += len(s.Relations)
		if s.ConcurrencyProperty != nil {
			versioned++
		}
	}
	engineList := make([]string, 0, len(engineSet))
	for e := range engineSet {
		engineList = append(engineList, e)
	}
	sort.Strings(engineList)

	return telemetry.Properties{
		Version:           appVersion,
		GoVersion:         runtime.Version(),
		OS:                runtime.GOOS,
		Arch:              runtime.GOARCH,
		Engines:           engineList,
		Entities:          len(schemas),
		Relations:         relations,
		VersionedEntities: versioned,
	}
}
