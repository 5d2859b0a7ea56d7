package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/api-maker/internal/gateway"
)

func newGatewayCmd() *cobra.Command {
	var (
		specPath      string
		outputFile    string
		format        string
		baseURL       string
		enableCORS    bool
		corsOrigins   []string
		authorizerURI string
	)

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Emit the expanded gateway OpenAPI document",
		Long: `Expand the annotated document into the full OpenAPI spec of the derived CRUD
surface: one path set per entity, operator-aware query-parameter patterns,
and the optional CORS and token-authorizer sections. Deployment tooling
consumes the output; nothing is deployed from here.`,
		Example: `  api-maker gateway --spec chinook.yaml
  api-maker gateway --spec chinook.yaml --format yaml -o gateway.yaml
  api-maker gateway --spec chinook.yaml --cors --authorizer-uri arn:...:function:authz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveSpecPath(specPath)
			if err != nil {
				return err
			}
			m, err := loadModel(context.Background(), path)
			if err != nil {
				return err
			}

			doc := gateway.Generate(m, gateway.Config{
				Title:         "api-maker",
				Version:       appVersion,
				BaseURL:       baseURL,
				EnableCORS:    enableCORS,
				CORSOrigins:   corsOrigins,
				AuthorizerURI: authorizerURI,
			})

			jsonBytes, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal gateway spec: %w", err)
			}

			out := jsonBytes
			if format == "yaml" {
				var tree any
				if err := yaml.Unmarshal(jsonBytes, &tree); err != nil {
					return fmt.Errorf("convert gateway spec: %w", err)
				}
				out, err = yaml.Marshal(tree)
				if err != nil {
					return fmt.Errorf("marshal gateway spec: %w", err)
				}
			}

			if outputFile != "" {
				if err := os.WriteFile(outputFile, out, 0644); err != nil {
					return fmt.Errorf("write file %q: %w", outputFile, err)
				}
				fmt.Printf("Gateway spec written to %s\n", outputFile)
				return nil
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "", "Path to the annotated OpenAPI document (or set API_SPEC)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for the servers section")
	cmd.Flags().BoolVar(&enableCORS, "cors", false, "Emit the CORS preflight section")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "Allowed CORS origins for the preflight section")
	cmd.Flags().StringVar(&authorizerURI, "authorizer-uri", "", "Invoke URI for the custom token authorizer")

	return cmd
}
