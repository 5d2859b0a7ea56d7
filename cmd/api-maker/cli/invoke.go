package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faucetdb/api-maker/internal/operation"
)

func newInvokeCmd() *cobra.Command {
	var (
		specPath   string
		entity     string
		action     string
		queryPairs []string
		storePairs []string
		properties string
		count      bool
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Execute one operation from the command line",
		Long: `Run a single read/create/update/delete directly against the configured
databases, bypassing the HTTP adapter. Useful for smoke-testing a spec and
its credentials.`,
		Example: `  api-maker invoke --spec chinook.yaml --entity invoice --action read --query invoice_id=5
  api-maker invoke --spec chinook.yaml --entity invoice --action read \
      --query 'invoice_id=between::1200,1300' --properties '.* line_items:.*'
  api-maker invoke --spec chinook.yaml --entity invoice --action create --set billing_country=Brazil`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveSpecPath(specPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			logger := newLogger()

			m, err := loadModel(ctx, path)
			if err != nil {
				return err
			}
			svc, err := buildService(m, nil, logger)
			if err != nil {
				return err
			}

			queryParams, err := parsePairs(queryPairs)
			if err != nil {
				return err
			}
			storeParams, err := parsePairs(storePairs)
			if err != nil {
				return err
			}

			op := operation.Operation{
				Entity:      entity,
				Action:      operation.Action(action),
				QueryParams: queryParams,
				StoreParams: storeParams,
				Metadata:    operation.Metadata{Properties: properties, Count: count},
			}

			records, err := svc.Execute(ctx, op)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "", "Path to the annotated OpenAPI document (or set API_SPEC)")
	cmd.Flags().StringVar(&entity, "entity", "", "Entity to operate on")
	cmd.Flags().StringVar(&action, "action", "read", "Action: read, create, update, or delete")
	cmd.Flags().StringArrayVar(&queryPairs, "query", nil, "Query parameter as name=value (repeatable; value may be operator-encoded)")
	cmd.Flags().StringArrayVar(&storePairs, "set", nil, "Store parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&properties, "properties", "", "Selector expression for returned properties and relations")
	cmd.Flags().BoolVar(&count, "count", false, "Return a count instead of records")
	cmd.MarkFlagRequired("entity")

	return cmd
}

func parsePairs(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, pair := range pairs {
		idx := strings.Index(pair, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid parameter %q: expected name=value", pair)
		}
		out[pair[:idx]] = pair[idx+1:]
	}
	return out, nil
}
