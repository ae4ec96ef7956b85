package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"mercator-hq/reportkeeper/pkg/cli"
	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/report/reclamation"
	"mercator-hq/reportkeeper/pkg/security/auth"
)

var reclaimFlags struct {
	remote bool
	last   bool
}

var reclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Run reclamation now",
	Long: `Run one reclamation pass: hard-delete reports whose recovery window has
elapsed, then soft-delete drafts that have not been edited for too long.

By default the pass runs in this process against the configured store. With
--remote the running server performs it instead. Either way the API key must
belong to an operator or superadmin.

Examples:
  # Reclaim against the configured store
  reportkeeper reclaim --api-key $OPERATOR_KEY

  # Ask the server to reclaim and print the summary as JSON
  reportkeeper reclaim --remote --server https://reports.internal:8443 -o json

  # Show the summary of the server's last run
  reportkeeper reclaim --remote --last`,
	Args: cobra.NoArgs,
	RunE: runReclaim,
}

func init() {
	rootCmd.AddCommand(reclaimCmd)
	addClientFlags(reclaimCmd)

	reclaimCmd.Flags().BoolVar(&reclaimFlags.remote, "remote", false, "run on the server instead of in this process")
	reclaimCmd.Flags().BoolVar(&reclaimFlags.last, "last", false, "show the last run instead of starting one (requires --remote)")
}

func runReclaim(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(clientFlags.output))
	if err != nil {
		return err
	}

	var summary *reclamation.Summary
	if reclaimFlags.remote {
		summary, err = reclaimRemote(cmd.Context())
	} else {
		if reclaimFlags.last {
			return fmt.Errorf("--last requires --remote")
		}
		summary, err = reclaimLocal(cmd.Context())
	}

	if summary != nil {
		if ferr := formatter.FormatTo(cmd.OutOrStdout(), cli.SummaryTable{Summary: summary}); ferr != nil {
			return ferr
		}
	}
	if err != nil {
		return cli.NewCommandError("reclaim", err)
	}
	return nil
}

func reclaimRemote(ctx context.Context) (*reclamation.Summary, error) {
	c, err := newAPIClient(clientFlags.server, clientFlags.apiKey, clientFlags.timeout)
	if err != nil {
		return nil, err
	}

	method := http.MethodPost
	if reclaimFlags.last {
		method = http.MethodGet
	}
	var summary reclamation.Summary
	if err := c.do(ctx, method, "/v1/admin/reclamation", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func reclaimLocal(ctx context.Context) (*reclamation.Summary, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Telemetry.Logging); err != nil {
		return nil, err
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	return reclaimAs(ctx, a, auth.NewRoleAuthorizer(), apiKeyOrEnv(clientFlags.apiKey))
}

// reclaimAs authenticates key against the configured keys and runs the
// reclaimer when its holder may reclaim.
func reclaimAs(ctx context.Context, a *app, authorizer *auth.RoleAuthorizer, key string) (*reclamation.Summary, error) {
	if key == "" {
		return nil, fmt.Errorf("an API key is required (--api-key or REPORTKEEPER_API_KEY)")
	}
	info, err := a.keys.Validate(key)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !authorizer.Allowed(info.Principal(), auth.CapabilityReclaim) {
		return nil, report.ErrForbidden
	}
	return a.reclaimer.Run(ctx, reclamation.TriggerCLI)
}
