package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/reportkeeper/pkg/cli"
	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/server"
)

var reportFlags struct {
	owner   string
	branch  string
	deleted string
	limit   int
	all     bool
	fields  string
	content string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Work with reports through a running server",
	Long: `Create, inspect, delete, recover and advance reports through the
Report Keeper API. The same access rules apply as for any other API client.

Examples:
  # List your reports
  reportkeeper report list --api-key $KEY

  # List deleted reports of a branch as CSV
  reportkeeper report list --branch b1 --deleted true -o csv

  # Move a report to the office stage
  reportkeeper report advance r1 stage2 --fields '{"customer_name":"Ada","address":"1 Main St","roof_type":"gable"}'

  # Recover a deleted report
  reportkeeper report recover r1`,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports",
	Args:  cobra.NoArgs,
	RunE:  listReports,
}

var reportGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a report",
	Args:  cobra.ExactArgs(1),
	RunE:  getReport,
}

var reportCreateCmd = &cobra.Command{
	Use:   "create [id]",
	Short: "Create a report in stage1",
	Args:  cobra.MaximumNArgs(1),
	RunE:  createReport,
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft delete a report",
	Long: `Soft delete a report. It can be recovered until the recovery window
elapses, after which reclamation removes it for good.`,
	Args: cobra.ExactArgs(1),
	RunE: deleteReport,
}

var reportRecoverCmd = &cobra.Command{
	Use:   "recover <id>",
	Short: "Recover a soft-deleted report",
	Args:  cobra.ExactArgs(1),
	RunE:  recoverReport,
}

var reportAdvanceCmd = &cobra.Command{
	Use:   "advance <id> <stage>",
	Short: "Advance a report to its next stage",
	Args:  cobra.ExactArgs(2),
	RunE:  advanceReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd, reportGetCmd, reportCreateCmd, reportDeleteCmd, reportRecoverCmd, reportAdvanceCmd)
	addClientFlags(reportCmd)

	reportListCmd.Flags().StringVar(&reportFlags.owner, "owner", "", "filter by owner id")
	reportListCmd.Flags().StringVar(&reportFlags.branch, "branch", "", "filter by branch id")
	reportListCmd.Flags().StringVar(&reportFlags.deleted, "deleted", "", "filter by deletion state (true, false)")
	reportListCmd.Flags().IntVar(&reportFlags.limit, "limit", 50, "page size")
	reportListCmd.Flags().BoolVar(&reportFlags.all, "all", false, "follow cursors and list every page")

	reportCreateCmd.Flags().StringVar(&reportFlags.owner, "owner", "", "owner id (defaults to the caller)")
	reportCreateCmd.Flags().StringVar(&reportFlags.branch, "branch", "", "branch id (defaults to the caller's branch)")
	reportCreateCmd.Flags().StringVar(&reportFlags.content, "content", "", "initial content as a JSON object")

	reportAdvanceCmd.Flags().StringVar(&reportFlags.fields, "fields", "", "content fields to merge, as a JSON object")
}

func addClientFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&clientFlags.server, "server", "", "server URL (default $REPORTKEEPER_SERVER or "+DefaultServerURL+")")
	flags.StringVar(&clientFlags.apiKey, "api-key", "", "API key (default $REPORTKEEPER_API_KEY)")
	flags.DurationVar(&clientFlags.timeout, "timeout", 0, "request timeout (0 waits for the server)")
	flags.StringVarP(&clientFlags.output, "output", "o", "text", "output format: text, json, csv")
}

func client() (*apiClient, cli.Formatter, error) {
	formatter, err := cli.NewFormatter(cli.OutputFormat(clientFlags.output))
	if err != nil {
		return nil, nil, err
	}
	c, err := newAPIClient(clientFlags.server, clientFlags.apiKey, clientFlags.timeout)
	if err != nil {
		return nil, nil, err
	}
	return c, formatter, nil
}

func listReports(cmd *cobra.Command, args []string) error {
	c, formatter, err := client()
	if err != nil {
		return err
	}

	params := url.Values{}
	if reportFlags.owner != "" {
		params.Set("owner_id", reportFlags.owner)
	}
	if reportFlags.branch != "" {
		params.Set("branch_id", reportFlags.branch)
	}
	if reportFlags.deleted != "" {
		params.Set("deleted", reportFlags.deleted)
	}
	params.Set("limit", strconv.Itoa(reportFlags.limit))

	reports, err := fetchReports(cmd.Context(), c, params, reportFlags.all)
	if err != nil {
		return cli.NewCommandError("report list", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), cli.ReportTable(reports))
}

func fetchReports(ctx context.Context, c *apiClient, params url.Values, all bool) ([]*report.Report, error) {
	var reports []*report.Report
	for {
		var page server.ListResponse
		if err := c.do(ctx, http.MethodGet, "/v1/reports?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		reports = append(reports, page.Reports...)
		if !all || page.NextCursor == "" {
			return reports, nil
		}
		params.Set("cursor", page.NextCursor)
	}
}

func getReport(cmd *cobra.Command, args []string) error {
	return reportCall(cmd, "report get", http.MethodGet, "/v1/reports/"+url.PathEscape(args[0]), nil)
}

func createReport(cmd *cobra.Command, args []string) error {
	req := server.CreateReportRequest{
		OwnerID:  reportFlags.owner,
		BranchID: reportFlags.branch,
	}
	if len(args) == 1 {
		req.ID = args[0]
	}
	if reportFlags.content != "" {
		if err := json.Unmarshal([]byte(reportFlags.content), &req.Content); err != nil {
			return fmt.Errorf("invalid --content: %w", err)
		}
	}
	return reportCall(cmd, "report create", http.MethodPost, "/v1/reports", req)
}

func deleteReport(cmd *cobra.Command, args []string) error {
	c, _, err := client()
	if err != nil {
		return err
	}

	var resp server.DeleteResponse
	if err := c.do(cmd.Context(), http.MethodDelete, "/v1/reports/"+url.PathEscape(args[0]), nil, &resp); err != nil {
		return cli.NewCommandError("report delete", err)
	}

	if clientFlags.output == string(cli.FormatJSON) {
		return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), resp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Report %s deleted at %s\n", resp.ID, resp.DeletedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(cmd.OutOrStdout(), "  Recoverable until %s\n", resp.RecoverableUntil.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func recoverReport(cmd *cobra.Command, args []string) error {
	return reportCall(cmd, "report recover", http.MethodPost, "/v1/reports/"+url.PathEscape(args[0])+"/recover", nil)
}

func advanceReport(cmd *cobra.Command, args []string) error {
	req := server.AdvanceRequest{Stage: args[1]}
	if reportFlags.fields != "" {
		if err := json.Unmarshal([]byte(reportFlags.fields), &req.Fields); err != nil {
			return fmt.Errorf("invalid --fields: %w", err)
		}
	}
	return reportCall(cmd, "report advance", http.MethodPost, "/v1/reports/"+url.PathEscape(args[0])+"/advance", req)
}

// reportCall performs a request answered by a single report and prints it.
func reportCall(cmd *cobra.Command, name, method, path string, body any) error {
	c, formatter, err := client()
	if err != nil {
		return err
	}

	var r report.Report
	if err := c.do(cmd.Context(), method, path, body, &r); err != nil {
		return cli.NewCommandError(name, err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), cli.ReportTable{&r})
}
