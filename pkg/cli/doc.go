/*
Package cli provides command-line interface utilities for the reportkeeper
command.

Output Formatting:

Command results can be rendered as aligned text tables, JSON or CSV:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, cli.ReportTable(reports)); err != nil {
		return err
	}

Values implementing Table are rendered row by row in text and CSV; anything
else falls back to fmt for text and is rejected by CSV.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes so scripts can tell a
bad configuration apart from a failed operation.
*/
package cli
