package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"worklog-platform/internal/pnl"
	"worklog-platform/internal/reports"
	"worklog-platform/internal/services"
)

// stdoutPath makes --out write to standard output
const stdoutPath = "-"

func newKPICmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "kpi",
		Short: "Print the dashboard KPIs as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, cmd, opts)
			if err != nil {
				return err
			}

			dashboard, err := app.Reports.Dashboard(ctx, opts.Month, opts.Task)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(dashboard)
		},
	}
}

func newPnLCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "pnl",
		Short: "Print the per-site P&L for --month",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, cmd, opts)
			if err != nil {
				return err
			}

			result, err := app.Reports.ProfitAndLoss(ctx, opts.Month)
			if err != nil {
				return err
			}

			return writePnL(cmd.OutOrStdout(), result)
		},
	}
}

func writePnL(w io.Writer, result *services.ProfitAndLoss) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "site\trevenue\tlabor\tmachine\tother\tgross\tmargin\t")

	row := func(label string, r pnl.Row) {
		margin := "-"
		if r.MarginRatio != nil {
			margin = fmt.Sprintf("%.1f%%", *r.MarginRatio*100)
		}
		fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\t%s\t\n",
			label, r.Revenue, r.LaborCost, r.MachineCost, r.OtherCost, r.Gross, margin)
	}
	for _, r := range result.Rows {
		row(r.SiteID, r)
	}
	row("total", result.Totals)

	return tw.Flush()
}

func newExportCmd(opts *Options) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:       "export billing|timesheet|site-daily",
		Short:     "Write a report for --month as CSV or XLSX",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(reports.KindBilling), string(reports.KindTimesheet), string(reports.KindSiteDailyHours)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := reports.ParseKind(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := loadApp(ctx, cmd, opts)
			if err != nil {
				return err
			}

			file, err := app.Reports.Export(ctx, kind, opts.Month, format)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, file.Name, file.Body)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", services.FormatCSV, "Output format: csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path, - for stdout (default: report file name)")
	return cmd
}

func newWorkLogsCmd(opts *Options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "worklogs",
		Short: "Write the merged work logs of every input in the import format",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, cmd, opts)
			if err != nil {
				return err
			}

			file, err := app.Reports.ExportWorkLogs(ctx, opts.Month)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, file.Name, file.Body)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path, - for stdout (default: worklog_<today>.csv)")
	return cmd
}

func newChartCmd(opts *Options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the dashboard charts as an HTML page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, cmd, opts)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := app.Reports.Chart(ctx, opts.Month, opts.Task, &buf); err != nil {
				return err
			}
			return writeOutput(cmd, out, "dashboard.html", buf.Bytes())
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path, - for stdout (default: dashboard.html)")
	return cmd
}

// writeOutput writes body to path, to defaultName when path is empty, or to stdout for "-"
func writeOutput(cmd *cobra.Command, path, defaultName string, body []byte) error {
	if path == stdoutPath {
		_, err := cmd.OutOrStdout().Write(body)
		return err
	}
	if path == "" {
		path = defaultName
	}

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(body))
	return nil
}
