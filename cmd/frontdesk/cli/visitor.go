package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/faucetdb/frontdesk/internal/model"
	"github.com/faucetdb/frontdesk/internal/report"
)

func newVisitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "visitor",
		Aliases: []string{"visitors"},
		Short:   "Inspect visitors and export reports",
	}

	cmd.AddCommand(newVisitorListCmd())
	cmd.AddCommand(newVisitorBadgeCmd())

	return cmd
}

// ---------- visitor list ----------

func newVisitorListCmd() *cobra.Command {
	var (
		companyID  int64
		status     string
		department string
		from       string
		to         string
		format     string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "report"},
		Short:   "List a company's visitors",
		Example: `  frontdesk visitor list --company 1
  frontdesk visitor list --company 1 --status checked_in
  frontdesk visitor list --company 1 --from 2024-03-01 --to 2024-03-31 --format csv -o march.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := model.ReportQuery{Status: status, Department: department}
			var err error
			if q.From, err = parseDay("from", from); err != nil {
				return err
			}
			if q.To, err = parseDay("to", to); err != nil {
				return err
			}
			return runVisitorList(cmd.Context(), companyID, q, format, outputFile)
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 1, "Company whose visitors to list")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: registered, pre_registered, checked_in, checked_out")
	cmd.Flags().StringVar(&department, "department", "", "Filter by department")
	cmd.Flags().StringVar(&from, "from", "", "Only visitors created on or after this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "Only visitors created on or before this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json or csv")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func parseDay(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be RFC3339 or YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

func runVisitorList(ctx context.Context, companyID int64, q model.ReportQuery, format, outputFile string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, os.Stderr)
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	visitors, err := newVisitorService(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	list, err := visitors.Report(ctx, companyID, q)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "csv":
		if err := report.WriteCSV(out, list); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(list); err != nil {
			return err
		}
	case "table", "":
		if len(list) == 0 {
			fmt.Fprintln(out, "No visitors found.")
			break
		}
		fmt.Fprintf(out, "%-6s %-24s %-16s %-14s %-20s\n", "ID", "NAME", "DEPARTMENT", "STATUS", "CHECK IN")
		fmt.Fprintf(out, "%-6s %-24s %-16s %-14s %-20s\n", "--", "----", "----------", "------", "--------")
		for i := range list {
			v := &list[i]
			checkIn := "-"
			if v.CheckIn != nil {
				checkIn = v.CheckIn.UTC().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(out, "%-6d %-24s %-16s %-14s %-20s\n", v.ID, v.Name, v.Department, v.Status(), checkIn)
		}
	default:
		return fmt.Errorf("unsupported format %q; use table, json or csv", format)
	}

	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d visitors to %s\n", len(list), outputFile)
	}
	return nil
}

// ---------- visitor badge ----------

func newVisitorBadgeCmd() *cobra.Command {
	var (
		companyID  int64
		visitorID  int64
		outputFile string
	)

	cmd := &cobra.Command{
		Use:     "badge",
		Short:   "Render a visitor's badge as PDF",
		Example: `  frontdesk visitor badge --company 1 --id 42 -o badge.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				outputFile = fmt.Sprintf("badge_%d.pdf", visitorID)
			}
			return runVisitorBadge(cmd.Context(), companyID, visitorID, outputFile)
		},
	}

	cmd.Flags().Int64Var(&companyID, "company", 1, "Company that owns the visitor")
	cmd.Flags().Int64Var(&visitorID, "id", 0, "Visitor ID (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default badge_<id>.pdf)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runVisitorBadge(ctx context.Context, companyID, visitorID int64, outputFile string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, os.Stderr)
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	visitors, err := newVisitorService(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	pdf, err := visitors.Badge(ctx, companyID, visitorID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputFile, pdf, 0644); err != nil {
		return fmt.Errorf("write badge: %w", err)
	}

	fmt.Printf("Wrote badge for visitor %d to %s (%d bytes)\n", visitorID, outputFile, len(pdf))
	return nil
}
