package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/filescout/internal/config"
	"github.com/harrison/filescout/internal/filteredlog"
	"github.com/harrison/filescout/internal/history"
	"github.com/harrison/filescout/internal/logger"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the 'filescout history' command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scans",
		Long: `List the scans recorded with 'filescout scan --record', newest first.

Examples:
  # Show the ten most recent scans
  filescout history --limit 10

  # Replay the log of a scan (a unique ID prefix is enough)
  filescout history show 3f2a`,
		Args: cobra.NoArgs,
		RunE: runHistoryList,
	}

	cmd.PersistentFlags().String("db-path", "", "Path to the history database (default: from config)")
	cmd.Flags().Int("limit", 20, "Maximum number of scans to list (0 = all)")

	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded scan and replay its log",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
}

func newHistoryPruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded scans older than the given age",
		Args:  cobra.NoArgs,
		RunE:  runHistoryPrune,
	}
	cmd.Flags().Duration("older-than", 30*24*time.Hour, "Delete scans started before now minus this age")
	return cmd
}

// openHistoryStore resolves the database path (flag, then config, then home)
// and opens it. ok is false when no database exists yet.
func openHistoryStore(cmd *cobra.Command) (store *history.Store, ok bool, err error) {
	dbPath, _ := cmd.Flags().GetString("db-path")
	if dbPath == "" {
		cfg, err := config.LoadConfigFromDir(".")
		if err != nil {
			return nil, false, fmt.Errorf("failed to load config: %w", err)
		}
		if dbPath, err = cfg.GetHistoryDBPath(); err != nil {
			return nil, false, fmt.Errorf("failed to get history database path: %w", err)
		}
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, false, nil
	}

	store, err = history.NewStore(dbPath)
	if err != nil {
		return nil, false, fmt.Errorf("open history store: %w", err)
	}
	return store, true, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	output := cmd.OutOrStdout()
	limit, _ := cmd.Flags().GetInt("limit")

	store, ok, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(output, "No scans recorded yet. Use 'filescout scan --record'.")
		return nil
	}
	defer store.Close()

	scans, err := store.ListScans(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list scans: %w", err)
	}
	if len(scans) == 0 {
		fmt.Fprintln(output, "No scans recorded yet. Use 'filescout scan --record'.")
		return nil
	}

	printScanList(output, scans)
	return nil
}

func printScanList(w io.Writer, scans []*history.ScanRecord) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	cyan.Fprintf(w, "%-8s  %-19s  %-9s  %6s  %9s  %-6s  %s\n",
		"ID", "STARTED", "PROCESSOR", "FOUND", "PROCESSED", "STATUS", "WORKSPACE")
	for _, s := range scans {
		fmt.Fprintf(w, "%-8s  %-19s  %-9s  %6d  %9d  ",
			shortID(s.ID), s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Processor, s.Found, s.Processed)
		if s.HasErrors {
			red.Fprintf(w, "%-6s", "ERRORS")
		} else {
			green.Fprintf(w, "%-6s", "OK")
		}
		fmt.Fprintf(w, "  %s\n", s.Workspace)
	}
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	output := cmd.OutOrStdout()

	store, ok, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", history.ErrScanNotFound, args[0])
	}
	defer store.Close()

	scan, err := store.GetScan(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(output, "\n=== Scan %s ===\n\n", scan.ID)
	fmt.Fprintf(output, "  Workspace: %s\n", scan.Workspace)
	fmt.Fprintf(output, "  Pattern: %s\n", scan.Pattern)
	fmt.Fprintf(output, "  Encoding: %s\n", scan.Encoding)
	fmt.Fprintf(output, "  Processor: %s\n", scan.Processor)
	fmt.Fprintf(output, "  Started: %s ", scan.StartedAt.Local().Format(time.RFC3339))
	gray.Fprintf(output, "(%s ago)\n", humanAge(time.Since(scan.StartedAt)))
	fmt.Fprintf(output, "  Duration: %dms\n", scan.Duration.Milliseconds())
	fmt.Fprintf(output, "  Found: %d, processed: %d\n\n", scan.Found, scan.Processed)

	// The stored error lines already start with the log title
	replay := filteredlog.NewWithLimit("", -1)
	handler := logger.NewLogHandler(output, "history")
	for _, msg := range scan.ErrorMessages {
		replay.LogError(msg)
	}
	handler.Log(replay)
	if scan.SkippedErrors > 0 {
		handler.LogSkipped(scan.SkippedErrors)
	}
	for _, msg := range scan.InfoMessages {
		replay.LogInfo(msg)
	}
	handler.Log(replay)
	fmt.Fprintln(output)

	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	output := cmd.OutOrStdout()
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan < 0 {
		return errors.New("--older-than must not be negative")
	}

	store, ok, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(output, "Deleted 0 scan(s).")
		return nil
	}
	defer store.Close()

	n, err := store.DeleteOlderThan(cmd.Context(), time.Now().Add(-olderThan))
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "Deleted %d scan(s).\n", n)
	return nil
}

// shortID returns the first eight characters of a scan ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// humanAge renders an age as "45s", "12m", "3h" or "2d"
func humanAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
