package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/filescout/internal/config"
	"github.com/harrison/filescout/internal/filelock"
	"github.com/harrison/filescout/internal/history"
	"github.com/harrison/filescout/internal/logger"
	"github.com/harrison/filescout/internal/processor"
	"github.com/harrison/filescout/internal/visitor"
	"github.com/harrison/filescout/internal/watch"
	"github.com/spf13/cobra"
)

// ErrScanHasErrors is returned by scan --fail-on-errors when the scan log contains errors.
var ErrScanHasErrors = errors.New("scan reported errors")

// NewScanCommand creates the 'filescout scan' command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [workspace]",
		Short: "Scan a workspace and process every matching file",
		Long: `Scan finds all files below the workspace (default: current directory)
that match the file pattern, skips unreadable and empty files and runs the
selected processor on the rest.

The scan log is printed to stdout, prefixed with the handler name; error lines
are marked with [-ERROR-]. Diagnostics and the summary go to stderr.

Processors:
  lines      count lines and bytes
  markdown   extract the heading outline
  yaml       check that every YAML document parses`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().String("config", "", "Path to config file (default: <workspace>/.filescout/config.yaml)")
	cmd.Flags().String("pattern", "", "Glob (or comma-separated globs) of the files to scan")
	cmd.Flags().String("encoding", "", "Charset used to read the files")
	cmd.Flags().Bool("follow-symlinks", true, "Traverse symbolic links")
	cmd.Flags().String("processor", "", "Processor to run: "+strings.Join(processor.Names(), ", "))
	cmd.Flags().String("name", "", "Handler name printed before every log line")
	cmd.Flags().String("log-level", "", "Diagnostic log level (trace, debug, info, warn, error)")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().Int("max-error-lines", 0, "Error lines kept per scan (negative = unlimited)")
	cmd.Flags().String("report", "", "Write a JSON report to this file")
	cmd.Flags().Bool("record", false, "Record the scan in the history database")
	cmd.Flags().Bool("fail-on-errors", false, "Exit with an error when the scan log contains errors")
	cmd.Flags().Bool("watch", false, "Rescan whenever files in the workspace change")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	workspace := "."
	if len(args) == 1 {
		workspace = args[0]
	}

	cfg, err := loadScanConfig(cmd, workspace)
	if err != nil {
		return err
	}

	fs := visitor.NewOSFileSystem()
	fs.ExcludeDirs = cfg.ExcludeDirs

	transform, err := processor.Lookup(cfg.Processor, fs.Fs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	var fileLogger *logger.FileLogger
	if cfg.LogDir != "" {
		fileLogger, err = logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLogger.Close()
		console.LogDebug(fmt.Sprintf("Writing run log to %s", fileLogger.RunFile()))
	}

	var store *history.Store
	if cfg.History.Enabled {
		dbPath, err := cfg.GetHistoryDBPath()
		if err != nil {
			return fmt.Errorf("failed to get history database path: %w", err)
		}
		store, err = history.NewStore(dbPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
	}

	reportPath, _ := cmd.Flags().GetString("report")
	if reportPath != "" {
		if reportPath, err = filepath.Abs(reportPath); err != nil {
			return fmt.Errorf("resolve report path: %w", err)
		}
	}

	runner := &scanRunner{
		cfg:       cfg,
		workspace: workspace,
		visitor: visitor.New[processor.Record](visitor.Options{
			FilePattern:    cfg.Pattern,
			Encoding:       cfg.Encoding,
			FollowSymlinks: cfg.FollowSymlinks,
			MaxErrorLines:  cfg.MaxErrorLines,
		}, fs, transform),
		out:        cmd.OutOrStdout(),
		console:    console,
		fileLogger: fileLogger,
		store:      store,
		reportPath: reportPath,
	}

	result, err := runner.run(ctx)
	if err != nil {
		return err
	}

	if watchMode, _ := cmd.Flags().GetBool("watch"); watchMode {
		return runner.watch(ctx)
	}

	if failOnErrors, _ := cmd.Flags().GetBool("fail-on-errors"); failOnErrors && result.HasErrors() {
		return fmt.Errorf("%w: %d error(s) in %s", ErrScanHasErrors, result.Log.Size(), workspace)
	}

	return nil
}

// loadScanConfig loads the config file and applies the flags the user set.
// An explicit --config must exist; the workspace default may be absent.
func loadScanConfig(cmd *cobra.Command, workspace string) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfigStrict(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(workspace)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	var o config.Overrides
	stringFlag := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	boolFlag := func(name string) *bool {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetBool(name)
		return &v
	}

	o.Pattern = stringFlag("pattern")
	o.Encoding = stringFlag("encoding")
	o.Processor = stringFlag("processor")
	o.HandlerName = stringFlag("name")
	o.LogLevel = stringFlag("log-level")
	o.LogDir = stringFlag("log-dir")
	o.FollowSymlinks = boolFlag("follow-symlinks")
	o.RecordHistory = boolFlag("record")
	if flags.Changed("max-error-lines") {
		v, _ := flags.GetInt("max-error-lines")
		o.MaxErrorLines = &v
	}
	cfg.MergeWithFlags(o)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// scanRunner performs one scan and fans its outcome out to every configured sink.
type scanRunner struct {
	cfg        *config.Config
	workspace  string
	visitor    *visitor.Visitor[processor.Record]
	out        io.Writer
	console    *logger.ConsoleLogger
	fileLogger *logger.FileLogger
	store      *history.Store
	reportPath string
}

// run invokes the visitor once. The scan log is always printed, even when the
// invocation fails because of a configuration error.
func (r *scanRunner) run(ctx context.Context) (*visitor.Result[processor.Record], error) {
	started := time.Now()
	r.console.LogDebug(fmt.Sprintf("Scanning %s with processor %s", r.workspace, r.cfg.Processor))

	result, invokeErr := r.visitor.Invoke(ctx, r.workspace)
	duration := time.Since(started)

	handler := logger.NewLogHandler(r.out, r.cfg.HandlerName)
	handler.Log(result.Log)

	summary := logger.ScanSummary{
		Workspace: visitor.NewOSFileSystem().AbsolutePath(r.workspace),
		Pattern:   r.cfg.Pattern,
		Found:     result.Found,
		Processed: len(result.Results),
		Errors:    result.Log.Size(),
		Duration:  duration,
	}
	r.console.LogScanSummary(summary)
	if r.fileLogger != nil {
		r.fileLogger.LogScan(r.cfg.HandlerName, result.Log)
		r.fileLogger.LogScanSummary(summary)
	}

	if invokeErr != nil {
		if r.fileLogger != nil {
			r.fileLogger.LogError(invokeErr.Error())
		}
		return result, invokeErr
	}

	var scanID string
	if r.store != nil {
		rec := &history.ScanRecord{
			Workspace:     summary.Workspace,
			Pattern:       r.cfg.Pattern,
			Encoding:      r.cfg.Encoding,
			Processor:     r.cfg.Processor,
			Found:         summary.Found,
			Processed:     summary.Processed,
			HasErrors:     result.HasErrors(),
			Duration:      duration,
			StartedAt:     started,
			InfoMessages:  result.Log.InfoMessages(),
			ErrorMessages: result.Log.ErrorMessages(),
			SkippedErrors: result.Log.SkippedLines(),
		}
		if err := r.store.RecordScan(ctx, rec); err != nil {
			return result, fmt.Errorf("record scan: %w", err)
		}
		scanID = rec.ID
		r.console.LogInfo(fmt.Sprintf("Recorded scan %s", scanID))
	}

	if r.reportPath != "" {
		report := newScanReport(scanID, r.cfg, summary, started, result)
		if err := writeReport(ctx, r.reportPath, report); err != nil {
			return result, err
		}
		r.console.LogInfo(fmt.Sprintf("Wrote report to %s", r.reportPath))
	}

	return result, nil
}

// watch rescans the workspace on every debounced batch of changes until ctx is done.
// Only one watcher per workspace may run at a time.
func (r *scanRunner) watch(ctx context.Context) error {
	root := visitor.NewOSFileSystem().AbsolutePath(r.workspace)

	lockPath, err := watchLockPath(root)
	if err != nil {
		return err
	}
	lock := filelock.NewFileLock(lockPath)
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return fmt.Errorf("another watcher is already running for %s", root)
		}
		return err
	}
	defer lock.Unlock()

	exclude := make([]string, 0, len(r.cfg.ExcludeDirs)+1)
	exclude = append(exclude, r.cfg.ExcludeDirs...)
	exclude = append(exclude, ".filescout")

	w, err := watch.New(root, watch.Options{
		Debounce:    r.cfg.WatchDebounce,
		ExcludeDirs: exclude,
		Ignore:      r.ignoreOwnOutput,
		OnError: func(err error) {
			r.console.LogWarn(fmt.Sprintf("watch error: %v", err))
		},
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	r.console.LogInfo(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", root))

	return w.Run(ctx, func(ctx context.Context, events []watch.Event) error {
		r.console.LogDebug(fmt.Sprintf("%d change(s), first: %s %s", len(events), events[0].Op, events[0].Path))
		_, err := r.run(ctx)
		return err
	})
}

// ignoreOwnOutput reports whether path is written by the scan itself, so a
// report or history database inside the workspace does not trigger a rescan loop.
func (r *scanRunner) ignoreOwnOutput(path string) bool {
	if r.reportPath != "" {
		if path == r.reportPath || path == r.reportPath+".lock" {
			return true
		}
		if filepath.Dir(path) == filepath.Dir(r.reportPath) &&
			strings.HasPrefix(filepath.Base(path), "."+filepath.Base(r.reportPath)+".tmp-") {
			return true
		}
	}
	if r.cfg.LogDir != "" {
		if logDir, err := filepath.Abs(r.cfg.LogDir); err == nil && isWithin(path, logDir) {
			return true
		}
	}
	if r.store != nil && r.store.Path() != ":memory:" {
		if dbPath, err := filepath.Abs(r.store.Path()); err == nil && strings.HasPrefix(path, dbPath) {
			return true
		}
	}
	return false
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// watchLockPath returns a per-workspace lock file below the filescout home
func watchLockPath(root string) (string, error) {
	home, err := config.GetHome()
	if err != nil {
		return "", err
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(root)))
	return filepath.Join(home, "locks", "watch-"+id.String()+".lock"), nil
}
