package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harrison/filescout/internal/config"
	"github.com/harrison/filescout/internal/filelock"
	"github.com/harrison/filescout/internal/logger"
	"github.com/harrison/filescout/internal/processor"
	"github.com/harrison/filescout/internal/visitor"
)

// scanReport is the JSON document written by scan --report
type scanReport struct {
	ID             string             `json:"id,omitempty"`
	Workspace      string             `json:"workspace"`
	Pattern        string             `json:"pattern"`
	Encoding       string             `json:"encoding"`
	Processor      string             `json:"processor"`
	FollowSymlinks bool               `json:"follow_symlinks"`
	StartedAt      time.Time          `json:"started_at"`
	DurationMs     int64              `json:"duration_ms"`
	Found          int                `json:"found"`
	Processed      int                `json:"processed"`
	Skipped        int                `json:"skipped"`
	Errors         int                `json:"errors"`
	HasErrors      bool               `json:"has_errors"`
	Results        []processor.Record `json:"results"`
	Log            reportLog          `json:"log"`
}

type reportLog struct {
	Info          []string `json:"info"`
	Errors        []string `json:"errors"`
	SkippedErrors int      `json:"skipped_errors"`
}

func newScanReport(id string, cfg *config.Config, summary logger.ScanSummary, started time.Time, result *visitor.Result[processor.Record]) *scanReport {
	return &scanReport{
		ID:             id,
		Workspace:      summary.Workspace,
		Pattern:        cfg.Pattern,
		Encoding:       cfg.Encoding,
		Processor:      cfg.Processor,
		FollowSymlinks: cfg.FollowSymlinks,
		StartedAt:      started.UTC(),
		DurationMs:     summary.Duration.Milliseconds(),
		Found:          summary.Found,
		Processed:      summary.Processed,
		Skipped:        summary.Skipped(),
		Errors:         summary.Errors,
		HasErrors:      result.HasErrors(),
		Results:        result.Results,
		Log: reportLog{
			Info:          result.Log.InfoMessages(),
			Errors:        result.Log.ErrorMessages(),
			SkippedErrors: result.Log.SkippedLines(),
		},
	}
}

// writeReport serializes report and replaces path atomically under its lock file
func writeReport(ctx context.Context, path string, report *scanReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if err := filelock.LockAndWrite(ctx, path, data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
