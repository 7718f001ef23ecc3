package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/saaga0h/jeeves-comfort/internal/scenario"
)

func main() {
	scenarioPaths := pflag.StringSlice("scenario", nil, "Path to YAML scenario file, repeatable (required)")
	outputDir := pflag.String("output-dir", "", "Directory for timeline and JSON reports (empty disables)")
	jsonOut := pflag.Bool("json", false, "Print the JSON summary instead of the timeline")
	logLevel := pflag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pflag.Parse()

	if len(*scenarioPaths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		pflag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(*logLevel),
	}))

	runner := scenario.NewRunner(logger)
	failed := false

	for _, path := range *scenarioPaths {
		sc, err := scenario.LoadScenario(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load scenario %s: %v\n", path, err)
			os.Exit(1)
		}

		result, err := runner.Run(context.Background(), sc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Replay of %s failed: %v\n", path, err)
			os.Exit(1)
		}
		if !result.Passed {
			failed = true
		}

		timeline := scenario.Timeline(result)
		if *jsonOut {
			data, err := json.MarshalIndent(scenario.Summarize(result), "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to encode summary: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
		} else {
			fmt.Println(timeline)
		}

		if *outputDir != "" {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if err := scenario.SaveReport([]byte(timeline), filepath.Join(*outputDir, "timelines", name+".txt")); err != nil {
				logger.Warn("Failed to save timeline", "error", err)
			}
			if err := scenario.SaveSummary(result, filepath.Join(*outputDir, "summaries", name+".json")); err != nil {
				logger.Warn("Failed to save summary", "error", err)
			}
		}
	}

	if failed {
		os.Exit(1)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
