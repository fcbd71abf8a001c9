// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"
	unpack "github.com/hashicorp/go-unpack"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// CLI are the cli parameters for go-unpack binary
type CLI struct {
	Paths             []string         `arg:"" name:"path" help:"Files and directories to unpack." type:"path"`
	Batch             bool             `short:"b" help:"Extract zip archives in waves instead of unpacking recursively."`
	Clean             bool             `short:"c" help:"Remove the content of the temp directory before unpacking."`
	Config            string           `short:"f" optional:"" help:"YAML configuration file. Flags override its values." type:"existingfile"`
	Exclude           []string         `short:"e" optional:"" help:"Regular expression of names to exclude. (repeatable)"`
	FollowSymlinks    bool             `short:"F" help:"Follow symlinks to directories while walking."`
	Include           []string         `short:"i" optional:"" help:"Regular expression of names to include. (repeatable)"`
	JSON              bool             `short:"j" help:"Print the report as json."`
	MaxDepth          int              `optional:"" help:"Maximum nesting level that is probed for archives. (disable check: -1, default: 0)"`
	MaxExtractionSize int64            `optional:"" help:"Maximum size of all extracted files in bytes. (disable check: -1, default: 0)"`
	Telemetry         bool             `short:"M" optional:"" default:"false" help:"Print telemetry data after the run."`
	TempDir           string           `short:"t" optional:"" help:"Root directory for extracted files." type:"path"`
	Verbose           bool             `short:"v" optional:"" help:"Verbose logging."`
	Version           kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
	Workers           int              `short:"w" optional:"" help:"Concurrent extractions in batch mode. (default: number of CPUs)"`
}

// Run the entrypoint into go-unpack as a cli tool
func Run(version, commit, date string) {
	var cli CLI
	kong.Parse(&cli,
		kong.Description("A recursive archive unpacker"),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, &cli, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run executes cli and writes the report to stdout. Logs and telemetry data
// are written to stderr.
func run(ctx context.Context, cli *CLI, stdout io.Writer, stderr io.Writer) error {
	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := buildConfig(cli, logger, stderr)
	if err != nil {
		return err
	}

	// batch mode
	if cli.Batch {
		res, err := unpack.ExtractZipFiles(ctx, cfg, cli.Paths...)
		if err != nil {
			return errors.Wrap(err, "batch extraction failed")
		}
		return writeBatchResult(stdout, res, cli.JSON)
	}

	// recursive mode
	report, err := unpack.Unpack(ctx, cfg, cli.Paths...)
	if err != nil {
		return errors.Wrap(err, "unpack failed")
	}
	if cli.JSON {
		return report.WriteJSON(stdout)
	}
	return report.WriteSummary(stdout)
}

// buildConfig applies the config file first and the flags afterwards.
func buildConfig(cli *CLI, logger *slog.Logger, stderr io.Writer) (*unpack.Config, error) {
	var opts []unpack.ConfigOption
	if len(cli.Config) > 0 {
		fileOpts, err := unpack.LoadConfigFile(cli.Config)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot load config %s", cli.Config)
		}
		opts = append(opts, fileOpts...)
	}

	opts = append(opts, unpack.WithLogger(logger))
	if len(cli.TempDir) > 0 {
		opts = append(opts, unpack.WithTempDir(cli.TempDir))
	}
	if len(cli.Include) > 0 {
		opts = append(opts, unpack.WithIncludes(cli.Include...))
	}
	if len(cli.Exclude) > 0 {
		opts = append(opts, unpack.WithExcludes(cli.Exclude...))
	}
	if cli.MaxDepth != 0 {
		opts = append(opts, unpack.WithMaxDepth(cli.MaxDepth))
	}
	if cli.MaxExtractionSize != 0 {
		opts = append(opts, unpack.WithMaxExtractionSize(cli.MaxExtractionSize))
	}
	if cli.Workers > 0 {
		opts = append(opts, unpack.WithWorkers(cli.Workers))
	}
	if cli.FollowSymlinks {
		opts = append(opts, unpack.WithFollowSymlinks(true))
	}
	if cli.Clean {
		opts = append(opts, unpack.WithCleanTempDir(true))
	}

	// setup telemetry hook
	if cli.Telemetry {
		opts = append(opts, unpack.WithTelemetryHook(func(ctx context.Context, td *unpack.TelemetryData) {
			fmt.Fprintf(stderr, "telemetry: %s\n", td)
		}))
	}

	return unpack.NewConfig(opts...), nil
}

// writeBatchResult writes res as json or as one line per wave.
func writeBatchResult(w io.Writer, res *unpack.BatchResult, asJSON bool) error {
	if asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, s := range res.Waves {
		if _, err := fmt.Fprintf(w, "wave %d: %d inputs, %d extracted, %d failures\n", s.Wave, s.Inputs, s.Extracted, s.Failures); err != nil {
			return err
		}
	}
	for path, err := range res.Failures {
		if _, err := fmt.Fprintf(w, "failed: %s: %s\n", path, err); err != nil {
			return err
		}
	}
	for _, msg := range res.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", msg); err != nil {
			return err
		}
	}
	return nil
}
