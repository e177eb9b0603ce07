package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/foxytanuki/buildstamp/internal/config"
	"github.com/foxytanuki/buildstamp/internal/header"
	"github.com/foxytanuki/buildstamp/internal/logger"
	"github.com/foxytanuki/buildstamp/internal/stamp"
	"github.com/foxytanuki/buildstamp/internal/version"
)

// errReported marks a failure that has already been shown to the user.
var errReported = errors.New("reported")

type options struct {
	configFile string
	counter    string
	header     string
	logLevel   string
	verbose    bool
	atomic     bool
	dryRun     bool
}

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	stamper *stamp.Stamper
	print   *printer
	dryRun  bool
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	opts := &options{}
	a := &app{print: newPrinter(stdout, stderr)}

	cmd := &cobra.Command{
		Use:   "buildstamp",
		Short: "Increment the build number and stamp it into a C header",
		Long: `buildstamp reads the build counter file, increments it, writes it back and
rewrites the BUILD_NUMBER and BUILD_DATE lines of the generated header.`,
		Args:          cobra.NoArgs,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, opts)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := a.updateBuildNumber(cmd.Context()); !ok {
				return errReported
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		a.print.Errorf("Error: %v", err)
		_ = c.Usage()
		return errReported
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to configuration file (default "+config.DefaultConfigFile+" if present)")
	pf.StringVar(&opts.counter, "counter", "", "Counter store file (default "+config.DefaultCounterFile+")")
	pf.StringVar(&opts.header, "header", "", "Header file to stamp (default "+config.DefaultHeaderFile+")")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	f := cmd.Flags()
	f.BoolVar(&opts.atomic, "atomic", false, "Write both files only after both have been read and patched")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Show the new build number without writing anything")

	cmd.AddCommand(newShowCmd(a), newConfigCmd(a))

	return cmd, a
}

// setup resolves configuration and builds the logger and stamper.
func (a *app) setup(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		a.print.Errorf("Failed to load configuration: %v", err)
		return errReported
	}

	if err := config.MergeWithEnvironment(cfg); err != nil {
		a.print.Errorf("Invalid environment: %v", err)
		return errReported
	}

	flags := cmd.Flags()
	if flags.Changed("counter") {
		cfg.CounterFile = opts.counter
	}
	if flags.Changed("header") {
		cfg.HeaderFile = opts.header
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("atomic") {
		cfg.Atomic = opts.atomic
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Console = true
	}

	if err := config.Validate(cfg); err != nil {
		a.print.Errorf("Invalid configuration: %v", err)
		return errReported
	}

	a.cfg = cfg
	a.dryRun = opts.dryRun
	a.log = logger.New(&logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: cfg.Logging.Console,
		File:    cfg.Logging.File,
		Output:  cmd.ErrOrStderr(),
		Color:   isTerminal(cmd.ErrOrStderr()),
	}).WithRun()

	a.stamper, err = stamp.New(stamp.Options{
		CounterPath: cfg.CounterFile,
		HeaderPath:  cfg.HeaderFile,
		Markers: header.Markers{
			Number: cfg.Markers.BuildNumber,
			Date:   cfg.Markers.BuildDate,
		},
		Atomic: cfg.Atomic,
		DryRun: opts.dryRun,
	}, a.log)
	if err != nil {
		a.print.Errorf("Invalid configuration: %v", err)
		return errReported
	}

	return nil
}

func (a *app) close() {
	if a.log == nil {
		return
	}
	if err := a.log.Close(); err != nil {
		a.print.Errorf("Failed to close logger: %v", err)
	}
}

// updateBuildNumber runs the stamper and reports the outcome. Every failure
// is logged and printed, and yields (0, false) instead of an error.
func (a *app) updateBuildNumber(ctx context.Context) (int, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := a.stamper.UpdateBuildNumber(ctx)
	if err != nil {
		a.logFailure("Failed to update build number", err, !a.dryRun)
		a.print.Errorf("Error updating build number: %v", err)
		return 0, false
	}

	a.log.Info("Build stamped",
		"previous", res.Previous,
		"build_number", res.BuildNumber,
		"build_date", res.BuildDate,
		"counter", res.CounterPath,
		"header", res.HeaderPath,
		"atomic", a.cfg.Atomic,
	)

	if res.DryRun {
		a.print.Successf("Would update build number to %d (build date %s)", res.BuildNumber, res.BuildDate)
	} else {
		a.print.Successf("Updated build number to %d", res.BuildNumber)
	}
	return res.BuildNumber, true
}

// logFailure records err with its code and, for a non-atomic update, whether
// the counter store was already written when the header step failed.
func (a *app) logFailure(msg string, err error, writing bool) {
	args := []any{"code", stamp.GetErrorCode(err)}

	var stampErr *stamp.Error
	if errors.As(err, &stampErr) {
		args = append(args, "op", stampErr.Op, "path", stampErr.Path)
	}
	if writing && !a.cfg.Atomic && stamp.IsHeaderError(err) {
		args = append(args, "counter_incremented", true)
	}

	a.log.WithError(err).Error(msg, args...)
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current build number and header markers without changing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur, err := a.stamper.Inspect(cmd.Context())
			if err != nil {
				a.logFailure("Failed to read build number", err, false)
				a.print.Errorf("Error reading build number: %v", err)
				return errReported
			}

			markers := a.cfg.Markers
			a.print.Field(fmt.Sprintf("Counter (%s)", a.stamper.CounterPath()), cur.Counter)
			a.print.Field(fmt.Sprintf("%s (%s)", markers.BuildNumber, a.stamper.HeaderPath()), cur.Header.Number)
			a.print.Field(fmt.Sprintf("%s (%s)", markers.BuildDate, a.stamper.HeaderPath()), cur.Header.Date)
			if cur.Counter != cur.Header.Number {
				a.log.Warn("Header is out of sync with the counter store",
					"counter", cur.Counter,
					"header", cur.Header.Number,
				)
			}
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Marshal(a.cfg)
			if err != nil {
				a.print.Errorf("%v", err)
				return errReported
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
