package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jhump/validgen/gosource"
	"github.com/jhump/validgen/processor"
)

// Version is set at build time.
var Version = "dev"

func newRootCommand() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:   "validgen",
		Short: "Generate validation code from marked Go declarations",
		Long: `validgen reads doc-comment markers (@SelfValidation, @ValidationFor,
@CustomValidationExtension) on declarations in files built with the
"validgen" tag and writes the validation code they describe.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default is ./validgen.yaml if present).")
	flags.StringSlice("tags", nil, "Build tags that select declaration files.")
	flags.String("output_dir", "", "Root directory for generated files, organized by package path."+
		" By default files are written next to their declarations.")
	flags.Int("workers", 0, "Declarations processed concurrently (default GOMAXPROCS).")
	flags.Bool("include_tests", false, "Indicates whether to process test files.")
	flags.BoolP("verbose", "v", false, "Log debug output.")
	flags.Bool("json", false, "Print results as JSON.")

	env := &environment{}
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.Verbose)
		if err != nil {
			return err
		}
		env.cfg = cfg
		env.log = logger
		if cfg.JSON {
			color.NoColor = true
		}
		return nil
	}
	root.PersistentPostRun = func(*cobra.Command, []string) {
		if env.log != nil {
			_ = env.log.Sync()
		}
	}

	root.AddCommand(
		newGenerateCommand(env),
		newWatchCommand(env),
		newVerifyCommand(env),
		newVersionCommand(),
	)
	return root
}

// environment is what every subcommand gets once flags and config are read.
type environment struct {
	cfg *config
	log *zap.Logger
}

func (e *environment) loaderConfig() gosource.Config {
	return gosource.Config{
		BuildTags: e.cfg.BuildTags,
		Tests:     e.cfg.IncludeTests,
		Logger:    e.log,
	}
}

func (e *environment) pipeline() *processor.Pipeline {
	return processor.NewPipeline(processor.Config{
		Logger:  e.log,
		Workers: e.cfg.Workers,
	})
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "creating logger")
	}
	return logger, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version := Version
			if info, ok := debug.ReadBuildInfo(); ok && version == "dev" && info.Main.Version != "" {
				version = info.Main.Version
			}
			title := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()
			title.Fprint(out, "validgen version: ")
			fmt.Fprintln(out, version)
			title.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}
