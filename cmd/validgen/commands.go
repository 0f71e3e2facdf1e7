package main

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jhump/validgen/gosource"
	"github.com/jhump/validgen/processor"
)

func newGenerateCommand(env *environment) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Generate validation code once",
		Long:  "Load the given packages (default \".\"), generate their validation code and write it out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputDir(env.cfg.OutputDir); err != nil {
				return err
			}
			ctx := cmd.Context()
			snap, err := gosource.NewLoader(env.loaderConfig()).Load(ctx, args...)
			if err != nil {
				return err
			}
			pass, err := env.pipeline().Run(ctx, snap)
			if err != nil {
				return err
			}
			var written *gosource.WriteStats
			if !dryRun {
				w := &gosource.Writer{OutputDir: env.cfg.OutputDir, Logger: env.log}
				stats, err := w.Write(ctx, pass)
				if err != nil {
					return err
				}
				written = &stats
			}
			p := printer{out: cmd.OutOrStdout(), json: env.cfg.JSON}
			if err := p.print(passReport(pass, written)); err != nil {
				return err
			}
			return checkDiagnostics(pass.Diagnostics)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry_run", false, "Report what would be generated without writing files.")
	return cmd
}

func newWatchCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [packages]",
		Short: "Regenerate validation code whenever sources change",
		Long: "Load the given packages (default watch.patterns from config), then keep" +
			" regenerating as their Go files change, until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputDir(env.cfg.OutputDir); err != nil {
				return err
			}
			if len(args) == 0 {
				args = env.cfg.Watch.Patterns
			}
			loader := gosource.NewLoader(env.loaderConfig())
			feed, err := gosource.NewWatcher(loader, env.cfg.Watch.Debounce, args...)
			if err != nil {
				return err
			}
			defer func() {
				if err := feed.Close(); err != nil {
					env.log.Warn("closing watcher", zap.Error(err))
				}
			}()

			w := &gosource.Writer{OutputDir: env.cfg.OutputDir, Logger: env.log}
			p := printer{out: cmd.OutOrStdout(), json: env.cfg.JSON}
			sink := processor.SinkFunc(func(ctx context.Context, pass *processor.Pass) error {
				stats, err := w.Write(ctx, pass)
				if err != nil {
					return err
				}
				return p.print(passReport(pass, &stats))
			})
			err = env.pipeline().Follow(cmd.Context(), feed, sink)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newVerifyCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [packages]",
		Short: "Check that generated code builds",
		Long: "Type check the given packages (default \".\") as they are normally built and report" +
			" references to generated helpers that do not exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := env.loaderConfig()
			diags, err := gosource.Verify(cmd.Context(), cfg, args...)
			if err != nil {
				return err
			}
			p := printer{out: cmd.OutOrStdout(), json: env.cfg.JSON}
			if err := p.print(report{Diagnostics: nonNil(diags)}); err != nil {
				return err
			}
			return checkDiagnostics(diags)
		},
	}
}

func nonNil(diags []processor.Diagnostic) []processor.Diagnostic {
	if diags == nil {
		return []processor.Diagnostic{}
	}
	return diags
}

func checkOutputDir(dir string) error {
	if dir == "" {
		return nil
	}
	_, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return errors.Newf("specified directory, %s, does not exist", dir)
	} else if err != nil {
		return errors.Wrapf(err, "failed to check specified directory, %s", dir)
	}
	return nil
}
