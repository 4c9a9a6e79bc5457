package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.bug.st/cleanup"

	"github.com/homegw/homegw-rt/cmd/feedback"
	"github.com/homegw/homegw-rt/cmd/homegw-rt/daemon"
	"github.com/homegw/homegw-rt/cmd/homegw-rt/reset"
	"github.com/homegw/homegw-rt/cmd/homegw-rt/status"
	"github.com/homegw/homegw-rt/cmd/homegw-rt/version"
	"github.com/homegw/homegw-rt/internal/config"
)

// Version will be set a build time with -ldflags
var Version string = "0.0.0-dev"
var format string
var logLevelStr string

func run(configuration config.Configuration) error {
	var logLevel slog.LevelVar
	rootCmd := &cobra.Command{
		Use:   "homegw-rt",
		Short: "Real-time GPIO and memory guardian of the home gateway",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			outputFormat, ok := feedback.ParseOutputFormat(format)
			if !ok {
				feedback.Fatal(fmt.Sprintf("Invalid output format: %s", format), feedback.ErrBadArgument)
			}
			feedback.SetFormat(outputFormat)

			level, err := ParseLogLevel(logLevelStr)
			if err != nil {
				feedback.FatalError(err, feedback.ErrBadArgument)
			}
			logLevel.Set(level)
			slog.SetLogLoggerLevel(level)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "Output format (text, json, jsonmini)")
	rootCmd.PersistentFlags().StringVar(&logLevelStr, "log-level", "info", "Set the log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		daemon.NewDaemonCmd(configuration, Version, &logLevel),
		reset.NewResetCmd(configuration),
		status.NewStatusCmd(configuration),
		version.NewVersionCmd(configuration, Version),
	)

	ctx := context.Background()
	ctx, _ = cleanup.InterruptableContext(ctx)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return err
	}

	return nil
}

func main() {
	configuration, err := config.NewFromEnv()
	if err != nil {
		feedback.Fatal(fmt.Sprintf("invalid config: %s", err), feedback.ErrGeneric)
	}

	if err := run(configuration); err != nil {
		feedback.FatalError(err, feedback.ErrGeneric)
	}
}

func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(level))
	if err != nil {
		return 0, fmt.Errorf("invalid log level: %w", err)
	}
	return l, nil
}
