package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/docmapper/mongoadapter/contrib/docdump"
	"github.com/docmapper/mongoadapter/pkg/logger"
	zaplogger "github.com/docmapper/mongoadapter/pkg/logger/zap"
	zerologger "github.com/docmapper/mongoadapter/pkg/logger/zerolog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	config  *docdump.Config
	logger  string
	verbose bool
}

var validLoggers = []string{"slog", "zerolog", "zap"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{config: docdump.NewConfig()}

	cmd := &cobra.Command{
		Use:           "docdump",
		Short:         "Export the documents of one model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validLoggers, opts.logger) {
				return fmt.Errorf("invalid logger %q: must be one of %v", opts.logger, validLoggers)
			}
			return nil
		},
	}

	c := opts.config
	flags := cmd.PersistentFlags()
	flags.StringVar(&c.URL, "url", c.URL, "store url")
	flags.StringVar(&c.Schema, "schema", "", "schema file (required)")
	flags.StringVar(&c.Model, "model", "", "model to dump (required)")
	flags.StringVar(&opts.logger, "logger", "slog", "log backend (slog|zerolog|zap)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newDumpCommand(opts), newCountCommand(opts))
	return cmd
}

func newDumpCommand(opts *rootOptions) *cobra.Command {
	c := opts.config
	var format string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the model's documents as JSON lines or a CBOR sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Format = docdump.Format(format)
			if err := c.Validate(); err != nil {
				return err
			}
			l, closeLogger, err := opts.newLogger()
			if err != nil {
				return err
			}
			defer closeLogger()

			manifest, err := docdump.Do(cmd.Context(), c, l)
			if err != nil {
				return err
			}
			if c.OutputPath() != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s (sha256 %s)\n", manifest.Rows, c.OutputPath(), manifest.SHA256)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&c.Output, "output", "o", "", "output file (stdout when empty)")
	cmd.Flags().StringVar(&c.Dir, "dir", "", "base directory for dumps (prefixes output path)")
	cmd.Flags().StringVar(&format, "format", string(docdump.JSONLines), "output format (jsonl|cbor)")
	cmd.Flags().StringSliceVar(&c.Sort, "sort", nil, "sort properties, e.g. name,age:desc")
	cmd.Flags().StringSliceVar(&c.Fields, "fields", nil, "properties to dump")
	cmd.Flags().IntVar(&c.Limit, "limit", -1, "maximum number of rows")
	cmd.Flags().IntVar(&c.Offset, "offset", 0, "rows to skip")
	return cmd
}

func newCountCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of documents of the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.config
			if err := c.Validate(); err != nil {
				return err
			}
			l, closeLogger, err := opts.newLogger()
			if err != nil {
				return err
			}
			defer closeLogger()

			a, err := docdump.Open(c, l)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			n, err := docdump.Count(cmd.Context(), a, c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

// newLogger builds the selected backend. Logs go to stderr so dumps can use stdout.
func (o *rootOptions) newLogger() (logger.Logger, func(), error) {
	switch o.logger {
	case "zerolog":
		level := zerolog.WarnLevel
		if o.verbose {
			level = zerolog.DebugLevel
		}
		l, err := zerologger.New().FromWriter(os.Stderr).Level(level).Make()
		if err != nil {
			return nil, nil, err
		}
		return l, func() { _ = l.Close() }, nil
	case "zap":
		level := zapcore.WarnLevel
		if o.verbose {
			level = zapcore.DebugLevel
		}
		l, err := zaplogger.NewProduction(level)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { _ = l.Sync() }, nil
	default:
		level := slog.LevelWarn
		if o.verbose {
			level = slog.LevelDebug
		}
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), func() {}, nil
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
