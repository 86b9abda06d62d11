// Command silexctl inspects and maintains the OpenSILEX graph and document
// stores configured through OPENSILEX_* environment variables.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"opensilex/internal/core"
)

var exitFunc = os.Exit

type rootOptions struct {
	verbose bool
	trace   bool
	metrics bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitFunc(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "silexctl",
		Short:         "Inspect and maintain OpenSILEX entity stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log coordinator activity to stderr")
	cmd.PersistentFlags().BoolVar(&opts.trace, "trace", false, "write operation spans as JSON lines to stderr")
	cmd.PersistentFlags().BoolVar(&opts.metrics, "metrics", false, "print operation metrics to stderr on exit")
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	return cmd
}

func newLogger(opts *rootOptions, w io.Writer) *zap.Logger {
	if !opts.verbose {
		return zap.NewNop()
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel))
}

// session is an opened service plus the sinks flushed when a command ends.
type session struct {
	svc     *core.Service
	logger  *zap.Logger
	metrics *core.ExpvarMetricsRecorder
	stderr  io.Writer
}

func openService(cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg, err := core.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	sess := &session{logger: newLogger(opts, cmd.ErrOrStderr()), stderr: cmd.ErrOrStderr()}
	svcOpts := []core.ServiceOption{core.WithLogger(core.NewZapLogger(sess.logger))}
	if opts.trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(sess.stderr)))
	}
	if opts.metrics {
		sess.metrics = core.NewExpvarMetricsRecorder("")
		svcOpts = append(svcOpts, core.WithMetricsRecorder(sess.metrics))
	}
	sess.svc, err = core.Open(cmd.Context(), cfg, svcOpts...)
	if err != nil {
		_ = sess.logger.Sync()
		return nil, fmt.Errorf("open stores: %w", err)
	}
	return sess, nil
}

func (s *session) close() {
	_ = s.svc.Close()
	if s.metrics != nil {
		_ = writeJSON(s.stderr, s.metrics.Snapshot())
	}
	_ = s.logger.Sync()
}

type checkResult struct {
	GraphDriver    string   `json:"graph_driver"`
	DocumentDriver string   `json:"document_driver"`
	Namespace      string   `json:"namespace"`
	Classes        []string `json:"classes"`
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Open the configured stores and report their drivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openService(cmd, opts)
			if err != nil {
				return err
			}
			defer sess.close()
			svc := sess.svc
			graph, docs := svc.Drivers()
			res := checkResult{GraphDriver: graph, DocumentDriver: docs, Namespace: svc.Identity().Namespace()}
			for _, c := range svc.Schema().Classes {
				res.Classes = append(res.Classes, c.Name)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var (
		collections []string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete documents whose graph record no longer exists",
		Long: `Scan document collections for records without a matching graph record.

Such orphans remain when a graph commit fails after its document commit.
Run sweeps while no writers are active.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(collections) == 0 {
				return fmt.Errorf("at least one --collection is required")
			}
			sess, err := openService(cmd, opts)
			if err != nil {
				return err
			}
			defer sess.close()
			reports := make([]core.SweepReport, 0, len(collections))
			for _, collection := range collections {
				report, err := sess.svc.Sweep(cmd.Context(), collection, dryRun)
				if err != nil {
					return fmt.Errorf("sweep %s: %w", collection, err)
				}
				reports = append(reports, report)
			}
			return writeJSON(cmd.OutOrStdout(), reports)
		},
	}
	cmd.Flags().StringSliceVarP(&collections, "collection", "c", []string{"move", "facility"}, "document collection to sweep (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting them")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
