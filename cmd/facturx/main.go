// Command facturx generates and inspects Factur-X and Order-X hybrid PDFs.
//
//	facturx generate invoice.pdf factur-x.xml -o facturx-invoice.pdf
//	facturx extract facturx-invoice.pdf -o factur-x.xml
//	facturx check factur-x.xml
//	facturx info facturx-invoice.pdf
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benedoc-inc/facturx"
	"github.com/benedoc-inc/facturx/types"
)

var (
	verbose bool
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "facturx",
	Short:         "Factur-X and Order-X hybrid PDF tool",
	Long:          `Embed Factur-X, Order-X and ZUGFeRD XML in PDF/A-3 documents and extract it again.`,
	Version:       facturx.Version(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.AddCommand(generateCmd, extractCmd, checkCmd, infoCmd)
}

// newLogger logs everything in development mode with --verbose and only
// warnings otherwise
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func printWarnings(warnings []*types.Warning) {
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w.Error())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		code := 1
		if c, ok := types.GetErrorCode(err); ok && c == types.ErrCodeSchemaValidation {
			code = 2
		}
		os.Exit(code)
	}
}
