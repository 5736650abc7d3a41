package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvka-141/polingest/internal/config"
	"github.com/vvka-141/polingest/internal/logging"
	"github.com/vvka-141/polingest/pkg/polingest"
)

var rootCmd = &cobra.Command{
	Use:   "polingest",
	Short: "Bulk insurance-policy ingestion",
	Long: `polingest reads CSV or XLSX batches of insurance policies, resolves the
agents, categories, carriers, users and accounts each row refers to, creates
the ones that do not exist yet and links every new policy to them.

Ingestion is idempotent: a file can be loaded again, or by several processes at
once, without creating duplicate entities or policies.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Store connection failed
  12 - Input file unreadable, malformed or of an unsupported type
  13 - Store query or insert failed during a run`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFiles,
}

var rootFlags struct {
	envFiles  []string
	logFormat string
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// -h is taken by --host.
	rootCmd.PersistentFlags().Bool("help", false, "Help for polingest")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().StringSliceVar(&rootFlags.envFiles, "env-file", []string{".env"},
		"Load environment variables from these files (missing files are ignored)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logFormat, "log-format", "",
		"Log format: text or json (default text, json for serve)")
}

func loadEnvFiles(cmd *cobra.Command, args []string) error {
	n, err := config.LoadEnvFiles(rootFlags.envFiles...)
	if err != nil {
		return fmt.Errorf("load env files: %w: %w", polingest.ErrInvalidConfig, err)
	}
	if n > 0 && getVerboseFlag(cmd) {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Loaded %d env file(s)\n", n)
	}
	return nil
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	f := cmd.Flag("verbose")
	if f == nil {
		return false
	}
	return f.Value.String() == "true"
}

// newLogger builds the command's logger on stderr. --log-format wins over
// fallback.
func newLogger(cmd *cobra.Command, fallback logging.Format) (*logging.ConsoleLogger, error) {
	format := fallback
	if rootFlags.logFormat != "" {
		f, err := logging.ParseFormat(rootFlags.logFormat)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", polingest.ErrInvalidConfig, err)
		}
		format = f
	}
	return logging.NewLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd), format), nil
}
