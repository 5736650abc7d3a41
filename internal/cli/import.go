package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vvka-141/polingest/internal/ingest"
	"github.com/vvka-141/polingest/internal/logging"
	"github.com/vvka-141/polingest/internal/store"
	"github.com/vvka-141/polingest/internal/worker"
	"github.com/vvka-141/polingest/pkg/polingest"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Ingest one CSV or XLSX file",
	Long: `Ingest one CSV or XLSX batch of policies into the store.

Agents, categories, carriers, users and accounts are looked up first and
created when missing; policies are created for every row whose references
resolve and whose policy number is not already stored.

Examples:
  polingest import policies.csv --driver sqlite --sqlite-path ./polingest.db
  polingest import policies.xlsx -d insurance --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importFlags struct {
	store    storeFlags
	output   string
	userType string
}

func init() {
	rootCmd.AddCommand(importCmd)
	importFlags.store.register(importCmd)
	importCmd.Flags().StringVarP(&importFlags.output, "output", "o", outputAuto,
		"Summary format: auto (table on a terminal, else json), table or json")
	importCmd.Flags().StringVar(&importFlags.userType, "default-user-type", polingest.DefaultUserType,
		"userType assigned to users whose userType column is empty")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]

	format, err := resolveOutput(importFlags.output)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s: %w: %w", path, polingest.ErrParse, err)
	}

	logger, err := newLogger(cmd, logging.FormatText)
	if err != nil {
		return err
	}
	cfg, _, err := importFlags.store.resolve(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	pipeline := ingest.New(s, logger, ingest.WithDefaultUserType(importFlags.userType))
	pool := worker.NewPool(pipeline, 1, logger)
	defer pool.Close()

	res, err := pool.Do(ctx, path)
	if errors.Is(err, context.Canceled) {
		logger.Error("Interrupted; waiting for the current run to finish")
		return fmt.Errorf("import interrupted: %w", err)
	}
	if err != nil {
		return err
	}

	if err := writeResult(cmd.OutOrStdout(), res, format); err != nil {
		return err
	}
	return res.Err
}
