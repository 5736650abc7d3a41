package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vvka-141/polingest/internal/logging"
	"github.com/vvka-141/polingest/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Bring the store schema up to date and print the migrations that ran.

import and serve migrate automatically unless --auto-migrate=false is given;
use this command when schema changes are rolled out separately.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var migrateFlags struct {
	store storeFlags
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateFlags.store.register(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd, logging.FormatText)
	if err != nil {
		return err
	}
	cfg, _, err := migrateFlags.store.resolve(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	applied, version, err := store.Migrate(ctx, cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range applied {
		fmt.Fprintf(out, "applied %05d %s\n", m.Version, m.Path)
	}
	if len(applied) == 0 {
		fmt.Fprintf(out, "schema up to date at version %d\n", version)
		return nil
	}
	fmt.Fprintf(out, "schema at version %d\n", version)
	return nil
}
