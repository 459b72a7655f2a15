package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/coordcard/internal/db"
)

const envDB = "COORDCARD_DB"

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Decision log management",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply decision log schema migrations",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		fmt.Fprintf(cmd.OutOrStdout(), "Decision log ready (%s)\n", d.Dialect())
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all logged decisions (destructive!)",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		if err := d.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Decision log reset")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}

// resolveDSN picks the decision log location: --db, then COORDCARD_DB, then
// db.dsn from the config file, then ~/.coordcard/coordcard.db.
func resolveDSN(cmd *cobra.Command) (string, error) {
	if f := cmd.Flag("db"); f != nil && f.Value.String() != "" {
		return f.Value.String(), nil
	}
	if v := os.Getenv(envDB); v != "" {
		return v, nil
	}
	if cfg.DB.DSN != "" {
		return cfg.DB.DSN, nil
	}
	return db.DefaultDBPath()
}

// openDB opens and migrates the DB, returning it with a cleanup func.
func openDB(cmd *cobra.Command) (*db.DB, func(), error) {
	dsn, err := resolveDSN(cmd)
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, nil, err
	}
	logger.Debug("decision log opened", zap.String("dialect", string(d.Dialect())))
	return d, func() { d.Close() }, nil
}
