package main

import (
	"github.com/spf13/cobra"

	"github.com/theoremz/black/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version) on the embedded migrations",
		Args:  usageArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cli.getSQLDB()
			if err != nil {
				return err
			}
			return gooseRunFunc(cmd.Context(), db, args[0], args[1:]...)
		},
	}
}
