package main

import (
	"github.com/spf13/cobra"

	"github.com/theoremz/black/core/mirror"
)

func (cli *commandLine) mirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Manage the legacy per-user exam and grade collections",
		Args:  usageArgs(1),
		RunE:  unknownSubcommand,
	}

	var dryRun bool
	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Copy every Black assessment and grade to the legacy collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			stores, err := cli.getStores(ctx)
			if err != nil {
				return err
			}

			var writer mirror.Writer
			if !dryRun {
				if writer, err = cli.openMirror(ctx); err != nil {
					return err
				}
			}

			rep, err := mirror.NewReconciler(stores.Mirror, writer, cli.logger, nil).Run(ctx, dryRun)
			if err != nil {
				return err
			}
			cli.printf("%s\n", rep.Summary())
			return nil
		},
	}
	backfill.Flags().BoolVar(&dryRun, "dry-run", false, "count what would be written without writing")

	cmd.AddCommand(backfill)
	return cmd
}
