package main

import (
	"github.com/spf13/cobra"

	"github.com/theoremz/black/apps/shared"
	"github.com/theoremz/black/core/readiness"
)

func (cli *commandLine) readinessCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "readiness [reset|decay]",
		Short:     "Run a readiness job (defaults to decay)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{readiness.ActionReset, readiness.ActionDecay},
		RunE: func(cmd *cobra.Command, args []string) error {
			var action string
			if len(args) > 0 {
				action = args[0]
			}
			action, err := readiness.ParseAction(action)
			if err != nil {
				return err
			}

			stores, err := cli.getStores(cmd.Context())
			if err != nil {
				return err
			}
			svc := readiness.NewService(stores.Students, stores.Tx, cli.logger, nil)
			res, err := svc.Run(cmd.Context(), action)
			if err != nil {
				return err
			}

			if msg := readiness.ReportMessage(res, cli.conf.Email.AdminEmails); msg != nil {
				shared.NewMailService(cli.conf, cli.logger).SendMessages(msg)
			}
			cli.printf("%s\n", res.Summary())
			return nil
		},
	}
}
