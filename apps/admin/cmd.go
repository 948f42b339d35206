package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/theoremz/black/apps/shared"
	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/mirror"
	"github.com/theoremz/black/core/student"
	"github.com/theoremz/black/storage/database"
	firestoremirror "github.com/theoremz/black/storage/firestore"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	out    io.Writer

	// dependencies are opened on first use; tests set them directly
	stores       *shared.Stores
	sqlDB        *sql.DB
	studentCache student.Cache
	openMirror   func(ctx context.Context) (mirror.Writer, error)

	closers []func() error
}

func newCommandLine(conf *core.Config, logger core.Logger, out io.Writer) *commandLine {
	cli := &commandLine{conf: conf, logger: logger, out: out}
	cli.openMirror = func(ctx context.Context) (mirror.Writer, error) {
		w, err := firestoremirror.NewWriter(ctx, conf.Mirror)
		if err != nil {
			return nil, err
		}
		cli.closers = append(cli.closers, w.Close)
		return w, nil
	}
	return cli
}

func (cli *commandLine) getStores(ctx context.Context) (*shared.Stores, error) {
	if cli.stores == nil {
		stores, err := shared.OpenStores(ctx, cli.conf, cli.logger)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		cli.stores = stores
		cli.closers = append(cli.closers, stores.Close)
	}
	return cli.stores, nil
}

// getDirectory shares the API's student cache, so admin changes drop stale lookups.
func (cli *commandLine) getDirectory(ctx context.Context) (*student.Directory, error) {
	stores, err := cli.getStores(ctx)
	if err != nil {
		return nil, err
	}
	if cli.studentCache == nil {
		c, closeCache := shared.NewStudentCache(ctx, cli.conf, cli.logger)
		cli.studentCache = c
		cli.closers = append(cli.closers, closeCache)
	}
	return student.NewDirectory(stores.Students, cli.studentCache, cli.conf.Cache, cli.logger), nil
}

func (cli *commandLine) getSQLDB() (*sql.DB, error) {
	if cli.sqlDB == nil {
		db, err := database.Open(cli.conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		cli.sqlDB = db.DB
		cli.closers = append(cli.closers, db.Close)
	}
	return cli.sqlDB, nil
}

func (cli *commandLine) close() error {
	var firstErr error
	for i := len(cli.closers) - 1; i >= 0; i-- {
		if err := cli.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	cli.closers = nil
	return firstErr
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

// usageArgs prints the command's usage and returns errHelp when fewer than n args are given.
func usageArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			_ = cmd.Usage()
			return errHelp
		}
		return nil
	}
}

func unknownSubcommand(cmd *cobra.Command, args []string) error {
	return errors.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Theoremz Black administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.readinessCmd(),
		cli.mirrorCmd(),
		cli.studentsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Args:  cobra.NoArgs,
			Run: func(*cobra.Command, []string) {
				cli.printf("%s %s (%s)\n", cli.conf.AppName, cli.conf.Build, cli.conf.Env)
			},
		},
	)
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:] // program name
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
