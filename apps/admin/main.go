package main

import (
	"fmt"
	"log"
	"os"

	"github.com/theoremz/black/apps/shared"
	"github.com/theoremz/black/core"
)

func main() {
	conf := core.NewConfig()

	logger, err := shared.NewLogger("ADMIN", conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}

	cli := newCommandLine(conf, logger, os.Stdout)
	err = cli.run(os.Args)
	if cErr := cli.close(); cErr != nil {
		logger.Error(fmt.Sprintf("closing: %v", cErr), cErr)
	}
	logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
