package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gps-logger/backend/internal/cli"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain
var exit = os.Exit

func main() {
	exit(mainRunner(mainDepsProvider()))
}

type mainDeps struct {
	args []string
	cli  cli.Deps
	run  func(context.Context, []string, cli.Deps) int
}

func defaultDeps() mainDeps {
	return mainDeps{
		args: os.Args[1:],
		cli:  cli.DefaultDeps(),
		run:  cli.Run,
	}
}

func realMain(deps mainDeps) int {
	if len(deps.args) == 1 && deps.args[0] == "version" {
		fmt.Fprintf(deps.cli.Stdout, "gpslog %s (%s)\n", Version, BuildTime)
		return cli.ExitOK
	}
	return deps.run(context.Background(), deps.args, deps.cli)
}
