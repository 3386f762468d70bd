// Package main is the floormap command.
package main

import (
	"context"
	"os"

	"go.viam.com/utils"

	"go.viam.com/floormap/cli"
	"go.viam.com/floormap/logging"
)

var logger = logging.NewLogger("floormap")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	return cli.NewApp(os.Stdout, os.Stderr).RunContext(ctx, args)
}
