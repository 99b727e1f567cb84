package main

import (
	"fmt"
	"os"

	"github.com/warp/shift-allowance/cli"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	app := cli.NewApp(version)
	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
