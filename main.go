// Package main is the entry point for the Argus alert triage service.
package main

import (
	"context"
	"fmt"
	"os"

	"argus/bootstrap"
	"argus/cmd"

	"github.com/spf13/cobra"
)

// run initializes and starts the Argus service.
func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()

	app.Shutdown()

	return nil
}

// main dispatches CLI subcommands, otherwise runs the server.
func main() {
	if len(os.Args) > 1 {
		var cliCmd *cobra.Command
		switch os.Args[1] {
		case "rules":
			cliCmd = cmd.NewRulesCmd()
		case "analyze":
			cliCmd = cmd.NewAnalyzeCmd()
		}

		if cliCmd != nil {
			// Strip the subcommand name since the command already knows
			// what it is.
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

			if err := cliCmd.Execute(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
