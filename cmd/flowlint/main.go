package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Exit statuses. exitFailed is reserved for flows rejected by the gate.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and maps the outcome to an exit status.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return exitUsage
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "flowlint",
		Short:         "Validate flow documents before import or deployment",
		Long:          "flowlint checks flow JSON documents for missing fields, invalid enums, naming problems and unreachable steps, and keeps a history of validation runs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.configPath, "config", "", "settings file (default: ~/.flowlint/settings.yaml)")
	flags.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.flags.logFormat, "log-format", "", "log format: text, json")
	flags.StringVar(&a.flags.dbPath, "db", "", "run history database path")
	flags.StringVar(&a.flags.connectorsDir, "connectors", "", "connector descriptions directory")

	root.AddCommand(newValidateCommand(a))
	root.AddCommand(newGraphCommand(a))
	root.AddCommand(newEndpointCommand(a))
	root.AddCommand(newUICodeCommand(a))
	root.AddCommand(newHistoryCommand(a))
	root.AddCommand(newScheduleCommand(a))
	root.AddCommand(newServeCommand(a))
	root.AddCommand(newVersionCommand())
	return root
}
