package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "roofcheck",
	Short:         "Guided roof inspection photos with automated quality review",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(inspectionCmd, captureCmd, retakeCmd)
	rootCmd.AddCommand(accessoryCmd, hailCmd, interviewCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// stdout receives command results. Status lines go to stderr.
var stdout io.Writer = os.Stdout

func printf(format string, args ...any) {
	fmt.Fprintf(stdout, format, args...)
}
