// Package main is the entry point of the jobsh shell. It parses the command
// line with cobra and hands the selected input source to jobsh.Run.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"Jobsh/internal/jobsh"
)

// main runs the root command and exits with the shell's status.
func main() {

	var opts jobsh.Options
	status := 0

	root := &cobra.Command{
		Use:           "jobsh [script]",
		Short:         "A small job-control shell",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Script = args[0]
			}
			code, err := jobsh.Run(opts)
			status = code
			return err
		},
	}

	root.Flags().StringVarP(&opts.Command, "command", "c", "", "run the given command line and exit")
	root.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print a prompt")
	root.Flags().StringVar(&opts.ConfigDir, "config", defaultConfigDir(), "directory holding config.yaml")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if status == 0 {
			status = 1
		}
	}

	os.Exit(status)

}

// defaultConfigDir is $XDG_CONFIG_HOME/jobsh, or ~/.config/jobsh.
func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "jobsh")
	}
	return "."
}
