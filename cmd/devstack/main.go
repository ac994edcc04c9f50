package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/devstack/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌┬┐┌─┐┬  ┬┌─┐┌┬┐┌─┐┌─┐┬┌─
   ││├┤ └┐┌┘└─┐ │ ├─┤│  ├┴┐
  ─┴┘└─┘ └┘ └─┘ ┴ ┴ ┴└─┘┴ ┴
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devstack",
		Short: "Multi-router development server",
		Long: `devstack runs one dev server per router of an app behind a
single HTTP server and exposes each router's asset manifest.

Routers and bundlers are declared in devstack.json or devstack.yaml
at the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		devCmd(),
		configCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the devstack ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// printError prints err, using the terminal format for coded errors.
func printError(w io.Writer, err error) {
	var de *errors.DevError
	if stderrors.As(err, &de) {
		fmt.Fprint(w, de.Format())
		return
	}
	fmt.Fprintf(w, "\033[31mError:\033[0m %s\n", err)
}
