// Package main provides the gsxls command: the .gsx language server and
// tooling around its mapping artifacts.
//
// Usage:
//
//	gsxls lsp [--config f] [--log f] [--log-level l] [--metrics-addr a]
//	gsxls check [path...]
//	gsxls version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gsxls",
		Short: "Language server for .gsx documents",
		Long: `gsxls serves .gsx documents to editors. Requests inside embedded Go
and Tailwind regions are forwarded to gopls and the Tailwind language
server, and their answers are mapped back onto the .gsx file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLSPCmd(), newCheckCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gsxls version %s\n", version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
