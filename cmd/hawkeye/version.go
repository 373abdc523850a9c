package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hawkeye %s (sdk %s)\n", version, domain.SDKVersion)
		},
	}
}
