package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"softlayer-rpc/client"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "slcall %s\n", client.Version)
		},
	}
}
