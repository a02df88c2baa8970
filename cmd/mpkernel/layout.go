package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLayoutCmd())
}

func newLayoutCmd() *cobra.Command {
	var withPools bool

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Boot the machine and print its memory map",
		Long: `The layout command boots the machine and prints the frame pools, the memory
hole, the identity-mapped shared region and, with --pools, the VM pools.

Example:
  mpkernel layout
  mpkernel layout --pools --config layout.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd, withPools)
		},
	}

	cmd.Flags().BoolVar(&withPools, "pools", false, "Create the code and heap pools before printing")
	return cmd
}

func runLayout(cmd *cobra.Command, withPools bool) error {
	k, err := bootKernel(cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	if withPools {
		if kErr := k.CreateVMPools(); kErr != nil {
			return kErr
		}
	}

	k.DumpTo(cmd.OutOrStdout())
	return nil
}
