package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kmain"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/mem"
)

const (
	testPageTable = "pagetable"
	testVMPool    = "vmpool"
	testAll       = "all"

	// pageTableAccesses is the number of 32-bit words written by the page
	// table test: 1 MB worth of memory.
	pageTableAccesses = int(mem.Mb / 4)
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	var test string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the machine and run the memory tests",
		Long: `The run command boots the machine and runs one or both memory tests:

  pagetable  writes 1 MB of words right past the shared region and reads
             them back; every page is faulted in on first access.
  vmpool     creates the code and heap pools and repeatedly allocates,
             fills, verifies and deletes growing arrays in each of them.

Example:
  mpkernel run
  mpkernel run --test vmpool --config layout.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, test)
		},
	}

	cmd.Flags().StringVarP(&test, "test", "t", testAll, "Test to run: pagetable, vmpool or all")
	return cmd
}

func runTests(cmd *cobra.Command, test string) error {
	switch test {
	case testPageTable, testVMPool, testAll:
	default:
		return fmt.Errorf("unknown test %q", test)
	}

	k, err := bootKernel(cmd)
	if err != nil {
		return err
	}
	defer k.Close()

	var (
		out     = cmd.OutOrStdout()
		testErr *kernel.Error
	)

	if err = runGuarded(func() { testErr = runWorkloads(out, k, test) }); err != nil {
		return err
	}

	if testErr != nil {
		fmt.Fprintln(out, "Test Failed")
		return fmt.Errorf("memory test failed: %w", testErr)
	}

	fmt.Fprintln(out, "Test Passed! Congratulations!")
	return nil
}

func runWorkloads(w io.Writer, k *kmain.Kernel, test string) *kernel.Error {
	if test == testPageTable || test == testAll {
		fmt.Fprintln(w, "Testing the page table...")
		if err := k.TestPageTable(uintptr(k.Config.SharedSize), pageTableAccesses); err != nil {
			return err
		}
	}

	if test == testVMPool || test == testAll {
		if err := k.CreateVMPools(); err != nil {
			return err
		}
		fmt.Fprintln(w, "VM Pools successfully created!")

		fmt.Fprintln(w, "Testing the memory allocation on code_pool...")
		if err := k.TestVMPool(k.CodePool, 50, 100); err != nil {
			return err
		}

		fmt.Fprintln(w, "Testing the memory allocation on heap_pool...")
		if err := k.TestVMPool(k.HeapPool, 50, 100); err != nil {
			return err
		}
	}

	if verbose {
		k.DumpTo(w)
	}

	return nil
}
