package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/cpu"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kfmt"
	"github.com/sri-1007/CSCE-611-Operating-Systems/kernel/kmain"
)

var (
	// Global flags
	configPath string
	logLevel   string
	verbose    bool

	errMachineHalted = errors.New("machine halted")
)

var rootCmd = &cobra.Command{
	Use:   "mpkernel",
	Short: "Run the memory subsystem of a simulated x86 kernel",
	Long: `mpkernel boots a simulated 32-bit x86 machine with contiguous frame pools,
two-level paging with on-demand page faulting and virtual memory pools, and
runs memory tests against it.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "JSON memory layout file (defaults to the built-in layout)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN or ERROR (overrides the config file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (DEBUG logging)")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig returns the memory layout selected by the global flags.
func loadConfig() (kmain.Config, error) {
	cfg := kmain.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = kmain.LoadConfig(configPath); err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "DEBUG"
	}

	return cfg, nil
}

// bootKernel attaches the kernel console to the command output and boots
// the machine.
func bootKernel(cmd *cobra.Command) (*kmain.Kernel, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	kfmt.SetOutputSink(cmd.OutOrStdout())
	kfmt.SetLogger(kfmt.SinkLogger(cfg.LogLevel))

	var k *kmain.Kernel
	if err = runGuarded(func() { k = kmain.Boot(cfg) }); err != nil {
		return nil, err
	}

	return k, nil
}

// runGuarded runs fn and reports a processor halt as errMachineHalted.
func runGuarded(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if r != cpu.ErrHalted {
				panic(r)
			}
			err = errMachineHalted
		}
	}()

	fn()
	return nil
}
