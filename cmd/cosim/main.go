// The cosim command runs utilities around the NPU co-simulation bridge.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use: "cosim",
	Short: "cosim runs utilities around the RISC-V/NPU co-simulation " +
		"protocol.",
	Long: `cosim runs utilities around the RISC-V/NPU co-simulation ` +
		`protocol. Currently, it can run a stub accelerator device that ` +
		`serves the command and DMA channels for protocol bring-up.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
