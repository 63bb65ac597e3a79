package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cosim/bridge"
	"github.com/sarchlab/cosim/device"
	"github.com/sarchlab/cosim/mem"
)

// Function selectors understood by the stub model.
const (
	functNop     = 0
	functAdd     = 1
	functLoad64  = 2
	functStore64 = 3
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Run a stub accelerator device for protocol bring-up.",
	Long: `Run a stub accelerator device that listens on the command and ` +
		`DMA ports and implements a minimal functional model: funct 0 is a ` +
		`no-op, funct 1 adds its operands, funct 2 loads 8 bytes of ` +
		`simulated memory at operand A, funct 3 stores operand B at ` +
		`operand A. The endpoint is taken from COSIM_HOST, COSIM_CMD_PORT, ` +
		`COSIM_DMA_READ_PORT, and COSIM_DMA_WRITE_PORT.`,
	RunE: runDevice,
}

func init() {
	rootCmd.AddCommand(deviceCmd)
}

func runDevice(_ *cobra.Command, _ []string) error {
	cfg := bridge.ConfigFromEnv()

	d := device.MakeBuilder().
		WithHost(cfg.Host).
		WithPorts(cfg.CmdPort, cfg.DMAReadPort, cfg.DMAWritePort).
		WithHandler(device.HandlerFunc(stubModel)).
		Build()

	if err := d.Listen(); err != nil {
		return err
	}

	log.Printf("cosim device listening on %s", cfg.CmdAddr())

	return d.Serve()
}

// stubModel implements just enough accelerator behavior to exercise every
// protocol path.
func stubModel(cmd device.Command, memory *device.Memory) (uint64, error) {
	switch cmd.Funct {
	case functNop:
		return 0, nil
	case functAdd:
		return cmd.XS1 + cmd.XS2, nil
	case functLoad64:
		data, err := memory.Read(cmd.XS1, 8)
		if err != nil {
			return 0, err
		}
		return data.Lo, nil
	case functStore64:
		err := memory.Write(cmd.XS1, mem.Data128{Lo: cmd.XS2}, 8)
		return 0, err
	default:
		return 0, fmt.Errorf("unknown funct %d", cmd.Funct)
	}
}
