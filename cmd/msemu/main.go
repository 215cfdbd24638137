// Command msemu loads a flat binary image into a ROM device and runs the
// 8086 core against it until it halts or errors, then prints a register
// dump. It is a batch driver, not an interactive debugger.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/matgla/ms-emu-sub000/cpu"
	"github.com/matgla/ms-emu-sub000/mem"
)

func main() {
	var ramSize uint32
	var resetCS, resetIP uint16
	var maxSteps int

	rootCmd := &cobra.Command{
		Use:   "msemu <rom-image>",
		Short: "run a flat binary image against the 8086 core",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], ramSize, resetCS, resetIP, maxSteps)
		},
	}

	rootCmd.Flags().Uint32Var(&ramSize, "ram", 64*1024, "RAM device size in bytes")
	rootCmd.Flags().Uint16Var(&resetCS, "cs", 0, "initial CS")
	rootCmd.Flags().Uint16Var(&resetIP, "ip", 0, "initial IP")
	rootCmd.Flags().IntVar(&maxSteps, "max-steps", 1_000_000, "stop after this many steps even if not halted")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(romPath string, ramSize uint32, resetCS, resetIP uint16, maxSteps int) error {
	image, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("reading rom image: %w", err)
	}

	rom := mem.NewDevice("rom", 0, uint32(len(image)))
	copy(rom.Mem, image)
	ram := mem.NewDevice("ram", uint32(len(image)), ramSize)
	bus := mem.NewBus(rom, ram)

	c := cpu.NewCpu(bus)
	c.JumpToBIOS(resetCS, resetIP)

	steps := 0
	for !c.Halted && !c.HasError() && steps < maxSteps {
		if err := c.Step(); err != nil {
			log.Printf("step %d: %v", steps, err)
			break
		}
		steps++
	}

	fmt.Printf("ran %d step(s)\n", steps)
	if c.HasError() {
		fmt.Printf("stopped on error: %s\n", c.LastError())
	}
	fmt.Println(c.DumpState())
	return nil
}
