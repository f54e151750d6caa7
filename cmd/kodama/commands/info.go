package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/shizukutanaka/kodama/internal/hardware"
	"github.com/shizukutanaka/kodama/internal/randomx"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show detected hardware and the flags the engine would request",
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	_, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	caps := hardware.Detect(logger)
	flags := randomx.NegotiateFlags(caps)

	fmt.Printf("CPU:            %s\n", caps.ModelName)
	fmt.Printf("Cores:          %d physical, %d logical\n", caps.PhysicalCores, caps.LogicalCores)
	fmt.Printf("Hardware AES:   %v\n", caps.HardwareAES)
	fmt.Printf("AVX2:           %v\n", caps.AVX2)
	if caps.L3Cache > 0 {
		fmt.Printf("L3 cache:       %s\n", humanize.IBytes(uint64(caps.L3Cache)))
	}
	fmt.Printf("Memory:         %s total, %s free\n",
		humanize.IBytes(caps.TotalMemory), humanize.IBytes(caps.FreeMemory))
	fmt.Printf("Engine flags:   %s\n", flags)
	return nil
}
