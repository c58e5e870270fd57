// Package cmd provides command-line interface for SWAR archive processing.
// This file contains the command for extracting individual waves from
// wave archives.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hansbonini/sdattools/pkg/common"
	"github.com/hansbonini/sdattools/pkg/nds"
	"github.com/spf13/cobra"
)

// swarCmd represents the parent command for all SWAR archive operations.
var swarCmd = &cobra.Command{
	Use:   "swar",
	Short: "Process SWAR wave archives from Nintendo DS games",
	Long: `Process SWAR wave archives from Nintendo DS games.

Commands:
  extract    Extract each wave as a standalone SWAV file

Example:
  sdattools swar extract WAVE001.swar ./waves/`,
}

// swarExtractCmd extracts waves from SWAR archives.
var swarExtractCmd = &cobra.Command{
	Use:   "extract [input_file] [output_directory]",
	Short: "Extract each wave as a standalone SWAV file",
	Long: `Extract each wave as a standalone SWAV file.

Output:
  - One numbered .swav file per wave, with a rebuilt header

Example:
  sdattools swar extract WAVE001.swar ./waves/`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]
		outputDir := args[1]

		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		common.SetVerboseMode(verbose)

		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to open SWAR file: %w", err)
		}
		arc, err := nds.DecodeSWAR(data)
		if err != nil {
			return common.WrapError(common.ErrFailedToDecodeWaveArc, err)
		}

		if err := os.MkdirAll(outputDir, 0o750); err != nil {
			return common.WrapError(common.ErrFailedToCreateOutputDir, err)
		}
		for i, wave := range arc.Waves {
			outPath := filepath.Join(outputDir, fmt.Sprintf("%04d.swav", i))
			if err := os.WriteFile(outPath, wave.EncodeSWAV(), 0o644); err != nil {
				return common.WrapError(common.ErrFailedToDecodeWaveArc, err)
			}
		}

		common.LogInfo(common.InfoWavesExtracted, len(arc.Waves), outputDir)
		return nil
	},
}

// init initializes the SWAR command and its subcommand with appropriate flags.
func init() {
	rootCmd.AddCommand(swarCmd)

	swarCmd.AddCommand(swarExtractCmd)

	swarExtractCmd.Flags().BoolP("verbose", "v", false, "Enable verbose output (show debug messages)")
}
