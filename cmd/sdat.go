// Package cmd provides command-line interface for SDAT archive processing.
// This file contains commands for unpacking and rebuilding SDAT sound
// archives from Nintendo DS games.
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hansbonini/sdattools/pkg"
	"github.com/hansbonini/sdattools/pkg/common"
	"github.com/spf13/cobra"
)

// sdatCmd represents the parent command for all SDAT archive operations.
var sdatCmd = &cobra.Command{
	Use:   "sdat",
	Short: "Process SDAT sound archives from Nintendo DS games",
	Long: `Process SDAT sound archives from Nintendo DS games.

Commands:
  unpack    Extract member files and metadata from SDAT archives
  build     Create SDAT archives from unpacked directories

Examples:
  sdattools sdat unpack sound_data.sdat ./sound_data/
  sdattools sdat build ./sound_data/ sound_data_modified.sdat`,
}

// sdatUnpackCmd extracts member files and metadata from SDAT archives.
var sdatUnpackCmd = &cobra.Command{
	Use:   "unpack [input_file] [output_directory]",
	Short: "Extract member files and metadata from SDAT archives",
	Long: `Extract member files and metadata from SDAT archives.

Output:
  - Info document with every resource record and its resolved names
  - Files manifest listing every member file slot
  - Files/ directory tree with the member files, sorted by category
  - A disassembled text listing next to each sequence

The output directory defaults to the input file's name without its
extension.

Example:
  sdattools sdat unpack sound_data.sdat ./sound_data/`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]
		outputDir := strings.TrimSuffix(inputFile, filepath.Ext(inputFile))
		if len(args) > 1 {
			outputDir = args[1]
		}

		// Enable verbose mode if requested
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		common.SetVerboseMode(verbose)

		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("error getting format flag: %w", err)
		}

		// Create SDAT processor for handling unpack operations
		processor := pkg.NewSDATProcessor(format)

		fmt.Printf("Processing SDAT file: %s\n", inputFile)
		fmt.Printf("Output directory: %s\n", outputDir)

		if err := processor.Unpack(inputFile, outputDir); err != nil {
			return fmt.Errorf("failed to unpack SDAT file: %w", err)
		}

		fmt.Println("SDAT file unpacked successfully!")
		return nil
	},
}

// sdatBuildCmd creates SDAT archives from unpacked directories.
var sdatBuildCmd = &cobra.Command{
	Use:   "build [input_directory] [output_file]",
	Short: "Create SDAT archives from unpacked directories",
	Long: `Create SDAT archives from unpacked directories.

Requirements:
  - An unpacked archive directory (from the unpack command)

Example:
  sdattools sdat build ./sound_data/ sound_data_modified.sdat`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputDir := args[0]
		outputFile := args[1]

		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		common.SetVerboseMode(verbose)

		processor := pkg.NewSDATProcessor("")

		if err := processor.Build(inputDir, outputFile); err != nil {
			return fmt.Errorf("failed to build SDAT file: %w", err)
		}

		fmt.Println("SDAT file built successfully!")
		return nil
	},
}

// init initializes the SDAT command and its subcommands with appropriate flags.
func init() {
	rootCmd.AddCommand(sdatCmd)

	sdatCmd.AddCommand(sdatUnpackCmd)
	sdatCmd.AddCommand(sdatBuildCmd)

	sdatUnpackCmd.Flags().BoolP("verbose", "v", false, "Enable verbose output (show debug messages)")
	sdatUnpackCmd.Flags().StringP("format", "f", "json", "Inspection document format (json or yaml)")

	sdatBuildCmd.Flags().BoolP("verbose", "v", false, "Enable verbose output (show debug messages)")
}
