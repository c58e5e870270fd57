// Package cmd provides command-line interface functionality for SDATTools.
// SDATTools is a collection of utilities for unpacking and modifying
// Nintendo DS SDAT sound archives.
package cmd

import (
	"os"

	"github.com/hansbonini/sdattools/pkg/common"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
// It provides the main entry point for the SDATTools application.
var rootCmd = &cobra.Command{
	Use:   "sdattools",
	Short: "Tools for unpacking and modifying Nintendo DS SDAT sound archives",
	Long: `SDATTools - A collection of utilities for unpacking and modifying
SDAT sound archives from Nintendo DS games.

Currently supports:
  - SDAT archives (unpack member files, info and manifest documents)
  - SSEQ sequences (disassemble to text / assemble back to binary)
  - SBNK instrument banks (dump instrument definitions)
  - SWAR wave archives (extract individual SWAV files)

Examples:
  sdattools sdat unpack sound_data.sdat ./sound_data/
  sdattools sseq decode BGM001.sseq BGM001.txt
  sdattools sseq encode BGM001.txt BGM001_modified.sseq
  sdattools sbnk dump BANK001.sbnk BANK001.json
  sdattools swar extract WAVE001.swar ./waves/

Use 'sdattools [command] --help' for more information about a command.`,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main() and serves as the entry point for command execution.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		common.LogError("%v", err)
		os.Exit(1)
	}
}
