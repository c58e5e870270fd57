// Package cmd provides command-line interface for SSEQ sequence processing.
// This file contains commands for disassembling SSEQ sequence files to
// text and assembling them back to binary.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hansbonini/sdattools/pkg/common"
	"github.com/hansbonini/sdattools/pkg/nds"
	"github.com/spf13/cobra"
)

// sseqCmd represents the parent command for all SSEQ sequence operations.
var sseqCmd = &cobra.Command{
	Use:   "sseq",
	Short: "Process SSEQ sequence files from Nintendo DS games",
	Long: `Process SSEQ sequence files from Nintendo DS games.

Commands:
  decode    Disassemble SSEQ files to an editable text listing
  encode    Assemble text listings back to SSEQ files

Examples:
  sdattools sseq decode BGM001.sseq BGM001.txt
  sdattools sseq encode BGM001.txt BGM001_modified.sseq`,
}

// seqBaseName derives the sequence name used for labels when --name is
// not given: the input file's base name without its extension.
func seqBaseName(inputFile, flagName string) string {
	if flagName != "" {
		return flagName
	}
	base := filepath.Base(inputFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sseqDecodeCmd disassembles SSEQ files to text listings.
var sseqDecodeCmd = &cobra.Command{
	Use:   "decode [input_file] [output_file]",
	Short: "Disassemble SSEQ files to an editable text listing",
	Long: `Disassemble SSEQ files to an editable text listing.

Output:
  - One statement per line with symbolic labels at branch targets

Example:
  sdattools sseq decode BGM001.sseq BGM001.txt`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]
		outputFile := args[1]

		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		common.SetVerboseMode(verbose)

		name, err := cmd.Flags().GetString("name")
		if err != nil {
			return fmt.Errorf("error getting name flag: %w", err)
		}
		rawPan, err := cmd.Flags().GetBool("raw-pan")
		if err != nil {
			return fmt.Errorf("error getting raw-pan flag: %w", err)
		}

		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to open SSEQ file: %w", err)
		}
		d, err := nds.NewDisassembler(data)
		if err != nil {
			return common.WrapError(common.ErrFailedToDisassembleSeq, err)
		}
		d.RawPan = rawPan
		text, err := d.Disassemble(seqBaseName(inputFile, name))
		if err != nil {
			return common.WrapError(common.ErrFailedToDisassembleSeq, err)
		}
		if err := os.WriteFile(outputFile, []byte(text), 0o644); err != nil {
			return common.WrapError(common.ErrFailedToDisassembleSeq, err)
		}

		common.LogInfo(common.InfoSeqDecoded, outputFile)
		return nil
	},
}

// sseqEncodeCmd assembles text listings back to SSEQ files.
var sseqEncodeCmd = &cobra.Command{
	Use:   "encode [input_file] [output_file]",
	Short: "Assemble text listings back to SSEQ files",
	Long: `Assemble text listings back to SSEQ files.

Requirements:
  - A text listing (from the decode command)

Example:
  sdattools sseq encode BGM001.txt BGM001_modified.sseq`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]
		outputFile := args[1]

		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		common.SetVerboseMode(verbose)

		rawPan, err := cmd.Flags().GetBool("raw-pan")
		if err != nil {
			return fmt.Errorf("error getting raw-pan flag: %w", err)
		}

		text, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to open listing file: %w", err)
		}
		a := nds.NewAssembler()
		a.RawPan = rawPan
		data, err := a.Assemble(string(text))
		if err != nil {
			return common.WrapError(common.ErrFailedToAssembleSeq, err)
		}
		if err := os.WriteFile(outputFile, data, 0o644); err != nil {
			return common.WrapError(common.ErrFailedToAssembleSeq, err)
		}

		common.LogInfo(common.InfoSeqEncoded, outputFile)
		return nil
	},
}

// init initializes the SSEQ command and its subcommands with appropriate flags.
func init() {
	rootCmd.AddCommand(sseqCmd)

	sseqCmd.AddCommand(sseqDecodeCmd)
	sseqCmd.AddCommand(sseqEncodeCmd)

	sseqDecodeCmd.Flags().BoolP("verbose", "v", false, "Enable verbose output (show debug messages)")
	sseqDecodeCmd.Flags().StringP("name", "n", "", "Sequence name used for labels (defaults to the input file name)")
	sseqDecodeCmd.Flags().Bool("raw-pan", false, "Keep the Pan command's raw encoded value instead of the signed form")

	sseqEncodeCmd.Flags().BoolP("verbose", "v", false, "Enable verbose output (show debug messages)")
	sseqEncodeCmd.Flags().Bool("raw-pan", false, "Treat the listing's Pan values as raw encoded bytes")
}
