// Package cmd provides command-line interface for SBNK bank processing.
// This file contains the command for dumping instrument bank definitions.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hansbonini/sdattools/pkg/common"
	"github.com/hansbonini/sdattools/pkg/nds"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// sbnkCmd represents the parent command for all SBNK bank operations.
var sbnkCmd = &cobra.Command{
	Use:   "sbnk",
	Short: "Process SBNK instrument banks from Nintendo DS games",
	Long: `Process SBNK instrument banks from Nintendo DS games.

Commands:
  dump    Dump instrument definitions to a JSON or YAML document

Example:
  sdattools sbnk dump BANK001.sbnk BANK001.json`,
}

// sbnkDoc is the exportable shape of one bank instrument.
type sbnkDoc struct {
	Index    int            `json:"index" yaml:"index"`
	Type     string         `json:"type" yaml:"type"`
	Param    *nds.InstParam `json:"param,omitempty" yaml:"param,omitempty"`
	DrumSet  *nds.DrumSet   `json:"drum_set,omitempty" yaml:"drum_set,omitempty"`
	KeySplit *nds.KeySplit  `json:"key_split,omitempty" yaml:"key_split,omitempty"`
}

// sbnkDumpCmd dumps instrument definitions from SBNK files.
var sbnkDumpCmd = &cobra.Command{
	Use:   "dump [input_file] [output_file]",
	Short: "Dump instrument definitions to a JSON or YAML document",
	Long: `Dump instrument definitions to a JSON or YAML document.

Output:
  - One entry per instrument slot with its type and articulation
    parameters; drum sets and key splits include their sub-instruments

Example:
  sdattools sbnk dump BANK001.sbnk BANK001.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]
		outputFile := args[1]

		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		common.SetVerboseMode(verbose)

		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("error getting format flag: %w", err)
		}

		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to open SBNK file: %w", err)
		}
		bank, err := nds.DecodeSBNK(data)
		if err != nil {
			return common.WrapError(common.ErrFailedToDecodeBank, err)
		}

		doc := make([]sbnkDoc, len(bank.Instruments))
		for i, inst := range bank.Instruments {
			doc[i] = sbnkDoc{
				Index:    i,
				Type:     inst.TypeName(),
				Param:    inst.Param,
				DrumSet:  inst.Drums,
				KeySplit: inst.Split,
			}
		}

		var out []byte
		switch format {
		case "yaml":
			out, err = yaml.Marshal(doc)
		case "json":
			out, err = json.MarshalIndent(doc, "", "  ")
		default:
			return fmt.Errorf("unsupported output format %q", format)
		}
		if err != nil {
			return common.WrapError(common.ErrFailedToDecodeBank, err)
		}
		if err := os.WriteFile(outputFile, out, 0o644); err != nil {
			return common.WrapError(common.ErrFailedToDecodeBank, err)
		}

		common.LogInfo(common.InfoBankDumped, outputFile)
		return nil
	},
}

// init initializes the SBNK command and its subcommand with appropriate flags.
func init() {
	rootCmd.AddCommand(sbnkCmd)

	sbnkCmd.AddCommand(sbnkDumpCmd)

	sbnkDumpCmd.Flags().BoolP("verbose", "v", false, "Enable verbose output (show debug messages)")
	sbnkDumpCmd.Flags().StringP("format", "f", "json", "Output document format (json or yaml)")
}
