package common

import (
	"fmt"
	"log"
)

// Global variable to control debug output
var VerboseMode bool = false

// SetVerboseMode enables or disables verbose/debug output
func SetVerboseMode(verbose bool) {
	VerboseMode = verbose
}

// Error messages
const (
	ErrFailedToOpenSDAT        = "failed to open SDAT file"
	ErrFailedToDecodeHeader    = "failed to decode SDAT header"
	ErrFailedToDecodeSymbols   = "failed to decode symbol block"
	ErrFailedToDecodeFAT       = "failed to decode file allocation table"
	ErrFailedToDecodeInfo      = "failed to decode info block"
	ErrFailedToBindSymbols     = "failed to bind symbols to info records"
	ErrFailedToExportInfo      = "failed to export info document"
	ErrFailedToExportFiles     = "failed to export files manifest"
	ErrFailedToDumpFiles       = "failed to dump member files"
	ErrFailedToCreateOutputDir = "failed to create output directory"
	ErrFailedToDisassembleSeq  = "failed to disassemble sequence"
	ErrFailedToAssembleSeq     = "failed to assemble sequence"
	ErrFailedToDecodeBank      = "failed to decode instrument bank"
	ErrFailedToDecodeWaveArc   = "failed to decode wave archive"
	ErrBuildNotImplemented     = "SDAT building is not yet implemented"
)

// Info messages
const (
	InfoUnpackingSDAT     = "Unpacking SDAT: %s -> %s"
	InfoInfoExported      = "Info document written to: %s"
	InfoFilesExported     = "Files manifest written to: %s"
	InfoMemberFilesDumped = "Dumped %d member files to: %s"
	InfoSequencesDumped   = "Disassembled %d sequences"
	InfoSeqDecoded        = "Sequence disassembled to: %s"
	InfoSeqEncoded        = "Sequence assembled to: %s"
	InfoBankDumped        = "Instrument bank dumped to: %s"
	InfoWavesExtracted    = "Extracted %d waves to: %s"
)

// Debug messages
const (
	DebugHeaderInfo       = "Header: symb=0x%X info=0x%X fat=0x%X fileImage=0x%X"
	DebugSymbolCounts     = "Symbols: %s has %d names"
	DebugInfoCounts       = "Info: %s has %d records"
	DebugFATEntries       = "FAT holds %d entries"
	DebugFileClaimed      = "File %05d claimed as %s"
	DebugTrackMask        = "Track mask 0x%04X (%d tracks)"
	DebugStatementScanned = "0x%04X: %s"
	DebugRelocResolved    = "Reloc at 0x%06X -> %s (0x%06X)"
)

// Warning messages
const (
	WarnUnknownOpcode   = "Unknown opcode 0x%02X at 0x%04X, preserved verbatim"
	WarnUnclaimedFile   = "File slot %d never claimed by any info record"
	WarnEmptyCategory   = "Category %s is absent from this archive"
	WarnAnonymousSymbol = "Anonymous symbol for %s index %d, name synthesized"
)

// LogInfo logs an informational message
func LogInfo(message string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[INFO] "+message, args...)
	} else {
		log.Printf("[INFO] %s", message)
	}
}

// LogWarn logs a warning message
func LogWarn(message string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[WARN] "+message, args...)
	} else {
		log.Printf("[WARN] %s", message)
	}
}

// LogError logs an error message
func LogError(message string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[ERROR] "+message, args...)
	} else {
		log.Printf("[ERROR] %s", message)
	}
}

// LogDebug logs a debug message (only if VerboseMode is enabled)
func LogDebug(message string, args ...interface{}) {
	if !VerboseMode {
		return
	}
	if len(args) > 0 {
		log.Printf("[DEBUG] "+message, args...)
	} else {
		log.Printf("[DEBUG] %s", message)
	}
}

// WrapError creates a formatted error with additional context
func WrapError(baseMessage string, err error) error {
	return fmt.Errorf("%s: %w", baseMessage, err)
}
