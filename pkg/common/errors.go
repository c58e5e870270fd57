// Package common provides shared helpers for the SDATTools processors:
// the binary buffer primitive, the error taxonomy, logging and safe
// integer conversions.
package common

import "fmt"

// FormatError reports structurally malformed input: a bad magic value,
// a bad byte-order marker, a truncated record or a read past the end of
// the buffer. FormatErrors are always fatal; no partial output derived
// from a malformed archive is considered valid.
type FormatError struct {
	Offset   int    // byte offset of the offending read, -1 if unknown
	Category string // resource category being decoded, if any
	Msg      string
}

// Error implements the error interface for FormatError.
func (e *FormatError) Error() string {
	msg := e.Msg
	if e.Category != "" {
		msg = fmt.Sprintf("%s: %s", e.Category, msg)
	}
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s (at offset 0x%X)", msg, e.Offset)
	}
	return msg
}

// NewFormatError creates a FormatError with a formatted message and no
// offset or category attached.
func NewFormatError(format string, args ...interface{}) *FormatError {
	return &FormatError{Offset: -1, Msg: fmt.Sprintf(format, args...)}
}

// ReferenceError reports a broken cross-reference: a file ID out of the
// 16-bit range, an index into a category table with no such record, or a
// branch target with no matching label. These indicate either a corrupted
// input or a codec bug and are never silently coerced.
type ReferenceError struct {
	Category string
	Index    int
	Msg      string
}

// Error implements the error interface for ReferenceError.
func (e *ReferenceError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("%s[%d]: %s", e.Category, e.Index, e.Msg)
	}
	return fmt.Sprintf("index %d: %s", e.Index, e.Msg)
}

// AssemblerError reports text input the sequence assembler cannot turn
// back into bytecode, such as an unresolvable mnemonic or malformed
// argument list. The offending line number is attached for debugging.
type AssemblerError struct {
	Line int
	Msg  string
}

// Error implements the error interface for AssemblerError.
func (e *AssemblerError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}
