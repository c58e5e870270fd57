// Package nds provides Nintendo DS sound resource codecs: the SSEQ
// sequence bytecode disassembler/assembler, the SBNK instrument bank walk
// and the SWAR wave archive extractor.
// This file contains the SSEQ command tables and the two-pass
// disassembler that turns a binary instruction stream into a labeled
// textual listing.
package nds

import (
	"bytes"
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/hansbonini/sdattools/pkg/common"
)

// Modifier prefixes. These precede the true opcode byte and are not
// opcodes themselves.
const (
	PrefixRandom      = 0xA0 // next command's value argument is a random range
	PrefixVariable    = 0xA1 // next command's value argument is a variable index
	PrefixConditional = 0xA2 // next command executes conditionally
)

// Sequence command opcodes.
const (
	CmdDelay            = 0x80
	CmdInstrument       = 0x81
	CmdPointer          = 0x93
	CmdJump             = 0x94
	CmdCall             = 0x95
	CmdSetVar           = 0xB0
	CmdAddVar           = 0xB1
	CmdSubVar           = 0xB2
	CmdMulVar           = 0xB3
	CmdDivVar           = 0xB4
	CmdShiftVar         = 0xB5
	CmdSetVarRnd        = 0xB6
	CmdVarEq            = 0xB8
	CmdVarGe            = 0xB9
	CmdVarGt            = 0xBA
	CmdVarLe            = 0xBB
	CmdVarLt            = 0xBC
	CmdVarNe            = 0xBD
	CmdPan              = 0xC0
	CmdVolume           = 0xC1
	CmdMasterVolume     = 0xC2
	CmdTranspose        = 0xC3
	CmdPitchBend        = 0xC4
	CmdPitchBendRange   = 0xC5
	CmdPriority         = 0xC6
	CmdPoly             = 0xC7
	CmdTie              = 0xC8
	CmdPortamentoCtrl   = 0xC9
	CmdModDepth         = 0xCA
	CmdModSpeed         = 0xCB
	CmdModType          = 0xCC
	CmdModRange         = 0xCD
	CmdPortamentoOnOff  = 0xCE
	CmdPortamentoTime   = 0xCF
	CmdAttack           = 0xD0
	CmdDecay            = 0xD1
	CmdSustain          = 0xD2
	CmdRelease          = 0xD3
	CmdLoopStart        = 0xD4
	CmdExpression       = 0xD5
	CmdPrint            = 0xD6
	CmdModDelay         = 0xE0
	CmdTempo            = 0xE1
	CmdPitchSweep       = 0xE3
	CmdLoopEnd          = 0xFC
	CmdReturn           = 0xFD
	CmdTracksUsed       = 0xFE
	CmdTrackEnd         = 0xFF
)

// commandNames maps opcodes to their textual mnemonics.
var commandNames = map[int]string{
	CmdDelay:           "Delay",
	CmdInstrument:      "Instrument",
	CmdPointer:         "Pointer",
	CmdJump:            "Jump",
	CmdCall:            "Call",
	CmdSetVar:          "SetVar",
	CmdAddVar:          "AddVar",
	CmdSubVar:          "SubVar",
	CmdMulVar:          "MulVar",
	CmdDivVar:          "DivVar",
	CmdShiftVar:        "ShiftVar",
	CmdSetVarRnd:       "SetVarRnd",
	CmdVarEq:           "VarEq",
	CmdVarGe:           "VarGe",
	CmdVarGt:           "VarGt",
	CmdVarLe:           "VarLe",
	CmdVarLt:           "VarLt",
	CmdVarNe:           "VarNe",
	CmdPan:             "Pan",
	CmdVolume:          "Volume",
	CmdMasterVolume:    "MasterVolume",
	CmdTranspose:       "Transpose",
	CmdPitchBend:       "PitchBend",
	CmdPitchBendRange:  "PitchBendRange",
	CmdPriority:        "Priority",
	CmdPoly:            "Poly",
	CmdTie:             "Tie",
	CmdPortamentoCtrl:  "PortamentoControl",
	CmdModDepth:        "ModDepth",
	CmdModSpeed:        "ModSpeed",
	CmdModType:         "ModType",
	CmdModRange:        "ModRange",
	CmdPortamentoOnOff: "PortamentoOnOff",
	CmdPortamentoTime:  "PortamentoTime",
	CmdAttack:          "Attack",
	CmdDecay:           "Decay",
	CmdSustain:         "Sustain",
	CmdRelease:         "Release",
	CmdLoopStart:       "LoopStart",
	CmdExpression:      "Expression",
	CmdPrint:           "Print",
	CmdModDelay:        "ModDelay",
	CmdTempo:           "Tempo",
	CmdPitchSweep:      "PitchSweep",
	CmdLoopEnd:         "LoopEnd",
	CmdReturn:          "Return",
	CmdTrackEnd:        "TrackEnd",
}

// commandIDs is the inverse of commandNames, used by the assembler.
var commandIDs = func() map[string]int {
	ids := make(map[string]int, len(commandNames))
	for opcode, name := range commandNames {
		ids[name] = opcode
	}
	return ids
}()

// commandAliases maps alternate mnemonic spellings accepted on assembly
// input. Other SDAT toolchains spell the pitch bend commands "Blend".
var commandAliases = map[string]int{
	"PitchBlend":      CmdPitchBend,
	"PitchBlendRange": CmdPitchBendRange,
}

// noteNames are the twelve fixed pitch names for note statements.
var noteNames = [12]string{"C_", "C#", "D_", "D#", "E_", "F_", "F#", "G_", "G#", "A_", "A#", "B_"}

// panBias is the offset applied to the Pan command's encoded value. The
// encoded byte is centered on 0x40; the textual form is signed around
// zero. Disassembly with RawPan disables the bias.
const panBias = 0x40

// SeqValKind classifies the encoding of a command's flexible-width value
// argument.
type SeqValKind int

// Flexible-width value encodings. ValDefault means the command's
// structural default applies (no modifier prefix was present).
const (
	ValDefault SeqValKind = iota
	ValU8
	ValU16
	ValVLV
	ValRan
	ValVar
)

// sseqDataKind is the DATA block tag as a little-endian integer.
const sseqDataKind = 0x41544144

// SSEQHeaderSize is the encoded size of an SSEQ resource header.
const SSEQHeaderSize = 28

// SSEQHeader wraps one sequence's bytecode stream. BaseOffset is the
// absolute offset where the bytecode starts, allowing a resource-specific
// prologue.
type SSEQHeader struct {
	Signature  [4]byte // always "SSEQ"
	ByteOrder  uint16  // always 0xFEFF
	Version    uint16  // always 0x0100
	FileSize   uint32
	HeaderSize uint16 // always 0x0010
	DataBlocks uint16 // always 1
	Kind       uint32 // always "DATA"
	BlockSize  uint32
	BaseOffset uint32
}

// DecodeSSEQHeader reads and validates an SSEQ resource header.
func DecodeSSEQHeader(buf *common.Buffer) (*SSEQHeader, error) {
	h := &SSEQHeader{}
	sig, err := buf.SliceAt(0, 4)
	if err != nil {
		return nil, err
	}
	copy(h.Signature[:], sig)
	if string(h.Signature[:]) != "SSEQ" {
		return nil, &common.FormatError{Offset: 0,
			Msg: fmt.Sprintf("invalid signature: expected 'SSEQ', got %q", string(h.Signature[:]))}
	}
	if h.ByteOrder, err = buf.Uint16At(4); err != nil {
		return nil, err
	}
	if h.ByteOrder != 0xFEFF {
		return nil, &common.FormatError{Offset: 4,
			Msg: fmt.Sprintf("invalid byte-order marker: expected 0xFEFF, got 0x%04X", h.ByteOrder)}
	}
	if h.Version, err = buf.Uint16At(6); err != nil {
		return nil, err
	}
	if h.FileSize, err = buf.Uint32At(8); err != nil {
		return nil, err
	}
	if h.HeaderSize, err = buf.Uint16At(12); err != nil {
		return nil, err
	}
	if h.DataBlocks, err = buf.Uint16At(14); err != nil {
		return nil, err
	}
	if h.Kind, err = buf.Uint32At(16); err != nil {
		return nil, err
	}
	if h.Kind != sseqDataKind {
		return nil, &common.FormatError{Offset: 16,
			Msg: fmt.Sprintf("invalid block kind: expected 'DATA', got 0x%08X", h.Kind)}
	}
	if h.BlockSize, err = buf.Uint32At(20); err != nil {
		return nil, err
	}
	if h.BaseOffset, err = buf.Uint32At(24); err != nil {
		return nil, err
	}
	return h, nil
}

// EncodeTo appends an SSEQ resource header.
func (h *SSEQHeader) EncodeTo(buf *common.Buffer) {
	buf.AppendBytes(h.Signature[:])
	buf.AppendUint16(h.ByteOrder)
	buf.AppendUint16(h.Version)
	buf.AppendUint32(h.FileSize)
	buf.AppendUint16(h.HeaderSize)
	buf.AppendUint16(h.DataBlocks)
	buf.AppendUint32(h.Kind)
	buf.AppendUint32(h.BlockSize)
	buf.AppendUint32(h.BaseOffset)
}

// statement is one decoded instruction. Addresses are relative to the
// stream's own base offset.
type statement struct {
	addr        int
	opcode      int
	note        bool
	known       bool
	args        []int
	valKind     SeqValKind // actual encoding override, ValDefault if none
	valIdx      int        // position of the flexible value in args, -1 if none
	conditional bool
}

// name returns the statement's mnemonic.
func (st statement) name() string {
	switch {
	case st.note:
		return fmt.Sprintf("%s%d", noteNames[st.opcode%12], st.opcode/12)
	case st.known:
		return commandNames[st.opcode]
	default:
		return fmt.Sprintf("SeqUnkCmd_x%02X", st.opcode)
	}
}

// Disassembler turns a binary SSEQ file into an asm-like text listing.
// Pass 1 (Scan) decodes statements and collects branch-target labels;
// pass 2 (Render) is a pure function of the statement and label maps.
type Disassembler struct {
	// RawPan disables the -0x40 bias on the Pan command's value, matching
	// archives produced by toolchains that store the raw byte.
	RawPan bool

	Header     SSEQHeader
	data       []byte
	base       int
	cursor     int
	trackMask  uint16
	trackCount int

	statements   []statement
	labels       map[int]string
	targets      []int
	trackTargets map[int]int
}

// NewDisassembler wraps a complete SSEQ file (header included). Trailing
// zero padding is trimmed before scanning. The tracks-used prologue, when
// present, is consumed here and a label is registered at address 0 for the
// first track's entry.
func NewDisassembler(file []byte) (*Disassembler, error) {
	buf := common.NewBuffer(file)
	header, err := DecodeSSEQHeader(buf)
	if err != nil {
		return nil, err
	}
	d := &Disassembler{
		Header:       *header,
		data:         bytes.TrimRight(file, "\x00"),
		base:         int(header.BaseOffset),
		labels:       make(map[int]string),
		trackTargets: make(map[int]int),
	}
	d.cursor = d.base
	first, err := d.readUint(1)
	if err != nil {
		return nil, err
	}
	if first == CmdTracksUsed {
		mask, err := d.readUint(2)
		if err != nil {
			return nil, err
		}
		d.trackMask = uint16(mask)
		d.trackCount = bits.OnesCount16(d.trackMask)
		common.LogDebug(common.DebugTrackMask, d.trackMask, d.trackCount)
	} else {
		d.cursor--
		d.trackMask = 1
		d.trackCount = 1
	}
	d.labels[0] = "Tk00"
	return d, nil
}

// TrackCount returns the number of tracks declared by the stream.
func (d *Disassembler) TrackCount() int {
	return d.trackCount
}

// Labels returns the label map keyed by stream-relative address.
func (d *Disassembler) Labels() map[int]string {
	return d.labels
}

// readUint reads an unsigned little-endian integer of n bytes at the
// cursor and advances it.
func (d *Disassembler) readUint(n int) (int, error) {
	if d.cursor+n > len(d.data) {
		return 0, &common.FormatError{Offset: d.cursor, Msg: "sequence stream truncated"}
	}
	v := 0
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | int(d.data[d.cursor+i])
	}
	d.cursor += n
	return v, nil
}

// readSigned16 reads a signed little-endian 16-bit integer at the cursor.
func (d *Disassembler) readSigned16() (int, error) {
	v, err := d.readUint(2)
	if err != nil {
		return 0, err
	}
	if v >= 0x8000 {
		v -= 0x10000
	}
	return v, nil
}

// readVarLen reads a base-128 variable-length integer: big-endian 7-bit
// groups, the high bit marking continuation.
func (d *Disassembler) readVarLen() (int, error) {
	v := 0
	for {
		b, err := d.readUint(1)
		if err != nil {
			return 0, err
		}
		v = v<<7 | (b & 0x7F)
		if v > 0xFFFFFFFF {
			return 0, &common.FormatError{Offset: d.cursor, Msg: "variable-length value overflows 32 bits"}
		}
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// readValue reads one flexible-width value argument. kind overrides the
// command's structural default when a modifier prefix was present.
func (d *Disassembler) readValue(kind, def SeqValKind) ([]int, error) {
	if kind == ValDefault {
		kind = def
	}
	switch kind {
	case ValU8, ValVar:
		v, err := d.readUint(1)
		if err != nil {
			return nil, err
		}
		return []int{v}, nil
	case ValU16:
		v, err := d.readUint(2)
		if err != nil {
			return nil, err
		}
		return []int{v}, nil
	case ValVLV:
		v, err := d.readVarLen()
		if err != nil {
			return nil, err
		}
		return []int{v}, nil
	case ValRan:
		lo, err := d.readSigned16()
		if err != nil {
			return nil, err
		}
		hi, err := d.readSigned16()
		if err != nil {
			return nil, err
		}
		return []int{lo, hi}, nil
	}
	return nil, &common.FormatError{Offset: d.cursor, Msg: fmt.Sprintf("invalid value kind %d", kind)}
}

// readOpcode consumes the modifier prefixes, if any, and returns the true
// opcode byte along with the decoded overrides. The conditional prefix may
// precede either value-type override.
func (d *Disassembler) readOpcode() (opcode int, kind SeqValKind, conditional bool, err error) {
	opcode, err = d.readUint(1)
	if err != nil {
		return 0, ValDefault, false, err
	}
	if opcode == PrefixConditional {
		conditional = true
		if opcode, err = d.readUint(1); err != nil {
			return 0, ValDefault, false, err
		}
	}
	if opcode == PrefixRandom {
		kind = ValRan
		if opcode, err = d.readUint(1); err != nil {
			return 0, ValDefault, false, err
		}
	}
	if opcode == PrefixVariable {
		kind = ValVar
		if opcode, err = d.readUint(1); err != nil {
			return 0, ValDefault, false, err
		}
	}
	return opcode, kind, conditional, nil
}

// scanNote decodes a note statement: pitch byte already consumed, then an
// 8-bit velocity and a flexible-width duration (default variable-length).
func (d *Disassembler) scanNote(addr, pitch int, kind SeqValKind, conditional bool) (statement, error) {
	velocity, err := d.readUint(1)
	if err != nil {
		return statement{}, err
	}
	length, err := d.readValue(kind, ValVLV)
	if err != nil {
		return statement{}, err
	}
	return statement{
		addr:        addr,
		opcode:      pitch,
		note:        true,
		known:       true,
		args:        append([]int{velocity}, length...),
		valKind:     kind,
		valIdx:      1,
		conditional: conditional,
	}, nil
}

// scanCommand decodes a command statement's arguments using the same
// high-nibble dispatch as the platform's sequence interpreter.
func (d *Disassembler) scanCommand(addr, opcode int, kind SeqValKind, conditional bool) (statement, error) {
	_, known := commandNames[opcode]
	st := statement{
		addr:        addr,
		opcode:      opcode,
		known:       known,
		valKind:     kind,
		valIdx:      -1,
		conditional: conditional,
	}
	var err error
	switch opcode & 0xF0 {
	case 0x80:
		// Commands with a flexible-width value argument.
		if st.args, err = d.readValue(kind, ValVLV); err != nil {
			return st, err
		}
		st.valIdx = 0
	case 0x90:
		// Branching commands. Targets register labels.
		switch opcode {
		case CmdPointer:
			trackNo, err := d.readUint(1)
			if err != nil {
				return st, err
			}
			target, err := d.readUint(3)
			if err != nil {
				return st, err
			}
			// A track declared twice with different entry points would
			// collapse onto a single label and reassemble wrong.
			if prev, ok := d.trackTargets[trackNo]; ok && prev != target {
				return st, &common.ReferenceError{Category: "SSEQ", Index: trackNo,
					Msg: fmt.Sprintf("track %d declared twice (0x%04X and 0x%04X)", trackNo, prev, target)}
			}
			d.trackTargets[trackNo] = target
			st.args = []int{trackNo, target}
			d.registerLabel(target, fmt.Sprintf("Tk%02d", trackNo))
		case CmdJump, CmdCall:
			target, err := d.readUint(3)
			if err != nil {
				return st, err
			}
			st.args = []int{target}
			d.registerLabel(target, fmt.Sprintf("Sub%04X", target))
		}
	case 0xC0, 0xD0:
		// Commands with an 8-bit argument.
		if st.args, err = d.readValue(kind, ValU8); err != nil {
			return st, err
		}
		if opcode == CmdPan && !d.RawPan && (kind == ValDefault || kind == ValRan) {
			for i := range st.args {
				st.args[i] -= panBias
			}
		}
		st.valIdx = 0
	case 0xE0:
		// Commands with a 16-bit argument.
		if st.args, err = d.readValue(kind, ValU16); err != nil {
			return st, err
		}
		st.valIdx = 0
	case 0xB0:
		// Variable-manipulation commands: an 8-bit variable index then a
		// flexible-width value.
		varNo, err := d.readUint(1)
		if err != nil {
			return st, err
		}
		value, err := d.readValue(kind, ValU16)
		if err != nil {
			return st, err
		}
		st.args = append([]int{varNo}, value...)
		st.valIdx = 1
	}
	if !known {
		common.LogWarn(common.WarnUnknownOpcode, opcode, addr)
	}
	return st, nil
}

// registerLabel records a branch-target label and remembers the target for
// post-scan validation.
func (d *Disassembler) registerLabel(addr int, name string) {
	if _, ok := d.labels[addr]; !ok {
		d.labels[addr] = name
	}
	d.targets = append(d.targets, addr)
}

// Scan is pass 1: it decodes every statement up to the end of the trimmed
// stream and validates that every branch target lands on a statement.
func (d *Disassembler) Scan() error {
	addrs := make(map[int]bool)
	for d.cursor < len(d.data) {
		addr := d.cursor - d.base
		opcode, kind, conditional, err := d.readOpcode()
		if err != nil {
			return err
		}
		var st statement
		if opcode&0x80 == 0 {
			st, err = d.scanNote(addr, opcode, kind, conditional)
		} else {
			st, err = d.scanCommand(addr, opcode, kind, conditional)
		}
		if err != nil {
			return err
		}
		d.statements = append(d.statements, st)
		addrs[addr] = true
		common.LogDebug(common.DebugStatementScanned, addr, st.name())
	}
	for _, target := range d.targets {
		if !addrs[target] {
			return &common.ReferenceError{Category: "SSEQ", Index: target,
				Msg: fmt.Sprintf("branch target 0x%04X does not land on a statement", target)}
		}
	}
	return nil
}

// labelName expands a label for a given sequence name.
func labelName(seqName, suffix string) string {
	return seqName + "_" + suffix
}

// formatStatement renders one statement as a single text line (without the
// leading tab or the conditional marker).
func (d *Disassembler) formatStatement(st statement, seqName string) string {
	name := st.name()
	args := d.formatArgs(st, seqName)
	if st.note {
		return fmt.Sprintf("%s, %s", name, strings.Join(args, ", "))
	}
	if len(args) == 0 {
		return name
	}
	return fmt.Sprintf("%s %s", name, strings.Join(args, ", "))
}

// formatArgs renders a statement's arguments. Branch targets become
// symbolic labels with the raw address in a trailing comment; a flexible
// value whose actual encoding differs from the structural default is
// wrapped in a RAN(lo, hi) or VAR(index) type tag.
func (d *Disassembler) formatArgs(st statement, seqName string) []string {
	if len(st.args) == 0 {
		return nil
	}
	args := make([]string, len(st.args))
	for i, v := range st.args {
		args[i] = fmt.Sprintf("%d", v)
	}
	if !st.note {
		switch st.opcode {
		case CmdPointer:
			args[1] = fmt.Sprintf("%s @ 0x%04X", labelName(seqName, d.labels[st.args[1]]), st.args[1])
		case CmdJump, CmdCall:
			args[0] = fmt.Sprintf("%s @ 0x%04X", labelName(seqName, d.labels[st.args[0]]), st.args[0])
		}
	}
	if st.valIdx >= 0 && st.valKind != ValDefault {
		var tag string
		switch st.valKind {
		case ValRan:
			tag = "RAN"
		case ValVar:
			tag = "VAR"
		}
		if tag != "" {
			wrapped := fmt.Sprintf("%s(%s)", tag, strings.Join(args[st.valIdx:], ", "))
			args = append(args[:st.valIdx], wrapped)
		}
	}
	return args
}

// Render is pass 2: it walks the statements in address order and emits the
// text listing. Rendering is a pure function of the statement and label
// maps; it can be called repeatedly.
func (d *Disassembler) Render(seqName string) []string {
	labelAddrs := make([]int, 0, len(d.labels))
	for addr := range d.labels {
		labelAddrs = append(labelAddrs, addr)
	}
	sort.Ints(labelAddrs)

	var lines []string
	next := 0
	for _, st := range d.statements {
		for next < len(labelAddrs) && labelAddrs[next] <= st.addr {
			addr := labelAddrs[next]
			lines = append(lines, fmt.Sprintf("%s: @ 0x%04X", labelName(seqName, d.labels[addr]), addr))
			next++
		}
		cond := ""
		if st.conditional {
			cond = "IFTRUE "
		}
		lines = append(lines, "\t"+cond+d.formatStatement(st, seqName))
		if !st.note && (st.opcode == CmdReturn || st.opcode == CmdTrackEnd) {
			lines = append(lines, "")
		}
	}
	return lines
}

// Disassemble runs both passes and returns the complete text listing.
func (d *Disassembler) Disassemble(seqName string) (string, error) {
	if err := d.Scan(); err != nil {
		return "", err
	}
	return strings.Join(d.Render(seqName), "\n") + "\n", nil
}
