// This file contains the SSEQ assembler: the inverse of the disassembler,
// turning a text listing back into a binary sequence resource.
package nds

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hansbonini/sdattools/pkg/common"
)

var (
	labelPat   = regexp.MustCompile(`^(\w+):`)
	notePat    = regexp.MustCompile(`^\t(IFTRUE )?([A-G][_#])(\d+), (\d+), (.+)$`)
	cmdPat     = regexp.MustCompile(`^\t(IFTRUE )?(\w+)(.*)$`)
	argTagPat  = regexp.MustCompile(`^(\w+)\((.+?)\)`)
	unkCmdPat  = regexp.MustCompile(`^SeqUnkCmd_x([0-9A-F]{2})$`)
	argItemPat = regexp.MustCompile(`\w+\(.+?\)|[^, ]+`)
)

// relocSize is the width of a branch-target address operand.
const relocSize = 3

// trackHeaderSize is the width of the tracks-used prologue (the 0xFE
// opcode plus a 16-bit mask).
const trackHeaderSize = 3

// Assembler compiles a sequence text listing back into a complete SSEQ
// file. Labels may be defined after the statements that reference them;
// branch operands are reserved as relocations and resolved at the end.
type Assembler struct {
	// RawPan must match the setting the listing was produced with: when
	// false, the Pan command's textual value is re-biased by +0x40.
	RawPan bool

	compiled       []byte
	labels         map[string]int
	relocs         map[int]string
	trackMask      uint16
	headerInserted bool
}

// NewAssembler creates an Assembler with empty state.
func NewAssembler() *Assembler {
	return &Assembler{
		labels:    make(map[string]int),
		relocs:    make(map[int]string),
		trackMask: 1,
	}
}

// appendInt appends an n-byte little-endian integer. Negative values are
// stored in two's complement of the field width.
func (a *Assembler) appendInt(v, n int) {
	if v < 0 {
		v += 1 << (8 * n)
	}
	for i := 0; i < n; i++ {
		a.compiled = append(a.compiled, byte(v>>(8*i)))
	}
}

// putInt patches an n-byte little-endian integer at an already reserved
// position.
func (a *Assembler) putInt(v, n, at int) {
	if v < 0 {
		v += 1 << (8 * n)
	}
	for i := 0; i < n; i++ {
		a.compiled[at+i] = byte(v >> (8 * i))
	}
}

// appendVarLen appends a base-128 variable-length integer: big-endian
// 7-bit groups, high bit marking continuation. Zero encodes as a single
// zero byte.
func (a *Assembler) appendVarLen(v int) {
	groups := []byte{byte(v & 0x7F)}
	v >>= 7
	for v > 0 {
		groups = append(groups, byte(v&0x7F)|0x80)
		v >>= 7
	}
	for i := len(groups) - 1; i >= 0; i-- {
		a.compiled = append(a.compiled, groups[i])
	}
}

// argTag is a parsed value type tag such as RAN(-1, 5) or VAR(3).
type argTag struct {
	kind   string
	values []int
}

// parseTag recognizes a type-tagged argument and parses its contents.
func parseTag(arg string) (*argTag, error) {
	m := argTagPat.FindStringSubmatch(arg)
	if m == nil {
		return nil, nil
	}
	tag := &argTag{kind: m[1]}
	for _, part := range strings.Split(m[2], ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("malformed value in %s tag: %q", m[1], part)
		}
		tag.values = append(tag.values, v)
	}
	return tag, nil
}

// appendPrefixes emits the modifier prefix bytes implied by the statement
// text and returns the value kind the tag selects.
func (a *Assembler) appendPrefixes(conditional bool, tag *argTag) (SeqValKind, error) {
	if conditional {
		a.compiled = append(a.compiled, PrefixConditional)
	}
	if tag == nil {
		return ValDefault, nil
	}
	switch tag.kind {
	case "RAN":
		if len(tag.values) != 2 {
			return ValDefault, fmt.Errorf("RAN tag needs two values, got %d", len(tag.values))
		}
		a.compiled = append(a.compiled, PrefixRandom)
		return ValRan, nil
	case "VAR":
		if len(tag.values) != 1 {
			return ValDefault, fmt.Errorf("VAR tag needs one value, got %d", len(tag.values))
		}
		a.compiled = append(a.compiled, PrefixVariable)
		return ValVar, nil
	}
	return ValDefault, fmt.Errorf("unknown value type tag %q", tag.kind)
}

// appendValue emits one flexible-width value argument. kind is the tag's
// override; def the command's structural default.
func (a *Assembler) appendValue(raw string, tag *argTag, kind, def SeqValKind) error {
	if kind == ValDefault {
		kind = def
	}
	switch kind {
	case ValRan:
		a.appendInt(tag.values[0], 2)
		a.appendInt(tag.values[1], 2)
		return nil
	case ValVar:
		a.appendInt(tag.values[0], 1)
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("malformed value %q", raw)
	}
	switch kind {
	case ValU8:
		a.appendInt(v, 1)
	case ValU16:
		a.appendInt(v, 2)
	case ValVLV:
		if v < 0 {
			return fmt.Errorf("variable-length value %d cannot be negative", v)
		}
		a.appendVarLen(v)
	}
	return nil
}

// rebiasPan re-adds the +0x40 center to the just-emitted Pan value. With a
// RAN tag the bias applies to both bounds; a VAR index is left alone.
func (a *Assembler) rebiasPan(kind SeqValKind) {
	switch kind {
	case ValDefault:
		at := len(a.compiled) - 1
		a.compiled[at] = byte(int(int8(a.compiled[at])) + panBias)
	case ValRan:
		for _, at := range []int{len(a.compiled) - 4, len(a.compiled) - 2} {
			v := int(int16(uint16(a.compiled[at]) | uint16(a.compiled[at+1])<<8))
			a.putInt(v+panBias, 2, at)
		}
	}
}

// reserveReloc reserves a branch-target operand and records the label it
// must resolve to.
func (a *Assembler) reserveReloc(label string) {
	a.relocs[len(a.compiled)] = label
	a.compiled = append(a.compiled, 0, 0, 0)
}

// insertTrackHeader shifts the already compiled stream to make room for
// the tracks-used prologue, updating every recorded label and relocation.
// Called once, when a second distinct track first appears.
func (a *Assembler) insertTrackHeader() {
	a.compiled = append(make([]byte, trackHeaderSize), a.compiled...)
	for name, at := range a.labels {
		a.labels[name] = at + trackHeaderSize
	}
	shifted := make(map[int]string, len(a.relocs))
	for at, label := range a.relocs {
		shifted[at+trackHeaderSize] = label
	}
	a.relocs = shifted
	a.headerInserted = true
}

// splitArgs breaks a statement's argument text into items, keeping
// type-tagged arguments intact.
func splitArgs(text string) []string {
	return argItemPat.FindAllString(text, -1)
}

// assembleNote compiles one note statement.
func (a *Assembler) assembleNote(m []string) error {
	pitchName := m[2]
	pitchIdx := -1
	for i, n := range noteNames {
		if n == pitchName {
			pitchIdx = i
			break
		}
	}
	if pitchIdx < 0 {
		return fmt.Errorf("unknown pitch name %q", pitchName)
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return fmt.Errorf("malformed octave %q", m[3])
	}
	velocity, err := strconv.Atoi(m[4])
	if err != nil {
		return fmt.Errorf("malformed velocity %q", m[4])
	}
	length := m[5]
	tag, err := parseTag(length)
	if err != nil {
		return err
	}
	kind, err := a.appendPrefixes(m[1] != "", tag)
	if err != nil {
		return err
	}
	pitch := pitchIdx + 12*octave
	if pitch > 0x7F {
		return fmt.Errorf("note pitch %d out of range", pitch)
	}
	safeVelocity, err := common.SafeIntToUint8(velocity)
	if err != nil {
		return err
	}
	a.compiled = append(a.compiled, byte(pitch), safeVelocity)
	return a.appendValue(length, tag, kind, ValVLV)
}

// assembleCommand compiles one command statement.
func (a *Assembler) assembleCommand(m []string) error {
	name := m[2]
	opcode, known := commandIDs[name]
	if !known {
		opcode, known = commandAliases[name]
	}
	if !known {
		um := unkCmdPat.FindStringSubmatch(name)
		if um == nil {
			return fmt.Errorf("unknown mnemonic %q", name)
		}
		raw, _ := strconv.ParseUint(um[1], 16, 8)
		opcode = int(raw)
	}
	args := splitArgs(m[3])
	var tag *argTag
	var err error
	if len(args) > 0 {
		if tag, err = parseTag(args[len(args)-1]); err != nil {
			return err
		}
	}
	kind, err := a.appendPrefixes(m[1] != "", tag)
	if err != nil {
		return err
	}
	a.compiled = append(a.compiled, byte(opcode))

	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s), got %d", name, n, len(args))
		}
		return nil
	}
	switch opcode & 0xF0 {
	case 0x80:
		if err := need(1); err != nil {
			return err
		}
		return a.appendValue(args[0], tag, kind, ValVLV)
	case 0x90:
		switch opcode {
		case CmdPointer:
			if err := need(2); err != nil {
				return err
			}
			trackNo, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("malformed track number %q", args[0])
			}
			bit := uint16(1) << trackNo
			if a.trackMask|bit != 1 && !a.headerInserted {
				a.insertTrackHeader()
			}
			a.trackMask |= bit
			a.appendInt(trackNo, 1)
			a.reserveReloc(args[1])
		case CmdJump, CmdCall:
			if err := need(1); err != nil {
				return err
			}
			a.reserveReloc(args[0])
		}
	case 0xC0, 0xD0:
		if err := need(1); err != nil {
			return err
		}
		if err := a.appendValue(args[0], tag, kind, ValU8); err != nil {
			return err
		}
		if opcode == CmdPan && !a.RawPan {
			a.rebiasPan(kind)
		}
	case 0xE0:
		if err := need(1); err != nil {
			return err
		}
		return a.appendValue(args[0], tag, kind, ValU16)
	case 0xB0:
		if err := need(2); err != nil {
			return err
		}
		varNo, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("malformed variable index %q", args[0])
		}
		a.appendInt(varNo, 1)
		return a.appendValue(args[1], tag, kind, ValU16)
	}
	return nil
}

// assembleLine dispatches a single listing line. Comments (everything from
// the first '@') are stripped first; blank lines are skipped.
func (a *Assembler) assembleLine(line string) error {
	if at := strings.IndexByte(line, '@'); at >= 0 {
		line = line[:at]
	}
	line = strings.TrimRight(line, " \t\r")
	if line == "" {
		return nil
	}
	if m := labelPat.FindStringSubmatch(line); m != nil {
		a.labels[m[1]] = len(a.compiled)
		return nil
	}
	if m := notePat.FindStringSubmatch(line); m != nil {
		return a.assembleNote(m)
	}
	if m := cmdPat.FindStringSubmatch(line); m != nil {
		return a.assembleCommand(m)
	}
	return fmt.Errorf("unrecognized statement")
}

// resolveRelocs patches every reserved branch operand with its label's
// final address.
func (a *Assembler) resolveRelocs() error {
	for at, label := range a.relocs {
		target, ok := a.labels[label]
		if !ok {
			return &common.ReferenceError{Category: "SSEQ", Index: at,
				Msg: fmt.Sprintf("undefined label %q", label)}
		}
		a.putInt(target, relocSize, at)
		common.LogDebug(common.DebugRelocResolved, at, label, target)
	}
	return nil
}

// Assemble compiles a complete text listing into a binary SSEQ file,
// header included. The stream is padded with zero bytes to a 4-byte
// boundary.
func (a *Assembler) Assemble(text string) ([]byte, error) {
	for i, line := range strings.Split(text, "\n") {
		if err := a.assembleLine(line); err != nil {
			return nil, &common.AssemblerError{Line: i + 1, Msg: err.Error()}
		}
	}
	if err := a.resolveRelocs(); err != nil {
		return nil, err
	}
	if a.headerInserted {
		a.compiled[0] = CmdTracksUsed
		a.compiled[1] = byte(a.trackMask)
		a.compiled[2] = byte(a.trackMask >> 8)
	}
	for len(a.compiled)%4 != 0 {
		a.compiled = append(a.compiled, 0)
	}

	size, err := common.SafeIntToUint32(len(a.compiled))
	if err != nil {
		return nil, err
	}
	header := SSEQHeader{
		ByteOrder:  0xFEFF,
		Version:    0x0100,
		FileSize:   SSEQHeaderSize + size,
		HeaderSize: 0x0010,
		DataBlocks: 1,
		Kind:       sseqDataKind,
		BlockSize:  12 + size,
		BaseOffset: SSEQHeaderSize,
	}
	copy(header.Signature[:], "SSEQ")
	out := common.NewBuffer(nil)
	header.EncodeTo(out)
	out.AppendBytes(a.compiled)
	return out.Bytes(), nil
}
