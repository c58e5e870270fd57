// This file contains the SBNK instrument bank decoder. Banks are decoded
// into a typed tree suitable for YAML inspection dumps.
package nds

import (
	"fmt"

	"github.com/hansbonini/sdattools/pkg/common"
)

// Instrument types as stored in the low byte of an instrument offset word.
const (
	InstInvalid   = 0
	InstPCM       = 1
	InstPSG       = 2
	InstNoise     = 3
	InstDirectPCM = 4
	InstNull      = 5
	InstDrumSet   = 16
	InstKeySplit  = 17
)

var instTypeNames = map[uint8]string{
	InstInvalid:   "INVALID",
	InstPCM:       "PCM",
	InstPSG:       "PSG",
	InstNoise:     "NOISE",
	InstDirectPCM: "DIRECTPCM",
	InstNull:      "NULL",
	InstDrumSet:   "DRUM_SET",
	InstKeySplit:  "KEY_SPLIT",
}

// InstTypeName returns the mnemonic for an instrument type byte.
func InstTypeName(t uint8) string {
	if name, ok := instTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_%d", t)
}

// blockHeaderSize is the encoded size of the 24-byte header shared by the
// SBNK, SWAR and SWAV resources.
const blockHeaderSize = 24

// blockHeader is the shared resource header shape: signature, byte-order
// marker, version, sizes and the DATA block tag.
type blockHeader struct {
	Signature  [4]byte
	ByteOrder  uint16
	Version    uint16
	FileSize   uint32
	HeaderSize uint16
	DataBlocks uint16
	Kind       uint32
	BlockSize  uint32
}

// decodeBlockHeader reads and validates the shared resource header.
func decodeBlockHeader(buf *common.Buffer, wantSig string) (*blockHeader, error) {
	h := &blockHeader{}
	sig, err := buf.SliceAt(0, 4)
	if err != nil {
		return nil, err
	}
	copy(h.Signature[:], sig)
	if string(h.Signature[:]) != wantSig {
		return nil, &common.FormatError{Offset: 0,
			Msg: fmt.Sprintf("invalid signature: expected %q, got %q", wantSig, string(h.Signature[:]))}
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
	if h.BlockSize, err = buf.Uint32At(20); err != nil {
		return nil, err
	}
	return h, nil
}

// encodeTo appends the shared resource header.
func (h *blockHeader) encodeTo(buf *common.Buffer) {
	buf.AppendBytes(h.Signature[:])
	buf.AppendUint16(h.ByteOrder)
	buf.AppendUint16(h.Version)
	buf.AppendUint32(h.FileSize)
	buf.AppendUint16(h.HeaderSize)
	buf.AppendUint16(h.DataBlocks)
	buf.AppendUint32(h.Kind)
	buf.AppendUint32(h.BlockSize)
}

// instParamSize and instDataSize are the encoded sizes of the two
// instrument parameter layouts (without and with the leading type byte).
const (
	instParamSize = 10
	instDataSize  = 12
)

// InstParam is one instrument's articulation: its wave/archive link and
// the ADSR envelope.
type InstParam struct {
	Wave        [2]uint16 `json:"wave" yaml:"wave,flow"`
	OriginalKey uint8     `json:"original_key" yaml:"original_key"`
	Attack      uint8     `json:"attack" yaml:"attack"`
	Decay       uint8     `json:"decay" yaml:"decay"`
	Sustain     uint8     `json:"sustain" yaml:"sustain"`
	Release     uint8     `json:"release" yaml:"release"`
	Pan         uint8     `json:"pan" yaml:"pan"`
}

// decodeInstParam reads the 10-byte articulation record at pos.
func decodeInstParam(buf *common.Buffer, pos int) (*InstParam, error) {
	p := &InstParam{}
	var err error
	if p.Wave[0], err = buf.Uint16At(pos); err != nil {
		return nil, err
	}
	if p.Wave[1], err = buf.Uint16At(pos + 2); err != nil {
		return nil, err
	}
	fields := []*uint8{&p.OriginalKey, &p.Attack, &p.Decay, &p.Sustain, &p.Release, &p.Pan}
	for i, f := range fields {
		if *f, err = buf.Uint8At(pos + 4 + i); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// InstData is one sub-instrument of a drum set or key split: a type byte
// followed by the articulation record.
type InstData struct {
	Type  uint8     `json:"type" yaml:"type"`
	Param InstParam `json:"param" yaml:"param"`
}

// decodeInstData reads the 12-byte typed articulation record at pos.
func decodeInstData(buf *common.Buffer, pos int) (*InstData, error) {
	d := &InstData{}
	var err error
	if d.Type, err = buf.Uint8At(pos); err != nil {
		return nil, err
	}
	// One padding byte follows the type.
	p, err := decodeInstParam(buf, pos+2)
	if err != nil {
		return nil, err
	}
	d.Param = *p
	return d, nil
}

// DrumSet maps a contiguous key range onto per-key sub-instruments.
type DrumSet struct {
	Min   uint8      `json:"min" yaml:"min"`
	Max   uint8      `json:"max" yaml:"max"`
	Insts []InstData `json:"instruments" yaml:"instruments"`
}

// KeySplit maps up to eight key regions onto sub-instruments. A zero byte
// in the key table marks the end of the regions.
type KeySplit struct {
	Key   [8]uint8   `json:"key" yaml:"key,flow"`
	Insts []InstData `json:"instruments" yaml:"instruments"`
}

// Instrument is one slot of the bank's instrument table. Exactly one of
// Param, Drums or Split is set, according to Type.
type Instrument struct {
	Type   uint8      `json:"type" yaml:"type"`
	Offset uint32     `json:"offset" yaml:"offset"`
	Param  *InstParam `json:"param,omitempty" yaml:"param,omitempty"`
	Drums  *DrumSet   `json:"drum_set,omitempty" yaml:"drum_set,omitempty"`
	Split  *KeySplit  `json:"key_split,omitempty" yaml:"key_split,omitempty"`
}

// TypeName returns the mnemonic for the instrument's type byte.
func (i *Instrument) TypeName() string {
	return InstTypeName(i.Type)
}

// SBNKFile is a decoded instrument bank.
type SBNKFile struct {
	Header      blockHeader
	Instruments []*Instrument
}

// DecodeSBNK decodes a complete SBNK file. Instrument offset words pack
// the type in the low byte and a 24-bit offset in the high bytes; an
// INVALID type is treated as a malformed bank.
func DecodeSBNK(file []byte) (*SBNKFile, error) {
	buf := common.NewBuffer(file)
	header, err := decodeBlockHeader(buf, "SBNK")
	if err != nil {
		return nil, err
	}
	bank := &SBNKFile{Header: *header}

	// A 32-byte reserved area follows the header, then the count-prefixed
	// instrument offset table.
	tableBase := blockHeaderSize + 32
	count, err := buf.Uint32At(tableBase)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		raw, err := buf.Uint32At(tableBase + 4 + i*4)
		if err != nil {
			return nil, err
		}
		inst := &Instrument{
			Type:   uint8(raw & 0xFF),
			Offset: raw >> 8,
		}
		switch inst.Type {
		case InstInvalid:
			return nil, &common.FormatError{Offset: tableBase + 4 + i*4, Category: "SBNK",
				Msg: fmt.Sprintf("instrument %d has invalid type", i)}
		case InstDrumSet:
			if inst.Drums, err = decodeDrumSet(buf, int(inst.Offset)); err != nil {
				return nil, err
			}
		case InstKeySplit:
			if inst.Split, err = decodeKeySplit(buf, int(inst.Offset)); err != nil {
				return nil, err
			}
		default:
			if inst.Param, err = decodeInstParam(buf, int(inst.Offset)); err != nil {
				return nil, err
			}
		}
		bank.Instruments = append(bank.Instruments, inst)
	}
	return bank, nil
}

// decodeDrumSet reads a min/max key range followed by one typed record per
// key in the range.
func decodeDrumSet(buf *common.Buffer, pos int) (*DrumSet, error) {
	d := &DrumSet{}
	var err error
	if d.Min, err = buf.Uint8At(pos); err != nil {
		return nil, err
	}
	if d.Max, err = buf.Uint8At(pos + 1); err != nil {
		return nil, err
	}
	if d.Max < d.Min {
		return nil, &common.FormatError{Offset: pos, Category: "SBNK",
			Msg: fmt.Sprintf("drum set range %d..%d is inverted", d.Min, d.Max)}
	}
	for i := 0; i <= int(d.Max)-int(d.Min); i++ {
		inst, err := decodeInstData(buf, pos+2+i*instDataSize)
		if err != nil {
			return nil, err
		}
		d.Insts = append(d.Insts, *inst)
	}
	return d, nil
}

// decodeKeySplit reads the 8-byte region key table followed by one typed
// record per non-zero region.
func decodeKeySplit(buf *common.Buffer, pos int) (*KeySplit, error) {
	k := &KeySplit{}
	key, err := buf.SliceAt(pos, 8)
	if err != nil {
		return nil, err
	}
	copy(k.Key[:], key)
	n := 0
	for _, b := range k.Key {
		if b != 0 {
			n++
		}
	}
	for i := 0; i < n; i++ {
		inst, err := decodeInstData(buf, pos+8+i*instDataSize)
		if err != nil {
			return nil, err
		}
		k.Insts = append(k.Insts, *inst)
	}
	return k, nil
}
