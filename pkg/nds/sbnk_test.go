// Package nds provides tests for the SBNK instrument bank decoder
package nds

import (
	"errors"
	"testing"

	"github.com/hansbonini/sdattools/pkg/common"
)

// appendInstParam encodes a 10-byte articulation record.
func appendInstParam(b *common.Buffer, p InstParam) {
	b.AppendUint16(p.Wave[0])
	b.AppendUint16(p.Wave[1])
	b.AppendUint8(p.OriginalKey)
	b.AppendUint8(p.Attack)
	b.AppendUint8(p.Decay)
	b.AppendUint8(p.Sustain)
	b.AppendUint8(p.Release)
	b.AppendUint8(p.Pan)
}

// buildSBNK assembles a bank file from typed instrument definitions,
// computing the offset words as it goes.
func buildSBNK(insts []*Instrument) []byte {
	b := common.NewBuffer(nil)
	header := blockHeader{
		ByteOrder:  0xFEFF,
		Version:    0x0100,
		HeaderSize: 0x0010,
		DataBlocks: 1,
		Kind:       sseqDataKind,
	}
	copy(header.Signature[:], "SBNK")
	header.encodeTo(b)
	b.AppendBytes(make([]byte, 32))

	b.AppendUint32(uint32(len(insts)))
	slots := make([]int, len(insts))
	for i := range insts {
		slots[i] = b.Len()
		b.AppendUint32(0)
	}
	for i, inst := range insts {
		_ = b.PutUint32At(slots[i], uint32(inst.Type)|uint32(b.Len())<<8)
		switch {
		case inst.Drums != nil:
			b.AppendUint8(inst.Drums.Min)
			b.AppendUint8(inst.Drums.Max)
			for _, sub := range inst.Drums.Insts {
				b.AppendUint8(sub.Type)
				b.AppendUint8(0)
				appendInstParam(b, sub.Param)
			}
		case inst.Split != nil:
			b.AppendBytes(inst.Split.Key[:])
			for _, sub := range inst.Split.Insts {
				b.AppendUint8(sub.Type)
				b.AppendUint8(0)
				appendInstParam(b, sub.Param)
			}
		default:
			appendInstParam(b, *inst.Param)
		}
	}
	return b.Bytes()
}

func TestDecodeSBNK(t *testing.T) {
	pcm := InstParam{Wave: [2]uint16{5, 0}, OriginalKey: 60, Attack: 127, Decay: 100, Sustain: 80, Release: 90, Pan: 64}
	file := buildSBNK([]*Instrument{
		{Type: InstPCM, Param: &pcm},
		{Type: InstDrumSet, Drums: &DrumSet{
			Min: 60,
			Max: 61,
			Insts: []InstData{
				{Type: InstPCM, Param: InstParam{Wave: [2]uint16{1, 0}, OriginalKey: 60}},
				{Type: InstNoise, Param: InstParam{OriginalKey: 61}},
			},
		}},
		{Type: InstKeySplit, Split: &KeySplit{
			Key: [8]uint8{60, 72, 127, 0, 0, 0, 0, 0},
			Insts: []InstData{
				{Type: InstPCM, Param: InstParam{Wave: [2]uint16{2, 0}}},
				{Type: InstPCM, Param: InstParam{Wave: [2]uint16{3, 0}}},
				{Type: InstPSG, Param: InstParam{Wave: [2]uint16{4, 0}}},
			},
		}},
	})

	bank, err := DecodeSBNK(file)
	if err != nil {
		t.Fatalf("DecodeSBNK() failed: %v", err)
	}
	if len(bank.Instruments) != 3 {
		t.Fatalf("instrument count = %d, want 3", len(bank.Instruments))
	}

	inst0 := bank.Instruments[0]
	if inst0.TypeName() != "PCM" {
		t.Errorf("instrument 0 type = %q, want PCM", inst0.TypeName())
	}
	if inst0.Param == nil || *inst0.Param != pcm {
		t.Errorf("instrument 0 param = %+v, want %+v", inst0.Param, pcm)
	}

	inst1 := bank.Instruments[1]
	if inst1.Drums == nil {
		t.Fatal("instrument 1 has no drum set")
	}
	if inst1.Drums.Min != 60 || inst1.Drums.Max != 61 {
		t.Errorf("drum set range = %d..%d, want 60..61", inst1.Drums.Min, inst1.Drums.Max)
	}
	if len(inst1.Drums.Insts) != 2 {
		t.Fatalf("drum set sub-instruments = %d, want 2", len(inst1.Drums.Insts))
	}
	if inst1.Drums.Insts[1].Type != InstNoise {
		t.Errorf("drum 1 type = %d, want %d", inst1.Drums.Insts[1].Type, InstNoise)
	}

	inst2 := bank.Instruments[2]
	if inst2.Split == nil {
		t.Fatal("instrument 2 has no key split")
	}
	if len(inst2.Split.Insts) != 3 {
		t.Errorf("key split sub-instruments = %d, want 3", len(inst2.Split.Insts))
	}
	if inst2.Split.Insts[2].Param.Wave[0] != 4 {
		t.Errorf("split region 2 wave = %d, want 4", inst2.Split.Insts[2].Param.Wave[0])
	}
}

func TestDecodeSBNKInvalidType(t *testing.T) {
	pcm := InstParam{OriginalKey: 60}
	file := buildSBNK([]*Instrument{{Type: InstInvalid, Param: &pcm}})

	_, err := DecodeSBNK(file)
	if err == nil {
		t.Fatal("DecodeSBNK() with an invalid instrument type did not fail")
	}
	var formatErr *common.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("error type = %T, want *FormatError", err)
	}
}

func TestDecodeSBNKBadSignature(t *testing.T) {
	pcm := InstParam{}
	file := buildSBNK([]*Instrument{{Type: InstPCM, Param: &pcm}})
	copy(file[0:4], "XBNK")

	if _, err := DecodeSBNK(file); err == nil {
		t.Fatal("DecodeSBNK() with a bad signature did not fail")
	}
}
