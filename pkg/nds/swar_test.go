// Package nds provides tests for the SWAR wave archive decoder
package nds

import (
	"bytes"
	"testing"

	"github.com/hansbonini/sdattools/pkg/common"
)

// buildSWAR assembles a wave archive from parameter records and sample
// payloads, computing the offset table as it goes.
func buildSWAR(waves []*WaveData) []byte {
	b := common.NewBuffer(nil)
	header := blockHeader{
		ByteOrder:  0xFEFF,
		Version:    0x0100,
		HeaderSize: 0x0010,
		DataBlocks: 1,
		Kind:       sseqDataKind,
	}
	copy(header.Signature[:], "SWAR")
	header.encodeTo(b)
	b.AppendBytes(make([]byte, 32))

	b.AppendUint32(uint32(len(waves)))
	slots := make([]int, len(waves))
	for i := range waves {
		slots[i] = b.Len()
		b.AppendUint32(0)
	}
	for i, w := range waves {
		_ = b.PutUint32At(slots[i], uint32(b.Len()))
		b.AppendUint8(w.Format)
		b.AppendUint8(w.LoopFlag)
		b.AppendUint16(w.Rate)
		b.AppendUint16(w.Timer)
		b.AppendUint16(w.LoopStart)
		b.AppendUint32(w.LoopLen)
		b.AppendBytes(w.Samples)
	}
	_ = b.PutUint32At(8, uint32(b.Len())) // fileSize
	return b.Bytes()
}

func TestDecodeSWAR(t *testing.T) {
	waves := []*WaveData{
		{Format: 1, LoopFlag: 1, Rate: 22050, Timer: 758, LoopStart: 4, LoopLen: 8, Samples: []byte{1, 2, 3, 4}},
		{Format: 2, Rate: 11025, Samples: []byte{9, 8}},
	}
	arc, err := DecodeSWAR(buildSWAR(waves))
	if err != nil {
		t.Fatalf("DecodeSWAR() failed: %v", err)
	}
	if len(arc.Waves) != 2 {
		t.Fatalf("wave count = %d, want 2", len(arc.Waves))
	}

	w0 := arc.Waves[0]
	if w0.Format != 1 || w0.Rate != 22050 || w0.LoopStart != 4 || w0.LoopLen != 8 {
		t.Errorf("wave 0 = %+v, want %+v", w0, waves[0])
	}
	if !bytes.Equal(w0.Samples, waves[0].Samples) {
		t.Errorf("wave 0 samples = % X, want % X", w0.Samples, waves[0].Samples)
	}

	// The last wave's samples run to the end of the file.
	w1 := arc.Waves[1]
	if !bytes.Equal(w1.Samples, waves[1].Samples) {
		t.Errorf("wave 1 samples = % X, want % X", w1.Samples, waves[1].Samples)
	}
}

func TestEncodeSWAV(t *testing.T) {
	wave := &WaveData{Format: 1, LoopFlag: 1, Rate: 22050, Timer: 758, LoopStart: 4, LoopLen: 8, Samples: []byte{1, 2, 3, 4}}
	file := wave.EncodeSWAV()

	buf := common.NewBuffer(file)
	header, err := decodeBlockHeader(buf, "SWAV")
	if err != nil {
		t.Fatalf("decodeBlockHeader() failed: %v", err)
	}
	wantSize := uint32(blockHeaderSize + swavDataSize + len(wave.Samples))
	if header.FileSize != wantSize {
		t.Errorf("FileSize = %d, want %d", header.FileSize, wantSize)
	}
	if header.BlockSize != uint32(swavDataSize+len(wave.Samples)+8) {
		t.Errorf("BlockSize = %d, want %d", header.BlockSize, swavDataSize+len(wave.Samples)+8)
	}
	if len(file) != int(wantSize) {
		t.Errorf("len(file) = %d, want %d", len(file), wantSize)
	}
	if !bytes.Equal(file[len(file)-4:], wave.Samples) {
		t.Errorf("trailing samples = % X, want % X", file[len(file)-4:], wave.Samples)
	}

	rate, err := buf.Uint16At(blockHeaderSize + 2)
	if err != nil {
		t.Fatalf("Uint16At() failed: %v", err)
	}
	if rate != 22050 {
		t.Errorf("rate = %d, want 22050", rate)
	}
}

func TestDecodeSWARBadExtent(t *testing.T) {
	// Second offset points before the first wave's parameter record ends.
	file := buildSWAR([]*WaveData{
		{Samples: []byte{1, 2}},
		{Samples: []byte{3}},
	})
	buf := common.NewBuffer(file)
	// Overwrite the second table entry with the first wave's own offset + 1.
	first, err := buf.Uint32At(60)
	if err != nil {
		t.Fatalf("Uint32At() failed: %v", err)
	}
	if err := buf.PutUint32At(64, first+1); err != nil {
		t.Fatalf("PutUint32At() failed: %v", err)
	}

	if _, err := DecodeSWAR(buf.Bytes()); err == nil {
		t.Fatal("DecodeSWAR() with a truncating offset did not fail")
	}
}
