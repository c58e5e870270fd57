// This file contains the SWAR wave archive decoder and the standalone
// SWAV file writer used when extracting individual waves.
package nds

import (
	"fmt"

	"github.com/hansbonini/sdattools/pkg/common"
)

// swavDataSize is the encoded size of the per-wave parameter record.
const swavDataSize = 12

// WaveData is one wave of an archive: playback parameters plus the raw
// sample bytes, which run until the next wave's offset (or the end of the
// archive for the last wave).
type WaveData struct {
	Format    uint8  `json:"format" yaml:"format"`
	LoopFlag  uint8  `json:"loop_flag" yaml:"loop_flag"`
	Rate      uint16 `json:"rate" yaml:"rate"`
	Timer     uint16 `json:"timer" yaml:"timer"`
	LoopStart uint16 `json:"loop_start" yaml:"loop_start"`
	LoopLen   uint32 `json:"loop_len" yaml:"loop_len"`
	Samples   []byte `json:"-" yaml:"-"`
}

// decodeWaveData reads one wave's parameter record at begin and slices its
// samples up to end.
func decodeWaveData(buf *common.Buffer, begin, end int) (*WaveData, error) {
	w := &WaveData{}
	var err error
	if w.Format, err = buf.Uint8At(begin); err != nil {
		return nil, err
	}
	if w.LoopFlag, err = buf.Uint8At(begin + 1); err != nil {
		return nil, err
	}
	if w.Rate, err = buf.Uint16At(begin + 2); err != nil {
		return nil, err
	}
	if w.Timer, err = buf.Uint16At(begin + 4); err != nil {
		return nil, err
	}
	if w.LoopStart, err = buf.Uint16At(begin + 6); err != nil {
		return nil, err
	}
	if w.LoopLen, err = buf.Uint32At(begin + 8); err != nil {
		return nil, err
	}
	if end < begin+swavDataSize || end > buf.Len() {
		return nil, &common.FormatError{Offset: begin, Category: "SWAR",
			Msg: fmt.Sprintf("wave at 0x%X has invalid extent 0x%X", begin, end)}
	}
	samples, err := buf.SliceAt(begin+swavDataSize, end-begin-swavDataSize)
	if err != nil {
		return nil, err
	}
	w.Samples = samples
	return w, nil
}

// EncodeSWAV wraps the wave in a standalone SWAV file: a fresh header is
// built around the parameter record and samples.
func (w *WaveData) EncodeSWAV() []byte {
	size := uint32(swavDataSize + len(w.Samples))
	header := blockHeader{
		ByteOrder:  0xFEFF,
		Version:    0x0100,
		FileSize:   blockHeaderSize + size,
		HeaderSize: 0x0010,
		DataBlocks: 1,
		Kind:       sseqDataKind,
		BlockSize:  size + 8,
	}
	copy(header.Signature[:], "SWAV")
	out := common.NewBuffer(nil)
	header.encodeTo(out)
	out.AppendUint8(w.Format)
	out.AppendUint8(w.LoopFlag)
	out.AppendUint16(w.Rate)
	out.AppendUint16(w.Timer)
	out.AppendUint16(w.LoopStart)
	out.AppendUint32(w.LoopLen)
	out.AppendBytes(w.Samples)
	return out.Bytes()
}

// SWARFile is a decoded wave archive.
type SWARFile struct {
	Header blockHeader
	Waves  []*WaveData
}

// DecodeSWAR decodes a complete SWAR file. Waves are delimited by the
// offset table: each wave runs from its own offset to the next one, the
// last to the end of the file.
func DecodeSWAR(file []byte) (*SWARFile, error) {
	buf := common.NewBuffer(file)
	header, err := decodeBlockHeader(buf, "SWAR")
	if err != nil {
		return nil, err
	}
	arc := &SWARFile{Header: *header}

	// A 32-byte reserved area follows the header, then the count-prefixed
	// wave offset table.
	tableBase := blockHeaderSize + 32
	count, err := buf.Uint32At(tableBase)
	if err != nil {
		return nil, err
	}
	offsets := make([]int, count)
	for i := range offsets {
		off, err := buf.Uint32At(tableBase + 4 + i*4)
		if err != nil {
			return nil, err
		}
		offsets[i] = int(off)
	}
	for i, begin := range offsets {
		end := buf.Len()
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		wave, err := decodeWaveData(buf, begin, end)
		if err != nil {
			return nil, err
		}
		arc.Waves = append(arc.Waves, wave)
	}
	return arc, nil
}
