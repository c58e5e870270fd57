// Package pkg provides functionality for processing Nintendo DS SDAT sound
// archives. This file contains the typed record (de)serializer: a fixed
// byte layout per category, implemented explicitly per record type, plus
// the shared helpers for length-prefixed arrays and offset tables.
package pkg

import (
	"fmt"

	"github.com/hansbonini/sdattools/pkg/common"
)

// Record is a fixed-width SDAT structure that can decode itself from an
// absolute offset in a buffer and encode itself back by appending. For
// any valid record, EncodeTo reproduces the bytes DecodeAt consumed.
type Record interface {
	RecordSize() int
	DecodeAt(buf *common.Buffer, offset int) error
	EncodeTo(buf *common.Buffer)
}

// recordPtr constrains a pointer-to-record type so the array helpers can
// allocate elements generically without reflection.
type recordPtr[T any] interface {
	*T
	Record
}

// checkArrayExtent validates a length-prefixed array's declared count
// against the bytes actually remaining after the count field, before any
// count-sized allocation is made.
func checkArrayExtent(buf *common.Buffer, offset int, count uint32, elemSize int) error {
	remaining := buf.Len() - (offset + 4)
	if remaining < 0 || uint64(count)*uint64(elemSize) > uint64(remaining) {
		return &common.FormatError{
			Offset: offset,
			Msg:    fmt.Sprintf("array count %d exceeds the %d bytes remaining", count, remaining),
		}
	}
	return nil
}

// DecodeRecordArray reads a length-prefixed array: a 32-bit count followed
// by that many contiguous fixed-size records. A zero offset means the
// array is absent and yields nil without touching the buffer.
func DecodeRecordArray[T any, PT recordPtr[T]](buf *common.Buffer, offset int) ([]PT, error) {
	if offset == 0 {
		return nil, nil
	}
	count, err := buf.Uint32At(offset)
	if err != nil {
		return nil, err
	}
	if err := checkArrayExtent(buf, offset, count, PT(new(T)).RecordSize()); err != nil {
		return nil, err
	}
	records := make([]PT, 0, count)
	pos := offset + 4
	for i := uint32(0); i < count; i++ {
		rec := PT(new(T))
		if err := rec.DecodeAt(buf, pos); err != nil {
			return nil, err
		}
		records = append(records, rec)
		pos += rec.RecordSize()
	}
	return records, nil
}

// EncodeRecordArray appends a 32-bit count followed by the records.
func EncodeRecordArray[T any, PT recordPtr[T]](buf *common.Buffer, records []PT) {
	buf.AppendUint32(uint32(len(records)))
	for _, rec := range records {
		rec.EncodeTo(buf)
	}
}

// ReadOffsetTable reads a length-prefixed array of 32-bit relative
// offsets, the first level of the format's shared two-level indirection.
func ReadOffsetTable(buf *common.Buffer, offset int) ([]uint32, error) {
	if offset == 0 {
		return nil, nil
	}
	count, err := buf.Uint32At(offset)
	if err != nil {
		return nil, err
	}
	if err := checkArrayExtent(buf, offset, count, 4); err != nil {
		return nil, err
	}
	offsets := make([]uint32, count)
	pos := offset + 4
	for i := range offsets {
		v, err := buf.Uint32At(pos)
		if err != nil {
			return nil, err
		}
		offsets[i] = v
		pos += 4
	}
	return offsets, nil
}

// DecodeRecordTable resolves a category's two-level indirection: the
// offset table at base+tableOffset is read, then each entry is
// dereferenced relative to the same base to obtain a typed record. A zero
// entry leaves a nil slot.
func DecodeRecordTable[T any, PT recordPtr[T]](buf *common.Buffer, base, tableOffset int) ([]PT, error) {
	if base == 0 || tableOffset == 0 {
		return nil, nil
	}
	offsets, err := ReadOffsetTable(buf, base+tableOffset)
	if err != nil {
		return nil, err
	}
	records := make([]PT, len(offsets))
	for i, off := range offsets {
		if off == 0 {
			continue
		}
		rec := PT(new(T))
		if err := rec.DecodeAt(buf, base+int(off)); err != nil {
			return nil, err
		}
		records[i] = rec
	}
	return records, nil
}

// DecodeArrayTable resolves a two-level indirection whose elements are
// themselves length-prefixed record arrays (the GROUP category).
func DecodeArrayTable[T any, PT recordPtr[T]](buf *common.Buffer, base, tableOffset int) ([][]PT, error) {
	if base == 0 || tableOffset == 0 {
		return nil, nil
	}
	offsets, err := ReadOffsetTable(buf, base+tableOffset)
	if err != nil {
		return nil, err
	}
	arrays := make([][]PT, len(offsets))
	for i, off := range offsets {
		if off == 0 {
			continue
		}
		arr, err := DecodeRecordArray[T, PT](buf, base+int(off))
		if err != nil {
			return nil, err
		}
		arrays[i] = arr
	}
	return arrays, nil
}

// ReadStringTable resolves a two-level indirection whose elements are
// null-terminated strings (the SYMB block's name arrays). Zero entries
// yield empty strings for anonymous symbols.
func ReadStringTable(buf *common.Buffer, base, tableOffset int) ([]string, error) {
	if base == 0 || tableOffset == 0 {
		return nil, nil
	}
	offsets, err := ReadOffsetTable(buf, base+tableOffset)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(offsets))
	for i, off := range offsets {
		names[i] = buf.CStringAt(base, int(off))
	}
	return names, nil
}

// RecordSize returns the encoded size of an SDAT header.
func (h *SDATHeader) RecordSize() int { return 64 }

// DecodeAt decodes an SDAT header at an absolute offset.
func (h *SDATHeader) DecodeAt(buf *common.Buffer, offset int) error {
	sig, err := buf.SliceAt(offset, 4)
	if err != nil {
		return err
	}
	copy(h.Signature[:], sig)
	if h.ByteOrder, err = buf.Uint16At(offset + 4); err != nil {
		return err
	}
	if h.Version, err = buf.Uint16At(offset + 6); err != nil {
		return err
	}
	if h.FileSize, err = buf.Uint32At(offset + 8); err != nil {
		return err
	}
	if h.HeaderSize, err = buf.Uint16At(offset + 12); err != nil {
		return err
	}
	if h.DataBlocks, err = buf.Uint16At(offset + 14); err != nil {
		return err
	}
	if h.SymbOffset, err = buf.Uint32At(offset + 16); err != nil {
		return err
	}
	if h.SymbSize, err = buf.Uint32At(offset + 20); err != nil {
		return err
	}
	if h.InfoOffset, err = buf.Uint32At(offset + 24); err != nil {
		return err
	}
	if h.InfoSize, err = buf.Uint32At(offset + 28); err != nil {
		return err
	}
	if h.FATOffset, err = buf.Uint32At(offset + 32); err != nil {
		return err
	}
	if h.FATSize, err = buf.Uint32At(offset + 36); err != nil {
		return err
	}
	if h.FileImageOffset, err = buf.Uint32At(offset + 40); err != nil {
		return err
	}
	if h.FileImageSize, err = buf.Uint32At(offset + 44); err != nil {
		return err
	}
	reserved, err := buf.SliceAt(offset+48, len(h.Reserved))
	if err != nil {
		return err
	}
	copy(h.Reserved[:], reserved)
	return nil
}

// EncodeTo appends an SDAT header.
func (h *SDATHeader) EncodeTo(buf *common.Buffer) {
	buf.AppendBytes(h.Signature[:])
	buf.AppendUint16(h.ByteOrder)
	buf.AppendUint16(h.Version)
	buf.AppendUint32(h.FileSize)
	buf.AppendUint16(h.HeaderSize)
	buf.AppendUint16(h.DataBlocks)
	buf.AppendUint32(h.SymbOffset)
	buf.AppendUint32(h.SymbSize)
	buf.AppendUint32(h.InfoOffset)
	buf.AppendUint32(h.InfoSize)
	buf.AppendUint32(h.FATOffset)
	buf.AppendUint32(h.FATSize)
	buf.AppendUint32(h.FileImageOffset)
	buf.AppendUint32(h.FileImageSize)
	buf.AppendBytes(h.Reserved[:])
}

// RecordSize returns the encoded size of a SYMB/INFO block header.
func (b *BlockOffsets) RecordSize() int { return 40 }

// DecodeAt decodes a SYMB/INFO block header at an absolute offset.
func (b *BlockOffsets) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if b.Kind, err = buf.Uint32At(offset); err != nil {
		return err
	}
	if b.Size, err = buf.Uint32At(offset + 4); err != nil {
		return err
	}
	for i := range b.Offsets {
		if b.Offsets[i], err = buf.Uint32At(offset + 8 + 4*i); err != nil {
			return err
		}
	}
	return nil
}

// EncodeTo appends a SYMB/INFO block header.
func (b *BlockOffsets) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(b.Kind)
	buf.AppendUint32(b.Size)
	for _, off := range b.Offsets {
		buf.AppendUint32(off)
	}
}

// RecordSize returns the encoded size of a FAT header.
func (f *FATHeader) RecordSize() int { return 8 }

// DecodeAt decodes a FAT header at an absolute offset.
func (f *FATHeader) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if f.Kind, err = buf.Uint32At(offset); err != nil {
		return err
	}
	f.Size, err = buf.Uint32At(offset + 4)
	return err
}

// EncodeTo appends a FAT header.
func (f *FATHeader) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(f.Kind)
	buf.AppendUint32(f.Size)
}

// RecordSize returns the encoded size of a FAT entry.
func (f *FATEntry) RecordSize() int { return 16 }

// DecodeAt decodes a FAT entry at an absolute offset.
func (f *FATEntry) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if f.Offset, err = buf.Uint32At(offset); err != nil {
		return err
	}
	if f.Size, err = buf.Uint32At(offset + 4); err != nil {
		return err
	}
	if f.Mem, err = buf.Uint32At(offset + 8); err != nil {
		return err
	}
	f.Reserved, err = buf.Uint32At(offset + 12)
	return err
}

// EncodeTo appends a FAT entry.
func (f *FATEntry) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(f.Offset)
	buf.AppendUint32(f.Size)
	buf.AppendUint32(f.Mem)
	buf.AppendUint32(f.Reserved)
}

// RecordSize returns the encoded size of a sequence info record.
func (s *SeqInfo) RecordSize() int { return 12 }

// DecodeAt decodes a sequence info record at an absolute offset.
func (s *SeqInfo) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if s.FileID, err = buf.Uint32At(offset); err != nil {
		return err
	}
	if s.BankNo, err = buf.Uint16At(offset + 4); err != nil {
		return err
	}
	if s.Volume, err = buf.Uint8At(offset + 6); err != nil {
		return err
	}
	if s.ChannelPrio, err = buf.Uint8At(offset + 7); err != nil {
		return err
	}
	if s.PlayerPrio, err = buf.Uint8At(offset + 8); err != nil {
		return err
	}
	if s.PlayerNo, err = buf.Uint8At(offset + 9); err != nil {
		return err
	}
	s.Reserved, err = buf.Uint16At(offset + 10)
	return err
}

// EncodeTo appends a sequence info record.
func (s *SeqInfo) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(s.FileID)
	buf.AppendUint16(s.BankNo)
	buf.AppendUint8(s.Volume)
	buf.AppendUint8(s.ChannelPrio)
	buf.AppendUint8(s.PlayerPrio)
	buf.AppendUint8(s.PlayerNo)
	buf.AppendUint16(s.Reserved)
}

// RecordSize returns the encoded size of a sequence archive info record.
func (s *SeqArcInfo) RecordSize() int { return 4 }

// DecodeAt decodes a sequence archive info record at an absolute offset.
func (s *SeqArcInfo) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	s.FileID, err = buf.Uint32At(offset)
	return err
}

// EncodeTo appends a sequence archive info record.
func (s *SeqArcInfo) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(s.FileID)
}

// RecordSize returns the encoded size of a bank info record.
func (b *BankInfo) RecordSize() int { return 12 }

// DecodeAt decodes a bank info record at an absolute offset.
func (b *BankInfo) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if b.FileID, err = buf.Uint32At(offset); err != nil {
		return err
	}
	for i := range b.WaveArcNos {
		if b.WaveArcNos[i], err = buf.Uint16At(offset + 4 + 2*i); err != nil {
			return err
		}
	}
	return nil
}

// EncodeTo appends a bank info record.
func (b *BankInfo) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(b.FileID)
	for _, no := range b.WaveArcNos {
		buf.AppendUint16(no)
	}
}

// RecordSize returns the encoded size of a wave archive info record.
func (w *WaveArcInfo) RecordSize() int { return 4 }

// DecodeAt decodes a wave archive info record at an absolute offset.
func (w *WaveArcInfo) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	w.Raw, err = buf.Uint32At(offset)
	return err
}

// EncodeTo appends a wave archive info record.
func (w *WaveArcInfo) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(w.Raw)
}

// RecordSize returns the encoded size of a stream info record.
func (s *StrmInfo) RecordSize() int { return 8 }

// DecodeAt decodes a stream info record at an absolute offset.
func (s *StrmInfo) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if s.FileID, err = buf.Uint32At(offset); err != nil {
		return err
	}
	if s.Volume, err = buf.Uint8At(offset + 4); err != nil {
		return err
	}
	if s.PlayerPrio, err = buf.Uint8At(offset + 5); err != nil {
		return err
	}
	if s.PlayerNo, err = buf.Uint8At(offset + 6); err != nil {
		return err
	}
	s.Flags, err = buf.Uint8At(offset + 7)
	return err
}

// EncodeTo appends a stream info record.
func (s *StrmInfo) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(s.FileID)
	buf.AppendUint8(s.Volume)
	buf.AppendUint8(s.PlayerPrio)
	buf.AppendUint8(s.PlayerNo)
	buf.AppendUint8(s.Flags)
}

// RecordSize returns the encoded size of a player info record.
func (p *PlayerInfo) RecordSize() int { return 8 }

// DecodeAt decodes a player info record at an absolute offset.
func (p *PlayerInfo) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if p.SeqMax, err = buf.Uint8At(offset); err != nil {
		return err
	}
	if p.Padding, err = buf.Uint8At(offset + 1); err != nil {
		return err
	}
	if p.AllocChBitFlag, err = buf.Uint16At(offset + 2); err != nil {
		return err
	}
	p.HeapSize, err = buf.Uint32At(offset + 4)
	return err
}

// EncodeTo appends a player info record.
func (p *PlayerInfo) EncodeTo(buf *common.Buffer) {
	buf.AppendUint8(p.SeqMax)
	buf.AppendUint8(p.Padding)
	buf.AppendUint16(p.AllocChBitFlag)
	buf.AppendUint32(p.HeapSize)
}

// RecordSize returns the encoded size of a stream player info record.
func (p *StrmPlayerInfo) RecordSize() int { return 3 }

// DecodeAt decodes a stream player info record at an absolute offset.
func (p *StrmPlayerInfo) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if p.NumChannels, err = buf.Uint8At(offset); err != nil {
		return err
	}
	if p.ChNoList[0], err = buf.Uint8At(offset + 1); err != nil {
		return err
	}
	p.ChNoList[1], err = buf.Uint8At(offset + 2)
	return err
}

// EncodeTo appends a stream player info record.
func (p *StrmPlayerInfo) EncodeTo(buf *common.Buffer) {
	buf.AppendUint8(p.NumChannels)
	buf.AppendUint8(p.ChNoList[0])
	buf.AppendUint8(p.ChNoList[1])
}

// RecordSize returns the encoded size of a group entry.
func (g *GroupEntry) RecordSize() int { return 8 }

// DecodeAt decodes a group entry at an absolute offset.
func (g *GroupEntry) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if g.Type, err = buf.Uint8At(offset); err != nil {
		return err
	}
	if g.LoadFlags, err = buf.Uint8At(offset + 1); err != nil {
		return err
	}
	if g.Padding, err = buf.Uint16At(offset + 2); err != nil {
		return err
	}
	g.Index, err = buf.Uint32At(offset + 4)
	return err
}

// EncodeTo appends a group entry.
func (g *GroupEntry) EncodeTo(buf *common.Buffer) {
	buf.AppendUint8(g.Type)
	buf.AppendUint8(g.LoadFlags)
	buf.AppendUint16(g.Padding)
	buf.AppendUint32(g.Index)
}

// seqArcSymbolEntry is the packed SYMB-side shape of a sequence archive
// symbol: an offset to its own name plus an offset to the sub-table of
// contained sequence names.
type seqArcSymbolEntry struct {
	Symbol uint32
	Table  uint32
}

// RecordSize returns the encoded size of a sequence archive symbol entry.
func (s *seqArcSymbolEntry) RecordSize() int { return 8 }

// DecodeAt decodes a sequence archive symbol entry at an absolute offset.
func (s *seqArcSymbolEntry) DecodeAt(buf *common.Buffer, offset int) error {
	var err error
	if s.Symbol, err = buf.Uint32At(offset); err != nil {
		return err
	}
	s.Table, err = buf.Uint32At(offset + 4)
	return err
}

// EncodeTo appends a sequence archive symbol entry.
func (s *seqArcSymbolEntry) EncodeTo(buf *common.Buffer) {
	buf.AppendUint32(s.Symbol)
	buf.AppendUint32(s.Table)
}
