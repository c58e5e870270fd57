// Package pkg provides functionality for processing Nintendo DS SDAT sound
// archives. This file contains the container model decoder: header
// validation, the SYMB/INFO/FAT block walks and the symbol binding pass
// that produces stable names and typed cross-references.
package pkg

import (
	"fmt"
	"path"

	"github.com/hansbonini/sdattools/pkg/common"
)

// SDATFileDecoder implements the SDATDecoder interface.
type SDATFileDecoder struct{}

// NewSDATDecoder creates a new SDAT decoder instance.
func NewSDATDecoder() *SDATFileDecoder {
	return &SDATFileDecoder{}
}

// Decode runs the full single-pass read of an SDAT archive: header, symbol
// block (if present), file allocation table, info block, then the symbol
// binding pass. The returned SDATFile has every info record named and
// every cross-reference populated or explicitly empty.
func (d *SDATFileDecoder) Decode(buf *common.Buffer) (*SDATFile, error) {
	sdat := &SDATFile{}

	header, err := d.DecodeHeader(buf)
	if err != nil {
		return nil, common.WrapError(common.ErrFailedToDecodeHeader, err)
	}
	sdat.Header = *header

	symbols, err := d.DecodeSymbols(buf, header)
	if err != nil {
		return nil, common.WrapError(common.ErrFailedToDecodeSymbols, err)
	}
	sdat.Symbols = symbols

	fat, err := d.DecodeFAT(buf, header)
	if err != nil {
		return nil, common.WrapError(common.ErrFailedToDecodeFAT, err)
	}
	sdat.FAT = fat

	infos, err := d.DecodeInfos(buf, header)
	if err != nil {
		return nil, common.WrapError(common.ErrFailedToDecodeInfo, err)
	}
	sdat.Infos = infos

	// Pre-size the file descriptor arena to the FAT entry count and slice
	// each payload out of the FILE image region.
	infos.EnsureFiles(len(fat))
	for i, entry := range fat {
		data, err := buf.SliceAt(int(header.FileImageOffset)+int(entry.Offset), int(entry.Size))
		if err != nil {
			return nil, common.WrapError(common.ErrFailedToDecodeFAT, err)
		}
		infos.Files[i].Data = data
	}

	if err := infos.Bind(symbols); err != nil {
		return nil, common.WrapError(common.ErrFailedToBindSymbols, err)
	}

	return sdat, nil
}

// DecodeHeader reads and validates the fixed top-level SDAT header.
func (d *SDATFileDecoder) DecodeHeader(buf *common.Buffer) (*SDATHeader, error) {
	header := &SDATHeader{}
	if err := header.DecodeAt(buf, 0); err != nil {
		return nil, err
	}
	if string(header.Signature[:]) != "SDAT" {
		return nil, &common.FormatError{
			Offset: 0,
			Msg:    fmt.Sprintf("invalid signature: expected 'SDAT', got %q", string(header.Signature[:])),
		}
	}
	if header.ByteOrder != 0xFEFF {
		return nil, &common.FormatError{
			Offset: 4,
			Msg:    fmt.Sprintf("invalid byte-order marker: expected 0xFEFF, got 0x%04X", header.ByteOrder),
		}
	}
	common.LogDebug(common.DebugHeaderInfo,
		header.SymbOffset, header.InfoOffset, header.FATOffset, header.FileImageOffset)
	return header, nil
}

// DecodeSymbols reads the SYMB block's per-category name arrays. Returns
// nil without error when the block is absent (offset zero).
func (d *SDATFileDecoder) DecodeSymbols(buf *common.Buffer, header *SDATHeader) (*SymbolData, error) {
	if header.SymbOffset == 0 {
		return nil, nil
	}
	base := int(header.SymbOffset)
	var block BlockOffsets
	if err := block.DecodeAt(buf, base); err != nil {
		return nil, err
	}

	symbols := &SymbolData{}
	var err error
	if symbols.Seq, err = ReadStringTable(buf, base, int(block.Offsets[KindSeq])); err != nil {
		return nil, err
	}
	if symbols.SeqArc, err = readSeqArcSymbols(buf, base, int(block.Offsets[KindSeqArc])); err != nil {
		return nil, err
	}
	if symbols.Bank, err = ReadStringTable(buf, base, int(block.Offsets[KindBank])); err != nil {
		return nil, err
	}
	if symbols.WaveArc, err = ReadStringTable(buf, base, int(block.Offsets[KindWaveArc])); err != nil {
		return nil, err
	}
	if symbols.Player, err = ReadStringTable(buf, base, int(block.Offsets[KindPlayer])); err != nil {
		return nil, err
	}
	if symbols.Group, err = ReadStringTable(buf, base, int(block.Offsets[KindGroup])); err != nil {
		return nil, err
	}
	if symbols.StrmPlayer, err = ReadStringTable(buf, base, int(block.Offsets[KindStrmPlayer])); err != nil {
		return nil, err
	}
	if symbols.Strm, err = ReadStringTable(buf, base, int(block.Offsets[KindStrm])); err != nil {
		return nil, err
	}
	common.LogDebug(common.DebugSymbolCounts, KindSeq.Name(), len(symbols.Seq))
	common.LogDebug(common.DebugSymbolCounts, KindSeqArc.Name(), len(symbols.SeqArc))
	common.LogDebug(common.DebugSymbolCounts, KindBank.Name(), len(symbols.Bank))
	common.LogDebug(common.DebugSymbolCounts, KindWaveArc.Name(), len(symbols.WaveArc))
	return symbols, nil
}

// readSeqArcSymbols reads the two-level sequence archive symbol table: an
// array of (name-offset, sub-table-offset) pairs, each sub-table itself a
// plain string offset table, all relative to the SYMB block base.
func readSeqArcSymbols(buf *common.Buffer, base, tableOffset int) ([]SeqArcSymbol, error) {
	if base == 0 || tableOffset == 0 {
		return nil, nil
	}
	entries, err := DecodeRecordArray[seqArcSymbolEntry](buf, base+tableOffset)
	if err != nil {
		return nil, err
	}
	symbols := make([]SeqArcSymbol, len(entries))
	for i, entry := range entries {
		symbols[i].Name = buf.CStringAt(base, int(entry.Symbol))
		subNames, err := ReadStringTable(buf, base, int(entry.Table))
		if err != nil {
			return nil, err
		}
		symbols[i].SubNames = subNames
	}
	return symbols, nil
}

// DecodeFAT reads the file allocation table entries.
func (d *SDATFileDecoder) DecodeFAT(buf *common.Buffer, header *SDATHeader) ([]FATEntry, error) {
	fatHeader := &FATHeader{}
	if err := fatHeader.DecodeAt(buf, int(header.FATOffset)); err != nil {
		return nil, err
	}
	entries, err := DecodeRecordArray[FATEntry](buf, int(header.FATOffset)+fatHeader.RecordSize())
	if err != nil {
		return nil, err
	}
	fat := make([]FATEntry, len(entries))
	for i, entry := range entries {
		fat[i] = *entry
	}
	common.LogDebug(common.DebugFATEntries, len(fat))
	return fat, nil
}

// DecodeInfos reads the INFO block's per-category typed record tables.
func (d *SDATFileDecoder) DecodeInfos(buf *common.Buffer, header *SDATHeader) (*InfoData, error) {
	base := int(header.InfoOffset)
	var block BlockOffsets
	if err := block.DecodeAt(buf, base); err != nil {
		return nil, err
	}

	for kind, off := range block.Offsets {
		if off == 0 {
			common.LogWarn(common.WarnEmptyCategory, ResourceKind(kind).Name())
		}
	}

	infos := &InfoData{}
	var err error
	if infos.Seq, err = DecodeRecordTable[SeqInfo](buf, base, int(block.Offsets[KindSeq])); err != nil {
		return nil, err
	}
	if infos.SeqArc, err = DecodeRecordTable[SeqArcInfo](buf, base, int(block.Offsets[KindSeqArc])); err != nil {
		return nil, err
	}
	if infos.Bank, err = DecodeRecordTable[BankInfo](buf, base, int(block.Offsets[KindBank])); err != nil {
		return nil, err
	}
	if infos.WaveArc, err = DecodeRecordTable[WaveArcInfo](buf, base, int(block.Offsets[KindWaveArc])); err != nil {
		return nil, err
	}
	if infos.Player, err = DecodeRecordTable[PlayerInfo](buf, base, int(block.Offsets[KindPlayer])); err != nil {
		return nil, err
	}
	groupArrays, err := DecodeArrayTable[GroupEntry](buf, base, int(block.Offsets[KindGroup]))
	if err != nil {
		return nil, err
	}
	infos.Group = make([]*GroupInfo, len(groupArrays))
	for i, entries := range groupArrays {
		if entries == nil {
			continue
		}
		infos.Group[i] = &GroupInfo{Entries: entries}
	}
	if infos.StrmPlayer, err = DecodeRecordTable[StrmPlayerInfo](buf, base, int(block.Offsets[KindStrmPlayer])); err != nil {
		return nil, err
	}
	if infos.Strm, err = DecodeRecordTable[StrmInfo](buf, base, int(block.Offsets[KindStrm])); err != nil {
		return nil, err
	}
	common.LogDebug(common.DebugInfoCounts, KindSeq.Name(), len(infos.Seq))
	common.LogDebug(common.DebugInfoCounts, KindSeqArc.Name(), len(infos.SeqArc))
	common.LogDebug(common.DebugInfoCounts, KindBank.Name(), len(infos.Bank))
	common.LogDebug(common.DebugInfoCounts, KindWaveArc.Name(), len(infos.WaveArc))
	return infos, nil
}

// EnsureFiles grows the file descriptor arena to hold at least n slots.
func (d *InfoData) EnsureFiles(n int) {
	for len(d.Files) < n {
		d.Files = append(d.Files, FileDescriptor{Kind: KindUnknown})
	}
}

// defaultName synthesizes a stable name for an anonymous record.
func defaultName(kind ResourceKind, index int) string {
	return fmt.Sprintf("%s_%03d", kind.Name(), index)
}

// symbolFor returns the symbol at index, or "" past the end of the array.
// Callers validate array lengths before using it; the helper only covers
// the symbols == nil case.
func symbolFor(names []string, index int) string {
	if index < len(names) {
		return names[index]
	}
	return ""
}

// resolveName zips one record with its symbol, synthesizing a stable name
// when the symbol is empty or the block is absent. An empty entry in a
// present symbol table is worth flagging; a missing table is not.
func resolveName(names []string, kind ResourceKind, index int) string {
	name := symbolFor(names, index)
	if name != "" {
		return name
	}
	if index < len(names) {
		common.LogWarn(common.WarnAnonymousSymbol, kind.Name(), index)
	}
	return defaultName(kind, index)
}

// checkSymbolCount enforces the SYMB/INFO alignment invariant: a present
// symbol block whose name array is shorter than the category's info record
// count means the archive is malformed.
func checkSymbolCount(kind ResourceKind, nsymbols, ninfos int) error {
	if nsymbols < ninfos {
		return &common.FormatError{
			Offset:   -1,
			Category: kind.Name(),
			Msg:      fmt.Sprintf("symbol table holds %d names for %d info records", nsymbols, ninfos),
		}
	}
	return nil
}

// claimFile claims the file descriptor slot for fileID on behalf of an
// info record and returns the slot's output filename. The first claimant
// names the slot; later claimants receive the existing name.
func (d *InfoData) claimFile(fileID uint32, kind ResourceKind, name string) (string, error) {
	if fileID >= MaxFileID {
		return "", &common.ReferenceError{
			Category: kind.Name(),
			Index:    int(fileID),
			Msg:      fmt.Sprintf("file ID %d out of range (max %d)", fileID, MaxFileID-1),
		}
	}
	d.EnsureFiles(int(fileID) + 1)
	slot := &d.Files[fileID]
	slot.claim(path.Join("Files", kind.Name(), name+kind.Ext()), kind)
	common.LogDebug(common.DebugFileClaimed, fileID, slot.Name)
	return slot.Name, nil
}

// Bind zips each category's info records with its symbol strings, claims
// file descriptor slots and resolves the typed cross-references. Binding
// an already-bound model is a no-op. symbols may be nil, in which case
// every name is synthesized.
func (d *InfoData) Bind(symbols *SymbolData) error {
	if symbols == nil {
		symbols = &SymbolData{}
	} else {
		if err := checkSymbolCount(KindSeq, len(symbols.Seq), len(d.Seq)); err != nil {
			return err
		}
		if err := checkSymbolCount(KindSeqArc, len(symbols.SeqArc), len(d.SeqArc)); err != nil {
			return err
		}
		if err := checkSymbolCount(KindBank, len(symbols.Bank), len(d.Bank)); err != nil {
			return err
		}
		if err := checkSymbolCount(KindWaveArc, len(symbols.WaveArc), len(d.WaveArc)); err != nil {
			return err
		}
		if err := checkSymbolCount(KindPlayer, len(symbols.Player), len(d.Player)); err != nil {
			return err
		}
		if err := checkSymbolCount(KindGroup, len(symbols.Group), len(d.Group)); err != nil {
			return err
		}
		if err := checkSymbolCount(KindStrmPlayer, len(symbols.StrmPlayer), len(d.StrmPlayer)); err != nil {
			return err
		}
		if err := checkSymbolCount(KindStrm, len(symbols.Strm), len(d.Strm)); err != nil {
			return err
		}
	}

	for i, rec := range d.Seq {
		if rec == nil {
			continue
		}
		rec.Name = resolveName(symbols.Seq, KindSeq, i)
		filename, err := d.claimFile(rec.FileID, KindSeq, rec.Name)
		if err != nil {
			return err
		}
		rec.Filename = filename
		if int(rec.BankNo) >= len(d.Bank) || d.Bank[rec.BankNo] == nil {
			return &common.ReferenceError{Category: KindSeq.Name(), Index: i,
				Msg: fmt.Sprintf("bank %d does not exist", rec.BankNo)}
		}
		rec.Bank = d.Bank[rec.BankNo]
		if int(rec.PlayerNo) >= len(d.Player) || d.Player[rec.PlayerNo] == nil {
			return &common.ReferenceError{Category: KindSeq.Name(), Index: i,
				Msg: fmt.Sprintf("player %d does not exist", rec.PlayerNo)}
		}
		rec.Player = d.Player[rec.PlayerNo]
	}

	for i, rec := range d.SeqArc {
		if rec == nil {
			continue
		}
		symbol := SeqArcSymbol{}
		if i < len(symbols.SeqArc) {
			symbol = symbols.SeqArc[i]
		}
		rec.Name = symbol.Name
		rec.ArcNames = symbol.SubNames
		if rec.Name == "" {
			if i < len(symbols.SeqArc) {
				common.LogWarn(common.WarnAnonymousSymbol, KindSeqArc.Name(), i)
			}
			rec.Name = defaultName(KindSeqArc, i)
		}
		filename, err := d.claimFile(rec.FileID, KindSeqArc, rec.Name)
		if err != nil {
			return err
		}
		rec.Filename = filename
	}

	for i, rec := range d.Bank {
		if rec == nil {
			continue
		}
		rec.Name = resolveName(symbols.Bank, KindBank, i)
		filename, err := d.claimFile(rec.FileID, KindBank, rec.Name)
		if err != nil {
			return err
		}
		rec.Filename = filename
		used := rec.UsedWaveArcNos()
		rec.WaveArcs = make([]*WaveArcInfo, 0, len(used))
		for _, no := range used {
			if int(no) >= len(d.WaveArc) || d.WaveArc[no] == nil {
				return &common.ReferenceError{Category: KindBank.Name(), Index: i,
					Msg: fmt.Sprintf("wave archive %d does not exist", no)}
			}
			rec.WaveArcs = append(rec.WaveArcs, d.WaveArc[no])
		}
	}

	for i, rec := range d.WaveArc {
		if rec == nil {
			continue
		}
		rec.Name = resolveName(symbols.WaveArc, KindWaveArc, i)
		filename, err := d.claimFile(rec.FileID(), KindWaveArc, rec.Name)
		if err != nil {
			return err
		}
		rec.Filename = filename
	}

	for i, rec := range d.Player {
		if rec == nil {
			continue
		}
		rec.Name = resolveName(symbols.Player, KindPlayer, i)
	}

	for i, rec := range d.Group {
		if rec == nil {
			continue
		}
		rec.Name = resolveName(symbols.Group, KindGroup, i)
		for j, entry := range rec.Entries {
			entry.Name = fmt.Sprintf("%s_%03d", rec.Name, j)
			if int(entry.Index) >= len(d.Seq) || d.Seq[entry.Index] == nil {
				return &common.ReferenceError{Category: KindGroup.Name(), Index: i,
					Msg: fmt.Sprintf("sequence %d does not exist", entry.Index)}
			}
			entry.Seq = d.Seq[entry.Index]
		}
	}

	for i, rec := range d.StrmPlayer {
		if rec == nil {
			continue
		}
		rec.Name = resolveName(symbols.StrmPlayer, KindStrmPlayer, i)
	}

	for i, rec := range d.Strm {
		if rec == nil {
			continue
		}
		rec.Name = resolveName(symbols.Strm, KindStrm, i)
		filename, err := d.claimFile(rec.FileID, KindStrm, rec.Name)
		if err != nil {
			return err
		}
		rec.Filename = filename
	}

	return nil
}
