// Package pkg provides functionality for processing Nintendo DS SDAT sound
// archives. This file contains the container data model: the eight resource
// categories, their info record layouts, the symbol table and the file
// allocation table.
package pkg

import (
	"github.com/hansbonini/sdattools/pkg/common"
)

// ResourceKind identifies one of the eight fixed SDAT resource categories,
// plus the "unknown" kind used for file slots never claimed by any record.
type ResourceKind int

// The eight resource categories, in the order their offset tables appear
// inside the SYMB and INFO blocks.
const (
	KindSeq ResourceKind = iota
	KindSeqArc
	KindBank
	KindWaveArc
	KindPlayer
	KindGroup
	KindStrmPlayer
	KindStrm
	KindUnknown
)

var kindNames = [...]string{
	"SEQ", "SEQARC", "BANK", "WAVARC", "PLAYER", "GROUP", "PLAYER2", "STRM", "UNKNOWN",
}

var kindExts = [...]string{
	".sseq", ".ssar", ".sbnk", ".swar", "", "", "", ".strm", "",
}

// Name returns the category directory name used under Files/.
func (k ResourceKind) Name() string {
	return kindNames[k]
}

// Ext returns the file extension for categories that own a member file.
// Player, Group and StreamPlayer records are free-floating metadata and
// own no file.
func (k ResourceKind) Ext() string {
	return kindExts[k]
}

// WaveArcUnused is the sentinel marking an unused wave-archive slot in a
// bank record.
const WaveArcUnused = 0xFFFF

// MaxFileID is the exclusive upper bound for file IDs; any claimed ID at
// or above it indicates a corrupted archive.
const MaxFileID = 65536

// SDATHeader is the fixed top-level header of an SDAT archive.
type SDATHeader struct {
	Signature       [4]byte // always "SDAT"
	ByteOrder       uint16  // always 0xFEFF
	Version         uint16
	FileSize        uint32
	HeaderSize      uint16
	DataBlocks      uint16
	SymbOffset      uint32 // (0,0) when the symbol block is absent
	SymbSize        uint32
	InfoOffset      uint32
	InfoSize        uint32
	FATOffset       uint32
	FATSize         uint32
	FileImageOffset uint32
	FileImageSize   uint32
	Reserved        [16]byte
}

// BlockOffsets is the shared header shape of the SYMB and INFO blocks: a
// kind tag, a block size and one offset per resource category, each
// relative to the block's own base. A zero offset means "category absent".
type BlockOffsets struct {
	Kind    uint32
	Size    uint32
	Offsets [8]uint32
}

// FATHeader introduces the file allocation table.
type FATHeader struct {
	Kind uint32
	Size uint32
}

// FATEntry locates one member file inside the FILE image region.
type FATEntry struct {
	Offset   uint32
	Size     uint32
	Mem      uint32
	Reserved uint32
}

// SeqInfo is the info record for one sequence (SSEQ) resource.
type SeqInfo struct {
	FileID      uint32
	BankNo      uint16
	Volume      uint8
	ChannelPrio uint8
	PlayerPrio  uint8
	PlayerNo    uint8
	Reserved    uint16

	// Bound during the symbol pass.
	Name     string
	Filename string
	Bank     *BankInfo
	Player   *PlayerInfo
}

// SeqArcInfo is the info record for one sequence archive (SSAR) resource.
type SeqArcInfo struct {
	FileID uint32

	Name     string
	Filename string
	ArcNames []string // names of the archive's contained sequences
}

// BankInfo is the info record for one instrument bank (SBNK) resource.
type BankInfo struct {
	FileID     uint32
	WaveArcNos [4]uint16 // 0xFFFF marks an unused slot

	Name     string
	Filename string
	WaveArcs []*WaveArcInfo
}

// UsedWaveArcNos returns the non-sentinel wave-archive slots in slot order.
func (b *BankInfo) UsedWaveArcNos() []uint16 {
	used := make([]uint16, 0, 4)
	for _, no := range b.WaveArcNos {
		if no != WaveArcUnused {
			used = append(used, no)
		}
	}
	return used
}

// WaveArcInfo is the info record for one wave archive (SWAR) resource.
// The single raw word packs the file ID in the low 24 bits and flags in
// the high 8 bits.
type WaveArcInfo struct {
	Raw uint32

	Name     string
	Filename string
}

// FileID returns the packed 24-bit file ID.
func (w *WaveArcInfo) FileID() uint32 {
	return w.Raw & 0xFFFFFF
}

// Flags returns the packed 8-bit flags.
func (w *WaveArcInfo) Flags() uint8 {
	return uint8(w.Raw >> 24)
}

// StrmInfo is the info record for one stream (STRM) resource.
type StrmInfo struct {
	FileID     uint32
	Volume     uint8
	PlayerPrio uint8
	PlayerNo   uint8
	Flags      uint8

	Name     string
	Filename string
}

// PlayerInfo is the info record for one sequence player. Players own no
// member file.
type PlayerInfo struct {
	SeqMax         uint8
	Padding        uint8
	AllocChBitFlag uint16
	HeapSize       uint32

	Name string
}

// StrmPlayerInfo is the info record for one stream player. Stream players
// own no member file.
type StrmPlayerInfo struct {
	NumChannels uint8
	ChNoList    [2]uint8

	Name string
}

// GroupEntry is one member of a group: a typed index into another
// category's record list.
type GroupEntry struct {
	Type      uint8
	LoadFlags uint8
	Padding   uint16
	Index     uint32

	Name string
	Seq  *SeqInfo
}

// GroupInfo is the info record for one group: a variable-length list of
// entries.
type GroupInfo struct {
	Name    string
	Entries []*GroupEntry
}

// SeqArcSymbol is one sequence archive's symbol: its own name plus a
// nested list of names for the archive's contained sequences.
type SeqArcSymbol struct {
	Name     string
	SubNames []string
}

// SymbolData holds the per-category name arrays decoded from the SYMB
// block, aligned positionally with the info record arrays.
type SymbolData struct {
	Seq        []string
	SeqArc     []SeqArcSymbol
	Bank       []string
	WaveArc    []string
	Player     []string
	Group      []string
	StrmPlayer []string
	Strm       []string
}

// FileDescriptor describes one numeric file slot. A slot starts unclaimed
// and transitions to claimed exactly once, when the first info record
// referencing its file ID names it.
type FileDescriptor struct {
	Name    string
	Kind    ResourceKind
	Data    []byte
	claimed bool
}

// Claimed reports whether any info record has named this slot.
func (f *FileDescriptor) Claimed() bool {
	return f.claimed
}

// claim names the slot on behalf of its first claimant. Later claimants
// are ignored: first writer wins.
func (f *FileDescriptor) claim(name string, kind ResourceKind) {
	if f.claimed {
		return
	}
	f.Name = name
	f.Kind = kind
	f.claimed = true
}

// InfoData holds the typed info records of all eight categories, plus the
// file descriptor arena shared between them.
type InfoData struct {
	Seq        []*SeqInfo
	SeqArc     []*SeqArcInfo
	Bank       []*BankInfo
	WaveArc    []*WaveArcInfo
	Player     []*PlayerInfo
	Group      []*GroupInfo
	StrmPlayer []*StrmPlayerInfo
	Strm       []*StrmInfo

	Files []FileDescriptor
}

// SDATFile is the decoded archive: header, symbols (nil when the SYMB
// block is absent), info records and FAT entries with their payloads.
type SDATFile struct {
	Header  SDATHeader
	Symbols *SymbolData
	Infos   *InfoData
	FAT     []FATEntry
}

// SDATDecoder is the read side of the container model.
type SDATDecoder interface {
	Decode(buf *common.Buffer) (*SDATFile, error)
	DecodeHeader(buf *common.Buffer) (*SDATHeader, error)
	DecodeSymbols(buf *common.Buffer, header *SDATHeader) (*SymbolData, error)
	DecodeFAT(buf *common.Buffer, header *SDATHeader) ([]FATEntry, error)
	DecodeInfos(buf *common.Buffer, header *SDATHeader) (*InfoData, error)
}

// SDATExporter is the output side: inspection documents and the Files/
// directory tree.
type SDATExporter interface {
	ExportInfo(sdat *SDATFile, outputDir string) error
	ExportFilesManifest(sdat *SDATFile, outputDir string) error
	DumpFiles(sdat *SDATFile, outputDir string) error
}

// SDATUnpacker combines decoding and exporting into the archive-level
// operations exposed to the CLI.
type SDATUnpacker interface {
	Unpack(inputFile string, outputDir string) error
	Build(inputDir string, outputFile string) error
}
