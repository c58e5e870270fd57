// Package pkg provides tests for the SDAT container decoder
package pkg

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/hansbonini/sdattools/pkg/common"
)

// symbSpec lists the per-category symbol names for the synthetic SYMB
// block. A nil slice leaves the category's table offset at zero.
type symbSpec struct {
	seq     []string
	bank    []string
	waveArc []string
	player  []string
	group   []string
}

// buildSymbBlock encodes a SYMB block: the shared block header followed
// by per-category string offset tables and a string pool. Empty names
// stay as zero offsets (anonymous symbols).
func buildSymbBlock(spec symbSpec) []byte {
	b := common.NewBuffer(nil)
	block := &BlockOffsets{Kind: 0x424D5953} // "SYMB"
	block.EncodeTo(b)

	writeNames := func(kind ResourceKind, names []string) {
		if names == nil {
			return
		}
		tableOffset := b.Len()
		b.AppendUint32(uint32(len(names)))
		slots := make([]int, len(names))
		for i := range names {
			slots[i] = b.Len()
			b.AppendUint32(0)
		}
		for i, name := range names {
			if name == "" {
				continue
			}
			_ = b.PutUint32At(slots[i], uint32(b.Len()))
			b.AppendBytes(append([]byte(name), 0))
		}
		_ = b.PutUint32At(8+4*int(kind), uint32(tableOffset))
	}
	writeNames(KindSeq, spec.seq)
	writeNames(KindBank, spec.bank)
	writeNames(KindWaveArc, spec.waveArc)
	writeNames(KindPlayer, spec.player)
	writeNames(KindGroup, spec.group)

	_ = b.PutUint32At(4, uint32(b.Len()))
	return b.Bytes()
}

// infoSpec lists the typed info records for the synthetic INFO block.
type infoSpec struct {
	seq     []*SeqInfo
	bank    []*BankInfo
	waveArc []*WaveArcInfo
	player  []*PlayerInfo
	group   [][]*GroupEntry
}

// buildInfoBlock encodes an INFO block: the shared block header followed
// by per-category two-level record tables.
func buildInfoBlock(spec infoSpec) []byte {
	b := common.NewBuffer(nil)
	block := &BlockOffsets{Kind: 0x4F464E49} // "INFO"
	block.EncodeTo(b)

	writeTable := func(kind ResourceKind, n int, encode func(i int)) {
		if n == 0 {
			return
		}
		tableOffset := b.Len()
		b.AppendUint32(uint32(n))
		slots := make([]int, n)
		for i := range slots {
			slots[i] = b.Len()
			b.AppendUint32(0)
		}
		for i := 0; i < n; i++ {
			_ = b.PutUint32At(slots[i], uint32(b.Len()))
			encode(i)
		}
		_ = b.PutUint32At(8+4*int(kind), uint32(tableOffset))
	}
	writeTable(KindSeq, len(spec.seq), func(i int) { spec.seq[i].EncodeTo(b) })
	writeTable(KindBank, len(spec.bank), func(i int) { spec.bank[i].EncodeTo(b) })
	writeTable(KindWaveArc, len(spec.waveArc), func(i int) { spec.waveArc[i].EncodeTo(b) })
	writeTable(KindPlayer, len(spec.player), func(i int) { spec.player[i].EncodeTo(b) })
	writeTable(KindGroup, len(spec.group), func(i int) { EncodeRecordArray(b, spec.group[i]) })

	_ = b.PutUint32At(4, uint32(b.Len()))
	return b.Bytes()
}

// buildArchive assembles a complete SDAT image from pre-encoded blocks
// and the member file payloads. A nil symb omits the SYMB block.
func buildArchive(symb, info []byte, payloads [][]byte) []byte {
	fatSize := 8 + 4 + 16*len(payloads)
	header := &SDATHeader{
		ByteOrder:  0xFEFF,
		Version:    0x0100,
		HeaderSize: 0x40,
		DataBlocks: 4,
	}
	copy(header.Signature[:], "SDAT")

	pos := 64
	if len(symb) > 0 {
		header.SymbOffset = uint32(pos)
		header.SymbSize = uint32(len(symb))
		pos += len(symb)
	}
	header.InfoOffset = uint32(pos)
	header.InfoSize = uint32(len(info))
	pos += len(info)
	header.FATOffset = uint32(pos)
	header.FATSize = uint32(fatSize)
	pos += fatSize
	header.FileImageOffset = uint32(pos)

	entries := make([]*FATEntry, len(payloads))
	off := 0
	for i, p := range payloads {
		entries[i] = &FATEntry{Offset: uint32(off), Size: uint32(len(p))}
		off += len(p)
	}
	header.FileImageSize = uint32(off)
	header.FileSize = uint32(pos + off)

	b := common.NewBuffer(nil)
	header.EncodeTo(b)
	b.AppendBytes(symb)
	b.AppendBytes(info)
	b.AppendUint32(0x20544146) // "FAT "
	b.AppendUint32(uint32(fatSize))
	EncodeRecordArray(b, entries)
	for _, p := range payloads {
		b.AppendBytes(p)
	}
	return b.Bytes()
}

// testSymbols is the fixture's SYMB content. The second sequence is
// anonymous on purpose.
func testSymbols() symbSpec {
	return symbSpec{
		seq:     []string{"BGM_FIELD", ""},
		bank:    []string{"A", "B", "C"},
		waveArc: []string{"WA_A", "WA_B"},
		player:  []string{"PLAYER0"},
		group:   []string{"GRP"},
	}
}

// testInfos is the fixture's INFO content. Banks A and B both claim file
// slot 2; slots 3 and 7 are claimed by nobody.
func testInfos() infoSpec {
	return infoSpec{
		seq: []*SeqInfo{
			{FileID: 0, BankNo: 2, Volume: 127, PlayerNo: 0},
			{FileID: 1, BankNo: 0, Volume: 100, PlayerNo: 0},
		},
		bank: []*BankInfo{
			{FileID: 2, WaveArcNos: [4]uint16{WaveArcUnused, WaveArcUnused, WaveArcUnused, WaveArcUnused}},
			{FileID: 2, WaveArcNos: [4]uint16{WaveArcUnused, WaveArcUnused, WaveArcUnused, WaveArcUnused}},
			{FileID: 4, WaveArcNos: [4]uint16{1, WaveArcUnused, 0, WaveArcUnused}},
		},
		waveArc: []*WaveArcInfo{{Raw: 5}, {Raw: 6}},
		player:  []*PlayerInfo{{SeqMax: 16, HeapSize: 0x2000}},
		group:   [][]*GroupEntry{{{Type: 0, Index: 0}}},
	}
}

// testPayloads returns eight small distinct member files.
func testPayloads() [][]byte {
	payloads := make([][]byte, 8)
	for i := range payloads {
		payloads[i] = []byte{byte(i), byte(i + 1), byte(i + 2)}
	}
	return payloads
}

func buildTestArchive(withSymbols bool) []byte {
	var symb []byte
	if withSymbols {
		symb = buildSymbBlock(testSymbols())
	}
	return buildArchive(symb, buildInfoBlock(testInfos()), testPayloads())
}

func TestDecodeArchive(t *testing.T) {
	decoder := NewSDATDecoder()
	sdat, err := decoder.Decode(common.NewBuffer(buildTestArchive(true)))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	if len(sdat.FAT) != 8 {
		t.Fatalf("len(FAT) = %d, want 8", len(sdat.FAT))
	}
	if len(sdat.Infos.Files) != 8 {
		t.Fatalf("len(Files) = %d, want 8", len(sdat.Infos.Files))
	}

	seq0 := sdat.Infos.Seq[0]
	if seq0.Name != "BGM_FIELD" {
		t.Errorf("seq 0 name = %q, want %q", seq0.Name, "BGM_FIELD")
	}
	if seq0.Filename != "Files/SEQ/BGM_FIELD.sseq" {
		t.Errorf("seq 0 filename = %q, want %q", seq0.Filename, "Files/SEQ/BGM_FIELD.sseq")
	}
	if seq0.Bank == nil || seq0.Bank.Name != "C" {
		t.Errorf("seq 0 bank = %+v, want name C", seq0.Bank)
	}
	if seq0.Player == nil || seq0.Player.Name != "PLAYER0" {
		t.Errorf("seq 0 player = %+v, want name PLAYER0", seq0.Player)
	}

	seq1 := sdat.Infos.Seq[1]
	if seq1.Name != "SEQ_001" {
		t.Errorf("anonymous seq name = %q, want %q", seq1.Name, "SEQ_001")
	}
	if seq1.Filename != "Files/SEQ/SEQ_001.sseq" {
		t.Errorf("anonymous seq filename = %q, want %q", seq1.Filename, "Files/SEQ/SEQ_001.sseq")
	}

	// Bank C references wave archives 1 and 0, in slot order.
	bankC := sdat.Infos.Bank[2]
	if len(bankC.WaveArcs) != 2 {
		t.Fatalf("bank C wave arcs = %d, want 2", len(bankC.WaveArcs))
	}
	if bankC.WaveArcs[0].Name != "WA_B" || bankC.WaveArcs[1].Name != "WA_A" {
		t.Errorf("bank C wave arc names = %q, %q; want WA_B, WA_A",
			bankC.WaveArcs[0].Name, bankC.WaveArcs[1].Name)
	}

	// Banks A and B both reference file 2: the first claimant names it.
	if got := sdat.Infos.Files[2].Name; got != "Files/BANK/A.sbnk" {
		t.Errorf("file 2 name = %q, want %q", got, "Files/BANK/A.sbnk")
	}
	if got := sdat.Infos.Bank[1].Filename; got != "Files/BANK/A.sbnk" {
		t.Errorf("bank B filename = %q, want the first claimant's %q", got, "Files/BANK/A.sbnk")
	}

	for _, slot := range []int{3, 7} {
		if sdat.Infos.Files[slot].Claimed() {
			t.Errorf("file %d is claimed, want unclaimed", slot)
		}
	}

	entry := sdat.Infos.Group[0].Entries[0]
	if entry.Name != "GRP_000" {
		t.Errorf("group entry name = %q, want %q", entry.Name, "GRP_000")
	}
	if entry.Seq != seq0 {
		t.Errorf("group entry seq = %+v, want seq 0", entry.Seq)
	}

	want := []byte{0, 1, 2}
	got := sdat.Infos.Files[0].Data
	if len(got) != len(want) || got[0] != want[0] || got[2] != want[2] {
		t.Errorf("file 0 payload = % X, want % X", got, want)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	data := buildTestArchive(true)
	copy(data[0:4], "XDAT")

	_, err := NewSDATDecoder().Decode(common.NewBuffer(data))
	if err == nil {
		t.Fatal("Decode() with a bad magic did not fail")
	}
	var formatErr *common.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("error type = %T, want *FormatError", err)
	}
}

func TestDecodeBadByteOrder(t *testing.T) {
	data := buildTestArchive(true)
	data[4], data[5] = 0xFE, 0xFF // stores 0xFFFE little-endian

	_, err := NewSDATDecoder().Decode(common.NewBuffer(data))
	if err == nil {
		t.Fatal("Decode() with a bad byte-order marker did not fail")
	}
	var formatErr *common.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("error type = %T, want *FormatError", err)
	}
	if formatErr.Offset != 4 {
		t.Errorf("FormatError.Offset = %d, want 4", formatErr.Offset)
	}
}

func TestDecodeWithoutSymbols(t *testing.T) {
	sdat, err := NewSDATDecoder().Decode(common.NewBuffer(buildTestArchive(false)))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if sdat.Symbols != nil {
		t.Errorf("Symbols = %+v, want nil", sdat.Symbols)
	}
	if got := sdat.Infos.Seq[0].Name; got != "SEQ_000" {
		t.Errorf("seq 0 name = %q, want %q", got, "SEQ_000")
	}
	if got := sdat.Infos.Bank[2].Name; got != "BANK_002" {
		t.Errorf("bank 2 name = %q, want %q", got, "BANK_002")
	}
}

func TestDecodeShortSymbolTable(t *testing.T) {
	spec := testSymbols()
	spec.seq = spec.seq[:1] // two seq records, one name
	data := buildArchive(buildSymbBlock(spec), buildInfoBlock(testInfos()), testPayloads())

	_, err := NewSDATDecoder().Decode(common.NewBuffer(data))
	if err == nil {
		t.Fatal("Decode() with a short symbol table did not fail")
	}
	var formatErr *common.FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("error type = %T, want *FormatError", err)
	}
}

func TestDecodeFileIDOutOfRange(t *testing.T) {
	infos := testInfos()
	infos.seq[0].FileID = 100000
	data := buildArchive(buildSymbBlock(testSymbols()), buildInfoBlock(infos), testPayloads())

	_, err := NewSDATDecoder().Decode(common.NewBuffer(data))
	if err == nil {
		t.Fatal("Decode() with an out-of-range file ID did not fail")
	}
	var refErr *common.ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("error type = %T, want *ReferenceError", err)
	}
}

func TestBindIdempotent(t *testing.T) {
	sdat, err := NewSDATDecoder().Decode(common.NewBuffer(buildTestArchive(true)))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	if err := sdat.Infos.Bind(sdat.Symbols); err != nil {
		t.Fatalf("second Bind() failed: %v", err)
	}
	if got := sdat.Infos.Seq[0].Filename; got != "Files/SEQ/BGM_FIELD.sseq" {
		t.Errorf("seq 0 filename after rebind = %q, want %q", got, "Files/SEQ/BGM_FIELD.sseq")
	}
	if got := sdat.Infos.Files[2].Name; got != "Files/BANK/A.sbnk" {
		t.Errorf("file 2 name after rebind = %q, want %q", got, "Files/BANK/A.sbnk")
	}
	if got := len(sdat.Infos.Bank[2].WaveArcs); got != 2 {
		t.Errorf("bank C wave arcs after rebind = %d, want 2", got)
	}
}

func TestBindFlagsAnonymousSymbol(t *testing.T) {
	// Sequence 1 has an empty entry in a present symbol table; its
	// synthesized name must be flagged. A symbol-less archive stays quiet.
	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	if _, err := NewSDATDecoder().Decode(common.NewBuffer(buildTestArchive(true))); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if !strings.Contains(logged.String(), "Anonymous symbol for SEQ index 1") {
		t.Errorf("log output = %q, want an anonymous symbol warning for SEQ 1", logged.String())
	}

	logged.Reset()
	if _, err := NewSDATDecoder().Decode(common.NewBuffer(buildTestArchive(false))); err != nil {
		t.Fatalf("Decode() without symbols failed: %v", err)
	}
	if strings.Contains(logged.String(), "Anonymous symbol") {
		t.Errorf("log output = %q, want no anonymous symbol warnings without a SYMB block", logged.String())
	}
}

func TestDecodeBrokenBankReference(t *testing.T) {
	infos := testInfos()
	infos.seq[0].BankNo = 9
	data := buildArchive(buildSymbBlock(testSymbols()), buildInfoBlock(infos), testPayloads())

	_, err := NewSDATDecoder().Decode(common.NewBuffer(data))
	if err == nil {
		t.Fatal("Decode() with a broken bank reference did not fail")
	}
	var refErr *common.ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("error type = %T, want *ReferenceError", err)
	}
}
