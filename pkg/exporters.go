// Package pkg provides functionality for processing Nintendo DS SDAT sound
// archives. This file contains exporters for writing the decoded archive to
// disk: the info document, the files manifest and the Files/ payload tree
// with per-sequence text listings.
package pkg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hansbonini/sdattools/pkg/common"
	"github.com/hansbonini/sdattools/pkg/nds"
	"gopkg.in/yaml.v3"
)

// SDATFileExporter implements the SDATExporter interface. Format selects
// the inspection document encoding: "json" (default) or "yaml".
type SDATFileExporter struct {
	Format string
}

// NewSDATExporter creates a new SDAT exporter instance.
func NewSDATExporter(format string) *SDATFileExporter {
	if format == "" {
		format = "json"
	}
	return &SDATFileExporter{Format: format}
}

// seqDoc is one sequence entry of the info document. Cross-references are
// resolved to names during symbol binding and exported as such.
type seqDoc struct {
	Name        string `json:"name" yaml:"name"`
	Filename    string `json:"filename" yaml:"filename"`
	Bank        string `json:"bank" yaml:"bank"`
	Player      string `json:"player" yaml:"player"`
	Volume      uint8  `json:"volume" yaml:"volume"`
	ChannelPrio uint8  `json:"channel_prio" yaml:"channel_prio"`
	PlayerPrio  uint8  `json:"player_prio" yaml:"player_prio"`
}

type seqArcDoc struct {
	Name     string   `json:"name" yaml:"name"`
	Filename string   `json:"filename" yaml:"filename"`
	Seqs     []string `json:"seqs" yaml:"seqs"`
}

type bankDoc struct {
	Name     string   `json:"name" yaml:"name"`
	Filename string   `json:"filename" yaml:"filename"`
	WaveArcs []string `json:"wave_arcs" yaml:"wave_arcs"`
}

type waveArcDoc struct {
	Name     string `json:"name" yaml:"name"`
	Filename string `json:"filename" yaml:"filename"`
	Flags    uint8  `json:"flags" yaml:"flags"`
}

type playerDoc struct {
	Name           string `json:"name" yaml:"name"`
	SeqMax         uint8  `json:"seq_max" yaml:"seq_max"`
	AllocChBitFlag uint16 `json:"alloc_ch_bit_flag" yaml:"alloc_ch_bit_flag"`
	HeapSize       uint32 `json:"heap_size" yaml:"heap_size"`
}

type groupEntryDoc struct {
	Name      string `json:"name" yaml:"name"`
	Type      uint8  `json:"type" yaml:"type"`
	LoadFlags uint8  `json:"load_flags" yaml:"load_flags"`
	Seq       string `json:"seq,omitempty" yaml:"seq,omitempty"`
}

type groupDoc struct {
	Name    string          `json:"name" yaml:"name"`
	Entries []groupEntryDoc `json:"entries" yaml:"entries"`
}

type strmPlayerDoc struct {
	Name     string  `json:"name" yaml:"name"`
	Channels []uint8 `json:"channels" yaml:"channels"`
}

type strmDoc struct {
	Name       string `json:"name" yaml:"name"`
	Filename   string `json:"filename" yaml:"filename"`
	Volume     uint8  `json:"volume" yaml:"volume"`
	PlayerPrio uint8  `json:"player_prio" yaml:"player_prio"`
	PlayerNo   uint8  `json:"player_no" yaml:"player_no"`
	Flags      uint8  `json:"flags" yaml:"flags"`
}

// infoDocument is the archive-wide inspection document.
type infoDocument struct {
	Seq        []seqDoc        `json:"seq" yaml:"seq"`
	SeqArc     []seqArcDoc     `json:"seqarc" yaml:"seqarc"`
	Bank       []bankDoc       `json:"bank" yaml:"bank"`
	WaveArc    []waveArcDoc    `json:"wavarc" yaml:"wavarc"`
	Player     []playerDoc     `json:"player" yaml:"player"`
	Group      []groupDoc      `json:"group" yaml:"group"`
	StrmPlayer []strmPlayerDoc `json:"player2" yaml:"player2"`
	Strm       []strmDoc       `json:"strm" yaml:"strm"`
}

// fileDoc is one entry of the files manifest. Paths always use forward
// slashes regardless of host platform.
type fileDoc struct {
	Index   int    `json:"index" yaml:"index"`
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"`
	Size    int    `json:"size" yaml:"size"`
	Claimed bool   `json:"claimed" yaml:"claimed"`
}

// marshal encodes a document in the exporter's configured format and
// returns the bytes along with the file extension to use.
func (e *SDATFileExporter) marshal(v interface{}) ([]byte, string, error) {
	switch e.Format {
	case "yaml":
		data, err := yaml.Marshal(v)
		return data, ".yaml", err
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		return data, ".json", err
	}
	return nil, "", fmt.Errorf("unsupported output format %q", e.Format)
}

// buildInfoDocument flattens the typed info records into the exportable
// document shape.
func buildInfoDocument(sdat *SDATFile) *infoDocument {
	doc := &infoDocument{}
	for _, s := range sdat.Infos.Seq {
		if s == nil {
			continue
		}
		d := seqDoc{
			Name:        s.Name,
			Filename:    s.Filename,
			Volume:      s.Volume,
			ChannelPrio: s.ChannelPrio,
			PlayerPrio:  s.PlayerPrio,
		}
		if s.Bank != nil {
			d.Bank = s.Bank.Name
		}
		if s.Player != nil {
			d.Player = s.Player.Name
		}
		doc.Seq = append(doc.Seq, d)
	}
	for _, s := range sdat.Infos.SeqArc {
		if s == nil {
			continue
		}
		doc.SeqArc = append(doc.SeqArc, seqArcDoc{Name: s.Name, Filename: s.Filename, Seqs: s.ArcNames})
	}
	for _, b := range sdat.Infos.Bank {
		if b == nil {
			continue
		}
		d := bankDoc{Name: b.Name, Filename: b.Filename}
		for _, w := range b.WaveArcs {
			d.WaveArcs = append(d.WaveArcs, w.Name)
		}
		doc.Bank = append(doc.Bank, d)
	}
	for _, w := range sdat.Infos.WaveArc {
		if w == nil {
			continue
		}
		doc.WaveArc = append(doc.WaveArc, waveArcDoc{Name: w.Name, Filename: w.Filename, Flags: w.Flags()})
	}
	for _, p := range sdat.Infos.Player {
		if p == nil {
			continue
		}
		doc.Player = append(doc.Player, playerDoc{
			Name:           p.Name,
			SeqMax:         p.SeqMax,
			AllocChBitFlag: p.AllocChBitFlag,
			HeapSize:       p.HeapSize,
		})
	}
	for _, g := range sdat.Infos.Group {
		if g == nil {
			continue
		}
		d := groupDoc{Name: g.Name}
		for _, entry := range g.Entries {
			ed := groupEntryDoc{Name: entry.Name, Type: entry.Type, LoadFlags: entry.LoadFlags}
			if entry.Seq != nil {
				ed.Seq = entry.Seq.Name
			}
			d.Entries = append(d.Entries, ed)
		}
		doc.Group = append(doc.Group, d)
	}
	for _, p := range sdat.Infos.StrmPlayer {
		if p == nil {
			continue
		}
		n := int(p.NumChannels)
		if n > len(p.ChNoList) {
			n = len(p.ChNoList)
		}
		doc.StrmPlayer = append(doc.StrmPlayer, strmPlayerDoc{
			Name:     p.Name,
			Channels: p.ChNoList[:n],
		})
	}
	for _, s := range sdat.Infos.Strm {
		if s == nil {
			continue
		}
		doc.Strm = append(doc.Strm, strmDoc{
			Name:       s.Name,
			Filename:   s.Filename,
			Volume:     s.Volume,
			PlayerPrio: s.PlayerPrio,
			PlayerNo:   s.PlayerNo,
			Flags:      s.Flags,
		})
	}
	return doc
}

// ExportInfo writes the archive inspection document (Info.json or
// Info.yaml) into the output directory.
func (e *SDATFileExporter) ExportInfo(sdat *SDATFile, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return common.WrapError(common.ErrFailedToCreateOutputDir, err)
	}
	data, ext, err := e.marshal(buildInfoDocument(sdat))
	if err != nil {
		return common.WrapError(common.ErrFailedToExportInfo, err)
	}
	outPath := filepath.Join(outputDir, "Info"+ext)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return common.WrapError(common.ErrFailedToExportInfo, err)
	}
	common.LogInfo(common.InfoInfoExported, outPath)
	return nil
}

// unclaimedName synthesizes the dump path for a file slot no info record
// ever claimed.
func unclaimedName(index int) string {
	return fmt.Sprintf("Files/Unknown/UNK_%05d.bin", index)
}

// dumpName returns the manifest path of a file slot, claimed or not.
func dumpName(f *FileDescriptor, index int) string {
	if f.Claimed() {
		return f.Name
	}
	return unclaimedName(index)
}

// ExportFilesManifest writes the files manifest (Files.json or Files.yaml)
// into the output directory.
func (e *SDATFileExporter) ExportFilesManifest(sdat *SDATFile, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return common.WrapError(common.ErrFailedToCreateOutputDir, err)
	}
	manifest := make([]fileDoc, len(sdat.Infos.Files))
	for i := range sdat.Infos.Files {
		f := &sdat.Infos.Files[i]
		kind := KindUnknown
		if f.Claimed() {
			kind = f.Kind
		} else {
			common.LogWarn(common.WarnUnclaimedFile, i)
		}
		manifest[i] = fileDoc{
			Index:   i,
			Name:    dumpName(f, i),
			Kind:    kind.Name(),
			Size:    len(f.Data),
			Claimed: f.Claimed(),
		}
	}
	data, ext, err := e.marshal(manifest)
	if err != nil {
		return common.WrapError(common.ErrFailedToExportFiles, err)
	}
	outPath := filepath.Join(outputDir, "Files"+ext)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return common.WrapError(common.ErrFailedToExportFiles, err)
	}
	common.LogInfo(common.InfoFilesExported, outPath)
	return nil
}

// DumpFiles writes every member file into the Files/ tree under the
// output directory, then disassembles each sequence next to its binary.
func (e *SDATFileExporter) DumpFiles(sdat *SDATFile, outputDir string) error {
	for i := range sdat.Infos.Files {
		f := &sdat.Infos.Files[i]
		outPath := filepath.Join(outputDir, filepath.FromSlash(dumpName(f, i)))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
			return common.WrapError(common.ErrFailedToCreateOutputDir, err)
		}
		if err := os.WriteFile(outPath, f.Data, 0o644); err != nil {
			return common.WrapError(common.ErrFailedToDumpFiles, err)
		}
	}
	common.LogInfo(common.InfoMemberFilesDumped, len(sdat.Infos.Files), outputDir)

	dumped := 0
	for _, seq := range sdat.Infos.Seq {
		if seq == nil || int(seq.FileID) >= len(sdat.Infos.Files) {
			continue
		}
		data := sdat.Infos.Files[seq.FileID].Data
		d, err := nds.NewDisassembler(data)
		if err != nil {
			return common.WrapError(common.ErrFailedToDisassembleSeq, err)
		}
		text, err := d.Disassemble(seq.Name)
		if err != nil {
			return common.WrapError(common.ErrFailedToDisassembleSeq, err)
		}
		txtPath := strings.TrimSuffix(seq.Filename, KindSeq.Ext()) + ".txt"
		outPath := filepath.Join(outputDir, filepath.FromSlash(txtPath))
		if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
			return common.WrapError(common.ErrFailedToDumpFiles, err)
		}
		dumped++
	}
	common.LogInfo(common.InfoSequencesDumped, dumped)
	return nil
}
