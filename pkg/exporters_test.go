// Package pkg provides tests for the SDAT exporters
package pkg

import (
	"strings"
	"testing"

	"github.com/hansbonini/sdattools/pkg/common"
)

func TestBuildInfoDocument(t *testing.T) {
	sdat, err := NewSDATDecoder().Decode(common.NewBuffer(buildTestArchive(true)))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	doc := buildInfoDocument(sdat)
	if len(doc.Seq) != 2 {
		t.Fatalf("len(doc.Seq) = %d, want 2", len(doc.Seq))
	}
	if doc.Seq[0].Bank != "C" {
		t.Errorf("doc.Seq[0].Bank = %q, want %q", doc.Seq[0].Bank, "C")
	}
	if doc.Seq[0].Player != "PLAYER0" {
		t.Errorf("doc.Seq[0].Player = %q, want %q", doc.Seq[0].Player, "PLAYER0")
	}
	if len(doc.Bank) != 3 {
		t.Fatalf("len(doc.Bank) = %d, want 3", len(doc.Bank))
	}
	if got := doc.Bank[2].WaveArcs; len(got) != 2 || got[0] != "WA_B" || got[1] != "WA_A" {
		t.Errorf("doc.Bank[2].WaveArcs = %v, want [WA_B WA_A]", got)
	}
	if len(doc.Group) != 1 || len(doc.Group[0].Entries) != 1 {
		t.Fatalf("doc.Group = %+v, want one group with one entry", doc.Group)
	}
	if got := doc.Group[0].Entries[0].Seq; got != "BGM_FIELD" {
		t.Errorf("group entry seq = %q, want %q", got, "BGM_FIELD")
	}
}

func TestUnclaimedName(t *testing.T) {
	if got := unclaimedName(7); got != "Files/Unknown/UNK_00007.bin" {
		t.Errorf("unclaimedName(7) = %q, want %q", got, "Files/Unknown/UNK_00007.bin")
	}
	if got := unclaimedName(12345); got != "Files/Unknown/UNK_12345.bin" {
		t.Errorf("unclaimedName(12345) = %q, want %q", got, "Files/Unknown/UNK_12345.bin")
	}
}

func TestDumpNameUsesForwardSlashes(t *testing.T) {
	sdat, err := NewSDATDecoder().Decode(common.NewBuffer(buildTestArchive(true)))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	for i := range sdat.Infos.Files {
		name := dumpName(&sdat.Infos.Files[i], i)
		if strings.ContainsRune(name, '\\') {
			t.Errorf("file %d name %q contains a backslash", i, name)
		}
		if !strings.HasPrefix(name, "Files/") {
			t.Errorf("file %d name %q does not start with Files/", i, name)
		}
	}
}

func TestExporterMarshalFormats(t *testing.T) {
	doc := []fileDoc{{Index: 0, Name: "Files/SEQ/X.sseq", Kind: "SEQ", Size: 3, Claimed: true}}

	jsonOut, ext, err := NewSDATExporter("json").marshal(doc)
	if err != nil {
		t.Fatalf("marshal(json) failed: %v", err)
	}
	if ext != ".json" {
		t.Errorf("json ext = %q, want .json", ext)
	}
	if !strings.Contains(string(jsonOut), `"name": "Files/SEQ/X.sseq"`) {
		t.Errorf("json output missing name field: %s", jsonOut)
	}

	yamlOut, ext, err := NewSDATExporter("yaml").marshal(doc)
	if err != nil {
		t.Fatalf("marshal(yaml) failed: %v", err)
	}
	if ext != ".yaml" {
		t.Errorf("yaml ext = %q, want .yaml", ext)
	}
	if !strings.Contains(string(yamlOut), "name: Files/SEQ/X.sseq") {
		t.Errorf("yaml output missing name field: %s", yamlOut)
	}

	if _, _, err := NewSDATExporter("xml").marshal(doc); err == nil {
		t.Error("marshal with an unsupported format did not fail")
	}
}

func TestProcessorBuildNotImplemented(t *testing.T) {
	processor := NewSDATProcessor("")
	err := processor.Build("in", "out.sdat")
	if err == nil {
		t.Fatal("Build() did not fail")
	}
	if err.Error() != common.ErrBuildNotImplemented {
		t.Errorf("Build() error = %q, want %q", err.Error(), common.ErrBuildNotImplemented)
	}
}
