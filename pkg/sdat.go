// Package pkg provides functionality for processing Nintendo DS SDAT sound
// archives. This file contains the SDAT processor that ties the decoder and
// exporters together into the unpack operation.
package pkg

import (
	"errors"
	"os"

	"github.com/hansbonini/sdattools/pkg/common"
)

// SDATProcessor handles SDAT archive operations (unpack/build).
type SDATProcessor struct {
	decoder  *SDATFileDecoder
	exporter *SDATFileExporter
}

// NewSDATProcessor creates a new SDAT processor instance. format selects
// the inspection document encoding ("json" or "yaml").
func NewSDATProcessor(format string) *SDATProcessor {
	return &SDATProcessor{
		decoder:  NewSDATDecoder(),
		exporter: NewSDATExporter(format),
	}
}

// Decode parses a complete in-memory SDAT archive.
func (p *SDATProcessor) Decode(data []byte) (*SDATFile, error) {
	return p.decoder.Decode(common.NewBuffer(data))
}

// Unpack reads an SDAT archive from disk and writes the inspection
// documents, the Files/ payload tree and the per-sequence text listings
// into the output directory.
func (p *SDATProcessor) Unpack(inputFile, outputDir string) error {
	common.LogInfo(common.InfoUnpackingSDAT, inputFile, outputDir)

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return common.WrapError(common.ErrFailedToOpenSDAT, err)
	}
	sdat, err := p.Decode(data)
	if err != nil {
		return err
	}
	if err := p.exporter.ExportInfo(sdat, outputDir); err != nil {
		return err
	}
	if err := p.exporter.ExportFilesManifest(sdat, outputDir); err != nil {
		return err
	}
	return p.exporter.DumpFiles(sdat, outputDir)
}

// Build is the inverse of Unpack: it will reassemble an archive from an
// unpacked directory. Not supported yet.
func (p *SDATProcessor) Build(inputDir, outputFile string) error {
	return errors.New(common.ErrBuildNotImplemented)
}
