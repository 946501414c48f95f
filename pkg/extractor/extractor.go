package extractor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/flowshot-io/zipctx/pkg/archiver"
	"github.com/flowshot-io/zipctx/pkg/fault"
	"github.com/flowshot-io/zipctx/pkg/logger"
	"github.com/flowshot-io/zipctx/pkg/safepath"
)

const op = "extract"

type (
	Options struct {
		Fs        afero.Fs
		Logger    logger.Logger
		Traversal safepath.Mode
	}

	// Extractor unpacks ZIP archives into a directory, skipping entries whose
	// names would escape it.
	Extractor struct {
		fs        afero.Fs
		logger    logger.Logger
		traversal safepath.Mode
	}

	// Summary describes a finished extraction. Skipped and Failed entries do
	// not make the extraction fail.
	Summary struct {
		Archive     string
		Destination string
		Entries     int
		Extracted   int
		Skipped     int
		Failed      int
	}
)

func New(opts *Options) *Extractor {
	if opts == nil {
		opts = &Options{}
	}

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	if opts.Logger == nil {
		opts.Logger = logger.NoOp()
	}

	if opts.Traversal == "" {
		opts.Traversal = safepath.Segment
	}

	return &Extractor{
		fs:        opts.Fs,
		logger:    opts.Logger,
		traversal: opts.Traversal,
	}
}

// Extract verifies the archive and writes its safe entries below
// destination, creating it when missing. An empty destination means
// DefaultDestination(archivePath). A corrupt member aborts before anything
// is written.
func (e *Extractor) Extract(archivePath, destination string) (Summary, error) {
	summary := Summary{Archive: archivePath}

	size, err := e.checkArchivePath(archivePath)
	if err != nil {
		return summary, err
	}

	if destination == "" {
		destination = DefaultDestination(archivePath)
	}
	summary.Destination = destination

	if err := e.fs.MkdirAll(destination, 0o755); err != nil {
		return summary, fault.New(op, fault.KindIO, destination, fmt.Errorf("creating destination: %w", err))
	}

	e.logger.Info("Extracting archive", map[string]interface{}{"archive": archivePath})
	e.logger.Info("Destination folder", map[string]interface{}{"destination": destination})

	file, err := e.fs.Open(archivePath)
	if err != nil {
		return summary, fault.New(op, fault.KindIO, archivePath, err)
	}
	defer file.Close()

	zr, err := e.openReader(file, size, archivePath)
	if err != nil {
		return summary, err
	}

	if err := e.verify(zr, archivePath); err != nil {
		return summary, err
	}

	summary.Entries = len(zr.File)
	e.logger.Info("Archive verified", map[string]interface{}{"entries": summary.Entries})

	for _, entry := range zr.File {
		if err := safepath.Check(entry.Name, e.traversal); err != nil {
			summary.Skipped++
			e.logger.Warn("Skipping unsafe entry", map[string]interface{}{
				"entry":  entry.Name,
				"reason": err.Error(),
			})
			continue
		}

		if err := e.extractEntry(entry, destination); err != nil {
			summary.Failed++
			e.logger.Error("Failed to extract entry", map[string]interface{}{
				"entry": entry.Name,
				"error": err.Error(),
			})
			continue
		}

		summary.Extracted++
		e.logger.Info("Extracted", map[string]interface{}{"entry": entry.Name})
	}

	e.logger.Info("Extraction finished", map[string]interface{}{
		"destination": destination,
		"extracted":   summary.Extracted,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
	})

	return summary, nil
}

// checkArchivePath validates the path without opening it and returns its size.
func (e *Extractor) checkArchivePath(archivePath string) (int64, error) {
	info, err := e.fs.Stat(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.Error("Archive does not exist", map[string]interface{}{"archive": archivePath})
			return 0, fault.New(op, fault.KindPrecondition, archivePath, fmt.Errorf("archive does not exist"))
		}
		return 0, fault.New(op, fault.KindIO, archivePath, err)
	}

	if !info.Mode().IsRegular() {
		e.logger.Error("Not a file", map[string]interface{}{"archive": archivePath})
		return 0, fault.New(op, fault.KindPrecondition, archivePath, fmt.Errorf("not a file"))
	}

	if !strings.EqualFold(filepath.Ext(archivePath), archiver.Extension) {
		e.logger.Error("Not a ZIP file", map[string]interface{}{"archive": archivePath})
		return 0, fault.New(op, fault.KindPrecondition, archivePath, fmt.Errorf("not a %s file", archiver.Extension))
	}

	return info.Size(), nil
}

func (e *Extractor) openReader(r io.ReaderAt, size int64, archivePath string) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		if zr != nil {
			// The container parsed; the reader only flagged entry names.
			e.logger.Debug("Archive reader warning", map[string]interface{}{"error": err.Error()})
			return zr, nil
		}

		if isFormatError(err) {
			e.logger.Error("Not a valid ZIP archive", map[string]interface{}{"archive": archivePath})
			return nil, fault.New(op, fault.KindInvalidArchive, archivePath, err)
		}
		return nil, fault.New(op, fault.KindIO, archivePath, err)
	}

	return zr, nil
}

// verify reads every member to the end so CRC and decompression errors
// surface before anything is written.
func (e *Extractor) verify(zr *zip.Reader, archivePath string) error {
	for _, entry := range zr.File {
		if err := readThrough(entry); err != nil {
			e.logger.Error("Archive is corrupt", map[string]interface{}{
				"archive": archivePath,
				"entry":   entry.Name,
				"error":   err.Error(),
			})
			return fault.New(op, fault.KindCorruptArchive, archivePath, fmt.Errorf("bad member %q: %w", entry.Name, err))
		}
	}

	return nil
}

func readThrough(entry *zip.File) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(io.Discard, rc)
	return err
}

func (e *Extractor) extractEntry(entry *zip.File, destination string) error {
	target, err := safepath.Join(destination, entry.Name)
	if err != nil {
		return err
	}

	if entry.FileInfo().IsDir() || strings.HasSuffix(entry.Name, "/") {
		return e.fs.MkdirAll(target, 0o755)
	}

	if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := e.fs.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return err
	}

	return out.Close()
}

// DefaultDestination is a folder next to the archive named after it without
// its extension ("backup.zip" -> "backup").
func DefaultDestination(archivePath string) string {
	base := filepath.Base(archivePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(filepath.Dir(archivePath), stem)
}

func isFormatError(err error) bool {
	return errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
