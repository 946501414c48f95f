package archiver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
	"github.com/spf13/afero"

	"github.com/flowshot-io/zipctx/pkg/config"
	"github.com/flowshot-io/zipctx/pkg/fault"
	"github.com/flowshot-io/zipctx/pkg/logger"
)

// Extension is the file extension of archives written and accepted by zipctx.
const Extension = ".zip"

const op = "compress"

type (
	Options struct {
		Fs               afero.Fs
		Logger           logger.Logger
		CompressionLevel int
	}

	// Archiver writes the regular files of a directory tree into a ZIP archive.
	Archiver struct {
		fs     afero.Fs
		logger logger.Logger
		level  int
	}

	// Summary describes a finished compression.
	Summary struct {
		Source  string
		Archive string
		Files   int
	}
)

func New(opts *Options) *Archiver {
	if opts == nil {
		opts = &Options{}
	}

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	if opts.Logger == nil {
		opts.Logger = logger.NoOp()
	}

	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = config.DefaultCompressionLevel
	}

	return &Archiver{
		fs:     opts.Fs,
		logger: opts.Logger,
		level:  opts.CompressionLevel,
	}
}

// Compress archives every regular file below source into destination, named
// by its slash-separated path relative to source. An empty destination means
// DefaultArchivePath(source). Empty directories produce no entries.
func (a *Archiver) Compress(source, destination string) (Summary, error) {
	summary := Summary{Source: source}

	info, err := a.fs.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			a.logger.Error("Folder does not exist", map[string]interface{}{"source": source})
			return summary, fault.New(op, fault.KindPrecondition, source, fmt.Errorf("folder does not exist"))
		}
		return summary, fault.New(op, fault.KindIO, source, err)
	}

	if !info.IsDir() {
		a.logger.Error("Not a folder", map[string]interface{}{"source": source})
		return summary, fault.New(op, fault.KindPrecondition, source, fmt.Errorf("not a folder"))
	}

	if destination == "" {
		destination, err = DefaultArchivePath(source)
		if err != nil {
			return summary, fault.New(op, fault.KindPrecondition, source, err)
		}
	}
	summary.Archive = destination

	if err := a.fs.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return summary, fault.New(op, fault.KindIO, destination, fmt.Errorf("creating output directory: %w", err))
	}

	a.logger.Info("Compressing folder", map[string]interface{}{"source": source})
	a.logger.Info("Output archive", map[string]interface{}{"archive": destination})

	files, err := a.write(source, destination)
	summary.Files = files
	if err != nil {
		if rmErr := a.fs.Remove(destination); rmErr != nil && !os.IsNotExist(rmErr) {
			a.logger.Warn("Could not remove incomplete archive", map[string]interface{}{
				"archive": destination,
				"error":   rmErr.Error(),
			})
		}
		a.logger.Error("Compression failed", map[string]interface{}{"error": err.Error()})
		return summary, err
	}

	a.logger.Info("Compression finished", map[string]interface{}{
		"archive": destination,
		"files":   files,
	})

	return summary, nil
}

func (a *Archiver) write(source, destination string) (int, error) {
	out, err := a.fs.Create(destination)
	if err != nil {
		return 0, fault.New(op, fault.KindIO, destination, fmt.Errorf("creating archive: %w", err))
	}
	defer out.Close()

	z := archiver.Zip{
		CompressionLevel: a.level,
		FileMethod:       archiver.Deflate,
	}
	if err := z.Create(out); err != nil {
		return 0, fault.New(op, fault.KindIO, destination, err)
	}

	self := absPath(destination)
	files := 0

	walkErr := afero.Walk(a.fs, walkRoot(source), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Directories, symlinks and devices produce no entries.
		if !info.Mode().IsRegular() {
			return nil
		}

		if absPath(path) == self {
			return nil
		}

		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if err := a.addFile(&z, path, name, info); err != nil {
			return err
		}

		files++
		a.logger.Info("Added", map[string]interface{}{"entry": name})
		return nil
	})

	closeErr := z.Close()

	if walkErr != nil {
		return files, fault.New(op, fault.KindIO, source, walkErr)
	}
	if closeErr != nil {
		return files, fault.New(op, fault.KindIO, destination, fmt.Errorf("finishing archive: %w", closeErr))
	}
	if err := out.Close(); err != nil {
		return files, fault.New(op, fault.KindIO, destination, fmt.Errorf("closing archive: %w", err))
	}

	return files, nil
}

func (a *Archiver) addFile(z *archiver.Zip, path, name string, info os.FileInfo) error {
	file, err := a.fs.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	return z.Write(archiver.File{
		FileInfo: archiver.FileInfo{
			FileInfo:   info,
			CustomName: name,
		},
		ReadCloser: file,
	})
}

// DefaultArchivePath places the archive next to source, named after source
// with its last extension replaced by Extension ("docs" -> "docs.zip",
// "my.folder" -> "my.zip").
func DefaultArchivePath(source string) (string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}

	base := filepath.Base(abs)
	if base == string(filepath.Separator) || base == "." || filepath.VolumeName(abs) == abs {
		return "", fmt.Errorf("cannot derive an archive name from %q", source)
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}

	return filepath.Join(filepath.Dir(abs), stem+Extension), nil
}

// walkRoot appends a separator so a symlinked or junction source folder is
// followed. afero.Walk lstats its root.
func walkRoot(source string) string {
	if strings.HasSuffix(source, string(filepath.Separator)) {
		return source
	}
	return source + string(filepath.Separator)
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
