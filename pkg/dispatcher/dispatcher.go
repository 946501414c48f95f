package dispatcher

import (
	"fmt"
	"path/filepath"
	"runtime/debug"

	"github.com/flowshot-io/zipctx/pkg/archiver"
	"github.com/flowshot-io/zipctx/pkg/buildinfo"
	"github.com/flowshot-io/zipctx/pkg/extractor"
	"github.com/flowshot-io/zipctx/pkg/fault"
	"github.com/flowshot-io/zipctx/pkg/logger"
)

type (
	// Mode is the operation selected by an invocation.
	Mode int

	// Invocation is everything a run needs from the parsed command line.
	Invocation struct {
		WorkDir  string
		Path     string
		Compress bool
		Extract  bool
	}

	Compressor interface {
		Compress(source, destination string) (archiver.Summary, error)
	}

	Unpacker interface {
		Extract(archivePath, destination string) (extractor.Summary, error)
	}

	Options struct {
		Compressor Compressor
		Unpacker   Unpacker
		Logger     logger.Logger
	}

	// Dispatcher runs the operation an Invocation asks for and reduces the
	// outcome to success or failure.
	Dispatcher struct {
		compressor Compressor
		unpacker   Unpacker
		logger     logger.Logger
	}
)

const (
	ModeNone Mode = iota
	ModeCompress
	ModeExtract
)

func (m Mode) String() string {
	switch m {
	case ModeCompress:
		return "compress"
	case ModeExtract:
		return "extract"
	default:
		return "none"
	}
}

// Mode picks compress over extract when both flags are set.
func (inv Invocation) Mode() Mode {
	switch {
	case inv.Compress:
		return ModeCompress
	case inv.Extract:
		return ModeExtract
	default:
		return ModeNone
	}
}

// Target resolves Path against WorkDir.
func (inv Invocation) Target() string {
	if inv.Path == "" || filepath.IsAbs(inv.Path) || inv.WorkDir == "" {
		return inv.Path
	}
	return filepath.Join(inv.WorkDir, inv.Path)
}

func New(opts *Options) *Dispatcher {
	if opts == nil {
		opts = &Options{}
	}

	if opts.Logger == nil {
		opts.Logger = logger.NoOp()
	}

	if opts.Compressor == nil {
		opts.Compressor = archiver.New(&archiver.Options{Logger: opts.Logger})
	}

	if opts.Unpacker == nil {
		opts.Unpacker = extractor.New(&extractor.Options{Logger: opts.Logger})
	}

	return &Dispatcher{
		compressor: opts.Compressor,
		unpacker:   opts.Unpacker,
		logger:     opts.Logger,
	}
}

// Run executes the invocation and reports whether it succeeded. Panics
// raised anywhere below are logged with their stack and count as failure.
func (d *Dispatcher) Run(inv Invocation) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Unhandled error", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			d.logger.Error("Operation failed")
			ok = false
		}
	}()

	d.logger.Info("Input", map[string]interface{}{
		"path":     inv.Path,
		"compress": inv.Compress,
		"extract":  inv.Extract,
	})

	err := d.dispatch(inv)
	if err != nil {
		d.logger.Error("Operation failed", map[string]interface{}{
			"kind":  string(fault.KindOf(err)),
			"error": err.Error(),
		})
		return false
	}

	d.logger.Info("Operation completed")
	return true
}

func (d *Dispatcher) dispatch(inv Invocation) error {
	target := inv.Target()

	switch inv.Mode() {
	case ModeCompress:
		d.logger.Info("Starting compression")
		_, err := d.compressor.Compress(target, "")
		return err
	case ModeExtract:
		d.logger.Info("Starting extraction")
		_, err := d.unpacker.Extract(target, "")
		return err
	default:
		return fault.New("dispatch", fault.KindPrecondition, target, fmt.Errorf("no mode selected, pass --compress or --extract"))
	}
}

// Banner logs the version, working directory and raw argument list. It runs
// before the command line is parsed so that rejected invocations are still
// traceable.
func Banner(log logger.Logger, args []string, workDir string) {
	log.Info("zipctx starting", map[string]interface{}{
		"version": buildinfo.String(),
		"runtime": buildinfo.Runtime(),
	})
	log.Info("Working directory", map[string]interface{}{"dir": workDir})
	log.Info("Arguments", map[string]interface{}{"args": args})
}

// ExitCode maps a run result to the process exit status.
func ExitCode(ok bool) int {
	if ok {
		return 0
	}
	return 1
}
