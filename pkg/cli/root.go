package cli

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/flowshot-io/zipctx/pkg/archiver"
	"github.com/flowshot-io/zipctx/pkg/buildinfo"
	"github.com/flowshot-io/zipctx/pkg/config"
	"github.com/flowshot-io/zipctx/pkg/dispatcher"
	"github.com/flowshot-io/zipctx/pkg/extractor"
	"github.com/flowshot-io/zipctx/pkg/logger"
	"github.com/flowshot-io/zipctx/pkg/safepath"
)

// ExitError carries a non-zero exit code out of RunE.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Execute runs the command line in args (args[0] is the program name) and
// returns the process exit code. It never panics.
func Execute(args []string, workDir string, out io.Writer) (code int) {
	// Settings are not known before parsing, so startup and argument errors
	// go through a logger built from the defaults.
	defaults := config.Default()
	log := logger.New(&logger.Options{
		Pretty: defaults.Log.Pretty,
		Out:    out,
		Level:  defaults.Log.Level,
	})

	defer func() {
		if r := recover(); r != nil {
			log.Error("Unhandled error", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			code = 1
		}
	}()

	dispatcher.Banner(log, args, workDir)

	cmd := newRootCmd(workDir, out)
	if len(args) > 1 {
		cmd.SetArgs(args[1:])
	} else {
		cmd.SetArgs([]string{})
	}

	if err := cmd.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				log.Error("Operation failed", map[string]interface{}{"error": exitErr.Err.Error()})
			}
			return exitErr.Code
		}
		log.Error("Invalid invocation", map[string]interface{}{"error": err.Error()})
		return 1
	}

	return 0
}

func newRootCmd(workDir string, out io.Writer) *cobra.Command {
	var (
		compress bool
		extract  bool
		cfgFile  string
	)

	cmd := &cobra.Command{
		Use:   "zipctx <path>",
		Short: "Compress a folder to ZIP or extract a ZIP archive",
		Long: `zipctx compresses a folder into a ZIP archive next to it, or extracts a
ZIP archive into a folder named after it. It is meant to be called from a
file manager context menu.

Examples:
  zipctx -c ./project      writes ./project.zip
  zipctx -x ./project.zip  extracts into ./project/`,
		Version:       buildinfo.String(),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, positional []string) error {
			settings, used, err := config.Resolve(cfgFile)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			traversal, err := safepath.ParseMode(settings.Traversal)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			log := logger.New(&logger.Options{
				Pretty: settings.Log.Pretty,
				Out:    out,
				Level:  settings.Log.Level,
			})
			if used != "" {
				log.Debug("Loaded settings", map[string]interface{}{"config": used})
			}

			fs := afero.NewOsFs()
			d := dispatcher.New(&dispatcher.Options{
				Compressor: archiver.New(&archiver.Options{
					Fs:               fs,
					Logger:           log,
					CompressionLevel: settings.CompressionLevel,
				}),
				Unpacker: extractor.New(&extractor.Options{
					Fs:        fs,
					Logger:    log,
					Traversal: traversal,
				}),
				Logger: log,
			})

			ok := d.Run(dispatcher.Invocation{
				WorkDir:  workDir,
				Path:     positional[0],
				Compress: compress,
				Extract:  extract,
			})
			if code := dispatcher.ExitCode(ok); code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.Flags().BoolVarP(&compress, "compress", "c", false, "compress the folder at <path> into a ZIP archive")
	cmd.Flags().BoolVarP(&extract, "extract", "x", false, "extract the ZIP archive at <path>")
	cmd.Flags().StringVar(&cfgFile, "config", "", "settings file (default is <user config dir>/zipctx/settings.yaml)")

	return cmd
}
