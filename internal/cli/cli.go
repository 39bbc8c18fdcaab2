// Package cli implements the imgtool command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/anime-shed/imgtool-go/internal/config"
	"github.com/anime-shed/imgtool-go/internal/container"
	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/logger"
	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/spf13/pflag"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const usage = `imgtool: local image resizing, conversion and text extraction

Usage:
  imgtool resize <source> [flags]
  imgtool batch <source>... | --dir <dir> --output-dir <dir> [flags]
  imgtool convert <source> --format <format> [flags]
  imgtool extract-text <source> [flags]
  imgtool serve

Run "imgtool <command> --help" for the flags of a command.
`

var errUsage = errors.New("usage error")

type command func(ctx context.Context, env *env, args []string) error

var commands = map[string]command{
	"resize":       runResize,
	"batch":        runBatch,
	"convert":      runConvert,
	"extract-text": runExtractText,
	"serve":        runServe,
}

// env carries what every command needs
type env struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

// Run executes the command line and returns the process exit code
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		if len(args) == 0 {
			return ExitUsage
		}
		return ExitOK
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "imgtool: unknown command %q\n\n%s", args[0], usage)
		return ExitUsage
	}

	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintf(stderr, "imgtool: %v\n", err)
		return ExitUsage
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "imgtool: %v\n", err)
		return ExitUsage
	}
	if args[0] == "serve" {
		logger.Configure(cfg.LogLevel, cfg.LogFormat, stdout)
	} else {
		logger.Configure(cfg.LogLevel, "text", stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = cmd(ctx, &env{cfg: cfg, stdout: stdout, stderr: stderr}, args[1:])
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pflag.ErrHelp):
		return ExitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "imgtool %s: %v\n", args[0], err)
		return ExitUsage
	default:
		fmt.Fprintf(stderr, "imgtool %s: %v\n", args[0], err)
		return ExitFailure
	}
}

func (e *env) service(workers int) (*container.Container, error) {
	cfg := *e.cfg
	if workers >= 0 {
		cfg.Workers = workers
	}
	return container.NewContainer(&cfg)
}

func (e *env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(name string, e *env) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.SortFlags = false
	return fs
}

// parse wraps flag errors so they exit with the usage code
func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func singleSource(fs *pflag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: expected exactly one source, got %d", errUsage, fs.NArg())
	}
	return fs.Arg(0), nil
}

// resizeFlags are shared by resize and batch
type resizeFlags struct {
	width, height int
	noKeepAspect  bool
	fit, format   string
	quality       int
	overwrite     bool
	stripMetadata bool
	ocr, ocrOnly  bool
	expectedText  string
}

func (f *resizeFlags) register(fs *pflag.FlagSet, cfg *config.Config) {
	fs.IntVarP(&f.width, "width", "W", 0, "target width in pixels")
	fs.IntVarP(&f.height, "height", "H", 0, "target height in pixels")
	fs.BoolVar(&f.noKeepAspect, "no-keep-aspect", false, "scale each axis independently")
	fs.StringVar(&f.fit, "fit", string(models.FitContain), "fit policy: contain, cover or exact")
	fs.StringVarP(&f.format, "format", "f", string(cfg.DefaultFormat), "output format: jpeg, png or webp")
	fs.IntVarP(&f.quality, "quality", "q", cfg.DefaultQuality, "encoder quality 1-100")
	fs.BoolVar(&f.overwrite, "overwrite", false, "replace an existing output file")
	fs.BoolVar(&f.stripMetadata, "strip-metadata", false, "do not carry EXIF into the output")
	fs.BoolVar(&f.ocr, "ocr", false, "extract text from the resized image")
	fs.BoolVar(&f.ocrOnly, "ocr-only", false, "extract text without writing an output file")
	fs.StringVar(&f.expectedText, "expected-text", "", "reference text for OCR scoring")
}

// request builds a resize request; unset dimensions stay nil
func (f *resizeFlags) request(fs *pflag.FlagSet, source string) (models.ResizeRequest, error) {
	req := models.NewResizeRequest(source).
		WithKeepAspect(!f.noKeepAspect).
		WithPreserveMetadata(!f.stripMetadata)
	if fs.Changed("width") {
		req = req.WithWidth(f.width)
	}
	if fs.Changed("height") {
		req = req.WithHeight(f.height)
	}

	fit, err := models.ParseFit(f.fit)
	if err != nil {
		return req, apperrors.NewInvalidGeometryError(err.Error(), "fit", f.fit)
	}
	format, err := models.ParseFormat(f.format)
	if err != nil {
		return req, apperrors.NewUnsupportedFormatError(f.format, err)
	}
	req = req.WithFit(fit).WithFormat(format, f.quality)

	switch {
	case f.ocrOnly:
		req = req.WithOCROnly(f.expectedText)
	case f.ocr:
		req = req.WithOCR(f.expectedText)
	}
	return req, nil
}
