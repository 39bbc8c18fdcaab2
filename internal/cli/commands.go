package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/logger"
	"github.com/anime-shed/imgtool-go/internal/storage"
	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

func runResize(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("resize", e)
	var rf resizeFlags
	rf.register(fs, e.cfg)
	output := fs.StringP("output", "o", "", "output path (default: next to the source)")
	if err := parse(fs, args); err != nil {
		return err
	}
	source, err := singleSource(fs)
	if err != nil {
		return err
	}

	req, err := rf.request(fs, source)
	if err != nil {
		return err
	}
	req = req.WithOutput(*output, rf.overwrite)

	c, err := e.service(-1)
	if err != nil {
		return err
	}
	result, err := c.Service().Resize(ctx, req)
	if err != nil {
		return err
	}
	return e.printJSON(result)
}

func runBatch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("batch", e)
	var rf resizeFlags
	rf.register(fs, e.cfg)
	dir := fs.String("dir", "", "process every image in this directory")
	outputDir := fs.StringP("output-dir", "o", "", "directory for the outputs (default: next to each source)")
	recursive := fs.BoolP("recursive", "r", false, "descend into subdirectories of --dir")
	workers := fs.Int("workers", -1, "parallel workers, 0 for one per CPU (default from IMGTOOL_WORKERS)")
	if err := parse(fs, args); err != nil {
		return err
	}

	template, err := rf.request(fs, "")
	if err != nil {
		return err
	}
	template = template.WithOutput("", rf.overwrite)

	c, err := e.service(*workers)
	if err != nil {
		return err
	}

	var outcome models.BatchOutcome
	switch {
	case *dir != "" && fs.NArg() > 0:
		return fmt.Errorf("%w: give either --dir or source files, not both", errUsage)
	case *dir != "":
		if *outputDir == "" {
			return fmt.Errorf("%w: --dir requires --output-dir", errUsage)
		}
		outcome, err = c.Service().BatchDirectory(ctx, *dir, *outputDir, *recursive, template)
	case fs.NArg() > 0:
		reqs := make([]models.ResizeRequest, fs.NArg())
		for i, src := range fs.Args() {
			req := template
			req.Source = src
			if *outputDir != "" {
				req.Output = storage.DeriveOutputPath(src, req.Format, *outputDir)
			}
			reqs[i] = req
		}
		outcome, err = c.Service().Batch(ctx, reqs)
	default:
		return fmt.Errorf("%w: no sources given", errUsage)
	}
	if err != nil {
		return err
	}

	if err := e.printJSON(outcome); err != nil {
		return err
	}
	if outcome.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", outcome.Failed, len(outcome.Items))
	}
	return nil
}

func runConvert(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("convert", e)
	format := fs.StringP("format", "f", "", "output format: jpeg, png or webp")
	quality := fs.IntP("quality", "q", e.cfg.DefaultQuality, "encoder quality 1-100")
	output := fs.StringP("output", "o", "", "output path (default: next to the source)")
	overwrite := fs.Bool("overwrite", false, "replace an existing output file")
	strip := fs.Bool("strip-metadata", false, "do not carry EXIF into the output")
	if err := parse(fs, args); err != nil {
		return err
	}
	source, err := singleSource(fs)
	if err != nil {
		return err
	}
	if *format == "" {
		return fmt.Errorf("%w: --format is required", errUsage)
	}

	f, err := models.ParseFormat(*format)
	if err != nil {
		return apperrors.NewUnsupportedFormatError(*format, err)
	}
	req := models.NewConvertRequest(source, f)
	req.Quality = *quality
	req.Output = *output
	req.Overwrite = *overwrite
	req.PreserveMetadata = !*strip

	c, err := e.service(-1)
	if err != nil {
		return err
	}
	result, err := c.Service().Convert(ctx, req)
	if err != nil {
		return err
	}
	return e.printJSON(result)
}

func runExtractText(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("extract-text", e)
	width := fs.IntP("width", "W", 0, "pre-resize width in pixels")
	height := fs.IntP("height", "H", 0, "pre-resize height in pixels")
	fit := fs.String("fit", string(models.FitContain), "fit policy for the pre-resize")
	expected := fs.String("expected-text", "", "reference text for scoring")
	textOnly := fs.Bool("text", false, "print only the extracted text")
	if err := parse(fs, args); err != nil {
		return err
	}
	source, err := singleSource(fs)
	if err != nil {
		return err
	}

	req := models.NewTextRequest(source)
	if fs.Changed("width") {
		req.Width = width
	}
	if fs.Changed("height") {
		req.Height = height
	}
	if req.Fit, err = models.ParseFit(*fit); err != nil {
		return apperrors.NewInvalidGeometryError(err.Error(), "fit", *fit)
	}
	req.ExpectedText = *expected

	c, err := e.service(-1)
	if err != nil {
		return err
	}
	result, err := c.Service().ExtractText(ctx, req)
	if err != nil {
		return err
	}
	if *textOnly {
		_, err := fmt.Fprintln(e.stdout, strings.TrimSpace(result.OCR.ExtractedText))
		return err
	}
	return e.printJSON(result)
}

func runServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("serve", e)
	if err := parse(fs, args); err != nil {
		return err
	}
	if !strings.EqualFold(e.cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	c, err := e.service(-1)
	if err != nil {
		return err
	}

	// Create HTTP server with configurable timeouts
	server := &http.Server{
		Addr:         e.cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  e.cfg.RequestTimeout,
		WriteTimeout: e.cfg.RequestTimeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"address":       e.cfg.ServerAddress(),
			"timeout":       e.cfg.RequestTimeout.String(),
			"workers":       e.cfg.Workers,
			"ocr_available": c.OCRAvailable(),
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
