package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/anime-shed/imgtool-go/internal/codec"
	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/metadata"
	"github.com/anime-shed/imgtool-go/internal/storage"
	"github.com/anime-shed/imgtool-go/pkg/models"
)

type fakeEngine struct {
	text  string
	err   error
	calls int
	seen  image.Point
}

func (f *fakeEngine) Extract(_ context.Context, img image.Image) (string, error) {
	f.calls++
	f.seen = img.Bounds().Size()
	return f.text, f.err
}

func (f *fakeEngine) Available() bool { return f.err == nil }

func newTestTransformer(engine *fakeEngine) *Transformer {
	if engine == nil {
		engine = &fakeEngine{}
	}
	return NewTransformer(storage.NewFileStorage(), codec.NewEncoderFactory(), engine)
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeOrientedJPEG writes a w x h JPEG whose EXIF asks for the given orientation
func writeOrientedJPEG(t *testing.T, dir, name string, w, h int, orientation uint16) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}

	le := binary.LittleEndian
	tiff := make([]byte, 26)
	copy(tiff, "II")
	le.PutUint16(tiff[2:], 42)
	le.PutUint32(tiff[4:], 8)
	le.PutUint16(tiff[8:], 1)
	le.PutUint16(tiff[10:], 0x0112)
	le.PutUint16(tiff[12:], 3)
	le.PutUint32(tiff[14:], 1)
	le.PutUint16(tiff[18:], orientation)

	block, err := metadata.Parse(tiff)
	if err != nil {
		t.Fatal(err)
	}
	data, err := metadata.Inject(buf.Bytes(), block)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeFile(t *testing.T, path string) *codec.Decoded {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	decoded, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	return decoded
}

func TestTransform_ContainWidthOnly(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "photo.png", gradient(400, 300))

	result, err := newTestTransformer(nil).Transform(context.Background(),
		models.NewResizeRequest(src).WithWidth(120))
	if err != nil {
		t.Fatalf("Transform() unexpected error: %v", err)
	}

	if result.Width != 120 || result.Height != 90 {
		t.Errorf("Expected 120x90, got %dx%d", result.Width, result.Height)
	}
	if result.OutputPath != filepath.Join(dir, "photo.jpg") {
		t.Errorf("Expected derived output path, got %s", result.OutputPath)
	}

	out := decodeFile(t, result.OutputPath)
	if out.Format != "jpeg" {
		t.Errorf("Expected jpeg output, got %s", out.Format)
	}
	if out.Image.Bounds().Dx() != 120 || out.Image.Bounds().Dy() != 90 {
		t.Errorf("Expected written image 120x90, got %v", out.Image.Bounds())
	}
}

func TestTransform_Exact(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "in.png", gradient(400, 300))

	req := models.NewResizeRequest(src).WithSize(50, 50).WithFit(models.FitExact).WithFormat(models.FormatPNG, 90)
	result, err := newTestTransformer(nil).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("Transform() unexpected error: %v", err)
	}
	out := decodeFile(t, result.OutputPath)
	if out.Image.Bounds().Dx() != 50 || out.Image.Bounds().Dy() != 50 {
		t.Errorf("Expected 50x50, got %v", out.Image.Bounds())
	}
}

func TestTransform_OutputExists(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "in.png", gradient(40, 30))
	dst := filepath.Join(dir, "out.jpg")
	os.WriteFile(dst, []byte("keep me"), 0o644)

	req := models.NewResizeRequest(src).WithWidth(20).WithOutput(dst, false)
	_, err := newTestTransformer(nil).Transform(context.Background(), req)
	if !apperrors.IsType(err, apperrors.ErrorTypeOutputExists) {
		t.Fatalf("Expected output_exists, got %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "keep me" {
		t.Errorf("Expected existing output unchanged, got %q", data)
	}

	if _, err := newTestTransformer(nil).Transform(context.Background(), req.WithOutput(dst, true)); err != nil {
		t.Fatalf("Expected overwrite to succeed, got %v", err)
	}
	if decodeFile(t, dst).Image.Bounds().Dx() != 20 {
		t.Error("Expected overwritten output to hold the resized image")
	}
}

func TestTransform_ValidationBeforeIO(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.png")

	tests := []struct {
		name string
		req  models.ResizeRequest
		kind apperrors.ErrorType
	}{
		{"exact without height", models.NewResizeRequest(missing).WithWidth(10).WithFit(models.FitExact), apperrors.ErrorTypeInvalidGeometry},
		{"quality 0", models.NewResizeRequest(missing).WithWidth(10).WithFormat(models.FormatJPEG, 0), apperrors.ErrorTypeInvalidQuality},
		{"quality 101", models.NewResizeRequest(missing).WithWidth(10).WithFormat(models.FormatWEBP, 101), apperrors.ErrorTypeInvalidQuality},
		{"bmp output", models.NewResizeRequest(missing).WithWidth(10).WithFormat("bmp", 90), apperrors.ErrorTypeUnsupportedFmt},
		{"missing source", models.NewResizeRequest(missing).WithWidth(10), apperrors.ErrorTypeUnreadableImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestTransformer(nil).Transform(context.Background(), tt.req)
			if !apperrors.IsType(err, tt.kind) {
				t.Errorf("Expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestTransform_CorruptSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.jpg")
	os.WriteFile(src, []byte("\xff\xd8\xff not really a jpeg"), 0o644)

	_, err := newTestTransformer(nil).Transform(context.Background(), models.NewResizeRequest(src).WithWidth(10))
	if !apperrors.IsType(err, apperrors.ErrorTypeUnreadableImage) {
		t.Errorf("Expected unreadable_image, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken.jpg")); err != nil {
		t.Error("Expected source to be left alone")
	}
}

func TestTransform_LosslessRoundTripKeepsMode(t *testing.T) {
	dir := t.TempDir()
	gray := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i % 251)
	}
	src := writePNG(t, dir, "gray.png", gray)

	req := models.NewResizeRequest(src).WithWidth(64).WithFormat(models.FormatPNG, 1).
		WithOutput(filepath.Join(dir, "copy.png"), false)
	result, err := newTestTransformer(nil).Transform(context.Background(), req)
	if err != nil {
		t.Fatalf("Transform() unexpected error: %v", err)
	}
	if result.ColorMode != models.ColorModeL {
		t.Errorf("Expected L result mode, got %s", result.ColorMode)
	}

	out := decodeFile(t, result.OutputPath)
	if out.Mode != models.ColorModeL {
		t.Errorf("Expected grayscale output, got %s", out.Mode)
	}
	outGray, ok := out.Image.(*image.Gray)
	if !ok {
		t.Fatalf("Expected *image.Gray, got %T", out.Image)
	}
	if !bytes.Equal(outGray.Pix, gray.Pix) {
		t.Error("Expected identical pixels after lossless round trip")
	}
}

func TestTransform_AlphaFlattenedForJPEG(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 128})
		}
	}
	src := writePNG(t, dir, "translucent.png", img)

	result, err := newTestTransformer(nil).Transform(context.Background(), models.NewResizeRequest(src).WithWidth(10))
	if err != nil {
		t.Fatalf("Transform() unexpected error: %v", err)
	}
	if result.ColorMode != models.ColorModeRGB {
		t.Errorf("Expected RGB after flattening, got %s", result.ColorMode)
	}
	// half-transparent red over white is pink
	r, g, _, _ := decodeFile(t, result.OutputPath).Image.At(5, 5).RGBA()
	if r>>8 < 240 || g>>8 < 110 || g>>8 > 145 {
		t.Errorf("Expected red blended on white, got r=%d g=%d", r>>8, g>>8)
	}
}

func TestTransform_OrientationAndMetadata(t *testing.T) {
	dir := t.TempDir()
	src := writeOrientedJPEG(t, dir, "camera.jpg", 80, 40, 6)

	t.Run("jpeg carries normalized exif", func(t *testing.T) {
		req := models.NewResizeRequest(src).WithWidth(40).WithOutput(filepath.Join(dir, "a.jpg"), false)
		result, err := newTestTransformer(nil).Transform(context.Background(), req)
		if err != nil {
			t.Fatalf("Transform() unexpected error: %v", err)
		}
		// upright source is 40x80
		if result.Width != 40 || result.Height != 80 {
			t.Errorf("Expected 40x80 after orientation, got %dx%d", result.Width, result.Height)
		}
		if !result.MetadataCarried {
			t.Error("Expected metadata to be carried into jpeg")
		}
		data, _ := os.ReadFile(result.OutputPath)
		block, err := metadata.Extract(data)
		if err != nil || block == nil {
			t.Fatalf("Expected EXIF in output, got %v, %v", block, err)
		}
		if block.Orientation != 1 {
			t.Errorf("Expected orientation reset to 1, got %d", block.Orientation)
		}
	})

	t.Run("png drops exif with warning", func(t *testing.T) {
		req := models.NewResizeRequest(src).WithWidth(40).WithFormat(models.FormatPNG, 90).
			WithOutput(filepath.Join(dir, "b.png"), false)
		result, err := newTestTransformer(nil).Transform(context.Background(), req)
		if err != nil {
			t.Fatalf("Transform() unexpected error: %v", err)
		}
		if result.MetadataCarried {
			t.Error("Expected no metadata in png output")
		}
		if len(result.Warnings) == 0 {
			t.Error("Expected a warning about dropped metadata")
		}
		if result.Height != 80 {
			t.Errorf("Expected pixels oriented even without metadata, got height %d", result.Height)
		}
	})

	t.Run("stripped on request", func(t *testing.T) {
		req := models.NewResizeRequest(src).WithWidth(40).WithPreserveMetadata(false).
			WithOutput(filepath.Join(dir, "c.jpg"), false)
		result, err := newTestTransformer(nil).Transform(context.Background(), req)
		if err != nil {
			t.Fatalf("Transform() unexpected error: %v", err)
		}
		data, _ := os.ReadFile(result.OutputPath)
		if block, _ := metadata.Extract(data); block != nil {
			t.Error("Expected no EXIF when preservation is off")
		}
		if result.Height != 80 {
			t.Errorf("Expected oriented pixels, got height %d", result.Height)
		}
	})
}

func TestTransform_OCR(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "doc.png", gradient(100, 50))

	engine := &fakeEngine{text: "Hello World"}
	result, err := newTestTransformer(engine).Transform(context.Background(),
		models.NewResizeRequest(src).WithWidth(200).WithOCR("hello world"))
	if err != nil {
		t.Fatalf("Transform() unexpected error: %v", err)
	}
	if engine.seen != image.Pt(200, 100) {
		t.Errorf("Expected OCR on resized pixels, got %v", engine.seen)
	}
	if result.OCR == nil || result.OCR.MatchScore != 100 {
		t.Errorf("Expected perfect OCR match, got %+v", result.OCR)
	}
}

func TestTransform_OCRFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "doc.png", gradient(100, 50))

	engine := &fakeEngine{err: apperrors.NewOCRUnavailableError("no tesseract", nil)}
	result, err := newTestTransformer(engine).Transform(context.Background(),
		models.NewResizeRequest(src).WithWidth(50).WithOCR(""))
	if err != nil {
		t.Fatalf("Expected OCR failure not to fail the transform, got %v", err)
	}
	if result.OCR == nil || result.OCR.OCRError == "" {
		t.Errorf("Expected OCR error on result, got %+v", result.OCR)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected a warning for the failed OCR step")
	}
	if _, err := os.Stat(result.OutputPath); err != nil {
		t.Errorf("Expected output to be written, got %v", err)
	}
}

func TestTransform_OCROnlyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "doc.png", gradient(100, 50))
	// an existing derived output must not block OCR-only mode
	os.WriteFile(filepath.Join(dir, "doc.jpg"), []byte("x"), 0o644)

	engine := &fakeEngine{text: "text"}
	result, err := newTestTransformer(engine).Transform(context.Background(),
		models.NewResizeRequest(src).WithWidth(50).WithOCROnly("text"))
	if err != nil {
		t.Fatalf("Transform() unexpected error: %v", err)
	}
	if result.OutputPath != "" {
		t.Errorf("Expected no output path, got %s", result.OutputPath)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("Expected no new files, found %d entries", len(entries))
	}
	if engine.calls != 1 {
		t.Errorf("Expected one OCR call, got %d", engine.calls)
	}
}

func TestTransform_Cancelled(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "in.png", gradient(40, 30))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestTransformer(nil).Transform(ctx, models.NewResizeRequest(src).WithWidth(10))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "in.jpg")); !os.IsNotExist(err) {
		t.Error("Expected no output after cancellation")
	}
}

func TestConvert_KeepsDimensions(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "in.png", gradient(33, 17))

	result, err := newTestTransformer(nil).Convert(context.Background(), models.NewConvertRequest(src, models.FormatJPEG))
	if err != nil {
		t.Fatalf("Convert() unexpected error: %v", err)
	}
	if result.Width != 33 || result.Height != 17 {
		t.Errorf("Expected 33x17, got %dx%d", result.Width, result.Height)
	}
	if filepath.Ext(result.OutputPath) != ".jpg" {
		t.Errorf("Expected .jpg output, got %s", result.OutputPath)
	}

	_, err = newTestTransformer(nil).Convert(context.Background(), models.NewConvertRequest(src, models.FormatJPEG))
	if !apperrors.IsType(err, apperrors.ErrorTypeOutputExists) {
		t.Errorf("Expected second convert to hit output_exists, got %v", err)
	}
}

func TestExtractText(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "scan.png", gradient(100, 50))

	engine := &fakeEngine{text: "invoice 42"}
	req := models.NewTextRequest(src)
	req.Width = models.IntPtr(300)
	req.ExpectedText = "invoice 42"

	result, err := newTestTransformer(engine).ExtractText(context.Background(), req)
	if err != nil {
		t.Fatalf("ExtractText() unexpected error: %v", err)
	}
	if engine.seen != image.Pt(300, 150) {
		t.Errorf("Expected pre-resize to 300x150, got %v", engine.seen)
	}
	if result.OCR.ExtractedText != "invoice 42" || result.OCR.CER != 0 {
		t.Errorf("Unexpected OCR result: %+v", result.OCR)
	}
	if result.OutputPath != "" {
		t.Error("Expected text extraction to write nothing")
	}
}

func TestExtractText_EngineFailure(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "scan.png", gradient(10, 10))

	engine := &fakeEngine{err: errors.New("tesseract crashed")}
	_, err := newTestTransformer(engine).ExtractText(context.Background(), models.NewTextRequest(src))
	if !apperrors.IsType(err, apperrors.ErrorTypeOCRUnavailable) {
		t.Errorf("Expected ocr_unavailable, got %v", err)
	}
}
