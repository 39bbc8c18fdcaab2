package metadata

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// buildTIFF returns a little-endian TIFF with Make, Orientation and a GPS
// IFD holding one latitude rational triple.
func buildTIFF(orientation uint16) []byte {
	le := binary.LittleEndian
	buf := make([]byte, 98)
	copy(buf, "II")
	le.PutUint16(buf[2:], 42)
	le.PutUint32(buf[4:], 8)

	// IFD0 at 8, three entries
	le.PutUint16(buf[8:], 3)
	putEntry(buf[10:], tagMake, typeASCII, 6, 50)
	putEntry(buf[22:], tagOrientation, typeShort, 1, uint32(orientation))
	putEntry(buf[34:], tagGPSIFD, 4, 1, 56)
	le.PutUint32(buf[46:], 0)
	copy(buf[50:], "Canon\x00")

	// GPS IFD at 56, latitude rationals at 74
	le.PutUint16(buf[56:], 1)
	putEntry(buf[58:], 0x0002, 5, 3, 74)
	le.PutUint32(buf[70:], 0)
	for i := 0; i < 6; i++ {
		le.PutUint32(buf[74+i*4:], 0xCAFE0000+uint32(i))
	}
	return buf
}

func putEntry(buf []byte, tag, typ uint16, count, value uint32) {
	le := binary.LittleEndian
	le.PutUint16(buf, tag)
	le.PutUint16(buf[2:], typ)
	le.PutUint32(buf[4:], count)
	le.PutUint32(buf[8:], value)
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for x := 0; x < 16; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	block, err := Parse(buildTIFF(6))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if block.Orientation != 6 {
		t.Errorf("Expected orientation 6, got %d", block.Orientation)
	}
	if block.Make != "Canon" {
		t.Errorf("Expected make Canon, got %q", block.Make)
	}
	if !block.HasGPS {
		t.Error("Expected GPS IFD to be detected")
	}
}

func TestParse_Invalid(t *testing.T) {
	inputs := [][]byte{nil, []byte("XX*\x00\x08\x00\x00\x00"), []byte("II*\x00\xff\x00\x00\x00")}
	for _, in := range inputs {
		if _, err := Parse(in); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestNormalized_ResetsOrientationAndDropsGPS(t *testing.T) {
	block, err := Parse(buildTIFF(8))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	normalized, err := block.Normalized()
	if err != nil {
		t.Fatalf("Normalized() unexpected error: %v", err)
	}

	reparsed, err := Parse(normalized.Raw())
	if err != nil {
		t.Fatalf("Parse() of normalized block failed: %v", err)
	}
	if reparsed.Orientation != 1 {
		t.Errorf("Expected orientation 1, got %d", reparsed.Orientation)
	}
	if reparsed.HasGPS {
		t.Error("Expected GPS IFD pointer to be removed")
	}
	if reparsed.Make != "Canon" {
		t.Errorf("Expected camera make to survive, got %q", reparsed.Make)
	}

	marker := make([]byte, 4)
	binary.LittleEndian.PutUint32(marker, 0xCAFE0000)
	if bytes.Contains(normalized.Raw(), marker) {
		t.Error("Expected GPS coordinates to be scrubbed")
	}

	// the original block is untouched
	if block.Orientation != 8 || !block.HasGPS {
		t.Error("Expected Normalized to leave the receiver unchanged")
	}
}

func TestInjectAndExtract(t *testing.T) {
	src := testJPEG(t)

	none, err := Extract(src)
	if err != nil || none != nil {
		t.Fatalf("Expected no EXIF in plain jpeg, got %v, %v", none, err)
	}

	block, _ := Parse(buildTIFF(3))
	withExif, err := Inject(src, block)
	if err != nil {
		t.Fatalf("Inject() unexpected error: %v", err)
	}

	if _, err := jpeg.Decode(bytes.NewReader(withExif)); err != nil {
		t.Fatalf("Injected jpeg no longer decodes: %v", err)
	}

	got, err := Extract(withExif)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if got == nil || got.Orientation != 3 || got.Make != "Canon" {
		t.Fatalf("Unexpected extracted block: %+v", got)
	}

	// injecting again replaces the segment rather than adding one
	normalized, _ := block.Normalized()
	twice, err := Inject(withExif, normalized)
	if err != nil {
		t.Fatalf("Inject() unexpected error: %v", err)
	}
	again, _ := Extract(twice)
	if again.Orientation != 1 {
		t.Errorf("Expected replaced block with orientation 1, got %d", again.Orientation)
	}
	if bytes.Count(twice, exifHeader) != 1 {
		t.Errorf("Expected exactly one EXIF segment, got %d", bytes.Count(twice, exifHeader))
	}
}

func TestExtract_NotJPEG(t *testing.T) {
	block, err := Extract([]byte("\x89PNG\r\n\x1a\n"))
	if err != nil || block != nil {
		t.Errorf("Expected nil block for png data, got %v, %v", block, err)
	}
}

func TestApply(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})

	tests := []struct {
		orientation  int
		wantW, wantH int
	}{
		{1, 4, 2},
		{2, 4, 2},
		{3, 4, 2},
		{4, 4, 2},
		{5, 2, 4},
		{6, 2, 4},
		{7, 2, 4},
		{8, 2, 4},
		{42, 4, 2},
	}

	for _, tt := range tests {
		out := Apply(img, tt.orientation)
		b := out.Bounds()
		if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("Apply(%d) = %dx%d, want %dx%d", tt.orientation, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
		if SwapsAxes(tt.orientation) != (tt.wantW != 4) {
			t.Errorf("SwapsAxes(%d) mismatch", tt.orientation)
		}
	}

	// orientation 6 rotates clockwise: the top-left pixel ends top-right
	rotated := Apply(img, 6)
	if _, _, _, a := rotated.At(1, 0).RGBA(); a == 0 {
		t.Error("Expected top-left pixel at top-right after orientation 6")
	}
}
