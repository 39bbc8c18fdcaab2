// Package metadata reads, normalizes and re-embeds the EXIF block of JPEG files.
package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/garyhouston/jpegsegs"
)

const (
	tagMake        = 0x010F
	tagModel       = 0x0110
	tagOrientation = 0x0112
	tagGPSIFD      = 0x8825

	typeASCII = 2
	typeShort = 3

	entrySize = 12
)

var exifHeader = []byte("Exif\x00\x00")

// maxSegmentData is the largest payload a JPEG segment can carry
const maxSegmentData = 2<<15 - 3

// Block is a parsed EXIF APP1 payload
type Block struct {
	Orientation int
	Make        string
	Model       string
	HasGPS      bool

	// TIFF structure following the Exif header
	raw   []byte
	order binary.ByteOrder
}

// Raw returns a copy of the TIFF structure
func (b *Block) Raw() []byte {
	return append([]byte(nil), b.raw...)
}

// Extract returns the EXIF block of a JPEG stream, or nil when the data is
// not JPEG or carries no EXIF segment.
func Extract(data []byte) (*Block, error) {
	if len(data) < jpegsegs.HeaderSize || !jpegsegs.IsJPEGHeader(data) {
		return nil, nil
	}
	segments, err := readSegments(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read jpeg segments: %w", err)
	}
	for _, seg := range segments {
		if isExifSegment(seg) {
			return Parse(seg.Data[len(exifHeader):])
		}
	}
	return nil, nil
}

// Parse reads the IFD0 tags of a TIFF structure
func Parse(tiff []byte) (*Block, error) {
	order, ifd0, err := readHeader(tiff)
	if err != nil {
		return nil, err
	}
	b := &Block{Orientation: 1, raw: append([]byte(nil), tiff...), order: order}

	err = walkIFD(b.raw, order, ifd0, func(e entry) {
		switch e.tag {
		case tagOrientation:
			if e.typ == typeShort {
				if v := int(order.Uint16(b.raw[e.valuePos:])); v >= 1 && v <= 8 {
					b.Orientation = v
				}
			}
		case tagMake:
			b.Make = e.ascii(b.raw, order)
		case tagModel:
			b.Model = e.ascii(b.raw, order)
		case tagGPSIFD:
			b.HasGPS = true
		}
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Normalized returns a copy with orientation reset to 1 and the GPS IFD removed
func (b *Block) Normalized() (*Block, error) {
	out := &Block{Orientation: 1, Make: b.Make, Model: b.Model, raw: b.Raw(), order: b.order}
	_, ifd0, err := readHeader(out.raw)
	if err != nil {
		return nil, err
	}

	var gpsEntry = -1
	var gpsOffset uint32
	index := 0
	err = walkIFD(out.raw, out.order, ifd0, func(e entry) {
		switch e.tag {
		case tagOrientation:
			if e.typ == typeShort {
				out.order.PutUint16(out.raw[e.valuePos:], 1)
			}
		case tagGPSIFD:
			gpsEntry = index
			gpsOffset = out.order.Uint32(out.raw[e.valuePos:])
		}
		index++
	})
	if err != nil {
		return nil, err
	}

	if gpsEntry >= 0 {
		scrubIFD(out.raw, out.order, gpsOffset)
		removeEntry(out.raw, out.order, ifd0, gpsEntry)
	}
	return out, nil
}

// Inject writes exif as the APP1 segment of a JPEG stream, replacing any
// EXIF segment already present.
func Inject(jpeg []byte, exif *Block) ([]byte, error) {
	payload := append(append([]byte(nil), exifHeader...), exif.raw...)
	if len(payload) > maxSegmentData {
		return nil, fmt.Errorf("exif block too large for a jpeg segment (%d bytes)", len(payload))
	}

	reader := bytes.NewReader(jpeg)
	segments, err := readSegments(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read jpeg segments: %w", err)
	}

	out := make([]jpegsegs.Segment, 0, len(segments)+1)
	inserted := false
	for i, seg := range segments {
		if isExifSegment(seg) {
			continue
		}
		// keep a leading JFIF APP0 first
		if !inserted && !(i == 0 && seg.Marker == jpegsegs.APP0) {
			out = append(out, jpegsegs.Segment{Marker: jpegsegs.APP0 + 1, Data: payload})
			inserted = true
		}
		out = append(out, seg)
	}

	var buf bytes.Buffer
	buf.Grow(len(jpeg) + len(payload) + 4)
	if err := writeSegments(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to write jpeg segments: %w", err)
	}
	// entropy-coded data and EOI follow the SOS segment unchanged
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readSegments and writeSegments adapt the Scanner/Dumper based jpegsegs API
// to plain readers and writers.
func readSegments(reader io.ReadSeeker) ([]jpegsegs.Segment, error) {
	scanner, err := jpegsegs.NewScanner(reader)
	if err != nil {
		return nil, err
	}
	return jpegsegs.ReadSegments(scanner)
}

func writeSegments(writer io.Writer, segments []jpegsegs.Segment) error {
	dumper, err := jpegsegs.NewDumper(writer)
	if err != nil {
		return err
	}
	return jpegsegs.WriteSegments(dumper, segments)
}

func isExifSegment(seg jpegsegs.Segment) bool {
	return seg.Marker == jpegsegs.APP0+1 && bytes.HasPrefix(seg.Data, exifHeader)
}

type entry struct {
	tag      uint16
	typ      uint16
	count    uint32
	valuePos uint32
}

// ascii returns an ASCII value, following the offset when it does not fit inline
func (e entry) ascii(buf []byte, order binary.ByteOrder) string {
	if e.typ != typeASCII {
		return ""
	}
	start := e.valuePos
	if e.count > 4 {
		start = order.Uint32(buf[e.valuePos:])
	}
	end := uint64(start) + uint64(e.count)
	if end > uint64(len(buf)) {
		return ""
	}
	return string(bytes.TrimRight(buf[start:end], "\x00 "))
}

func (e entry) size() uint32 {
	switch e.typ {
	case 1, 2, 6, 7:
		return e.count
	case 3, 8:
		return e.count * 2
	case 4, 9, 11, 13:
		return e.count * 4
	case 5, 10, 12:
		return e.count * 8
	default:
		return 0
	}
}

var errTruncated = errors.New("truncated tiff structure")

func readHeader(buf []byte) (binary.ByteOrder, uint32, error) {
	if len(buf) < 8 {
		return nil, 0, errTruncated
	}
	var order binary.ByteOrder
	switch string(buf[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, errors.New("invalid tiff byte order")
	}
	if order.Uint16(buf[2:]) != 42 {
		return nil, 0, errors.New("invalid tiff magic")
	}
	return order, order.Uint32(buf[4:]), nil
}

func walkIFD(buf []byte, order binary.ByteOrder, offset uint32, fn func(entry)) error {
	if uint64(offset)+2 > uint64(len(buf)) {
		return errTruncated
	}
	n := uint32(order.Uint16(buf[offset:]))
	if uint64(offset)+2+uint64(n)*entrySize > uint64(len(buf)) {
		return errTruncated
	}
	for i := uint32(0); i < n; i++ {
		pos := offset + 2 + i*entrySize
		fn(entry{
			tag:      order.Uint16(buf[pos:]),
			typ:      order.Uint16(buf[pos+2:]),
			count:    order.Uint32(buf[pos+4:]),
			valuePos: pos + 8,
		})
	}
	return nil
}

// removeEntry drops entry index from an IFD, shifting the remaining entries
// and the next-IFD offset down
func removeEntry(buf []byte, order binary.ByteOrder, offset uint32, index int) {
	n := int(order.Uint16(buf[offset:]))
	start := int(offset) + 2 + index*entrySize
	end := int(offset) + 2 + n*entrySize + 4
	if end > len(buf) {
		end = int(offset) + 2 + n*entrySize
	}
	copy(buf[start:], buf[start+entrySize:end])
	clear(buf[end-entrySize : end])
	order.PutUint16(buf[offset:], uint16(n-1))
}

// scrubIFD zeroes an IFD and the out-of-line values it points to
func scrubIFD(buf []byte, order binary.ByteOrder, offset uint32) {
	var spans [][2]uint32
	err := walkIFD(buf, order, offset, func(e entry) {
		if size := e.size(); size > 4 {
			start := order.Uint32(buf[e.valuePos:])
			if uint64(start)+uint64(size) <= uint64(len(buf)) {
				spans = append(spans, [2]uint32{start, start + size})
			}
		}
	})
	if err != nil {
		return
	}
	for _, s := range spans {
		clear(buf[s[0]:s[1]])
	}
	n := uint32(order.Uint16(buf[offset:]))
	end := uint64(offset) + 2 + uint64(n)*entrySize + 4
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}
	clear(buf[offset:end])
}
