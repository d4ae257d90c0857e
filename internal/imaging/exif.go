// Package imaging normalises, crops, and slugs images for the Punch
// Pipeline (§4.4): EXIF-orientation correction, padded face crops, and
// deterministic image-key slugging.
package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// orientation values per the EXIF 2.3 Orientation tag (0x0112).
const (
	orientationNormal         = 1
	orientationMirrorH        = 2
	orientationRotate180      = 3
	orientationMirrorV        = 4
	orientationMirrorHRotate  = 5 // mirror horizontal then rotate 270 CW
	orientationRotate90       = 6
	orientationMirrorVRotate  = 7 // mirror horizontal then rotate 90 CW
	orientationRotate270      = 8
)

// readOrientation hand-parses the minimal slice of a JPEG's APP1/Exif
// segment needed to read the Orientation tag, without pulling in a general
// EXIF library: it walks JPEG markers to find APP1, then walks the TIFF IFD0
// entries inside it for tag 0x0112. Returns orientationNormal if the image
// carries no Exif segment or no Orientation tag.
func readOrientation(data []byte) int {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return orientationNormal
	}

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			break
		}
		marker := data[pos+1]
		if marker == 0xD8 || marker == 0xD9 {
			pos += 2
			continue
		}
		if pos+4 > len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if marker == 0xE1 { // APP1 — candidate Exif segment
			segStart := pos + 4
			segEnd := pos + 2 + segLen
			if segEnd > len(data) {
				return orientationNormal
			}
			if o, ok := parseExifOrientation(data[segStart:segEnd]); ok {
				return o
			}
		}
		if marker == 0xDA { // start of scan — no more metadata markers follow
			break
		}
		pos += 2 + segLen
	}
	return orientationNormal
}

var exifHeader = []byte("Exif\x00\x00")

func parseExifOrientation(seg []byte) (int, bool) {
	if !bytes.HasPrefix(seg, exifHeader) {
		return 0, false
	}
	tiff := seg[len(exifHeader):]
	if len(tiff) < 8 {
		return 0, false
	}

	var order binary.ByteOrder
	switch string(tiff[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, false
	}

	ifd0Offset := order.Uint32(tiff[4:8])
	if int(ifd0Offset)+2 > len(tiff) {
		return 0, false
	}

	entryCount := int(order.Uint16(tiff[ifd0Offset : ifd0Offset+2]))
	entriesStart := int(ifd0Offset) + 2
	const entrySize = 12
	for i := 0; i < entryCount; i++ {
		off := entriesStart + i*entrySize
		if off+entrySize > len(tiff) {
			break
		}
		tag := order.Uint16(tiff[off : off+2])
		if tag == 0x0112 {
			value := order.Uint16(tiff[off+8 : off+10])
			return int(value), true
		}
	}
	return 0, false
}

// ErrUnsupportedOrientation names an orientation value outside 1..8
// (malformed Exif data). Normalize does not return it: a frame carrying such
// a value is re-encoded without any orientation transform.
var ErrUnsupportedOrientation = errors.New("unsupported exif orientation")
