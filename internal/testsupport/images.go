// Package testsupport builds synthetic media fixtures for tests.
package testsupport

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// PatternImage draws a deterministic scene that depends on seed. Different
// seeds give perceptually different images; the same seed at different sizes
// depicts the same content.
func PatternImage(width, height int, seed int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fx := 1.0 + float64(seed%5)
	fy := 1.0 + float64((seed/5)%5)
	phase := float64(seed) * 0.7
	for y := 0; y < height; y++ {
		v := float64(y) / float64(height)
		for x := 0; x < width; x++ {
			u := float64(x) / float64(width)
			l := 0.5 + 0.5*math.Sin(2*math.Pi*(fx*u+phase))*math.Cos(2*math.Pi*(fy*v-phase))
			if (seed%2 == 0) == (u+v > 1) {
				l = 1 - l
			}
			c := uint8(l * 255)
			img.Set(x, y, color.RGBA{R: c, G: uint8(255 * u), B: uint8(255 * v), A: 255})
		}
	}
	return img
}

// JPEGOptions controls fixture encoding. A zero Captured and Orientation
// produce a plain JPEG without an EXIF segment.
type JPEGOptions struct {
	Quality     int
	Captured    time.Time
	Orientation int
}

// EncodeJPEG encodes img and, when requested, inserts an EXIF APP1 segment
// carrying Orientation and DateTimeOriginal right after SOI.
func EncodeJPEG(t testing.TB, img image.Image, opts JPEGOptions) []byte {
	t.Helper()
	quality := opts.Quality
	if quality <= 0 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	data := buf.Bytes()
	if opts.Captured.IsZero() && opts.Orientation <= 1 {
		return data
	}

	orientation := opts.Orientation
	if orientation < 1 {
		orientation = 1
	}
	dateTime := "0000:00:00 00:00:00"
	if !opts.Captured.IsZero() {
		dateTime = opts.Captured.Format("2006:01:02 15:04:05")
	}
	app1 := exifSegment(dateTime, uint16(orientation))
	out := make([]byte, 0, len(data)+len(app1))
	out = append(out, data[:2]...)
	out = append(out, app1...)
	out = append(out, data[2:]...)
	return out
}

// WriteJPEG writes a JPEG fixture and sets its modification time.
func WriteJPEG(t testing.TB, path string, img image.Image, opts JPEGOptions, mtime time.Time) {
	t.Helper()
	WriteFile(t, path, EncodeJPEG(t, img, opts), mtime)
}

// WriteFile writes data to path, creating parents, and sets mtime when non-zero.
func WriteFile(t testing.TB, path string, data []byte, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
}

// exifSegment builds a little-endian TIFF block (IFD0 with Orientation and
// an Exif sub-IFD pointer, Exif IFD with DateTimeOriginal) wrapped in a JPEG
// APP1 marker.
func exifSegment(dateTime string, orientation uint16) []byte {
	le := binary.LittleEndian
	const (
		ifd0At    = 8
		exifIFDAt = ifd0At + 2 + 2*12 + 4
		dateAt    = exifIFDAt + 2 + 12 + 4
	)
	tiff := make([]byte, dateAt+20)
	copy(tiff[0:], "II")
	le.PutUint16(tiff[2:], 42)
	le.PutUint32(tiff[4:], ifd0At)

	p := ifd0At
	le.PutUint16(tiff[p:], 2)
	p += 2
	// Orientation, SHORT, inline.
	le.PutUint16(tiff[p:], 0x0112)
	le.PutUint16(tiff[p+2:], 3)
	le.PutUint32(tiff[p+4:], 1)
	le.PutUint16(tiff[p+8:], orientation)
	p += 12
	// ExifIFDPointer, LONG.
	le.PutUint16(tiff[p:], 0x8769)
	le.PutUint16(tiff[p+2:], 4)
	le.PutUint32(tiff[p+4:], 1)
	le.PutUint32(tiff[p+8:], exifIFDAt)
	p += 12
	le.PutUint32(tiff[p:], 0)

	p = exifIFDAt
	le.PutUint16(tiff[p:], 1)
	p += 2
	// DateTimeOriginal, ASCII, 20 bytes including NUL.
	le.PutUint16(tiff[p:], 0x9003)
	le.PutUint16(tiff[p+2:], 2)
	le.PutUint32(tiff[p+4:], 20)
	le.PutUint32(tiff[p+8:], dateAt)
	p += 12
	le.PutUint32(tiff[p:], 0)
	copy(tiff[dateAt:], dateTime)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}
