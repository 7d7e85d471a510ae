package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	xdraw "golang.org/x/image/draw"
)

// Image preparation defaults shared by the on-device and remote strategies.
// Small files pass through untouched; larger ones are decoded, downscaled
// and re-encoded to keep both OCR and uploads fast.
const (
	defaultPassthroughBytes = 1 << 20  // 1 MiB
	defaultMaxEdge          = 1600     // longest edge after downscaling
	defaultEncodeQuality    = 85
	minEncodeQuality        = 40
)

// loadImage decodes a receipt file into an image. JPEG/PNG/GIF decode via
// the standard registry; HEIC captures (iPhones) and single-page PDFs get
// dedicated decoders.
func loadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	switch {
	case isPDF(path, data):
		return pdfToImage(data)
	case isHEIC(data):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
		return img, nil
	default:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		return img, nil
	}
}

// pdfToImage renders the first page of a PDF; receipts are single-page
func pdfToImage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// downscale proportionally resizes img so its longer edge is at most
// maxEdge pixels. Images already within bounds are returned unchanged.
func downscale(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(longer)
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// encodeUnderBudget JPEG-encodes img, iteratively reducing quality until
// the payload fits maxBytes or the quality floor is reached. The last
// attempt is returned even when over budget so the caller can decide.
func encodeUnderBudget(img image.Image, maxBytes int) ([]byte, error) {
	var buf bytes.Buffer
	for quality := defaultEncodeQuality; quality >= minEncodeQuality; quality -= 15 {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding JPEG: %w", err)
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), nil
		}
	}
	return buf.Bytes(), nil
}

// prepareFile returns a path suitable for the on-device OCR worker. Files
// under the passthrough threshold are used as-is; larger ones are decoded,
// downscaled and re-encoded into a temp file. cleanup removes the temp
// file and is safe to call unconditionally.
func prepareFile(path string, passthroughBytes int64, maxEdge int) (string, func(), error) {
	noop := func() {}

	info, err := os.Stat(path)
	if err != nil {
		return "", noop, err
	}
	if info.Size() <= passthroughBytes && !isPDFPath(path) {
		return path, noop, nil
	}

	img, err := loadImage(path)
	if err != nil {
		return "", noop, err
	}
	img = downscale(img, maxEdge)

	tempFile, err := os.CreateTemp("", "finsight-ocr-*.jpg")
	if err != nil {
		return "", noop, err
	}
	if err := jpeg.Encode(tempFile, img, &jpeg.Options{Quality: defaultEncodeQuality}); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return "", noop, fmt.Errorf("encoding prepared image: %w", err)
	}
	tempFile.Close()

	name := tempFile.Name()
	return name, func() { os.Remove(name) }, nil
}

func isPDF(path string, data []byte) bool {
	return isPDFPath(path) || bytes.HasPrefix(data, []byte("%PDF"))
}

func isPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// isHEIC checks the ftyp box brands iPhones use for HEIC/HEIF captures
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
