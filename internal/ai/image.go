package ai

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"golang.org/x/image/draw"
)

const (
	defaultMaxWidth    = 2048
	defaultJPEGQuality = 80
)

// JPEGPreparer turns an uploaded bill photo into the base64 JPEG the providers expect
type JPEGPreparer struct {
	MaxWidth int
	Quality  int
}

// NewJPEGPreparer returns a preparer capping width at 2048px with quality 80
func NewJPEGPreparer() *JPEGPreparer {
	return &JPEGPreparer{MaxWidth: defaultMaxWidth, Quality: defaultJPEGQuality}
}

// Prepare decodes data (JPEG, PNG, GIF, HEIC/HEIF or the first page of a PDF),
// scales it down to MaxWidth and re-encodes it as base64 JPEG
func (p *JPEGPreparer) Prepare(data []byte, contentType string) (string, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		return "", err
	}
	img = p.resize(img)

	quality := p.Quality
	if quality <= 0 {
		quality = defaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("encoding JPEG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// resize scales img to MaxWidth keeping the aspect ratio; narrower images are untouched
func (p *JPEGPreparer) resize(img image.Image) image.Image {
	bounds := img.Bounds()
	if p.MaxWidth <= 0 || bounds.Dx() <= p.MaxWidth {
		return img
	}
	height := bounds.Dy() * p.MaxWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, p.MaxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if mimeType == "application/pdf" {
		return pdfToImage(data)
	}

	// Go's standard image package doesn't support HEIC
	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// pdfToImage renders the first page of a PDF
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
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

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
