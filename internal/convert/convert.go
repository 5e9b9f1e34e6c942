package convert

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	"github.com/google/uuid"

	"snapspend/internal/errs"
)

// Converter turns an uploaded receipt file into a canonical JPEG image
// suitable for OCR.
type Converter interface {
	// Convert writes a new JPEG next to the input and returns its path.
	// The input file is left in place.
	Convert(path string) (string, error)
}

// FileConverter decodes HEIC/HEIF (the phone camera format), PDF, and any
// stdlib-registered raster format.
type FileConverter struct{}

func NewFileConverter() *FileConverter {
	return &FileConverter{}
}

// Convert decodes the input and writes a maximum-quality JPEG with a
// generated name in the same directory. A file that is not a valid instance
// of any supported format fails with a non-retryable ConversionError.
func (c *FileConverter) Convert(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	img, err := decode(data, path)
	if err != nil {
		return "", &errs.ConversionError{Path: path, Err: err}
	}

	out := filepath.Join(filepath.Dir(path), uuid.NewString()+".jpg")
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", out, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 100}); err != nil {
		f.Close()
		os.Remove(out)
		return "", fmt.Errorf("encoding JPEG: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("closing %s: %w", out, err)
	}

	return out, nil
}

func decode(data []byte, path string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case isPDF(data) || ext == ".pdf":
		return pdfFirstPage(data)
	case isHEIC(data) || ext == ".heic" || ext == ".heif":
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
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

// pdfFirstPage renders page one of a PDF receipt. Receipts are effectively
// always single page.
func pdfFirstPage(data []byte) (image.Image, error) {
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

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF"))
}

// isHEIC checks for the ftyp box brands HEIC containers start with.
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
