package render

import (
	"image"

	fitz "github.com/gen2brain/go-fitz"
)

// Document is an open, rasterizable PDF.
type Document interface {
	NumPage() int
	// Bound returns the page rectangle in points.
	Bound(page int) (image.Rectangle, error)
	ImageDPI(page int, dpi float64) (*image.RGBA, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Document.
type Opener interface {
	Open(path string) (Document, error)
}

// FitzOpener opens documents with github.com/gen2brain/go-fitz (MuPDF).
type FitzOpener struct{}

func (FitzOpener) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
