// Package pdftest builds tiny but well-formed PDF files for tests.
//
// Every page gets its own MediaBox width so callers can tell pages apart
// after they have been split, merged or reordered.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// DefaultHeight is the MediaBox height of every generated page.
const DefaultHeight = 792

// Build returns the bytes of a PDF with one page per entry in widths.
func Build(widths ...int) []byte {
	var buf bytes.Buffer
	n := len(widths)
	// objects: 1 catalog, 2 page tree, 3..n+2 pages
	offsets := make([]int, n+3)

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [")
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteString(" ")
		}
		fmt.Fprintf(&buf, "%d 0 R", i+3)
	}
	fmt.Fprintf(&buf, "] /Count %d >>\nendobj\n", n)

	for i, w := range widths {
		obj := i + 3
		offsets[obj] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << >> >>\nendobj\n", obj, w, DefaultHeight)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", n+3)
	buf.WriteString("0000000000 65535 f \n")
	for obj := 1; obj < n+3; obj++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[obj])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", n+3, xref)
	return buf.Bytes()
}

// Widths returns n page widths starting at base and increasing by one.
func Widths(base, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = base + i
	}
	return out
}

// Write stores a generated PDF named name inside dir and returns its path.
func Write(t testing.TB, dir, name string, widths ...int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Build(widths...), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return p
}
