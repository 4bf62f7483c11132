package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"

	"github.com/local/pdfsplitmerge/internal/pdftest"
)

type fakeDoc struct {
	widths  []int
	closed  bool
	renders int
}

func (d *fakeDoc) NumPage() int { return len(d.widths) }

func (d *fakeDoc) Bound(page int) (image.Rectangle, error) {
	return image.Rect(0, 0, d.widths[page], 100), nil
}

func (d *fakeDoc) ImageDPI(page int, dpi float64) (*image.RGBA, error) {
	if d.closed {
		return nil, errors.New("render on closed document")
	}
	d.renders++
	scale := dpi / 72
	w := int(math.Round(float64(d.widths[page]) * scale))
	h := int(math.Round(100 * scale))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 20, 30, 255
	}
	return img, nil
}

func (d *fakeDoc) Close() error { d.closed = true; return nil }

type fakeOpener struct {
	mu   sync.Mutex
	docs map[string]*fakeDoc
}

func (o *fakeOpener) Open(path string) (Document, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, ok := o.docs[path]
	if !ok {
		return nil, errors.New("no such document")
	}
	d.closed = false
	return d, nil
}

func newFake() (*fakeOpener, *fakeDoc, *fakeDoc) {
	a := &fakeDoc{widths: []int{200, 300}}
	b := &fakeDoc{widths: []int{400}}
	return &fakeOpener{docs: map[string]*fakeDoc{"a.pdf": a, "b.pdf": b}}, a, b
}

func TestRendererNoDocument(t *testing.T) {
	op, _, _ := newFake()
	r := New(Options{Opener: op})
	if r.PageCount() != 0 {
		t.Fatal("page count must be 0 without document")
	}
	if _, err := r.RenderPage(0, 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := r.RenderThumbnail(0, 100); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close with nothing open: %v", err)
	}
}

func TestRendererRenderAndBounds(t *testing.T) {
	op, a, _ := newFake()
	r := New(Options{Opener: op})
	if err := r.Open("a.pdf"); err != nil {
		t.Fatal(err)
	}
	if r.PageCount() != 2 || r.Path() != "a.pdf" {
		t.Fatalf("count=%d path=%s", r.PageCount(), r.Path())
	}

	bm, err := r.RenderPage(1, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if bm.Width != 300 || bm.Height != 100 || bm.Stride != 900 || len(bm.Pix) != 900*100 {
		t.Fatalf("unexpected bitmap %dx%d stride %d", bm.Width, bm.Height, bm.Stride)
	}
	if bm.Pix[0] != 10 || bm.Pix[1] != 20 || bm.Pix[2] != 30 {
		t.Fatalf("unexpected pixel %v", bm.Pix[:3])
	}

	for _, idx := range []int{-1, 2} {
		if _, err := r.RenderPage(idx, 1); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("index %d: expected ErrUnavailable, got %v", idx, err)
		}
	}

	thumb, err := r.RenderThumbnail(0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if thumb.Width != 100 || thumb.Height != 50 {
		t.Fatalf("thumbnail %dx%d, want 100x50", thumb.Width, thumb.Height)
	}
	if a.renders != 2 {
		t.Fatalf("renders = %d", a.renders)
	}
}

func TestRendererOpenReplacesAndFailureClears(t *testing.T) {
	op, a, b := newFake()
	r := New(Options{Opener: op})
	if err := r.Open("a.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := r.Open("b.pdf"); err != nil {
		t.Fatal(err)
	}
	if !a.closed || b.closed {
		t.Fatal("previous document must be closed on open")
	}
	if err := r.Open("missing.pdf"); err == nil {
		t.Fatal("expected open error")
	}
	if !b.closed || r.PageCount() != 0 || r.Path() != "" {
		t.Fatal("failed open must leave renderer empty")
	}
}

func TestRendererCacheInvalidatedOnOpen(t *testing.T) {
	op, a, _ := newFake()
	r := New(Options{Opener: op, CacheEntries: 2})
	if err := r.Open("a.pdf"); err != nil {
		t.Fatal(err)
	}
	first, _ := r.RenderPage(0, 1)
	second, _ := r.RenderPage(0, 1)
	if first != second || a.renders != 1 {
		t.Fatalf("expected cached bitmap, renders=%d", a.renders)
	}
	r.RenderPage(0, 2)
	r.RenderPage(1, 1)
	if r.cache.len() != 2 {
		t.Fatalf("cache len = %d, want 2", r.cache.len())
	}

	if err := r.Open("a.pdf"); err != nil {
		t.Fatal(err)
	}
	if r.cache.len() != 0 {
		t.Fatal("cache must be empty after reopen")
	}
	third, _ := r.RenderPage(0, 1)
	if third == first || a.renders != 4 {
		t.Fatalf("expected fresh render after reopen, renders=%d", a.renders)
	}
}

func TestRendererConcurrentOpenAndRender(t *testing.T) {
	op, _, _ := newFake()
	r := New(Options{Opener: op})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				r.Open("a.pdf")
			} else {
				r.Open("b.pdf")
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := r.RenderPage(0, 0.5); err != nil && !errors.Is(err, ErrUnavailable) {
				t.Errorf("render raced with close: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestEncode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(1, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	bm := FromRGBA(img)

	var buf bytes.Buffer
	if err := Encode(&buf, "out.png", bm, 0); err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := decoded.At(1, 0).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Fatalf("pixel = %d %d %d", r>>8, g>>8, b>>8)
	}
	if err := Encode(&buf, "out.jpg", bm, 90); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&buf, "out.gif", bm, 0); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestFitzRendersFixture(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "fixture.pdf", 144, 288)
	r := New(Options{CacheEntries: 4})
	defer r.Close()
	if err := r.Open(path); err != nil {
		t.Fatalf("open: %v", err)
	}
	if r.PageCount() != 2 {
		t.Fatalf("page count = %d", r.PageCount())
	}
	w, h, err := r.PageSize(1)
	if err != nil || w != 288 || h != pdftest.DefaultHeight {
		t.Fatalf("size = %vx%v, err %v", w, h, err)
	}
	bm, err := r.RenderThumbnail(1, 144)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if bm.Width < 143 || bm.Width > 145 {
		t.Fatalf("thumbnail width = %d, want ~144", bm.Width)
	}
}
