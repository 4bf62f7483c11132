// Package render rasterizes pages of one open PDF at a time.
//
// A Renderer owns at most one document handle. Open, Close and every render
// call are serialized, so a render never reads from a handle that has been
// closed and never returns a bitmap for a document that is no longer open.
package render

import (
	"container/list"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitmerge/internal/metrics"
)

// ErrUnavailable is returned when there is no open document or the page
// index is out of range.
var ErrUnavailable = errors.New("page unavailable")

// pointsPerInch maps zoom 1.0 to one pixel per point.
const pointsPerInch = 72.0

// Options configures a Renderer.
type Options struct {
	// Opener defaults to FitzOpener.
	Opener Opener
	// CacheEntries bounds the bitmap cache; 0 disables caching.
	CacheEntries int
}

// Renderer holds one open document and renders its pages.
type Renderer struct {
	mu     sync.Mutex
	opener Opener
	doc    Document
	docID  string
	path   string
	cache  *bitmapCache
}

// New returns a Renderer with no document open.
func New(opts Options) *Renderer {
	if opts.Opener == nil {
		opts.Opener = FitzOpener{}
	}
	r := &Renderer{opener: opts.Opener}
	if opts.CacheEntries > 0 {
		r.cache = newBitmapCache(opts.CacheEntries)
	}
	return r
}

// Open closes any open document and opens path. On failure the renderer is
// left with no document.
func (r *Renderer) Open(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLocked()
	doc, err := r.opener.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("renderer open failed")
		return fmt.Errorf("open %s: %w", path, err)
	}
	r.doc = doc
	r.docID = uuid.NewString()
	r.path = path
	log.Debug().Str("file", path).Int("pages", doc.NumPage()).Msg("renderer opened document")
	return nil
}

// Close releases the open document. Closing with nothing open is a no-op.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Renderer) closeLocked() error {
	if r.doc == nil {
		return nil
	}
	err := r.doc.Close()
	r.doc = nil
	r.docID = ""
	r.path = ""
	if r.cache != nil {
		r.cache.purge()
	}
	return err
}

// Path returns the path of the open document, or "".
func (r *Renderer) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// PageCount returns the page count of the open document, 0 when none.
func (r *Renderer) PageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return 0
	}
	return r.doc.NumPage()
}

// PageSize returns the intrinsic page size in points.
func (r *Renderer) PageSize(page int) (width, height float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.boundLocked(page)
	if err != nil {
		return 0, 0, err
	}
	return float64(b.Dx()), float64(b.Dy()), nil
}

// RenderPage rasterizes page at zoom, where 1.0 renders one pixel per point.
func (r *Renderer) RenderPage(page int, zoom float64) (*Bitmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renderLocked(page, zoom)
}

// RenderThumbnail renders page scaled so that its width is maxWidth pixels.
func (r *Renderer) RenderThumbnail(page, maxWidth int) (*Bitmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.boundLocked(page)
	if err != nil {
		return nil, err
	}
	if b.Dx() <= 0 || maxWidth <= 0 {
		metrics.IncRender("unavailable")
		return nil, fmt.Errorf("%w: page %d has no width", ErrUnavailable, page)
	}
	return r.renderLocked(page, float64(maxWidth)/float64(b.Dx()))
}

func (r *Renderer) boundLocked(page int) (image.Rectangle, error) {
	if r.doc == nil {
		return image.Rectangle{}, fmt.Errorf("%w: no document open", ErrUnavailable)
	}
	if page < 0 || page >= r.doc.NumPage() {
		return image.Rectangle{}, fmt.Errorf("%w: page %d of %d", ErrUnavailable, page, r.doc.NumPage())
	}
	b, err := r.doc.Bound(page)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("bound page %d: %w", page, err)
	}
	return b, nil
}

func (r *Renderer) renderLocked(page int, zoom float64) (*Bitmap, error) {
	if r.doc == nil || page < 0 || page >= r.doc.NumPage() || zoom <= 0 {
		metrics.IncRender("unavailable")
		return nil, fmt.Errorf("%w: page %d", ErrUnavailable, page)
	}
	key := cacheKey{doc: r.docID, page: page, zoom: zoom}
	if r.cache != nil {
		if bm, ok := r.cache.get(key); ok {
			metrics.IncRender("cached")
			return bm, nil
		}
	}
	img, err := r.doc.ImageDPI(page, pointsPerInch*zoom)
	if err != nil {
		metrics.IncRender("failed")
		log.Warn().Err(err).Int("page", page).Float64("zoom", zoom).Msg("render failed")
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	bm := FromRGBA(img)
	if r.cache != nil {
		r.cache.put(key, bm)
	}
	metrics.IncRender("rendered")
	return bm, nil
}

type cacheKey struct {
	doc  string
	page int
	zoom float64
}

type cacheEntry struct {
	key cacheKey
	bm  *Bitmap
}

// bitmapCache is a small LRU; callers hold the renderer mutex.
type bitmapCache struct {
	max   int
	order *list.List
	items map[cacheKey]*list.Element
}

func newBitmapCache(max int) *bitmapCache {
	return &bitmapCache{max: max, order: list.New(), items: make(map[cacheKey]*list.Element)}
}

func (c *bitmapCache) get(k cacheKey) (*Bitmap, bool) {
	el, ok := c.items[k]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).bm, true
}

func (c *bitmapCache) put(k cacheKey, bm *Bitmap) {
	if el, ok := c.items[k]; ok {
		el.Value.(*cacheEntry).bm = bm
		c.order.MoveToFront(el)
		return
	}
	c.items[k] = c.order.PushFront(&cacheEntry{key: k, bm: bm})
	for c.order.Len() > c.max {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.items, last.Value.(*cacheEntry).key)
	}
}

func (c *bitmapCache) purge() {
	c.order.Init()
	c.items = make(map[cacheKey]*list.Element)
}

func (c *bitmapCache) len() int { return c.order.Len() }
