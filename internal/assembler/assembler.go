// Package assembler realizes split and merge operations on disk using pdfcpu.
package assembler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitmerge/internal/filetype"
	"github.com/local/pdfsplitmerge/internal/metrics"
	"github.com/local/pdfsplitmerge/internal/pagerange"
)

// DefaultPrefix names split outputs when the caller gives no prefix.
const DefaultPrefix = "split"

// Sniffer rejects inputs that are not PDFs before pdfcpu parses them.
type Sniffer interface {
	RequirePDF(path string) error
}

// Options configures an Assembler.
type Options struct {
	DefaultPrefix string
	Sniffer       Sniffer
}

// Assembler splits and merges PDF documents.
type Assembler struct {
	prefix  string
	sniffer Sniffer
}

// New returns an Assembler. Zero options use the "split" prefix and the
// magic-byte detector.
func New(opts Options) *Assembler {
	if strings.TrimSpace(opts.DefaultPrefix) == "" {
		opts.DefaultPrefix = DefaultPrefix
	}
	if opts.Sniffer == nil {
		opts.Sniffer = filetype.New()
	}
	return &Assembler{prefix: opts.DefaultPrefix, sniffer: opts.Sniffer}
}

// SplitRequest describes one split. Blank Ranges means one file per page.
type SplitRequest struct {
	Input     string
	OutputDir string
	Prefix    string
	Ranges    string
}

// SplitResult lists what a split produced. Files is filled even when the
// split fails part way; earlier outputs are not rolled back.
type SplitResult struct {
	Files           []string
	TotalPages      int
	Groups          []pagerange.Group
	Skipped         []pagerange.Token
	NoMatchingPages bool
}

// Err returns ErrNoMatchingPages when the range text matched nothing.
func (r *SplitResult) Err() error {
	if r.NoMatchingPages {
		return ErrNoMatchingPages
	}
	return nil
}

// PageSize is a page's intrinsic size in points.
type PageSize struct {
	Width  float64
	Height float64
}

// DocumentInfo is the summary returned by Inspect.
type DocumentInfo struct {
	Path      string
	PageCount int
	Pages     []PageSize
}

// Split writes one output document per page group of req.Input.
func (a *Assembler) Split(ctx context.Context, req SplitRequest) (*SplitResult, error) {
	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		prefix = a.prefix
	}

	src, _, err := a.load(req.Input)
	if err != nil {
		return nil, err
	}
	res := &SplitResult{TotalPages: src.PageCount}

	if strings.TrimSpace(req.Ranges) == "" {
		res.Groups = pagerange.Explode(src.PageCount)
	} else {
		tokens := pagerange.ParseTokens(req.Ranges, src.PageCount)
		res.Skipped = pagerange.Skipped(tokens)
		for _, tok := range tokens {
			if tok.Valid() {
				res.Groups = append(res.Groups, tok.Group)
			}
		}
		if len(res.Groups) == 0 {
			res.NoMatchingPages = true
			metrics.IncSplitNoMatch()
			log.Warn().Str("input", req.Input).Str("ranges", req.Ranges).Int("pages", src.PageCount).Msg("range matched no pages")
			return res, nil
		}
	}

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return res, &WriteError{Path: req.OutputDir, Err: err}
	}

	for _, g := range res.Groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if len(g) == 0 {
			continue
		}
		pageNrs := make([]int, len(g))
		for i, idx := range g {
			pageNrs[i] = idx + 1
		}
		part, err := pdfcpu.ExtractPages(src, pageNrs, false)
		if err != nil {
			metrics.IncSplitFile("failed")
			return res, &SourceError{Path: req.Input, Err: fmt.Errorf("extract pages %d-%d: %w", g.First(), g.Last(), err)}
		}
		out := filepath.Join(req.OutputDir, OutputName(prefix, g))
		if err := writeContextFile(part, out); err != nil {
			metrics.IncSplitFile("failed")
			return res, &WriteError{Path: out, Err: err}
		}
		metrics.IncSplitFile("written")
		res.Files = append(res.Files, out)
	}

	log.Info().Str("input", req.Input).Int("pages", src.PageCount).Int("files", len(res.Files)).Msg("split complete")
	return res, nil
}

// OutputName is the file name a split gives to group g.
func OutputName(prefix string, g pagerange.Group) string {
	if len(g) == 1 {
		return fmt.Sprintf("%s_page_%d.pdf", prefix, g.First())
	}
	return fmt.Sprintf("%s_pages_%d-%d.pdf", prefix, g.First(), g.Last())
}

// Merge concatenates the pages of inputs, in list order, into output.
// The same path may appear more than once. output is only replaced once the
// whole merge succeeded.
func (a *Assembler) Merge(ctx context.Context, inputs []string, output string) (string, error) {
	if len(inputs) == 0 {
		return "", ErrNoInputs
	}

	loaded := make(map[string][]byte, len(inputs))
	readers := make([]io.ReadSeeker, 0, len(inputs))
	var first *model.Context
	for _, p := range inputs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, ok := loaded[p]
		if !ok {
			src, b, err := a.load(p)
			if err != nil {
				metrics.IncMerge("source_unreadable")
				return "", err
			}
			if first == nil {
				first = src
			}
			loaded[p] = b
			raw = b
		}
		readers = append(readers, bytes.NewReader(raw))
	}

	var buf bytes.Buffer
	var err error
	if len(readers) == 1 {
		err = api.WriteContext(first, &buf)
	} else {
		err = api.MergeRaw(readers, &buf, false, newConfig())
	}
	if err != nil {
		metrics.IncMerge("source_unreadable")
		return "", &SourceError{Path: strings.Join(inputs, ", "), Err: fmt.Errorf("merge: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := writeAtomic(output, buf.Bytes()); err != nil {
		metrics.IncMerge("write_failed")
		return "", &WriteError{Path: output, Err: err}
	}
	metrics.IncMerge("ok")
	log.Debug().Int("inputs", len(inputs)).Str("output", output).Int("bytes", buf.Len()).Msg("merge complete")
	return output, nil
}

// Inspect returns page count and page sizes for path.
func (a *Assembler) Inspect(path string) (*DocumentInfo, error) {
	src, _, err := a.load(path)
	if err != nil {
		return nil, err
	}
	dims, err := src.PageDims()
	if err != nil {
		return nil, &SourceError{Path: path, Err: fmt.Errorf("page dimensions: %w", err)}
	}
	info := &DocumentInfo{Path: path, PageCount: src.PageCount, Pages: make([]PageSize, len(dims))}
	for i, d := range dims {
		info.Pages[i] = PageSize{Width: d.Width, Height: d.Height}
	}
	return info, nil
}

// load sniffs, reads and validates path. Every failure is a SourceError.
func (a *Assembler) load(path string) (*model.Context, []byte, error) {
	if err := a.sniffer.RequirePDF(path); err != nil {
		return nil, nil, &SourceError{Path: path, Err: err}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &SourceError{Path: path, Err: err}
	}
	ctx, err := api.ReadContext(bytes.NewReader(raw), newConfig())
	if err != nil {
		return nil, nil, &SourceError{Path: path, Err: err}
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, nil, &SourceError{Path: path, Err: err}
	}
	return ctx, raw, nil
}

func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

func writeContextFile(ctx *model.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := api.WriteContext(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// writeAtomic stages data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".merge-*.part")
	if err != nil {
		return err
	}
	name := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(name)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(name, path); err != nil {
		return err
	}
	ok = true
	return nil
}
