package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "io"
    "os"
    "os/signal"
    "path/filepath"
    "strings"
    "syscall"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfsplitmerge/internal/assembler"
    cfgpkg "github.com/local/pdfsplitmerge/internal/config"
    logpkg "github.com/local/pdfsplitmerge/internal/logger"
    "github.com/local/pdfsplitmerge/internal/pagerange"
    "github.com/local/pdfsplitmerge/internal/render"
    "github.com/local/pdfsplitmerge/internal/source"
    "github.com/local/pdfsplitmerge/internal/tempfiles"
)

const usage = `usage: pdfsplitmerge <command> [flags]

commands:
  split   -in REF -out DIR [-prefix P] [-ranges "1-3, 5"]
  merge   -out FILE REF REF...
  info    REF
  ranges  -pages N TEXT
  render  -in REF [-page N] [-zoom Z | -thumb W] -out IMG
  preview -out DIR
`

type app struct {
    cfg      cfgpkg.Config
    asm      *assembler.Assembler
    resolver *source.Resolver
    stdin    io.Reader
    stdout   io.Writer
}

func main() {
    cfg := cfgpkg.Load()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })

    // candidates from a crashed session
    tempfiles.Sweep(cfg.Preview.TempDir, tempfiles.PreviewPrefix, cfg.Preview.StaleAge)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    a := &app{
        cfg:      cfg,
        asm:      assembler.New(assembler.Options{DefaultPrefix: cfg.Split.DefaultPrefix}),
        resolver: source.New(cfg.Preview.TempDir),
        stdin:    os.Stdin,
        stdout:   os.Stdout,
    }
    err := a.run(ctx, os.Args[1:])
    stop()
    logpkg.Close()

    if errors.Is(err, flag.ErrHelp) {
        os.Exit(2)
    }
    if err != nil {
        fmt.Fprintln(os.Stderr, "error:", err)
        os.Exit(1)
    }
}

func (a *app) run(ctx context.Context, args []string) error {
    if len(args) == 0 {
        fmt.Fprint(os.Stderr, usage)
        return flag.ErrHelp
    }
    cmd, rest := args[0], args[1:]
    switch cmd {
    case "split":
        return a.split(ctx, rest)
    case "merge":
        return a.merge(ctx, rest)
    case "info":
        return a.info(ctx, rest)
    case "ranges":
        return a.ranges(rest)
    case "render":
        return a.render(ctx, rest)
    case "preview":
        return a.preview(ctx, rest)
    case "help", "-h", "--help":
        fmt.Fprint(a.stdout, usage)
        return nil
    }
    fmt.Fprint(os.Stderr, usage)
    return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) split(ctx context.Context, args []string) error {
    fs := flag.NewFlagSet("split", flag.ContinueOnError)
    in := fs.String("in", "", "input PDF (path, file://, http(s)://, s3://)")
    out := fs.String("out", ".", "output directory")
    prefix := fs.String("prefix", "", "output file prefix")
    ranges := fs.String("ranges", "", `page ranges, e.g. "1-3, 5"; empty = one file per page`)
    if err := fs.Parse(args); err != nil {
        return err
    }
    if *in == "" {
        return errors.New("split: -in is required")
    }

    src, err := a.resolver.Resolve(ctx, *in)
    if err != nil {
        return err
    }
    defer src.Release()

    res, err := a.asm.Split(ctx, assembler.SplitRequest{
        Input: src.Path, OutputDir: *out, Prefix: *prefix, Ranges: *ranges,
    })
    if res != nil {
        for _, tok := range res.Skipped {
            log.Warn().Str("token", tok.Text).Str("reason", string(tok.Skip)).Msg("ignored page range")
        }
        for _, f := range res.Files {
            fmt.Fprintln(a.stdout, f)
        }
    }
    if err != nil {
        return err
    }
    if res.NoMatchingPages {
        fmt.Fprintf(a.stdout, "no pages of %d matched %q\n", res.TotalPages, *ranges)
        return nil
    }
    return nil
}

func (a *app) merge(ctx context.Context, args []string) error {
    fs := flag.NewFlagSet("merge", flag.ContinueOnError)
    out := fs.String("out", "", "output PDF")
    if err := fs.Parse(args); err != nil {
        return err
    }
    if *out == "" || fs.NArg() == 0 {
        return errors.New("merge: -out and at least one input are required")
    }

    srcs, err := a.resolver.ResolveAll(ctx, fs.Args())
    if err != nil {
        return err
    }
    defer source.ReleaseAll(srcs)

    written, err := a.asm.Merge(ctx, source.Paths(srcs), *out)
    if err != nil {
        return err
    }
    fmt.Fprintln(a.stdout, written)
    log.Info().Int("inputs", len(srcs)).Str("output", written).Msg("merge complete")
    return nil
}

func (a *app) info(ctx context.Context, args []string) error {
    if len(args) != 1 {
        return errors.New("info: exactly one input is required")
    }
    src, err := a.resolver.Resolve(ctx, args[0])
    if err != nil {
        return err
    }
    defer src.Release()

    di, err := a.asm.Inspect(src.Path)
    if err != nil {
        return err
    }
    fmt.Fprintf(a.stdout, "%s: %d pages\n", args[0], di.PageCount)
    for i, p := range di.Pages {
        fmt.Fprintf(a.stdout, "  page %d: %.0f x %.0f pt\n", i+1, p.Width, p.Height)
    }
    return nil
}

func (a *app) ranges(args []string) error {
    fs := flag.NewFlagSet("ranges", flag.ContinueOnError)
    pages := fs.Int("pages", 0, "total page count")
    if err := fs.Parse(args); err != nil {
        return err
    }
    text := strings.Join(fs.Args(), " ")
    for _, tok := range pagerange.ParseTokens(text, *pages) {
        if !tok.Valid() {
            fmt.Fprintf(a.stdout, "%-12q skipped (%s)\n", tok.Text, tok.Skip)
            continue
        }
        fmt.Fprintf(a.stdout, "%-12q pages %d-%d\n", tok.Text, tok.Group.First(), tok.Group.Last())
    }
    return nil
}

func (a *app) render(ctx context.Context, args []string) error {
    fs := flag.NewFlagSet("render", flag.ContinueOnError)
    in := fs.String("in", "", "input PDF")
    page := fs.Int("page", 1, "1-based page number")
    zoom := fs.Float64("zoom", a.cfg.Render.Zoom, "zoom factor (1.0 = 72 dpi)")
    thumb := fs.Int("thumb", 0, "render a thumbnail of this width instead")
    out := fs.String("out", "", "output image (.png or .jpg)")
    if err := fs.Parse(args); err != nil {
        return err
    }
    if *in == "" || *out == "" {
        return errors.New("render: -in and -out are required")
    }

    src, err := a.resolver.Resolve(ctx, *in)
    if err != nil {
        return err
    }
    defer src.Release()

    r := render.New(render.Options{})
    if err := r.Open(src.Path); err != nil {
        return err
    }
    defer r.Close()

    var bm *render.Bitmap
    if *thumb > 0 {
        bm, err = r.RenderThumbnail(*page-1, *thumb)
    } else {
        bm, err = r.RenderPage(*page-1, *zoom)
    }
    if err != nil {
        return fmt.Errorf("render page %d: %w", *page, err)
    }
    return writeImage(*out, bm)
}

func writeImage(path string, bm *render.Bitmap) error {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return err
    }
    f, err := os.Create(path)
    if err != nil {
        return err
    }
    if err := render.Encode(f, path, bm, 90); err != nil {
        f.Close()
        os.Remove(path)
        return err
    }
    return f.Close()
}
