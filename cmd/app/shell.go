package main

import (
    "bufio"
    "context"
    "errors"
    "flag"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strconv"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfsplitmerge/internal/metrics"
    "github.com/local/pdfsplitmerge/internal/preview"
    "github.com/local/pdfsplitmerge/internal/render"
    "github.com/local/pdfsplitmerge/internal/source"
)

const shellHelp = `commands:
  add REF...      append documents
  rm I...         remove entries (0-based)
  mv FROM TO      move an entry
  clear           empty the list
  list            show the list
  show            print the preview state
  quit
`

func (a *app) preview(ctx context.Context, args []string) error {
    fs := flag.NewFlagSet("preview", flag.ContinueOnError)
    out := fs.String("out", "preview", "directory for page thumbnails")
    if err := fs.Parse(args); err != nil {
        return err
    }
    if err := os.MkdirAll(*out, 0o755); err != nil {
        return err
    }

    if a.cfg.Metrics.Addr != "" {
        metrics.Init()
        mux := http.NewServeMux()
        mux.Handle("/metrics", metrics.Handler())
        srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
        go func() {
            log.Info().Msgf("metrics listening on %s", a.cfg.Metrics.Addr)
            if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
                log.Error().Err(err).Msg("metrics server error")
            }
        }()
        defer func() {
            sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
            defer cancel()
            _ = srv.Shutdown(sctx)
        }()
    }

    viewer := render.New(render.Options{CacheEntries: a.cfg.Render.CacheEntries})
    thumbs := &thumbnailWriter{r: viewer, dir: *out, width: a.cfg.Render.ThumbnailWidth, w: a.stdout}
    orch := preview.New(preview.Options{
        Merger:   a.asm,
        Viewer:   viewer,
        Listener: thumbs,
        Debounce: a.cfg.Preview.Debounce,
        TempDir:  a.cfg.Preview.TempDir,
    })
    sh := &shell{
        list:     preview.NewList(orch),
        orch:     orch,
        resolver: a.resolver,
        out:      a.stdout,
    }
    defer func() {
        orch.Close()
        source.ReleaseAll(sh.downloads)
        log.Info().Msg("preview session closed")
    }()

    lines := make(chan string)
    go func() {
        defer close(lines)
        sc := bufio.NewScanner(a.stdin)
        for sc.Scan() {
            lines <- sc.Text()
        }
    }()

    fmt.Fprint(a.stdout, shellHelp)
    for {
        select {
        case <-ctx.Done():
            return nil
        case line, ok := <-lines:
            if !ok {
                return nil
            }
            quit, err := sh.exec(ctx, line)
            if err != nil {
                fmt.Fprintln(a.stdout, "error:", err)
            }
            if quit {
                return nil
            }
        }
    }
}

// shell applies one command line to the merge list.
type shell struct {
    list      *preview.List
    orch      *preview.Orchestrator
    resolver  *source.Resolver
    out       io.Writer
    downloads []*source.Local
}

func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
    fields := strings.Fields(line)
    if len(fields) == 0 {
        return false, nil
    }
    args := fields[1:]
    switch fields[0] {
    case "add":
        if len(args) == 0 {
            return false, errors.New("add: nothing to add")
        }
        ls, err := s.resolver.ResolveAll(ctx, args)
        if err != nil {
            return false, err
        }
        for _, l := range ls {
            if l.Downloaded() {
                s.downloads = append(s.downloads, l)
            }
        }
        s.list.Add(source.Paths(ls)...)
    case "rm":
        idx, err := atois(args)
        if err != nil {
            return false, err
        }
        return false, s.list.Remove(idx...)
    case "mv":
        idx, err := atois(args)
        if err != nil {
            return false, err
        }
        if len(idx) != 2 {
            return false, errors.New("mv: need FROM and TO")
        }
        return false, s.list.Move(idx[0], idx[1])
    case "clear":
        s.list.Clear()
    case "list":
        for i, p := range s.list.Paths() {
            fmt.Fprintf(s.out, "%3d  %s\n", i, p)
        }
    case "show":
        if s.orch == nil {
            return false, nil
        }
        s.orch.Wait()
        st, path := s.orch.State()
        fmt.Fprintf(s.out, "state=%s %s\n", st, path)
    case "help":
        fmt.Fprint(s.out, shellHelp)
    case "quit", "exit":
        return true, nil
    default:
        return false, fmt.Errorf("unknown command %q", fields[0])
    }
    return false, nil
}

func atois(args []string) ([]int, error) {
    out := make([]int, 0, len(args))
    for _, a := range args {
        n, err := strconv.Atoi(a)
        if err != nil {
            return nil, fmt.Errorf("bad index %q", a)
        }
        out = append(out, n)
    }
    return out, nil
}

// thumbnailWriter renders every page of the ready preview into dir.
type thumbnailWriter struct {
    r     *render.Renderer
    dir   string
    width int
    w     io.Writer
}

func (t *thumbnailWriter) OnCandidateReady(path string) {
    t.clean()
    n := t.r.PageCount()
    for i := 0; i < n; i++ {
        bm, err := t.r.RenderThumbnail(i, t.width)
        if err != nil {
            log.Warn().Err(err).Int("page", i+1).Msg("thumbnail failed")
            continue
        }
        if err := writeImage(filepath.Join(t.dir, fmt.Sprintf("page_%03d.png", i+1)), bm); err != nil {
            log.Warn().Err(err).Int("page", i+1).Msg("thumbnail write failed")
        }
    }
    fmt.Fprintf(t.w, "preview ready: %d pages (%s)\n", n, filepath.Base(path))
}

func (t *thumbnailWriter) OnCleared() {
    t.clean()
    fmt.Fprintln(t.w, "preview cleared")
}

func (t *thumbnailWriter) OnFailed(err error) {
    t.clean()
    fmt.Fprintln(t.w, "preview failed:", err)
}

func (t *thumbnailWriter) clean() {
    old, _ := filepath.Glob(filepath.Join(t.dir, "page_*.png"))
    for _, p := range old {
        os.Remove(p)
    }
}
