package main

import (
    "bytes"
    "context"
    "os"
    "path/filepath"
    "reflect"
    "strings"
    "testing"

    "github.com/local/pdfsplitmerge/internal/assembler"
    cfgpkg "github.com/local/pdfsplitmerge/internal/config"
    "github.com/local/pdfsplitmerge/internal/pdftest"
    "github.com/local/pdfsplitmerge/internal/preview"
    "github.com/local/pdfsplitmerge/internal/source"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
    t.Helper()
    var out bytes.Buffer
    return &app{
        cfg:      cfgpkg.FromEnv(),
        asm:      assembler.New(assembler.Options{}),
        resolver: source.New(t.TempDir()),
        stdin:    strings.NewReader(""),
        stdout:   &out,
    }, &out
}

func TestSplitMergeInfo(t *testing.T) {
    a, out := newTestApp(t)
    dir := t.TempDir()
    in := pdftest.Write(t, dir, "in.pdf", pdftest.Widths(100, 4)...)
    ctx := context.Background()

    if err := a.run(ctx, []string{"split", "-in", in, "-out", filepath.Join(dir, "parts"), "-ranges", "1-2, x, 4"}); err != nil {
        t.Fatal(err)
    }
    want := []string{
        filepath.Join(dir, "parts", "split_pages_1-2.pdf"),
        filepath.Join(dir, "parts", "split_page_4.pdf"),
    }
    if got := strings.Fields(out.String()); !reflect.DeepEqual(got, want) {
        t.Fatalf("split printed %v, want %v", got, want)
    }

    out.Reset()
    merged := filepath.Join(dir, "merged.pdf")
    if err := a.run(ctx, []string{"merge", "-out", merged, want[1], want[0]}); err != nil {
        t.Fatal(err)
    }
    out.Reset()
    if err := a.run(ctx, []string{"info", merged}); err != nil {
        t.Fatal(err)
    }
    if !strings.Contains(out.String(), "3 pages") || !strings.Contains(out.String(), "page 1: 103 x 792 pt") {
        t.Fatalf("info output %q", out.String())
    }
}

func TestSplitNoMatchIsNotAnError(t *testing.T) {
    a, out := newTestApp(t)
    dir := t.TempDir()
    in := pdftest.Write(t, dir, "in.pdf", 100, 200)
    if err := a.run(context.Background(), []string{"split", "-in", in, "-out", filepath.Join(dir, "parts"), "-ranges", "9-12"}); err != nil {
        t.Fatal(err)
    }
    if !strings.Contains(out.String(), "no pages of 2 matched") {
        t.Fatalf("output %q", out.String())
    }
    if _, err := os.Stat(filepath.Join(dir, "parts")); !os.IsNotExist(err) {
        t.Fatal("no output directory expected")
    }
}

func TestRangesCommand(t *testing.T) {
    a, out := newTestApp(t)
    if err := a.run(context.Background(), []string{"ranges", "-pages", "10", "1-3,", "5,", "abc,", "12,", "15-20"}); err != nil {
        t.Fatal(err)
    }
    s := out.String()
    for _, want := range []string{"pages 1-3", "pages 5-5", "skipped (malformed)", "skipped (out_of_range)", "skipped (empty_range)"} {
        if !strings.Contains(s, want) {
            t.Fatalf("output %q lacks %q", s, want)
        }
    }
}

func TestUnknownCommand(t *testing.T) {
    a, _ := newTestApp(t)
    if err := a.run(context.Background(), []string{"explode"}); err == nil {
        t.Fatal("expected error")
    }
}

type recorder struct{ updates [][]string }

func (r *recorder) Update(paths []string) { r.updates = append(r.updates, paths) }

func TestShellEditsList(t *testing.T) {
    rec := &recorder{}
    var out bytes.Buffer
    sh := &shell{list: preview.NewList(rec), resolver: source.New(t.TempDir()), out: &out}
    ctx := context.Background()

    for _, line := range []string{"add a.pdf b.pdf c.pdf", "mv 2 0", "rm 1", "", "list"} {
        if _, err := sh.exec(ctx, line); err != nil {
            t.Fatalf("%q: %v", line, err)
        }
    }
    if got := sh.list.Paths(); !reflect.DeepEqual(got, []string{"c.pdf", "b.pdf"}) {
        t.Fatalf("list = %v", got)
    }
    if len(rec.updates) != 3 {
        t.Fatalf("updates = %d", len(rec.updates))
    }
    if !strings.Contains(out.String(), "  1  b.pdf") {
        t.Fatalf("list output %q", out.String())
    }

    for _, bad := range []string{"rm 7", "rm x", "mv 1", "add", "frobnicate"} {
        if _, err := sh.exec(ctx, bad); err == nil {
            t.Fatalf("%q: expected error", bad)
        }
    }
    if quit, _ := sh.exec(ctx, "quit"); !quit {
        t.Fatal("quit must end the session")
    }
}

func TestPreviewSession(t *testing.T) {
    a, out := newTestApp(t)
    dir := t.TempDir()
    first := pdftest.Write(t, dir, "a.pdf", 100, 110)
    second := pdftest.Write(t, dir, "b.pdf", 120)
    a.cfg.Preview.TempDir = t.TempDir()
    a.cfg.Render.ThumbnailWidth = 50
    a.stdin = strings.NewReader("add " + first + " " + second + "\nshow\nquit\n")

    thumbs := filepath.Join(dir, "thumbs")
    if err := a.run(context.Background(), []string{"preview", "-out", thumbs}); err != nil {
        t.Fatal(err)
    }
    if !strings.Contains(out.String(), "state=ready") {
        t.Fatalf("output %q", out.String())
    }
    pngs, _ := filepath.Glob(filepath.Join(thumbs, "page_*.png"))
    if len(pngs) != 3 {
        t.Fatalf("thumbnails = %v", pngs)
    }
    left, _ := filepath.Glob(filepath.Join(a.cfg.Preview.TempDir, "merge_preview_*"))
    if len(left) != 0 {
        t.Fatalf("candidate not removed on close: %v", left)
    }
}
