package source

import (
    "bytes"
    "context"
    "errors"
    "io"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "testing"

    "github.com/aws/aws-sdk-go-v2/service/s3"

    "github.com/local/pdfsplitmerge/internal/pdftest"
)

func TestResolveLocal(t *testing.T) {
    r := New(t.TempDir())
    for _, tc := range []struct{ ref, want string }{
        {"/tmp/a.pdf", "/tmp/a.pdf"},
        {"rel/b.pdf", "rel/b.pdf"},
        {"file:///tmp/c.pdf", "/tmp/c.pdf"},
    } {
        l, err := r.Resolve(context.Background(), tc.ref)
        if err != nil {
            t.Fatalf("%s: %v", tc.ref, err)
        }
        if l.Path != tc.want || l.Downloaded() {
            t.Fatalf("%s: path=%s downloaded=%v", tc.ref, l.Path, l.Downloaded())
        }
        l.Release()
    }
}

func TestResolveHTTP(t *testing.T) {
    doc := pdftest.Build(100, 200)
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
        if req.URL.Path != "/doc.pdf" {
            http.NotFound(w, req)
            return
        }
        w.Write(doc)
    }))
    defer srv.Close()

    dir := t.TempDir()
    r := New(dir)
    r.HTTP = srv.Client()

    l, err := r.Resolve(context.Background(), srv.URL+"/doc.pdf")
    if err != nil {
        t.Fatal(err)
    }
    if !l.Downloaded() || filepath.Dir(l.Path) != dir {
        t.Fatalf("unexpected local %+v", l)
    }
    got, err := os.ReadFile(l.Path)
    if err != nil || !bytes.Equal(got, doc) {
        t.Fatalf("downloaded content mismatch (err %v)", err)
    }
    l.Release()
    l.Release()
    if _, err := os.Stat(l.Path); !os.IsNotExist(err) {
        t.Fatal("release must delete the temp copy")
    }

    if _, err := r.Resolve(context.Background(), srv.URL+"/missing.pdf"); err == nil {
        t.Fatal("expected http error")
    }
    if left, _ := filepath.Glob(filepath.Join(dir, "pdfsrc-*")); len(left) != 0 {
        t.Fatalf("failed download left %v", left)
    }
}

type fakeS3 struct {
    bucket, key string
    body        []byte
    err         error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
    f.bucket, f.key = *in.Bucket, *in.Key
    if f.err != nil {
        return nil, f.err
    }
    return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestResolveS3(t *testing.T) {
    fake := &fakeS3{body: []byte("%PDF-1.4 stub")}
    r := New(t.TempDir())
    r.s3 = func(context.Context) (objectGetter, error) { return fake, nil }

    l, err := r.Resolve(context.Background(), "s3://docs/in/report.pdf")
    if err != nil {
        t.Fatal(err)
    }
    defer l.Release()
    if fake.bucket != "docs" || fake.key != "in/report.pdf" {
        t.Fatalf("bucket=%s key=%s", fake.bucket, fake.key)
    }

    fake.err = errors.New("access denied")
    if _, err := r.Resolve(context.Background(), "s3://docs/x.pdf"); err == nil {
        t.Fatal("expected s3 error")
    }
    for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
        if _, err := r.Resolve(context.Background(), bad); err == nil {
            t.Fatalf("%s: expected invalid url error", bad)
        }
    }
}

func TestResolveAllReleasesOnError(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
        if req.URL.Path == "/bad.pdf" {
            w.WriteHeader(http.StatusInternalServerError)
            return
        }
        w.Write(pdftest.Build(100))
    }))
    defer srv.Close()

    dir := t.TempDir()
    r := New(dir)
    r.HTTP = srv.Client()

    ls, err := r.ResolveAll(context.Background(), []string{"local.pdf", srv.URL + "/ok.pdf"})
    if err != nil {
        t.Fatal(err)
    }
    if got := Paths(ls); len(got) != 2 || got[0] != "local.pdf" {
        t.Fatalf("paths = %v", got)
    }
    ReleaseAll(ls)

    if _, err := r.ResolveAll(context.Background(), []string{srv.URL + "/ok.pdf", srv.URL + "/bad.pdf"}); err == nil {
        t.Fatal("expected error")
    }
    if left, _ := filepath.Glob(filepath.Join(dir, "pdfsrc-*")); len(left) != 0 {
        t.Fatalf("resolve all left %v", left)
    }
}
