// Package source turns an input reference into a local PDF path.
package source

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strings"

    "github.com/aws/aws-sdk-go-v2/aws"
    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/service/s3"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfsplitmerge/internal/tempfiles"
)

const tempPattern = "pdfsrc-*.pdf"

// Local is a resolved reference. Downloaded references own a temp file that
// Release deletes; local paths are left alone.
type Local struct {
    Ref  string
    Path string
    temp bool
}

// Release deletes the downloaded copy, if any. Safe to call more than once.
func (l *Local) Release() {
    if l == nil || !l.temp {
        return
    }
    tempfiles.Remove(l.Path)
    l.temp = false
}

// Downloaded reports whether Path is a temp copy.
func (l *Local) Downloaded() bool { return l != nil && l.temp }

type objectGetter interface {
    GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Resolver downloads remote references into TempDir.
type Resolver struct {
    HTTP    *http.Client
    TempDir string

    s3 func(ctx context.Context) (objectGetter, error)
}

// New returns a Resolver using http.DefaultClient and the default AWS chain.
func New(tempDir string) *Resolver {
    return &Resolver{HTTP: http.DefaultClient, TempDir: tempDir, s3: defaultS3}
}

func defaultS3(ctx context.Context) (objectGetter, error) {
    cfg, err := awscfg.LoadDefaultConfig(ctx)
    if err != nil {
        return nil, fmt.Errorf("load aws config: %w", err)
    }
    return s3.NewFromConfig(cfg), nil
}

// Resolve supports:
// - file://path or plain filesystem paths
// - http(s):// URLs (downloaded to temp)
// - s3://bucket/key (downloaded to temp via AWS SDK v2)
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Local, error) {
    switch {
    case strings.HasPrefix(ref, "s3://"):
        return r.fetch(ref, func(w io.Writer) error { return r.getS3(ctx, ref, w) })
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        return r.fetch(ref, func(w io.Writer) error { return r.getHTTP(ctx, ref, w) })
    case strings.HasPrefix(ref, "file://"):
        return &Local{Ref: ref, Path: strings.TrimPrefix(ref, "file://")}, nil
    }
    return &Local{Ref: ref, Path: ref}, nil
}

// ResolveAll resolves refs in order. On error everything already downloaded
// is released.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) ([]*Local, error) {
    out := make([]*Local, 0, len(refs))
    for _, ref := range refs {
        l, err := r.Resolve(ctx, ref)
        if err != nil {
            ReleaseAll(out)
            return nil, err
        }
        out = append(out, l)
    }
    return out, nil
}

// ReleaseAll releases every entry.
func ReleaseAll(ls []*Local) {
    for _, l := range ls {
        l.Release()
    }
}

// Paths returns the local paths of ls in order.
func Paths(ls []*Local) []string {
    out := make([]string, len(ls))
    for i, l := range ls {
        out[i] = l.Path
    }
    return out
}

func (r *Resolver) fetch(ref string, copyTo func(io.Writer) error) (*Local, error) {
    tmp, err := tempfiles.Create(r.TempDir, tempPattern)
    if err != nil {
        return nil, err
    }
    f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o600)
    if err != nil {
        tempfiles.Remove(tmp)
        return nil, err
    }
    err = copyTo(f)
    if cerr := f.Close(); err == nil {
        err = cerr
    }
    if err != nil {
        tempfiles.Remove(tmp)
        return nil, fmt.Errorf("fetch %s: %w", ref, err)
    }
    log.Info().Str("ref", ref).Str("file", filepath.Base(tmp)).Msg("downloaded source pdf to temp")
    return &Local{Ref: ref, Path: tmp, temp: true}, nil
}

func (r *Resolver) getHTTP(ctx context.Context, url string, w io.Writer) error {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return err }
    client := r.HTTP
    if client == nil { client = http.DefaultClient }
    resp, err := client.Do(req)
    if err != nil { return err }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK { return fmt.Errorf("http %d", resp.StatusCode) }
    _, err = io.Copy(w, resp.Body)
    return err
}

func (r *Resolver) getS3(ctx context.Context, ref string, w io.Writer) error {
    bucket, key, err := splitS3(ref)
    if err != nil { return err }
    newClient := r.s3
    if newClient == nil { newClient = defaultS3 }
    cli, err := newClient(ctx)
    if err != nil { return err }
    out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
    if err != nil { return err }
    defer out.Body.Close()
    _, err = io.Copy(w, out.Body)
    return err
}

// splitS3 parses s3://bucket/key.
func splitS3(ref string) (bucket, key string, err error) {
    path := strings.TrimPrefix(ref, "s3://")
    slash := strings.Index(path, "/")
    if slash <= 0 || slash == len(path)-1 {
        return "", "", fmt.Errorf("invalid s3 url: %s", ref)
    }
    return path[:slash], path[slash+1:], nil
}
