// Package source resolves command line references into documents ready for
// extraction. A reference is a local file, a local directory (its supported
// files, non-recursively, in name order) or an s3:// URL naming an object or
// a prefix.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TechFutureAIFPT/hr-support/internal/extract"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
)

// DefaultConcurrency bounds parallel remote downloads.
const DefaultConcurrency = 4

var ErrNoDocuments = errors.New("no supported documents found")

// ObjectStore reads objects from a bucket.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

type Loader struct {
	store       ObjectStore
	concurrency int
	logger      *zap.Logger
}

// NewLoader builds a Loader. store may be nil when no s3:// reference is used.
func NewLoader(store ObjectStore, concurrency int, log *zap.Logger) *Loader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Loader{store: store, concurrency: concurrency, logger: logger.Named(log, "source")}
}

// Load resolves refs in order. Directory and prefix entries whose extension is
// not a supported document kind are skipped; explicitly named files are kept
// so extraction can report them.
func (l *Loader) Load(ctx context.Context, refs []string) ([]extract.File, error) {
	var files []extract.File
	for _, ref := range refs {
		var (
			loaded []extract.File
			err    error
		)
		if strings.HasPrefix(ref, s3Scheme) {
			loaded, err = l.loadRemote(ctx, ref)
		} else {
			loaded, err = loadLocal(ref)
		}
		if err != nil {
			return nil, err
		}
		l.logger.Debug("resolved reference", zap.String("ref", ref), zap.Int("files", len(loaded)))
		files = append(files, loaded...)
	}

	if len(files) == 0 {
		return nil, ErrNoDocuments
	}
	return files, nil
}

func loadLocal(ref string) ([]extract.File, error) {
	info, err := os.Stat(ref)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		f, err := readLocal(ref)
		if err != nil {
			return nil, err
		}
		return []extract.File{f}, nil
	}

	entries, err := os.ReadDir(ref)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", ref, err)
	}

	var files []extract.File
	for _, entry := range entries {
		if entry.IsDir() || !supported(entry.Name()) {
			continue
		}
		f, err := readLocal(filepath.Join(ref, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func readLocal(path string) (extract.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return extract.File{
		Name:      name,
		Size:      int64(len(data)),
		MediaType: extract.MediaTypeFor(name),
		Data:      data,
	}, nil
}

func (l *Loader) loadRemote(ctx context.Context, ref string) ([]extract.File, error) {
	if l.store == nil {
		return nil, fmt.Errorf("%s: object storage is not configured", ref)
	}

	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return nil, err
	}

	keys := []string{key}
	if key == "" || strings.HasSuffix(key, "/") {
		listed, err := l.store.List(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", ref, err)
		}
		keys = keys[:0]
		for _, k := range listed {
			if !strings.HasSuffix(k, "/") && supported(k) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
	}

	files := make([]extract.File, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, k := range keys {
		g.Go(func() error {
			data, err := l.store.Get(gctx, bucket, k)
			if err != nil {
				return fmt.Errorf("download s3://%s/%s: %w", bucket, k, err)
			}
			name := filepath.Base(k)
			files[i] = extract.File{
				Name:      name,
				Size:      int64(len(data)),
				MediaType: extract.MediaTypeFor(name),
				Data:      data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func supported(name string) bool {
	return extract.KindOf(name, "") != extract.KindUnknown
}
