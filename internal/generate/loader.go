package generate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/patternweave/internal/parser"
	"github.com/roach88/patternweave/internal/pattern"
)

// Loader resolves a pattern reference to a parsed model.
type Loader interface {
	Load(ctx context.Context, ref string) (*pattern.Pattern, error)
}

// FileLoader reads pattern documents from the filesystem.
//
// With a Root, refs must be local paths under it; anything that would
// escape the root is rejected. Without a Root, refs are used as given.
type FileLoader struct {
	Root string
}

// NewFileLoader returns a loader rooted at root ("" for no root).
func NewFileLoader(root string) *FileLoader {
	return &FileLoader{Root: root}
}

// Resolve maps ref to a filesystem path.
func (l *FileLoader) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", &pattern.Error{Kind: pattern.ErrResource, Message: "empty pattern reference"}
	}
	if l.Root == "" {
		return ref, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(ref)) {
		return "", &pattern.Error{
			Kind:    pattern.ErrResource,
			Element: ref,
			Message: "pattern reference escapes the pattern directory",
			Err:     fs.ErrNotExist,
		}
	}
	return filepath.Join(l.Root, filepath.FromSlash(ref)), nil
}

// Load parses the document ref points to.
func (l *FileLoader) Load(ctx context.Context, ref string) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return parser.ParseFile(path)
}

// cacheKey identifies one version of a file on disk.
type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

// CachedLoader memoizes a FileLoader. A file that changes size or
// modification time misses the cache and is parsed again.
type CachedLoader struct {
	files *FileLoader
	cache *lru.Cache[cacheKey, *pattern.Pattern]
}

// NewCachedLoader wraps files with an LRU of the given size.
func NewCachedLoader(files *FileLoader, size int) (*CachedLoader, error) {
	cache, err := lru.New[cacheKey, *pattern.Pattern](size)
	if err != nil {
		return nil, fmt.Errorf("create pattern cache: %w", err)
	}
	return &CachedLoader{files: files, cache: cache}, nil
}

// Load returns the cached model for ref, parsing it on a miss.
func (c *CachedLoader) Load(ctx context.Context, ref string) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.files.Resolve(ref)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &pattern.Error{
			Kind:    pattern.ErrResource,
			Element: ref,
			Message: "cannot stat pattern document",
			Source:  path,
			Err:     err,
		}
	}

	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if m, ok := c.cache.Get(key); ok {
		return m, nil
	}

	m, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, m)
	return m, nil
}

// Len reports the number of cached models.
func (c *CachedLoader) Len() int {
	return c.cache.Len()
}
