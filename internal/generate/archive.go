package generate

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
)

// Archive packages res as a zip with the same layout Writer produces on
// disk, rooted at the project directory.
func Archive(res *Result) ([]byte, error) {
	files, err := projectFiles(res)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	dirs := make(map[string]bool)

	for _, f := range files {
		if err := addDirs(zw, dirs, path.Dir(f.rel)); err != nil {
			return nil, err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.rel, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", f.rel, err)
		}
		if _, err := w.Write(f.data); err != nil {
			return nil, fmt.Errorf("zip %s: %w", f.rel, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish zip: %w", err)
	}
	return buf.Bytes(), nil
}

// addDirs writes an entry for dir and each of its parents not yet seen.
func addDirs(zw *zip.Writer, seen map[string]bool, dir string) error {
	if dir == "." || dir == "/" || seen[dir] {
		return nil
	}
	if err := addDirs(zw, seen, path.Dir(dir)); err != nil {
		return err
	}
	seen[dir] = true
	if _, err := zw.Create(dir + "/"); err != nil {
		return fmt.Errorf("zip %s/: %w", dir, err)
	}
	return nil
}
