package fetcher

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Extract unpacks every regular file of the zip at archive into dir and
// returns entry base name to extracted path. Directory structure inside the
// archive is flattened; macOS resource forks are skipped. Two entries that
// flatten to the same name are rejected.
func Extract(archive, dir string) (map[string]string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archive, err)
	}
	defer func() {
		_ = zr.Close()
	}()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create extract dir: %w", err)
	}

	entries := make(map[string]string)
	seen := make(map[string]string)
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || strings.HasPrefix(zf.Name, "__MACOSX/") {
			continue
		}
		name := path.Base(zf.Name)
		if name == "." || name == ".." || name == "/" {
			return nil, fmt.Errorf("archive %s: invalid entry name %q", archive, zf.Name)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("archive %s: entries %q and %q both extract to %s", archive, prev, zf.Name, name)
		}
		seen[name] = zf.Name
		dest := filepath.Join(dir, name)
		if err := extractFile(zf, dest); err != nil {
			return nil, err
		}
		entries[name] = dest
	}
	return entries, nil
}

func extractFile(zf *zip.File, dest string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", zf.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	return out.Close()
}

// Entry returns the extracted path of the named entry, failing with a
// *MissingEntryError that lists what the archive did contain.
func Entry(entries map[string]string, name string) (string, error) {
	if p, ok := entries[name]; ok {
		return p, nil
	}
	found := make([]string, 0, len(entries))
	for k := range entries {
		found = append(found, k)
	}
	sort.Strings(found)
	return "", &MissingEntryError{Expected: name, Found: found}
}
