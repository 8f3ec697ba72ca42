package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/thresh/internal/utils"
)

// DiscoverImages expands a mix of files and directories into the sorted list
// of image files to process. Directories are scanned one level deep unless
// recursive is set; unsupported files inside directories are skipped, but an
// explicitly named unsupported file is an error.
func DiscoverImages(inputs []string, recursive bool) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", input, err)
		}
		if !info.IsDir() {
			if !utils.IsSupportedImage(input) {
				return nil, fmt.Errorf("unsupported image file: %s", input)
			}
			add(input)
			continue
		}

		if recursive {
			err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && utils.IsSupportedImage(path) {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", input, err)
			}
			continue
		}

		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", input, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(input, entry.Name())
			if utils.IsSupportedImage(path) {
				add(path)
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}
