package core

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type VideoFile struct {
	Path string
	Name string
	Size int64
}

// CollectVideos expands directories into the video files below them.
// Hidden files and directories are skipped.
func CollectVideos(paths []ParsedPath) ([]VideoFile, error) {
	var out []VideoFile
	seen := make(map[string]bool)

	add := func(p string, size int64) {
		if seen[p] {
			return
		}
		seen[p] = true
		out = append(out, VideoFile{Path: p, Name: filepath.Base(p), Size: size})
	}

	for _, parsed := range paths {
		if parsed.Kind == PathFile {
			info, err := os.Stat(parsed.FullPath)
			if err != nil {
				return nil, fmt.Errorf("failed to stat %s: %w", parsed.FullPath, err)
			}
			add(parsed.FullPath, info.Size())
			continue
		}

		err := filepath.WalkDir(parsed.FullPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != parsed.FullPath && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() || !IsVideo(p) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			add(p, info.Size())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", parsed.FullPath, err)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no video files found")
	}
	return out, nil
}
