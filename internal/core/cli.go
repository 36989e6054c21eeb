package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

type PathKind int

const (
	PathFile PathKind = iota
	PathDir
)

type ParsedPath struct {
	FullPath string
	Kind     PathKind
}

// ParseArgs validates the paths given on the command line. Paths naming the
// same location are kept once, in first-seen order.
func ParseArgs(args []string) ([]ParsedPath, error) {
	if len(args) == 0 {
		return nil, &ValidationError{Arg: "<paths>", Cause: "no files provided"}
	}

	var out []ParsedPath
	seen := make(map[string]bool)

	for _, raw := range args {
		p := filepath.Clean(raw)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ValidationError{Arg: raw, Cause: "not found or not accessible"}
		}

		key := p
		if abs, err := filepath.Abs(p); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		kind := PathFile
		if info.IsDir() {
			kind = PathDir
		} else if !IsVideo(p) {
			return nil, &ValidationError{Arg: raw, Cause: "not a video file (expected .mp4, .mov or .avi)"}
		}

		out = append(out, ParsedPath{FullPath: p, Kind: kind})
	}

	return out, nil
}

var videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".avi": true}

// IsVideo reports whether name has a video extension, ignoring case.
func IsVideo(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}
