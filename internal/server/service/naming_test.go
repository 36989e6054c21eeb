package service

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "clip.MP4", "clip.MP4"},
		{"spaces and parens", "my film (1).mp4", "my_film__1_.mp4"},
		{"path separators", "dir/sub\\file.mov", "dir_sub_file.mov"},
		{"unicode", "кино.avi", "____.avi"},
		{"hyphen and underscore", "a-b_c.mp4", "a_b_c.mp4"},
		{"empty", "", "video"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}

	t.Run("long names are not shortened", func(t *testing.T) {
		input := strings.Repeat("a", 300) + ".mp4"
		if got := sanitizeFilename(input); got != input {
			t.Errorf("expected %d-byte name unchanged, got %d bytes", len(input), len(got))
		}
	})
}

func TestNamer(t *testing.T) {
	t.Run("uses the current millisecond", func(t *testing.T) {
		var n Namer
		if got := n.Next("clip.MP4", time.UnixMilli(1746888137944)); got != "1746888137944_clip.MP4" {
			t.Errorf("unexpected name %q", got)
		}
	})

	t.Run("keeps the full sanitized name", func(t *testing.T) {
		var n Namer
		long := strings.Repeat("b", 250) + " final.mov"
		want := "1746888137944_" + strings.Repeat("b", 250) + "_final.mov"
		if got := n.Next(long, time.UnixMilli(1746888137944)); got != want {
			t.Errorf("unexpected name of length %d", len(got))
		}
	})

	t.Run("never repeats a timestamp", func(t *testing.T) {
		var n Namer
		now := time.UnixMilli(5000)
		first := n.Next("a.mp4", now)
		second := n.Next("a.mp4", now)
		third := n.Next("a.mp4", now.Add(-time.Second))

		if first != "5000_a.mp4" || second != "5001_a.mp4" || third != "5002_a.mp4" {
			t.Errorf("unexpected sequence: %s, %s, %s", first, second, third)
		}
	})
}
