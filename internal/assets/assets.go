// Package assets picks random meme images from the configured directory.
package assets

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}

// EnsureDir creates the images directory if missing. Called once at
// startup; failure here is fatal for the process.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}
	return nil
}

// RandomImage returns the path of a random image in dir, or an error when
// none exist.
func RandomImage(dir string) (string, error) {
	return pick(dir, imageExtensions)
}

// RandomGIF returns the path of a random animated gif in dir.
func RandomGIF(dir string) (string, error) {
	return pick(dir, []string{".gif"})
}

// IsGIF reports whether the path looks like an animated gif.
func IsGIF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gif")
}

func pick(dir string, extensions []string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read images dir: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range extensions {
			if ext == want {
				matches = append(matches, entry.Name())
				break
			}
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no images in %s", dir)
	}

	return filepath.Join(dir, matches[rand.Intn(len(matches))]), nil
}
