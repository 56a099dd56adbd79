package straincrawler

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	filenameSeparators  = regexp.MustCompile(`[-\s]+`)
)

// SafeFilename lower-cases name and keeps letters, digits and underscores of any script, collapsing runs of spaces and hyphens
// into one underscore: "Blue Dream #1" becomes "blue_dream_1".
func SafeFilename(name string) string {
	safe := strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(name, ""))
	return strings.ToLower(filenameSeparators.ReplaceAllString(safe, "_"))
}

// imageExtension infers the extension from the URL path, defaulting to .jpg.
func imageExtension(imageUrl string) string {
	path := imageUrl
	if u, err := url.Parse(imageUrl); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	switch {
	case strings.HasSuffix(path, ".png"):
		return ".png"
	case strings.HasSuffix(path, ".webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}

// ImageFilename is the local file name for a strain image.
func ImageFilename(name, imageUrl string) string {
	return SafeFilename(name) + imageExtension(imageUrl)
}

type imageDownloader struct {
	dir     string
	fetcher Fetcher
}

// Save downloads imageUrl into the images directory unless a file with the derived name exists.
// It returns the local path either way.
func (d *imageDownloader) Save(ctx context.Context, name, imageUrl string) (string, error) {
	path := filepath.Join(d.dir, ImageFilename(name, imageUrl))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	data, _, err := d.fetcher.FetchBytes(ctx, imageUrl)
	if err != nil {
		return "", err
	}
	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return "", eris.Errorf("%s is %s, not an image", imageUrl, mt.String())
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", eris.Wrap(err, "failed to create images directory")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", eris.Wrapf(err, "failed to write %s", path)
	}
	return path, nil
}
