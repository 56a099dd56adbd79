package straincrawler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// writePageDump saves a page that could not be understood so it can be inspected later.
// It returns the path written.
func writePageDump(dir, pageUrl, html, msg string) (string, error) {
	if html == "" {
		html = "No Page Content Found"
	}
	html = fmt.Sprintf("<!-- Time: %v \n Page Url: %s \n %s -->\n%s", time.Now().Format(time.RFC3339), pageUrl, strings.TrimSpace(msg), html)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, dumpFilename(pageUrl, time.Now()))
	return path, os.WriteFile(path, []byte(html), 0644)
}

// dumpFilename prefixes the url, made safe for file names, with the date.
func dumpFilename(rawURL string, now time.Time) string {
	rawURL = strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	for _, char := range []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "="} {
		rawURL = strings.ReplaceAll(rawURL, char, "_")
	}
	return now.Format("2006-01-02") + "_" + rawURL + ".html"
}
