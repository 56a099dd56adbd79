package straincrawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

// Fetcher retrieves documents. One attempt per call, no retry.
type Fetcher interface {
	Fetch(ctx context.Context, pageUrl string) (*Document, error)
	FetchBytes(ctx context.Context, rawUrl string) ([]byte, string, error)
}

// HtmlArchive receives a copy of every fetched page body.
type HtmlArchive interface {
	Archive(ctx context.Context, pageUrl, html string) error
}

type httpFetcher struct {
	client    *resty.Client
	userAgent string
	robots    *robotstxt.RobotsData
	archive   HtmlArchive
	logger    logger
}

func newHttpFetcher(baseUrl, userAgent string, timeout time.Duration, log logger) *httpFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeader("Referer", baseUrl)
	return &httpFetcher{client: client, userAgent: userAgent, logger: log}
}

// Fetch downloads pageUrl and parses it, decoding the body per its Content-Type.
func (f *httpFetcher) Fetch(ctx context.Context, pageUrl string) (*Document, error) {
	body, contentType, err := f.get(ctx, pageUrl)
	if err != nil {
		return nil, err
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, &FetchError{URL: pageUrl, Err: eris.Wrap(err, "failed to create reader with correct encoding")}
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: pageUrl, Err: eris.Wrap(err, "failed to decode body")}
	}

	doc, err := NewDocument(pageUrl, string(decoded))
	if err != nil {
		return nil, &FetchError{URL: pageUrl, Err: eris.Wrap(err, "failed to parse document")}
	}

	if f.archive != nil {
		if archiveErr := f.archive.Archive(ctx, pageUrl, doc.Raw); archiveErr != nil {
			f.logger.Warn("Archive %s: %v", pageUrl, archiveErr)
		}
	}
	return doc, nil
}

// FetchBytes downloads a binary resource such as an image.
func (f *httpFetcher) FetchBytes(ctx context.Context, rawUrl string) ([]byte, string, error) {
	return f.get(ctx, rawUrl)
}

func (f *httpFetcher) get(ctx context.Context, rawUrl string) ([]byte, string, error) {
	if !f.allowed(rawUrl) {
		return nil, "", &FetchError{URL: rawUrl, Err: ErrDisallowed}
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawUrl)
	if err != nil {
		return nil, "", &FetchError{URL: rawUrl, Err: eris.Wrap(err, "failed to navigate")}
	}
	if !resp.IsSuccess() {
		return nil, "", &FetchError{
			URL:        rawUrl,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%s", http.StatusText(resp.StatusCode())),
		}
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

func (f *httpFetcher) allowed(rawUrl string) bool {
	if f.robots == nil {
		return true
	}
	u, err := url.Parse(rawUrl)
	if err != nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return f.robots.TestAgent(path, f.userAgent)
}
