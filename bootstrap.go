package straincrawler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

func (app *Crawler) bootstrap(ctx context.Context) error {
	if isTrue(app.engine.CheckRobotsTxt) {
		return app.checkRobotsTxt(ctx)
	}
	return nil
}

func (app *Crawler) checkRobotsTxt(ctx context.Context) error {
	app.Logger.Info("Checking robots.txt")
	robotsData, isUserAgentAllowed := checkRobotsTxt(ctx, app.engine.BaseUrl, app.engine.UserAgent, strainPath)
	if !isUserAgentAllowed {
		app.Logger.Summary("Crawling is disallowed by robots.txt")
		return ErrDisallowed
	}
	if hf, ok := app.fetcher.(*httpFetcher); ok {
		hf.robots = robotsData
	}
	return nil
}

// checkRobotsTxt defaults to allow when robots.txt cannot be fetched or parsed.
func checkRobotsTxt(ctx context.Context, baseUrl, userAgent, path string) (*robotstxt.RobotsData, bool) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseUrl, "/")+"/robots.txt", nil)
	if err != nil {
		return nil, true
	}
	req.Header.Set("User-Agent", userAgent)
	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, true
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, true
	}

	robotsData, err := robotstxt.FromResponse(response)
	if err != nil {
		return nil, true
	}

	group := robotsData.FindGroup(userAgent)
	return robotsData, group.Test(path)
}
