package straincrawler

import (
	"strings"
	"time"
)

// Engine holds the run-time knobs of a crawl. Zero values mean "keep the default".
type Engine struct {
	BaseUrl        string
	UserAgent      string
	Timeout        time.Duration
	RequestDelay   time.Duration
	UploadDelay    time.Duration
	CheckRobotsTxt *bool
	StrictCatalog  *bool
	ArchiveHtml    *bool
	DevCrawlLimit  int
	ImagesDir      string
	ImageWidth     int
	Bucket         string
	BucketPrefix   string
	// PageDumpDir receives catalog pages that fail to parse; empty means storage/logs/<app>/html.
	PageDumpDir    string
}

func getDefaultEngine() Engine {
	return Engine{
		BaseUrl:        "https://www.leafly.com",
		UserAgent:      defaultUserAgent,
		Timeout:        30 * time.Second,
		RequestDelay:   10 * time.Second,
		UploadDelay:    500 * time.Millisecond,
		CheckRobotsTxt: boolPtr(false),
		StrictCatalog:  boolPtr(true),
		ArchiveHtml:    boolPtr(false),
		DevCrawlLimit:  0,
		ImagesDir:      "strain_images",
		ImageWidth:     512,
		BucketPrefix:   "strains/",
	}
}

// engineFromConfig reads the engine from configuration, falling back to defaults for anything unset.
func engineFromConfig(c *configService) Engine {
	eng := Engine{
		BaseUrl:        c.GetString("BASE_URL"),
		UserAgent:      c.GetString("USER_AGENT"),
		Timeout:        c.GetDuration("REQUEST_TIMEOUT"),
		RequestDelay:   c.GetDuration("REQUEST_DELAY"),
		UploadDelay:    c.GetDuration("UPLOAD_DELAY"),
		CheckRobotsTxt: boolPtr(c.GetBool("CHECK_ROBOTS_TXT")),
		StrictCatalog:  boolPtr(c.GetBool("STRICT_CATALOG")),
		ArchiveHtml:    boolPtr(c.GetBool("ARCHIVE_HTML")),
		ImagesDir:      c.GetString("IMAGES_DIR"),
		ImageWidth:     c.GetInt("IMAGE_WIDTH"),
		Bucket:         c.GetString("GCS_BUCKET"),
		BucketPrefix:   c.GetString("GCS_PREFIX"),
	}
	if c.isLocalEnv() {
		eng.DevCrawlLimit = c.GetInt("DEV_CRAWL_LIMIT")
	}
	def := getDefaultEngine()
	overrideEngineDefaults(&def, &eng)
	// a zero delay in config disables the pause, so it cannot go through the override
	if c.IsSet("REQUEST_DELAY") {
		def.RequestDelay = max(eng.RequestDelay, 0)
	}
	if c.IsSet("UPLOAD_DELAY") {
		def.UploadDelay = max(eng.UploadDelay, 0)
	}
	return def
}

func overrideEngineDefaults(defaultEngine *Engine, eng *Engine) {
	if eng.BaseUrl != "" {
		defaultEngine.BaseUrl = strings.TrimRight(eng.BaseUrl, "/")
	}
	if eng.UserAgent != "" {
		defaultEngine.UserAgent = eng.UserAgent
	}
	if eng.Timeout > 0 {
		defaultEngine.Timeout = eng.Timeout
	}
	if eng.RequestDelay > 0 {
		defaultEngine.RequestDelay = eng.RequestDelay
	}
	if eng.UploadDelay > 0 {
		defaultEngine.UploadDelay = eng.UploadDelay
	}
	if eng.CheckRobotsTxt != nil {
		defaultEngine.CheckRobotsTxt = eng.CheckRobotsTxt
	}
	if eng.StrictCatalog != nil {
		defaultEngine.StrictCatalog = eng.StrictCatalog
	}
	if eng.ArchiveHtml != nil {
		defaultEngine.ArchiveHtml = eng.ArchiveHtml
	}
	if eng.DevCrawlLimit > 0 {
		defaultEngine.DevCrawlLimit = eng.DevCrawlLimit
	}
	if eng.ImagesDir != "" {
		defaultEngine.ImagesDir = eng.ImagesDir
	}
	if eng.ImageWidth > 0 {
		defaultEngine.ImageWidth = eng.ImageWidth
	}
	if eng.Bucket != "" {
		defaultEngine.Bucket = eng.Bucket
	}
	if eng.BucketPrefix != "" {
		defaultEngine.BucketPrefix = eng.BucketPrefix
	}
	if eng.PageDumpDir != "" {
		defaultEngine.PageDumpDir = eng.PageDumpDir
	}
}

// SetRequestDelay sets the pause between detail fetches and catalog pages. Zero disables it.
func (app *Crawler) SetRequestDelay(d time.Duration) *Crawler {
	app.engine.RequestDelay = d
	app.throttle = newThrottle(d)
	return app
}

func (app *Crawler) SetUploadDelay(d time.Duration) *Crawler {
	app.engine.UploadDelay = d
	return app
}

func (app *Crawler) SetCrawlLimit(crawlLimit int) *Crawler {
	app.engine.DevCrawlLimit = crawlLimit
	return app
}

// SetTimeout bounds every later fetch, including on the already built fetcher.
func (app *Crawler) SetTimeout(timeout time.Duration) *Crawler {
	app.engine.Timeout = timeout
	if hf, ok := app.fetcher.(*httpFetcher); ok {
		hf.client.SetTimeout(timeout)
	}
	return app
}

func (app *Crawler) SetImagesDir(dir string) *Crawler {
	app.engine.ImagesDir = dir
	return app
}

func (app *Crawler) SetStrictCatalog(strict bool) *Crawler {
	app.engine.StrictCatalog = &strict
	return app
}

func boolPtr(b bool) *bool { return &b }

func isTrue(b *bool) bool { return b != nil && *b }
