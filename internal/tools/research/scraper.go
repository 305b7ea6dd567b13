package research

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"vibetex/internal/config"
	"vibetex/internal/logging"
	"vibetex/internal/perception"
	"vibetex/internal/tools"
)

// Name is the registry name of the tool.
const Name = "scrape_web_page"

// ErrInvalidURL is returned for URLs that fail validation.
var ErrInvalidURL = errors.New("invalid URL format")

// http(s), then a domain name, localhost, or dotted IPv4, an optional port,
// and an optional path.
var urlPattern = regexp.MustCompile(`(?i)^https?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,63}\.?|localhost|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// ValidURL reports whether url looks like a fetchable web address.
func ValidURL(url string) bool {
	return urlPattern.MatchString(url)
}

const summarySystemPrompt = `You summarize web pages for someone writing a LaTeX document.
Return a short plain-text summary: the main points as a few sentences or a short list, with key facts, numbers, and names.
Do not use markdown headings. Do not invent facts that are not on the page.`

// Result is the decoded output of scrape_web_page.
type Result struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Summary string `json:"summary"`
	Message string `json:"message"`
	Source  string `json:"source"`
	Cached  bool   `json:"cached,omitempty"`
}

// Options configures a Scraper.
type Options struct {
	MaxBytes int
	Source   string
}

// Scraper backs the scrape_web_page tool.
type Scraper struct {
	llm     perception.LLMClient
	fetcher Fetcher
	cache   *SummaryCache
	opts    Options
}

// NewScraper creates a scraper. A nil fetcher makes the summary model read
// the URL itself, which suits models with built-in browsing.
func NewScraper(llm perception.LLMClient, fetcher Fetcher, cache *SummaryCache, opts Options) *Scraper {
	if cache == nil {
		cache = NewSummaryCache(256, 0)
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 32 * 1024
	}
	if opts.Source == "" {
		opts.Source = "http"
	}
	return &Scraper{llm: llm, fetcher: fetcher, cache: cache, opts: opts}
}

// NewScraperFromConfig builds the fetcher and cache the config asks for. The
// returned close func releases a browser when one was started.
func NewScraperFromConfig(llm perception.LLMClient, cfg *config.Config) (*Scraper, func() error) {
	var (
		fetcher Fetcher
		source  = "http"
		closeFn = func() error { return nil }
	)
	if cfg.Research.UseBrowser {
		bf := NewBrowserFetcher(cfg.Research.BrowserURL, cfg.GetFetchTimeout())
		fetcher, source, closeFn = bf, "browser", bf.Close
	} else {
		fetcher = NewHTTPFetcher(nil, cfg.Research.UserAgent, cfg.GetFetchTimeout())
	}
	cache := NewSummaryCache(256, cfg.GetCacheTTL())
	return NewScraper(llm, fetcher, cache, Options{MaxBytes: cfg.Research.MaxBytes, Source: source}), closeFn
}

// Cache exposes the summary cache.
func (s *Scraper) Cache() *SummaryCache { return s.cache }

// Tool returns the registry entry.
func (s *Scraper) Tool() *tools.Tool {
	return &tools.Tool{
		Name:        Name,
		Description: "Scrape and summarize the content of a web page. Use this when the user provides a web link",
		Category:    tools.CategoryResearch,
		Execute:     s.execute,
		Schema: tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {Type: "string", Description: "The URL of the web page to scrape and summarize"},
			},
		},
	}
}

func (s *Scraper) execute(ctx context.Context, args map[string]any) (string, error) {
	url, err := tools.RequiredString(args, "url")
	if err != nil {
		return "", err
	}
	if !ValidURL(url) {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	if entry, ok := s.cache.Get(url); ok {
		logging.ResearchDebug("Summary cache hit: %s (source=%s)", url, entry.Source)
		return tools.EncodeResult(Result{
			Success: true,
			URL:     url,
			Summary: entry.Value,
			Message: "Successfully scraped and summarized: " + url,
			Source:  entry.Source,
			Cached:  true,
		})
	}

	source := s.opts.Source
	user := "Summarize the key points of this page: " + url
	if s.fetcher != nil {
		text, err := s.fetcher.Fetch(ctx, url)
		switch {
		case err != nil:
			// The summary model may still be able to read the page itself.
			logging.ResearchWarn("Fetch failed for %s, asking the model directly: %v", url, err)
			source = "model"
		case strings.TrimSpace(text) == "":
			logging.ResearchWarn("Fetched %s but found no text", url)
			source = "model"
		default:
			user = fmt.Sprintf("Summarize the key points of this page: %s\n\nPAGE CONTENT:\n%s", url, truncate(text, s.opts.MaxBytes))
		}
	} else {
		source = "model"
	}

	summary, err := s.llm.CompleteWithSystem(ctx, summarySystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("error scraping URL: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("error scraping URL: empty summary for %s", url)
	}

	s.cache.Set(url, summary, source)
	logging.Research("Summarized %s (%d chars, source=%s)", url, len(summary), source)
	return tools.EncodeResult(Result{
		Success: true,
		URL:     url,
		Summary: summary,
		Message: "Successfully scraped and summarized: " + url,
		Source:  source,
	})
}
