package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/OFFIS-RIT/graphlearn/internal/util"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Mode selects how page text is extracted.
type Mode string

const (
	// ModeParagraphs joins every <p> of the primary content region.
	ModeParagraphs Mode = "paragraphs"
	// ModeReadability renders the main article found by readability.
	ModeReadability Mode = "readability"
)

const (
	DefaultBaseURL   = "https://en.wikipedia.org/wiki/"
	DefaultMaxChars  = 10000
	DefaultUserAgent = "graphlearn/1.0 (knowledge graph builder)"
	maxPageBytes     = 10 << 20
)

// WikipediaScraper implements loader.TopicScraper against a wiki-style
// reference source that serves one page per topic.
type WikipediaScraper struct {
	baseURL   string
	userAgent string
	mode      Mode
	maxChars  int
	timeout   time.Duration

	client  *http.Client
	limiter *rate.Limiter
	group   singleflight.Group
}

// WikipediaScraperParams configures a WikipediaScraper. Zero values select
// the defaults. RatePerSecond <= 0 disables rate limiting.
type WikipediaScraperParams struct {
	BaseURL       string
	UserAgent     string
	Mode          Mode
	MaxChars      int
	RatePerSecond float64
	Timeout       time.Duration
	HTTPClient    *http.Client
}

func NewWikipediaScraper(params WikipediaScraperParams) *WikipediaScraper {
	s := &WikipediaScraper{
		baseURL:   params.BaseURL,
		userAgent: params.UserAgent,
		mode:      params.Mode,
		maxChars:  params.MaxChars,
		timeout:   params.Timeout,
		client:    params.HTTPClient,
	}
	if s.baseURL == "" {
		s.baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(s.baseURL, "/") {
		s.baseURL += "/"
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.mode == "" {
		s.mode = ModeParagraphs
	}
	if s.maxChars <= 0 {
		s.maxChars = DefaultMaxChars
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if params.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(params.RatePerSecond), 1)
	}
	return s
}

// TopicURL maps a topic onto its page URL. Every whitespace rune becomes '_'.
func TopicURL(baseURL, topic string) string {
	title := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(topic))
	return baseURL + url.PathEscape(title)
}

// Scrape implements loader.TopicScraper. Concurrent calls for the same topic
// share one fetch, which is bounded by the scraper timeout and not by the
// context of the caller that started it. A caller whose ctx ends first gets "".
func (s *WikipediaScraper) Scrape(ctx context.Context, topic string) string {
	if strings.TrimSpace(topic) == "" {
		return ""
	}
	pageURL := TopicURL(s.baseURL, topic)

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(pageURL, func() (any, error) {
		return s.scrape(shared, pageURL), nil
	})
	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		logger.Debug("[Scraper] Caller gave up waiting", "url", pageURL, "err", ctx.Err())
		return ""
	}
}

func (s *WikipediaScraper) scrape(ctx context.Context, pageURL string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Scraper] Recovered from panic", "url", pageURL, "panic", r)
			text = ""
		}
	}()

	start := time.Now()
	text, err := s.fetch(ctx, pageURL)
	if err != nil {
		logger.Warn("[Scraper] Failed to scrape topic", "url", pageURL, "err", err)
		return ""
	}
	text = util.TruncateRunes(text, s.maxChars)
	logger.Debug("[Scraper] Topic scraped", "url", pageURL, "chars", len(text), "duration", time.Since(start))
	return text
}

func (s *WikipediaScraper) fetch(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	if s.mode == ModeReadability {
		return readableText(body, resp.Request.URL)
	}
	return paragraphText(body)
}

// paragraphText joins the text of every paragraph inside #bodyContent, or of
// the whole document when that region is missing.
func paragraphText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	root := doc.Find("#bodyContent").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var parts []string
	root.Find("p").Each(func(_ int, p *goquery.Selection) {
		parts = append(parts, p.Text())
	})
	return strings.Join(parts, "\n"), nil
}

func readableText(r io.Reader, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", fmt.Errorf("failed to render article text: %w", err)
	}
	return builder.String(), nil
}
