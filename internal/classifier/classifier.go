package classifier

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/FlorianSp2000/tuebingen-search-engine/internal/crawler"
	"github.com/FlorianSp2000/tuebingen-search-engine/internal/frontier"
)

// Default patterns for the Tübingen corpus.
const (
	DefaultTopicPattern   = `(?i)t(ü|ue|u)binge[nr]`
	DefaultEnglishPattern = `(?i)^en([-_](us|gb|de))?$`
)

// Frontier is the subset of the frontier store the classifier mutates.
type Frontier interface {
	AddOrImprove(canonicalURL string, priority frontier.Priority, depth int, root string) frontier.AddResult
	Update(docID string, patch frontier.Patch) bool
}

// LinkValidator resolves and filters discovered links.
type LinkValidator interface {
	Normalize(raw string) (string, bool)
	Resolve(base, href string) (string, bool)
}

// Config holds the classification patterns.
type Config struct {
	TopicPattern   string
	EnglishPattern string
}

// Result summarises one classified page.
type Result struct {
	Relevant bool
	English  bool
	// Proposed counts links offered to the frontier, including the /en candidate.
	Proposed int
	// Inserted counts proposals that created a new frontier record.
	Inserted int
}

// Classifier tests pages against the topic and language patterns and
// enqueues their links.
type Classifier struct {
	topic     *regexp.Regexp
	english   *regexp.Regexp
	validator LinkValidator
	logger    *zap.Logger
}

// New compiles the configured patterns. Empty patterns fall back to the defaults.
func New(cfg Config, validator LinkValidator, logger *zap.Logger) (*Classifier, error) {
	if validator == nil {
		return nil, fmt.Errorf("classifier requires a link validator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	topicPattern := strings.TrimSpace(cfg.TopicPattern)
	if topicPattern == "" {
		topicPattern = DefaultTopicPattern
	}
	englishPattern := strings.TrimSpace(cfg.EnglishPattern)
	if englishPattern == "" {
		englishPattern = DefaultEnglishPattern
	}
	topic, err := regexp.Compile(topicPattern)
	if err != nil {
		return nil, fmt.Errorf("compile topic pattern: %w", err)
	}
	english, err := regexp.Compile(englishPattern)
	if err != nil {
		return nil, fmt.Errorf("compile english pattern: %w", err)
	}
	return &Classifier{
		topic:     topic,
		english:   english,
		validator: validator,
		logger:    logger,
	}, nil
}

// Classify inspects page, records its features on the frontier and proposes
// every valid outgoing link at req.Depth+1 under req.Root. Irrelevant pages
// propose nothing.
func (c *Classifier) Classify(store Frontier, req frontier.Request, page crawler.Page) Result {
	doc := parse(page.Body)
	if doc == nil || !c.topic.MatchString(doc.Text()) {
		return Result{}
	}

	res := Result{Relevant: true, English: c.isEnglish(doc)}
	base := page.FinalURL
	if base == "" {
		base = req.URL
	}
	depth := req.Depth + 1

	var priority frontier.Priority
	if res.English {
		priority = frontier.PriorityHigh
		store.Update(req.DocID, frontier.Patch{
			FeaturesTubingen: frontier.Ptr(true),
			FeaturesEnglish:  frontier.Ptr(true),
		})
	} else {
		priority = frontier.PriorityLow
		store.Update(req.DocID, frontier.Patch{FeaturesTubingen: frontier.Ptr(true)})
		if candidate, ok := c.englishVariant(base); ok {
			res.propose(store.AddOrImprove(candidate, frontier.PriorityHigh, depth, req.Root))
		}
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		link, ok := c.validator.Resolve(base, strings.TrimSpace(href))
		if !ok {
			return
		}
		res.propose(store.AddOrImprove(link, priority, depth, req.Root))
	})

	c.logger.Debug("page classified",
		zap.String("doc_id", req.DocID),
		zap.Bool("english", res.English),
		zap.Int("proposed", res.Proposed),
		zap.Int("inserted", res.Inserted),
	)
	return res
}

func (r *Result) propose(added frontier.AddResult) {
	r.Proposed++
	if added == frontier.Inserted {
		r.Inserted++
	}
}

func (c *Classifier) isEnglish(doc *goquery.Document) bool {
	english := false
	doc.Find("html[lang]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		lang, _ := sel.Attr("lang")
		english = c.english.MatchString(strings.TrimSpace(lang))
		return !english
	})
	return english
}

// englishVariant returns the site's /en page on the same origin.
func (c *Classifier) englishVariant(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	return c.validator.Normalize(u.Scheme + "://" + u.Host + "/en")
}

// parse degrades malformed markup to nil; callers treat nil as an empty document.
func parse(body []byte) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	return doc
}
