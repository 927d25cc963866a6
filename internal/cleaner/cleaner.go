// Package cleaner transforms raw legislation HTML into normalized text and
// structured metadata.
//
// The extraction rules are coupled to legislation.gov.uk markup on purpose:
// this package is the single place to change when the source format drifts.
package cleaner

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoContent is returned when a page yields no extractable body text.
var ErrNoContent = errors.New("no extractable body text")

// Metadata holds the structured fields extracted from a legislation page.
// Fields that cannot be located are left empty rather than failing the
// document; downstream treats empty metadata as valid but lower-confidence.
type Metadata struct {
	Title           string
	Identifier      string // e.g. "2024 No. 76"
	DocType         string // uksi, ukpga, asp, nisi, ...
	Year            int
	Number          int
	DateMade        string
	ComingIntoForce string
	LegislationType string // "Statutory Instrument", "Public General Act", ...
	SourceURL       string
}

// Result is the output of a successful clean.
type Result struct {
	// Text is the normalized full text. Paragraph boundaries are preserved
	// as "\n\n"; this is the split unit the chunker relies on.
	Text     string
	Metadata Metadata
}

var (
	// boilerplateSelector matches markup stripped before text extraction.
	boilerplateSelector = "script, style, nav, header, footer, img, noscript"

	// annotationClassPattern matches classes of non-essential annotations.
	annotationClassPattern = regexp.MustCompile(`(footnote|annotation|editor-note|nav-link|sig-block)`)

	// citationPattern extracts the official citation from a document URL path.
	citationPattern = regexp.MustCompile(`/(ukpga|uksi|ukci|asp|ssi|nisi|nisr|wsi|anaw)/(\d{4})/(\d+)`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// legislationTypes maps URL type codes to display names.
var legislationTypes = map[string]string{
	"uksi":  "Statutory Instrument",
	"ukpga": "Public General Act",
	"ukci":  "Church Instrument",
	"asp":   "Act of the Scottish Parliament",
	"ssi":   "Scottish Statutory Instrument",
	"nisi":  "Northern Ireland Order in Council",
	"nisr":  "Northern Ireland Statutory Rule",
	"wsi":   "Wales Statutory Instrument",
	"anaw":  "Act of the National Assembly for Wales",
}

// Clean parses raw HTML and returns normalized text plus metadata.
// It is a pure transform: no network or store access.
func Clean(html []byte, sourceURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	meta := extractMetadata(doc, sourceURL)

	doc.Find(boilerplateSelector).Remove()

	body := doc.Find("main#content").First()
	if body.Length() == 0 {
		body = doc.Find("div.content").First()
	}
	if body.Length() == 0 {
		body = doc.Selection.Find("body").First()
	}
	if body.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, sourceURL)
	}

	body.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if annotationClassPattern.MatchString(class) {
			s.Remove()
		}
	})

	text := normalizeText(body)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, sourceURL)
	}

	return &Result{Text: text, Metadata: meta}, nil
}

// normalizeText extracts paragraph-structured text from the body selection.
// Each block element becomes one paragraph with collapsed whitespace;
// paragraphs are joined with "\n\n".
func normalizeText(body *goquery.Selection) string {
	var paragraphs []string
	body.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, dd, dt").Each(func(_ int, s *goquery.Selection) {
		// Skip containers whose text is fully covered by nested block elements.
		if s.Find("p, li, blockquote").Length() > 0 {
			return
		}
		p := collapseWhitespace(s.Text())
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	})

	if len(paragraphs) == 0 {
		// Pages without block structure still get a single paragraph.
		if p := collapseWhitespace(body.Text()); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	return strings.Join(paragraphs, "\n\n")
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// extractMetadata pulls title, citation, and date fields from known markers.
func extractMetadata(doc *goquery.Document, sourceURL string) Metadata {
	meta := Metadata{SourceURL: sourceURL}

	// Title: og:title, then h1.title, then <title> minus the site suffix.
	if v, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		meta.Title = strings.TrimSpace(v)
	} else if h1 := doc.Find("h1.title").First(); h1.Length() > 0 {
		meta.Title = collapseWhitespace(h1.Text())
	} else if title := doc.Find("title").First(); title.Length() > 0 {
		meta.Title = strings.TrimSpace(strings.TrimSuffix(collapseWhitespace(title.Text()), " - Legislation.gov.uk"))
	}

	// Citation: prefer the canonical link, fall back to the source URL.
	citationURL := sourceURL
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && href != "" {
		citationURL = href
	}
	if m := citationPattern.FindStringSubmatch(citationURL); m != nil {
		meta.DocType = m[1]
		meta.Year, _ = strconv.Atoi(m[2])
		meta.Number, _ = strconv.Atoi(m[3])
		meta.Identifier = fmt.Sprintf("%s No. %s", m[2], m[3])
		meta.LegislationType = legislationTypes[m[1]]
	}

	// Dates live in definition lists on the cover page.
	doc.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		label := collapseWhitespace(dt.Text())
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		value := collapseWhitespace(dd.Text())
		switch {
		case strings.Contains(label, "Made"):
			if meta.DateMade == "" {
				meta.DateMade = value
			}
		case strings.Contains(label, "Coming into force"):
			if meta.ComingIntoForce == "" {
				meta.ComingIntoForce = value
			}
		}
	})

	return meta
}

// DocumentID derives the stable document identifier from a source URL,
// e.g. https://www.legislation.gov.uk/uksi/2024/76/made -> "uksi/2024/76".
// URLs without a recognizable citation fall back to the sanitized URL path.
func DocumentID(sourceURL string) string {
	if m := citationPattern.FindStringSubmatch(sourceURL); m != nil {
		return fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])
	}
	u, err := url.Parse(sourceURL)
	if err != nil || u.Path == "" {
		return sourceURL
	}
	return strings.Trim(u.Path, "/")
}
