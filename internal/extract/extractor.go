// Package extract turns raw HTML into a page title and clean plain text.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelector lists element kinds that contribute link, script or markup
// noise rather than readable content. They are removed before the body
// text is collected.
const noiseSelector = "a, button, link, script, form, i, input, video, img, textarea, picture, embed, iframe, footer"

// Extractor parses HTML documents.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the document title and the text content of the body
// after noise elements are stripped. A document without a title or a body
// yields empty strings for the missing part.
func (Extractor) Extract(html []byte) (title, body string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(noiseSelector).Remove()
	body = doc.Find("body").Text()
	return title, body, nil
}
