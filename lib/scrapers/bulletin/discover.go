package bulletin

import (
	"bytes"
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"bulletin-scraper/lib/htmlutil"
)

// Categories lists the course-description groupings (undergraduate,
// graduate, law, ...) linked from the descriptions index page. The
// index marks its nav list with an id equal to the page path.
func (c *Client) Categories(ctx context.Context, indexURL string) ([]htmlutil.Anchor, error) {
	ctx, span := tracer.Start(ctx, "client:Categories")
	defer span.End()

	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, err
	}

	page, err := c.Page(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(page))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, &ParseError{URL: indexURL, Missing: "parsable html"}
	}

	list := doc.Find("ul[id='" + base.Path + "']")
	if list.Length() == 0 {
		return nil, &ParseError{URL: indexURL, Missing: "category link list"}
	}

	anchors := htmlutil.Anchors(list.Find("li a"), base)
	span.SetAttributes(attribute.KeyValue{
		Key:   "categories",
		Value: attribute.IntValue(len(anchors)),
	})
	return anchors, nil
}

// Subjects lists the subject pages of one category, e.g. "ACCTG",
// "AERSP", off the category's A-Z sitemap. Letter-index anchors
// ("#A") are skipped by htmlutil.
func (c *Client) Subjects(ctx context.Context, categoryURL string) ([]htmlutil.Anchor, error) {
	ctx, span := tracer.Start(ctx, "client:Subjects")
	defer span.End()

	base, err := url.Parse(categoryURL)
	if err != nil {
		return nil, err
	}

	page, err := c.Page(ctx, categoryURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(page))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, &ParseError{URL: categoryURL, Missing: "parsable html"}
	}

	sitemap := doc.Find("div.az_sitemap")
	if sitemap.Length() == 0 {
		return nil, &ParseError{URL: categoryURL, Missing: "div.az_sitemap subject list"}
	}

	anchors := htmlutil.Anchors(sitemap.Find("ul li a"), base)
	span.SetAttributes(attribute.KeyValue{
		Key:   "subjects",
		Value: attribute.IntValue(len(anchors)),
	})
	return anchors, nil
}
