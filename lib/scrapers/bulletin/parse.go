package bulletin

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bulletin-scraper/lib/textutil"
)

// ParseCourses extracts every course block from a subject page. The
// bulletin wraps them all in div.sc_sccoursedescs; a page without that
// container is not a subject page, reported as *ParseError so layout
// drift never reads as an empty catalog. A container with zero blocks
// is a legitimately empty subject: ([], nil).
func ParseCourses(page []byte, sourceURL string) ([]RawCourse, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(page))
	if err != nil {
		return nil, &ParseError{URL: sourceURL, Missing: "parsable html"}
	}

	container := doc.Find("div.sc_sccoursedescs")
	if container.Length() == 0 {
		return nil, &ParseError{URL: sourceURL, Missing: "div.sc_sccoursedescs course list"}
	}

	var courses []RawCourse
	container.Find("div.courseblock").Each(func(_ int, block *goquery.Selection) {
		courses = append(courses, parseBlock(block, sourceURL))
	})
	return courses, nil
}

func parseBlock(block *goquery.Selection, sourceURL string) RawCourse {
	raw := RawCourse{SourceURL: sourceURL}

	header := block.Find("div.courseblocktitle_bubble")
	if header.Length() > 0 {
		var parts []string
		header.Find("div.course_code span").Each(func(_ int, span *goquery.Selection) {
			if text := textutil.Collapse(span.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		raw.Code = strings.Join(parts, " ")
		if raw.Code == "" {
			raw.Code = textutil.Collapse(header.Find("div.course_code").Text())
		}
		raw.Title = textutil.Collapse(header.Find("div.course_codetitle").Text())
		raw.CreditText = textutil.Collapse(header.Find("div.course_credits").Text())
	} else {
		// pre-bubble markup puts "CODE NUM: Title. N Credits" in one
		// header element; the normalizer splits it apart
		raw.Code = textutil.Collapse(block.Find(".courseblocktitle").First().Text())
	}

	var desc []string
	block.Find("div.courseblockdesc p").Each(func(_ int, p *goquery.Selection) {
		if text := textutil.Collapse(p.Text()); text != "" {
			desc = append(desc, text)
		}
	})
	if len(desc) == 0 {
		if text := textutil.Collapse(block.Find("div.courseblockdesc").Text()); text != "" {
			desc = append(desc, text)
		}
	}
	raw.Description = strings.Join(desc, "\n")

	block.Find("div.courseblockextra").Each(func(_ int, extra *goquery.Selection) {
		paras := extra.Find("p")
		if paras.Length() == 0 {
			if text := textutil.Collapse(extra.Text()); text != "" {
				raw.Extras = append(raw.Extras, text)
			}
			return
		}
		paras.Each(func(_ int, p *goquery.Selection) {
			if text := textutil.Collapse(p.Text()); text != "" {
				raw.Extras = append(raw.Extras, text)
			}
		})
	})

	return raw
}
