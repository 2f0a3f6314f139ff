package catalog

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"bulletin-scraper/lib/scrapers/bulletin"
	"bulletin-scraper/lib/textutil"
)

// course numbers look like "211", "497H", "83S"
var courseNumberRegex = regexp.MustCompile(`^[0-9][0-9A-Z]*$`)

// "4 Credits", "1-3 Credits", "1 to 3 Credits", en/em dash variants
var creditsRegex = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)(?:\s*(?:-|–|—|to)\s*([0-9]+(?:\.[0-9]+)?))?\s*credits?\b`)

// bare "3" or "1-3" with no credit wording at all
var bareCreditsRegex = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)(?:\s*(?:-|–|—|to)\s*([0-9]+(?:\.[0-9]+)?))?$`)

// "3 Credits/Maximum of 9" raises the repeatable-course ceiling
var creditMaximumRegex = regexp.MustCompile(`(?i)maximum\s+of\s+([0-9]+(?:\.[0-9]+)?)`)

// trailing credit sentence of a legacy combined header
var headerCreditsRegex = regexp.MustCompile(`(?i)\.?\s*([0-9]+(?:\.[0-9]+)?(?:\s*(?:-|–|—|to)\s*[0-9]+(?:\.[0-9]+)?)?\s*credits?[^a-z]*)$`)

// course designators referenced inside prerequisite text
var prereqCodeRegex = regexp.MustCompile(`\b([A-Z][A-Z&]{1,7})\s+([0-9]{1,3}[A-Z]{0,2})\b`)

// ParseCredits reads bulletin credit wording into a min/max pair.
// Fixed values give min == max; "Maximum of N" ceilings raise max.
// ok is false when the wording has no leading amount at all.
func ParseCredits(text string) (min, max float64, ok bool) {
	text = textutil.Collapse(text)
	if text == "" {
		return 0, 0, false
	}

	m := creditsRegex.FindStringSubmatch(text)
	if m == nil {
		m = bareCreditsRegex.FindStringSubmatch(text)
	}
	if m == nil {
		return 0, 0, false
	}

	min, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	max = min
	if m[2] != "" {
		max, err = strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, 0, false
		}
	}
	if mm := creditMaximumRegex.FindStringSubmatch(text); mm != nil {
		if ceiling, err := strconv.ParseFloat(mm[1], 64); err == nil && ceiling > max {
			max = ceiling
		}
	}
	if max < min {
		min, max = max, min
	}
	return min, max, true
}

func splitCode(code string) (subject, number string, err error) {
	fields := strings.Fields(strings.ToUpper(code))
	if len(fields) < 2 {
		return "", "", &ValidationError{
			Field:  "code",
			Reason: "expected \"SUBJECT NUMBER\", got " + strconv.Quote(code),
		}
	}
	number = fields[len(fields)-1]
	if !courseNumberRegex.MatchString(number) {
		return "", "", &ValidationError{
			Field:  "code",
			Reason: strconv.Quote(number) + " is not a course number",
		}
	}
	subject = strings.Join(fields[:len(fields)-1], " ")
	return subject, number, nil
}

func extractCourseCodes(text string) []string {
	matches := prereqCodeRegex.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var codes []string
	for _, m := range matches {
		code := m[1] + " " + m[2]
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// Normalize turns one scraped block into a storable CourseRecord.
// It is idempotent: feeding an already-normalized record's fields back
// through produces the same record. A *ValidationError means no
// natural key could be established and the record must be skipped.
func Normalize(ctx context.Context, raw bulletin.RawCourse) (CourseRecord, error) {
	code := textutil.Collapse(raw.Code)
	title := textutil.Collapse(raw.Title)
	creditText := textutil.Collapse(raw.CreditText)

	// legacy combined header: "A E E 100: Intro to Ag Education. 3 Credits."
	if title == "" {
		if i := strings.Index(code, ":"); i >= 0 {
			title = textutil.Collapse(code[i+1:])
			code = textutil.Collapse(code[:i])
			if loc := headerCreditsRegex.FindStringSubmatchIndex(title); loc != nil {
				if creditText == "" {
					creditText = strings.Trim(title[loc[2]:loc[3]], " .")
				}
				title = strings.TrimRight(title[:loc[0]], ". ")
			}
		}
	}

	subject, number, err := splitCode(code)
	if err != nil {
		return CourseRecord{}, err
	}
	if title == "" {
		return CourseRecord{}, &ValidationError{Field: "title", Reason: "empty"}
	}

	description := textutil.Collapse(raw.Description)
	creditsMin, creditsMax, creditsOK := ParseCredits(creditText)
	if creditText != "" && !creditsOK && !strings.HasSuffix(description, creditText) {
		slog.WarnContext(ctx, "unparseable credit wording kept as text",
			"code", code, "credits", creditText)
		description = textutil.Collapse(description + " " + creditText)
	}

	var prereqLines, attrLines []string
	for _, extra := range raw.Extras {
		line := textutil.Collapse(extra)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "prerequisite") ||
			strings.Contains(lower, "corequisite") ||
			strings.Contains(lower, "concurrent") {
			prereqLines = append(prereqLines, line)
			continue
		}
		attrLines = append(attrLines, line)
	}
	prerequisites := strings.Join(prereqLines, "\n")

	return CourseRecord{
		SubjectCode:   subject,
		CourseNumber:  number,
		Title:         title,
		Description:   description,
		CreditsMin:    creditsMin,
		CreditsMax:    creditsMax,
		CreditText:    creditText,
		Prerequisites: prerequisites,
		PrereqCodes:   extractCourseCodes(prerequisites),
		Attributes:    strings.Join(attrLines, "\n"),
		SourceURL:     raw.SourceURL,
	}, nil
}
