package catalog

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

type csvCourse struct {
	SubjectCode   string  `csv:"subject_code"`
	CourseNumber  string  `csv:"course_number"`
	Title         string  `csv:"title"`
	CreditsMin    float64 `csv:"credits_min"`
	CreditsMax    float64 `csv:"credits_max"`
	CreditText    string  `csv:"credit_text"`
	Description   string  `csv:"description"`
	Prerequisites string  `csv:"prerequisites"`
	PrereqCodes   string  `csv:"prereq_codes"`
	Attributes    string  `csv:"attributes"`
	SourceURL     string  `csv:"source_url"`
	FirstSeenAt   string  `csv:"first_seen_at"`
	LastSeenAt    string  `csv:"last_seen_at"`
}

// ExportCSV writes stored records to w as CSV, whole catalog or one
// subject. Returns the number of rows written.
func ExportCSV(ctx context.Context, store Store, w io.Writer, subject string) (int, error) {
	ctx, span := tracer.Start(ctx, "export:Csv")
	defer span.End()

	var (
		records []CourseRecord
		err     error
	)
	if subject == "" {
		records, err = store.AllCourses(ctx)
	} else {
		records, err = store.CoursesBySubject(ctx, subject)
	}
	if err != nil {
		return 0, err
	}

	rows := make([]csvCourse, len(records))
	for i, r := range records {
		rows[i] = csvCourse{
			SubjectCode:   r.SubjectCode,
			CourseNumber:  r.CourseNumber,
			Title:         r.Title,
			CreditsMin:    r.CreditsMin,
			CreditsMax:    r.CreditsMax,
			CreditText:    r.CreditText,
			Description:   r.Description,
			Prerequisites: r.Prerequisites,
			PrereqCodes:   strings.Join(r.PrereqCodes, ","),
			Attributes:    r.Attributes,
			SourceURL:     r.SourceURL,
			FirstSeenAt:   r.FirstSeenAt.UTC().Format(time.RFC3339),
			LastSeenAt:    r.LastSeenAt.UTC().Format(time.RFC3339),
		}
	}

	err = gocsv.Marshal(&rows, w)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
