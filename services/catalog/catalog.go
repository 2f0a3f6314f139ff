// Package catalog turns scraped bulletin pages into rows in a
// relational course catalog. The scraper side (lib/scrapers/bulletin)
// produces raw field sets; this package normalizes them, upserts them
// page by page, and keeps per-run bookkeeping so stale entries can be
// told apart from current ones.
package catalog

import "time"

// CourseRecord is one catalog entry keyed by (SubjectCode,
// CourseNumber). A record is created the first time a course is
// observed and updated on every later observation; nothing deletes
// records automatically, disappearance shows up as a stale LastSeenAt.
type CourseRecord struct {
	SubjectCode  string
	CourseNumber string
	Title        string
	Description  string
	// CreditsMin == CreditsMax for fixed-credit courses. Both stay 0
	// when the credit wording was unparseable; CreditText always keeps
	// the original wording either way.
	CreditsMin float64
	CreditsMax float64
	CreditText string
	// Prerequisites holds the raw prerequisite sentences; PrereqCodes
	// the course designators extracted from them when unambiguous.
	Prerequisites string
	PrereqCodes   []string
	// Attributes holds the remaining block-extra lines: general
	// education flags, cross-listing notes, degree attributes.
	Attributes  string
	SourceURL   string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// ScrapeRun records one pipeline invocation. FinishedAt stays zero
// while the run is in flight or if it was killed hard.
type ScrapeRun struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	PagesFetched    int64
	PagesFailed     int64
	RecordsUpserted int64
	RecordsSkipped  int64
}
