package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"bulletin-scraper/lib/htmlutil"
	"bulletin-scraper/lib/scrapers/bulletin"
	"bulletin-scraper/lib/textutil"
)

var meter = otel.Meter("services/catalog")

var (
	pagesCommitted, _  = meter.Int64Counter("pages_committed")
	pagesFailed, _     = meter.Int64Counter("pages_failed")
	recordsUpserted, _ = meter.Int64Counter("records_upserted")
	recordsSkipped, _  = meter.Int64Counter("records_skipped")
)

// RunStore is the slice of Store the pipeline writes through, an
// interface so tests can interpose storage failures. Store is the only
// real implementation.
type RunStore interface {
	BeginRun(ctx context.Context, startedAt time.Time) (string, error)
	FinishRun(ctx context.Context, run ScrapeRun) error
	UpsertPage(ctx context.Context, records []CourseRecord, seenAt time.Time) error
}

type Config struct {
	// BaseURL is the course-descriptions index page. Defaults to the
	// public bulletin.
	BaseURL string
	// SubjectCodes restricts the run to matching subjects, e.g.
	// "ACCTG". Empty scrapes every discovered subject.
	SubjectCodes []string
	// Workers bounds concurrent fetch+parse, clamped to 1..4. The
	// politeness gate keeps the request rate flat regardless of
	// worker count.
	Workers int
	// MinDelay/MaxDelay and Timeout configure the HTTP client, see
	// bulletin.ClientOptions.
	MinDelay time.Duration
	MaxDelay time.Duration
	Timeout  time.Duration
}

// Summary is what a run leaves behind besides rows: counts plus
// per-reason breakdowns of failed pages and skipped records.
type Summary struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	PagesFetched    int64
	PagesFailed     int64
	RecordsUpserted int64
	RecordsSkipped  int64
	Failures        map[string]int64
	Skips           map[string]int64
}

type Pipeline struct {
	store RunStore
}

func NewPipeline(store RunStore) Pipeline {
	return Pipeline{store: store}
}

func failureReason(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	var fetchErr *bulletin.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.Permanent() {
			return "fetch:permanent"
		}
		return "fetch:transient"
	}
	var parseErr *bulletin.ParseError
	if errors.As(err, &parseErr) {
		return "parse:layout"
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		if storageErr.Connectivity() {
			return "storage:connectivity"
		}
		return "storage:statement"
	}
	return "other"
}

func skipReason(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return "validation:" + validationErr.Field
	}
	return "validation"
}

// subject anchors read "Accounting (ACCTG)"
var subjectParenRegex = regexp.MustCompile(`\(([^)]+)\)\s*$`)

func subjectCodeOf(anchor htmlutil.Anchor) string {
	m := subjectParenRegex.FindStringSubmatch(anchor.Name)
	if m == nil {
		return ""
	}
	return textutil.NormalizeCode(m[1])
}

// Run scrapes the bulletin into the store. Individual page failures
// are counted and skipped; only losing the database (or the caller's
// ctx) ends the run early. The returned Summary is valid even when err
// is non-nil.
func (p Pipeline) Run(ctx context.Context, cfg Config) (Summary, error) {
	ctx, span := tracer.Start(ctx, "pipeline:Run")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.BaseURL == "" {
		cfg.BaseURL = bulletin.DefaultBaseURL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Workers > 4 {
		cfg.Workers = 4
	}

	client, err := bulletin.NewClient(bulletin.ClientOptions{
		MinDelay: cfg.MinDelay,
		MaxDelay: cfg.MaxDelay,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		StartedAt: time.Now(),
		Failures:  map[string]int64{},
		Skips:     map[string]int64{},
	}

	runID, err := p.store.BeginRun(ctx, summary.StartedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, err
	}
	summary.RunID = runID
	span.SetAttributes(attribute.KeyValue{
		Key:   "run_id",
		Value: attribute.StringValue(runID),
	})

	pages, err := p.discover(ctx, client, cfg, &summary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		summary.FinishedAt = time.Now()
		p.finishRun(ctx, summary)
		return summary, err
	}
	slog.InfoContext(ctx, "discovered subject pages",
		"run_id", runID, "pages", len(pages), "workers", cfg.Workers)

	type pageResult struct {
		url     string
		records []CourseRecord
		skips   map[string]int64
		err     error
	}

	jobs := make(chan string)
	results := make(chan pageResult)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pageURL := range jobs {
				records, skips, err := p.processPage(ctx, client, pageURL)
				select {
				case results <- pageResult{url: pageURL, records: records, skips: skips, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, pageURL := range pages {
			select {
			case jobs <- pageURL:
			case <-ctx.Done():
				return
			}
		}
	}()

	// single writer: every database write of the run goes through this
	// loop, so page transactions never interleave
	var halt error
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for res := range results {
			if res.err != nil {
				summary.PagesFailed++
				summary.Failures[failureReason(res.err)]++
				pagesFailed.Add(ctx, 1)
				slog.ErrorContext(ctx, "page failed", "url", res.url, "err", res.err)
				continue
			}
			for reason, n := range res.skips {
				summary.Skips[reason] += n
				summary.RecordsSkipped += n
				recordsSkipped.Add(ctx, n)
			}
			err := p.store.UpsertPage(ctx, res.records, time.Now())
			if err != nil {
				summary.PagesFailed++
				summary.Failures[failureReason(err)]++
				pagesFailed.Add(ctx, 1)
				slog.ErrorContext(ctx, "page rolled back", "url", res.url, "err", err)

				var storageErr *StorageError
				if halt == nil && errors.As(err, &storageErr) && storageErr.Connectivity() {
					slog.ErrorContext(ctx, "database connectivity lost, halting run",
						"run_id", runID, "err", err)
					halt = err
					cancel()
				}
				continue
			}
			summary.PagesFetched++
			summary.RecordsUpserted += int64(len(res.records))
			pagesCommitted.Add(ctx, 1)
			recordsUpserted.Add(ctx, int64(len(res.records)))
			slog.InfoContext(ctx, "page committed",
				"url", res.url, "records", len(res.records))
		}
	}()

	wg.Wait()
	close(results)
	<-writerDone

	summary.FinishedAt = time.Now()
	p.finishRun(ctx, summary)

	if halt != nil {
		return summary, fmt.Errorf("run halted: %w", halt)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p Pipeline) finishRun(ctx context.Context, summary Summary) {
	// bookkeeping should survive run cancellation; if the database is
	// gone this fails too and the summary only lives in the logs
	err := p.store.FinishRun(context.WithoutCancel(ctx), ScrapeRun{
		ID:              summary.RunID,
		StartedAt:       summary.StartedAt,
		FinishedAt:      summary.FinishedAt,
		PagesFetched:    summary.PagesFetched,
		PagesFailed:     summary.PagesFailed,
		RecordsUpserted: summary.RecordsUpserted,
		RecordsSkipped:  summary.RecordsSkipped,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to persist run summary", "err", err)
	}
}

func (p Pipeline) discover(ctx context.Context, client *bulletin.Client, cfg Config, summary *Summary) ([]string, error) {
	ctx, span := tracer.Start(ctx, "pipeline:discover")
	defer span.End()

	wanted := make(map[string]struct{}, len(cfg.SubjectCodes))
	for _, code := range cfg.SubjectCodes {
		wanted[textutil.NormalizeCode(code)] = struct{}{}
	}

	categories, err := client.Categories(ctx, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("discover categories: %w", err)
	}

	var pages []string
	seen := make(map[string]struct{})
	for _, category := range categories {
		subjects, err := client.Subjects(ctx, category.Href)
		if err != nil {
			summary.PagesFailed++
			summary.Failures[failureReason(err)]++
			slog.WarnContext(ctx, "skipping category",
				"category", category.Name, "err", err)
			continue
		}
		for _, subject := range subjects {
			if len(wanted) > 0 {
				if _, ok := wanted[subjectCodeOf(subject)]; !ok {
					continue
				}
			}
			if _, ok := seen[subject.Href]; ok {
				continue
			}
			seen[subject.Href] = struct{}{}
			pages = append(pages, subject.Href)
		}
	}
	return pages, nil
}

func (p Pipeline) processPage(ctx context.Context, client *bulletin.Client, pageURL string) ([]CourseRecord, map[string]int64, error) {
	ctx, span := tracer.Start(ctx, "pipeline:processPage")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "url",
		Value: attribute.StringValue(pageURL),
	})

	body, err := client.Page(ctx, pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, nil, err
	}
	raws, err := bulletin.ParseCourses(body, pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse")
		return nil, nil, err
	}
	slog.DebugContext(ctx, "parsed subject page", "url", pageURL, "blocks", len(raws))

	var records []CourseRecord
	skips := make(map[string]int64)
	for _, raw := range raws {
		record, err := Normalize(ctx, raw)
		if err != nil {
			skips[skipReason(err)]++
			slog.WarnContext(ctx, "skipping course block",
				"url", pageURL, "code", raw.Code, "err", err)
			continue
		}
		records = append(records, record)
	}
	return records, skips, nil
}
