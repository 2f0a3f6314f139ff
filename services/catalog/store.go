package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"bulletin-scraper/lib/sqlutil"
)

var tracer = otel.Tracer("services/catalog")

type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps an open database handle. driver picks the placeholder
// dialect; pass the same constant that opened the handle.
func NewStore(database *sql.DB, driver string) Store {
	return Store{db: database, driver: driver}
}

const upsertCourseQuery = `
INSERT INTO courses (
    subject_code, course_number, title, description,
    credits_min, credits_max, credit_text,
    prerequisites, prereq_codes, attributes,
    source_url, first_seen_at, last_seen_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (subject_code, course_number) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    credits_min = excluded.credits_min,
    credits_max = excluded.credits_max,
    credit_text = excluded.credit_text,
    prerequisites = excluded.prerequisites,
    prereq_codes = excluded.prereq_codes,
    attributes = excluded.attributes,
    source_url = excluded.source_url,
    last_seen_at = excluded.last_seen_at
`

// UpsertPage writes all records of one page in a single transaction.
// Existing rows keep their first_seen_at; everything else, including
// last_seen_at, takes the new observation. All-or-nothing per page.
func (s Store) UpsertPage(ctx context.Context, records []CourseRecord, seenAt time.Time) error {
	ctx, span := tracer.Start(ctx, "store:UpsertPage")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "records",
		Value: attribute.IntValue(len(records)),
	})

	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StorageError{Op: "begin page transaction", Err: err}
	}
	defer tx.Rollback()

	query := sqlutil.Rebind(s.driver, upsertCourseQuery)
	for _, r := range records {
		_, err := tx.ExecContext(ctx, query,
			r.SubjectCode, r.CourseNumber, r.Title, r.Description,
			r.CreditsMin, r.CreditsMax, r.CreditText,
			r.Prerequisites, strings.Join(r.PrereqCodes, ","), r.Attributes,
			r.SourceURL, seenAt.Unix(), seenAt.Unix(),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return &StorageError{Op: "upsert " + r.SubjectCode + " " + r.CourseNumber, Err: err}
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StorageError{Op: "commit page transaction", Err: err}
	}
	return nil
}

const selectCourseColumns = `subject_code, course_number, title, description,
credits_min, credits_max, credit_text,
prerequisites, prereq_codes, attributes,
source_url, first_seen_at, last_seen_at`

func scanCourse(row interface{ Scan(dest ...any) error }) (CourseRecord, error) {
	var r CourseRecord
	var prereqCodes string
	var firstSeen, lastSeen int64
	err := row.Scan(
		&r.SubjectCode, &r.CourseNumber, &r.Title, &r.Description,
		&r.CreditsMin, &r.CreditsMax, &r.CreditText,
		&r.Prerequisites, &prereqCodes, &r.Attributes,
		&r.SourceURL, &firstSeen, &lastSeen,
	)
	if err != nil {
		return CourseRecord{}, err
	}
	if prereqCodes != "" {
		r.PrereqCodes = strings.Split(prereqCodes, ",")
	}
	r.FirstSeenAt = time.Unix(firstSeen, 0)
	r.LastSeenAt = time.Unix(lastSeen, 0)
	return r, nil
}

func (s Store) Course(ctx context.Context, subject, number string) (CourseRecord, error) {
	ctx, span := tracer.Start(ctx, "store:Course")
	defer span.End()

	query := sqlutil.Rebind(s.driver,
		"SELECT "+selectCourseColumns+" FROM courses WHERE subject_code = ? AND course_number = ?")
	record, err := scanCourse(s.db.QueryRowContext(ctx, query,
		strings.ToUpper(subject), strings.ToUpper(number)))
	if errors.Is(err, sql.ErrNoRows) {
		return CourseRecord{}, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CourseRecord{}, &StorageError{Op: "select course", Err: err}
	}
	return record, nil
}

func (s Store) queryCourses(ctx context.Context, query string, args ...any) ([]CourseRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqlutil.Rebind(s.driver, query), args...)
	if err != nil {
		return nil, &StorageError{Op: "select courses", Err: err}
	}
	defer rows.Close()

	var records []CourseRecord
	for rows.Next() {
		record, err := scanCourse(rows)
		if err != nil {
			return nil, &StorageError{Op: "scan course", Err: err}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "select courses", Err: err}
	}
	return records, nil
}

func (s Store) AllCourses(ctx context.Context) ([]CourseRecord, error) {
	ctx, span := tracer.Start(ctx, "store:AllCourses")
	defer span.End()

	return s.queryCourses(ctx,
		"SELECT "+selectCourseColumns+" FROM courses ORDER BY subject_code, course_number")
}

func (s Store) CoursesBySubject(ctx context.Context, subject string) ([]CourseRecord, error) {
	ctx, span := tracer.Start(ctx, "store:CoursesBySubject")
	defer span.End()

	return s.queryCourses(ctx,
		"SELECT "+selectCourseColumns+" FROM courses WHERE subject_code = ? ORDER BY course_number",
		strings.ToUpper(subject))
}

// StaleCourses lists records not observed since the given time,
// usually the start of the latest run. Staleness is the only deletion
// signal this schema has; rows never disappear on their own.
func (s Store) StaleCourses(ctx context.Context, since time.Time) ([]CourseRecord, error) {
	ctx, span := tracer.Start(ctx, "store:StaleCourses")
	defer span.End()

	return s.queryCourses(ctx,
		"SELECT "+selectCourseColumns+" FROM courses WHERE last_seen_at < ? ORDER BY subject_code, course_number",
		since.Unix())
}

func (s Store) CountCourses(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "store:CountCourses")
	defer span.End()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses").Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, &StorageError{Op: "count courses", Err: err}
	}
	return count, nil
}

func (s Store) BeginRun(ctx context.Context, startedAt time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "store:BeginRun")
	defer span.End()

	id := uuid.NewString()
	query := sqlutil.Rebind(s.driver, "INSERT INTO scrape_runs (id, started_at) VALUES (?, ?)")
	_, err := s.db.ExecContext(ctx, query, id, startedAt.Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &StorageError{Op: "insert run", Err: err}
	}
	return id, nil
}

func (s Store) FinishRun(ctx context.Context, run ScrapeRun) error {
	ctx, span := tracer.Start(ctx, "store:FinishRun")
	defer span.End()

	var finishedAt int64
	if !run.FinishedAt.IsZero() {
		finishedAt = run.FinishedAt.Unix()
	}

	query := sqlutil.Rebind(s.driver, `
UPDATE scrape_runs SET
    finished_at = ?,
    pages_fetched = ?,
    pages_failed = ?,
    records_upserted = ?,
    records_skipped = ?
WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, query,
		finishedAt,
		run.PagesFetched, run.PagesFailed,
		run.RecordsUpserted, run.RecordsSkipped,
		run.ID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StorageError{Op: "finish run", Err: err}
	}
	return nil
}

func (s Store) Runs(ctx context.Context, limit int64) ([]ScrapeRun, error) {
	ctx, span := tracer.Start(ctx, "store:Runs")
	defer span.End()

	query := sqlutil.Rebind(s.driver, `
SELECT id, started_at, finished_at, pages_fetched, pages_failed, records_upserted, records_skipped
FROM scrape_runs ORDER BY started_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StorageError{Op: "select runs", Err: err}
	}
	defer rows.Close()

	var runs []ScrapeRun
	for rows.Next() {
		var run ScrapeRun
		var startedAt, finishedAt int64
		err := rows.Scan(&run.ID, &startedAt, &finishedAt,
			&run.PagesFetched, &run.PagesFailed,
			&run.RecordsUpserted, &run.RecordsSkipped)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &StorageError{Op: "scan run", Err: err}
		}
		run.StartedAt = time.Unix(startedAt, 0)
		if finishedAt != 0 {
			run.FinishedAt = time.Unix(finishedAt, 0)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "select runs", Err: err}
	}
	return runs, nil
}
