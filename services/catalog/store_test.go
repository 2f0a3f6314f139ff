package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
)

const storeTestURL = "https://bulletins.psu.edu/university-course-descriptions/undergraduate/acctg/"

func TestStore(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		_, err := store.Course(ctx, "ACCTG", "211")
		require.ErrorIs(t, err, ErrNotFound)

		count, err := store.CountCourses(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 0, count)
	}

	firstSeen := time.Unix(1700000000, 0)
	{
		err := store.UpsertPage(ctx, []CourseRecord{
			{
				SubjectCode:  "ACCTG",
				CourseNumber: "211",
				Title:        "Financial and Managerial Accounting",
				CreditsMin:   4,
				CreditsMax:   4,
				CreditText:   "4 Credits",
				SourceURL:    storeTestURL,
			},
			{
				SubjectCode:   "ACCTG",
				CourseNumber:  "404",
				Title:         "Managerial Accounting",
				CreditsMin:    3,
				CreditsMax:    3,
				CreditText:    "3 Credits",
				Prerequisites: "Enforced Prerequisite at Enrollment: ACCTG 211 and ECON 102.",
				PrereqCodes:   []string{"ACCTG 211", "ECON 102"},
				SourceURL:     storeTestURL,
			},
		}, firstSeen)
		require.NoError(t, err)

		count, err := store.CountCourses(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, count)
	}

	// a later observation updates fields and bumps last_seen_at,
	// first_seen_at must survive
	secondSeen := firstSeen.Add(time.Hour * 24 * 30)
	{
		err := store.UpsertPage(ctx, []CourseRecord{{
			SubjectCode:  "ACCTG",
			CourseNumber: "211",
			Title:        "Financial and Managerial Accounting for Decision Making",
			CreditsMin:   4,
			CreditsMax:   4,
			CreditText:   "4 Credits",
			SourceURL:    storeTestURL,
		}}, secondSeen)
		require.NoError(t, err)

		count, err := store.CountCourses(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, count)

		course, err := store.Course(ctx, "ACCTG", "211")
		require.NoError(t, err)
		require.Equal(t, "Financial and Managerial Accounting for Decision Making", course.Title)
		require.Equal(t, firstSeen.Unix(), course.FirstSeenAt.Unix())
		require.Equal(t, secondSeen.Unix(), course.LastSeenAt.Unix())
	}

	{
		stale, err := store.StaleCourses(ctx, secondSeen)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		require.Equal(t, "404", stale[0].CourseNumber)
	}

	{
		courses, err := store.CoursesBySubject(ctx, "acctg")
		require.NoError(t, err)
		require.Len(t, courses, 2)
		require.Equal(t, "211", courses[0].CourseNumber)
		require.Equal(t, []string{"ACCTG 211", "ECON 102"}, courses[1].PrereqCodes)

		all, err := store.AllCourses(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
	}
}

func TestStoreRuns(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	startedAt := time.Unix(1700000000, 0)
	id, err := store.BeginRun(ctx, startedAt)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runs, err := store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, id, runs[0].ID)
	require.True(t, runs[0].FinishedAt.IsZero())

	err = store.FinishRun(ctx, ScrapeRun{
		ID:              id,
		StartedAt:       startedAt,
		FinishedAt:      startedAt.Add(time.Minute * 40),
		PagesFetched:    12,
		PagesFailed:     1,
		RecordsUpserted: 340,
		RecordsSkipped:  2,
	})
	require.NoError(t, err)

	// begin a second, newer run so ordering matters
	id2, err := store.BeginRun(ctx, startedAt.Add(time.Hour))
	require.NoError(t, err)

	runs, err = store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, id2, runs[0].ID)
	require.Equal(t, id, runs[1].ID)
	require.EqualValues(t, 12, runs[1].PagesFetched)
	require.EqualValues(t, 1, runs[1].PagesFailed)
	require.EqualValues(t, 340, runs[1].RecordsUpserted)
	require.EqualValues(t, 2, runs[1].RecordsSkipped)
	require.False(t, runs[1].FinishedAt.IsZero())

	runs, err = store.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

// hammer the natural key with random observations: however many pages
// claim a course, exactly one row per (subject, number) may exist
func TestStoreUpsertStorm(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	subjects := []string{"ACCTG", "MATH", "CMPSC"}
	numbers := []string{"100", "211", "360", "465", "497H"}

	seenAt := time.Unix(1700000000, 0)
	for page := 0; page < 25; page++ {
		var records []CourseRecord
		for i := 0; i < 8; i++ {
			si, err := random.IntRange(0, len(subjects))
			require.NoError(t, err)
			ni, err := random.IntRange(0, len(numbers))
			require.NoError(t, err)
			title, err := random.String(12)
			require.NoError(t, err)

			records = append(records, CourseRecord{
				SubjectCode:  subjects[si],
				CourseNumber: numbers[ni],
				Title:        title,
				SourceURL:    storeTestURL,
			})
		}
		err := store.UpsertPage(ctx, records, seenAt.Add(time.Duration(page)*time.Minute))
		require.NoError(t, err)
	}

	count, err := store.CountCourses(ctx)
	require.NoError(t, err)
	require.Greater(t, count, int64(0))
	require.LessOrEqual(t, count, int64(len(subjects)*len(numbers)))

	all, err := store.AllCourses(ctx)
	require.NoError(t, err)
	require.EqualValues(t, count, len(all))

	seen := make(map[string]struct{})
	for _, course := range all {
		key := course.SubjectCode + " " + course.CourseNumber
		_, dup := seen[key]
		require.False(t, dup, "duplicate natural key %s", key)
		seen[key] = struct{}{}
	}
}
