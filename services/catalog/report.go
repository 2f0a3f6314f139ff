package catalog

import (
	"context"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

// CrossListing pairs two catalog entries that share a course number
// under different subjects with near-identical titles: most likely the
// same course cross-listed twice. Candidates are only ever reported;
// both rows keep their own natural keys and nothing merges them.
type CrossListing struct {
	Left       CourseRecord
	Right      CourseRecord
	Similarity float64
}

// DefaultCrossListThreshold tolerates punctuation drift between the
// two listings while keeping coincidental title overlap out.
const DefaultCrossListThreshold = 0.93

func CrossListingCandidates(ctx context.Context, store Store, threshold float64) ([]CrossListing, error) {
	ctx, span := tracer.Start(ctx, "report:CrossListingCandidates")
	defer span.End()

	if threshold <= 0 {
		threshold = DefaultCrossListThreshold
	}

	courses, err := store.AllCourses(ctx)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[string][]CourseRecord)
	for _, course := range courses {
		byNumber[course.CourseNumber] = append(byNumber[course.CourseNumber], course)
	}

	var candidates []CrossListing
	for _, group := range byNumber {
		if len(group) < 2 {
			continue
		}
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				left, right := group[i], group[j]
				if left.SubjectCode == right.SubjectCode {
					continue
				}
				similarity := matchr.JaroWinkler(left.Title, right.Title, false)
				if similarity >= threshold {
					candidates = append(candidates, CrossListing{
						Left:       left,
						Right:      right,
						Similarity: similarity,
					})
				}
			}
		}
	}

	slices.SortFunc(candidates, func(a, b CrossListing) int {
		ka := a.Left.SubjectCode + " " + a.Left.CourseNumber + " " + a.Right.SubjectCode
		kb := b.Left.SubjectCode + " " + b.Left.CourseNumber + " " + b.Right.SubjectCode
		return strings.Compare(ka, kb)
	})
	return candidates, nil
}
