package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"booktracker/internal/models"
	"booktracker/internal/repositories"
)

// ─── Range Types ──────────────────────────────────────────────────────────────

type RangeType string

const (
	RangeWeeks  RangeType = "weeks"
	RangeMonths RangeType = "months"
	RangeYears  RangeType = "years"
	RangeAll    RangeType = "all"
)

// ParseRange maps a query parameter to a range type, defaulting to months.
func ParseRange(s string) RangeType {
	switch RangeType(s) {
	case RangeWeeks, RangeMonths, RangeYears, RangeAll:
		return RangeType(s)
	}
	return RangeMonths
}

// ─── Result Types ─────────────────────────────────────────────────────────────

type BookStat struct {
	Title string `json:"title"`
	Pages int    `json:"pages"`
}

type Summary struct {
	TotalBooksRead int       `json:"total_books_read"`
	TotalPagesRead int       `json:"total_pages_read"`
	FavoriteGenre  string    `json:"favorite_genre,omitempty"`
	MostReadAuthor string    `json:"most_read_author,omitempty"`
	LongestBook    *BookStat `json:"longest_book"`
	ShortestBook   *BookStat `json:"shortest_book"`
	BooksShared    int       `json:"books_shared"`
}

// TimeSeries is a chart-ready pair of parallel label and value sequences,
// ordered chronologically ascending.
type TimeSeries struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

type LabelCount struct {
	Label string
	Count int
}

// OrderedCounts marshals as a JSON object whose keys keep slice order, so the
// dashboard charts receive groups largest-first.
type OrderedCounts []LabelCount

func (oc OrderedCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, lc := range oc {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(lc.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(lc.Count)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ─── Service Interface ────────────────────────────────────────────────────────

// StatsService derives read-only aggregate views from one user's library and
// share records. All aggregation runs over plain fetched records.
type StatsService interface {
	Summary(userID uuid.UUID) (*Summary, error)
	BooksOverTime(userID uuid.UUID, rng RangeType) (*TimeSeries, error)
	PagesOverTime(userID uuid.UUID, rng RangeType) (*TimeSeries, error)
	GenreBreakdown(userID uuid.UUID) (OrderedCounts, error)
	AuthorBreakdown(userID uuid.UUID) (OrderedCounts, error)
	StatusBreakdown(userID uuid.UUID) (map[string]int, error)
}

type statsService struct {
	db        *gorm.DB
	libRepo   repositories.LibraryRepository
	shareRepo repositories.ShareRepository
}

func NewStatsService(db *gorm.DB, libRepo repositories.LibraryRepository, shareRepo repositories.ShareRepository) StatsService {
	return &statsService{db: db, libRepo: libRepo, shareRepo: shareRepo}
}

// ─── Summary ──────────────────────────────────────────────────────────────────

func (s *statsService) Summary(userID uuid.UUID) (*Summary, error) {
	records, err := s.libRepo.RecordsByUser(nil, userID)
	if err != nil {
		return nil, err
	}
	shared, err := s.shareRepo.CountSentBy(nil, userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{BooksShared: int(shared)}
	for _, r := range records {
		if r.Status != models.StatusCompleted {
			continue
		}
		summary.TotalBooksRead++
		if r.PageCount == nil {
			continue
		}
		summary.TotalPagesRead += *r.PageCount
		if summary.LongestBook == nil || *r.PageCount > summary.LongestBook.Pages {
			summary.LongestBook = &BookStat{Title: r.Title, Pages: *r.PageCount}
		}
		if summary.ShortestBook == nil || *r.PageCount < summary.ShortestBook.Pages {
			summary.ShortestBook = &BookStat{Title: r.Title, Pages: *r.PageCount}
		}
	}

	// Favorite genre and most-read author count all entries, not just
	// completed ones; ties go to the group seen first.
	summary.FavoriteGenre = modeOf(records, func(r repositories.BookRecord) (string, bool) {
		if r.Genre == nil {
			return "", false
		}
		return *r.Genre, true
	})
	summary.MostReadAuthor = modeOf(records, func(r repositories.BookRecord) (string, bool) {
		return r.Author, r.Author != ""
	})

	return summary, nil
}

// modeOf returns the most frequent key yielded over records, or "" when no
// record yields a key. Ties resolve to the earliest-seen key.
func modeOf(records []repositories.BookRecord, key func(repositories.BookRecord) (string, bool)) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			continue
		}
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}
	best := ""
	bestCount := 0
	for _, k := range order {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

// ─── Time Bucketing ───────────────────────────────────────────────────────────

func (s *statsService) BooksOverTime(userID uuid.UUID, rng RangeType) (*TimeSeries, error) {
	records, err := s.libRepo.RecordsByUser(nil, userID)
	if err != nil {
		return nil, err
	}
	return bucketOverTime(records, rng, func(r repositories.BookRecord) int { return 1 }), nil
}

func (s *statsService) PagesOverTime(userID uuid.UUID, rng RangeType) (*TimeSeries, error) {
	records, err := s.libRepo.RecordsByUser(nil, userID)
	if err != nil {
		return nil, err
	}
	// Books with an unknown page count contribute no bucket at all.
	var sized []repositories.BookRecord
	for _, r := range records {
		if r.PageCount != nil {
			sized = append(sized, r)
		}
	}
	return bucketOverTime(sized, rng, func(r repositories.BookRecord) int { return *r.PageCount }), nil
}

// bucketOverTime groups completed records by their completion date truncated
// to the requested granularity and sums weight per bucket. Records without a
// completion date are excluded. Buckets come back chronologically ascending.
func bucketOverTime(records []repositories.BookRecord, rng RangeType, weight func(repositories.BookRecord) int) *TimeSeries {
	type bucket struct {
		key   int
		label string
		total int
	}

	var completed []repositories.BookRecord
	for _, r := range records {
		if r.Status == models.StatusCompleted && r.CompletedAt != nil {
			completed = append(completed, r)
		}
	}

	if rng == RangeAll {
		total := 0
		for _, r := range completed {
			total += weight(r)
		}
		return &TimeSeries{Labels: []string{"All Time"}, Data: []int{total}}
	}

	buckets := make(map[int]*bucket)
	for _, r := range completed {
		key, label := bucketKey(*r.CompletedAt, rng)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key, label: label}
			buckets[key] = b
		}
		b.total += weight(r)
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key < ordered[j].key })

	series := &TimeSeries{Labels: []string{}, Data: []int{}}
	for _, b := range ordered {
		series.Labels = append(series.Labels, b.label)
		series.Data = append(series.Data, b.total)
	}
	return series
}

// bucketKey returns a sortable integer key and display label for one
// completion date at the given granularity.
func bucketKey(t time.Time, rng RangeType) (int, string) {
	switch rng {
	case RangeWeeks:
		year, week := t.ISOWeek()
		return year*100 + week, fmt.Sprintf("%d W%d", year, week)
	case RangeYears:
		return t.Year(), t.Format("2006")
	default: // months
		return t.Year()*100 + int(t.Month()), t.Format("Jan 2006")
	}
}

// ─── Breakdowns ───────────────────────────────────────────────────────────────

// TopNWithOverflow sorts counts descending (label ascending on ties), keeps
// the n largest, and folds the remainder into an "Other" bucket, merging with
// any pre-existing "Other" group.
func TopNWithOverflow(counts map[string]int, n int) OrderedCounts {
	ordered := make(OrderedCounts, 0, len(counts))
	for label, count := range counts {
		ordered = append(ordered, LabelCount{Label: label, Count: count})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Count != ordered[j].Count {
			return ordered[i].Count > ordered[j].Count
		}
		return ordered[i].Label < ordered[j].Label
	})

	if len(ordered) <= n {
		return ordered
	}

	top := ordered[:n]
	overflow := 0
	for _, lc := range ordered[n:] {
		overflow += lc.Count
	}
	for i := range top {
		if top[i].Label == "Other" {
			top[i].Count += overflow
			return top
		}
	}
	return append(top, LabelCount{Label: "Other", Count: overflow})
}

const topGroups = 10

func (s *statsService) GenreBreakdown(userID uuid.UUID) (OrderedCounts, error) {
	records, err := s.libRepo.RecordsByUser(nil, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range records {
		genre := "Other"
		if r.Genre != nil && *r.Genre != "" {
			genre = *r.Genre
		}
		counts[genre]++
	}
	return TopNWithOverflow(counts, topGroups), nil
}

func (s *statsService) AuthorBreakdown(userID uuid.UUID) (OrderedCounts, error) {
	records, err := s.libRepo.RecordsByUser(nil, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range records {
		author := r.Author
		if author == "" {
			author = "Unknown"
		}
		counts[author]++
	}
	return TopNWithOverflow(counts, topGroups), nil
}

func (s *statsService) StatusBreakdown(userID uuid.UUID) (map[string]int, error) {
	records, err := s.libRepo.RecordsByUser(nil, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Status.Label()]++
	}
	return counts, nil
}
