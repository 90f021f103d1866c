// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feedback records user ratings of research responses, one JSON file
// per record, and summarizes them.
package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/pkg/types"
)

// ErrInvalidRating is returned for ratings outside 1..5.
var ErrInvalidRating = eris.New("rating must be between 1 and 5")

// lowRating is the rating at or below which a warning is logged.
const lowRating = 2

const filePrefix = "feedback_"

// Store keeps feedback records in a directory. Records are never modified.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates the feedback directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, eris.New("feedback: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "feedback: create dir %s", dir)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Add validates and stores one record and returns the written path.
func (s *Store) Add(query, response string, rating int, comments string) (string, error) {
	if rating < 1 || rating > 5 {
		return "", eris.Wrapf(ErrInvalidRating, "got %d", rating)
	}
	rec := types.FeedbackRecord{
		Query:     query,
		Response:  response,
		Rating:    rating,
		Comments:  comments,
		Timestamp: s.now().UTC(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "feedback: encode record")
	}

	path, f, err := s.create(rec.Timestamp)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", eris.Wrapf(err, "feedback: write %s", path)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "feedback: close %s", path)
	}

	if rating <= lowRating {
		zap.L().Warn("low rating received",
			zap.Int("rating", rating),
			zap.String("query", query),
			zap.String("comments", comments),
		)
	}
	zap.L().Info("feedback recorded", zap.Int("rating", rating), zap.String("path", path))
	return path, nil
}

// create opens a new record file named after ts, adding a counter suffix
// when records share a timestamp.
func (s *Store) create(ts time.Time) (string, *os.File, error) {
	base := fmt.Sprintf("%s%s_%06d", filePrefix, ts.Format("20060102_150405"), ts.Nanosecond()/1000)
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(s.dir, name+".json")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return path, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, eris.Wrapf(err, "feedback: create %s", path)
		}
	}
}

// List returns every stored record, oldest first. Unreadable files are
// skipped.
func (s *Store) List() ([]types.FeedbackRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "feedback: read dir %s", s.dir)
	}

	var records []types.FeedbackRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			zap.L().Warn("skipping unreadable feedback", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		var rec types.FeedbackRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			zap.L().Warn("skipping malformed feedback", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })
	return records, nil
}

// Stats summarizes every stored record.
func (s *Store) Stats() (types.FeedbackStats, error) {
	records, err := s.List()
	if err != nil {
		return types.FeedbackStats{}, err
	}
	return Summarize(records), nil
}

// Summarize computes count, mean rating and the rating histogram.
func Summarize(records []types.FeedbackRecord) types.FeedbackStats {
	st := types.FeedbackStats{Histogram: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	sum := 0
	for _, r := range records {
		st.Count++
		st.Histogram[r.Rating]++
		sum += r.Rating
	}
	if st.Count > 0 {
		st.Mean = float64(sum) / float64(st.Count)
	}
	return st
}
