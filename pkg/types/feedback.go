// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// FeedbackRecord is one user rating of a research response.
type FeedbackRecord struct {
	Query    string `json:"query" yaml:"query"`
	Response string `json:"response" yaml:"response"`

	// Rating is an integer from 1 (poor) to 5 (excellent).
	Rating    int       `json:"rating" yaml:"rating"`
	Comments  string    `json:"comments,omitempty" yaml:"comments,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// FeedbackStats aggregates all stored feedback.
type FeedbackStats struct {
	Count int     `json:"count" yaml:"count"`
	Mean  float64 `json:"mean" yaml:"mean"`

	// Histogram maps each rating 1..5 to its number of records.
	Histogram map[int]int `json:"histogram" yaml:"histogram"`
}
