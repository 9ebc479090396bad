// Package similarity ranks saved solutions against a query by keyword overlap.
package similarity

import (
	"context"
	"sort"

	"github.com/peterbot/peterbot/internal/store"
)

// MinScore is the retrieval floor: results must score strictly above it.
// A product trade-off, not a mathematical one; kept visible for tuning.
const MinScore = 0.3

// MaxResults caps how many solutions FindSimilar returns.
const MaxResults = 3

// Match is a solution with its transient similarity score.
type Match struct {
	Solution store.Solution
	Score    float64
}

// Index retrieves past solutions related to a query.
type Index struct {
	DB *store.DB
}

func NewIndex(db *store.DB) *Index {
	return &Index{DB: db}
}

// FindSimilar extracts the query's keywords, scores every stored solution
// that has keywords, and returns at most MaxResults matches scoring strictly
// above MinScore, best first.
//
// This fetches all scorable solutions. Fine for a personal assistant's saved
// results; revisit if the table ever grows past a few thousand rows.
func (ix *Index) FindSimilar(ctx context.Context, query string) ([]Match, error) {
	queryKeywords := ExtractKeywords(query)

	solutions, err := ix.DB.ListSolutionsWithKeywords(ctx)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, s := range solutions {
		score := Jaccard(queryKeywords, SplitKeywords(s.Keywords))
		if score > MinScore {
			matches = append(matches, Match{Solution: s, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	return matches, nil
}
