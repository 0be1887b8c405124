// Package classify maps free-text queries to a coarse search category
// using keyword analysis. It is a cheap heuristic, not a learned model: a
// wrong category degrades ranking quality but never fails a query.
package classify

import "strings"

// Category is the coarse query intent used to pick a search strategy.
type Category string

const (
	QuickFacts      Category = "quick_facts"
	Troubleshooting Category = "troubleshooting"
	Setup           Category = "setup"
	Progressive     Category = "progressive"
)

var quickPatterns = []string{
	"what does", "what is", "meaning of", "define", "explain",
	"led", "light", "indicator", "status", "color",
}

var troublePatterns = []string{
	"not working", "broken", "error", "fix",
	"won't", "can't", "doesn't", "failed", "trouble", "disconnect",
	"slow", "intermittent", "red light", "blinking",
}

var setupPatterns = []string{
	"how to", "setup", "install", "configure", "connect", "pair",
	"sync", "first time", "initial", "getting started", "begin",
}

// Classify lowercases the query, counts substring matches per pattern
// list, and returns the category with the strictly highest count. Any tie,
// including no matches at all, resolves to Progressive.
func Classify(query string) Category {
	q := strings.ToLower(query)

	quick := countMatches(q, quickPatterns)
	trouble := countMatches(q, troublePatterns)
	setup := countMatches(q, setupPatterns)

	switch {
	case trouble > quick && trouble > setup:
		return Troubleshooting
	case setup > quick && setup > trouble:
		return Setup
	case quick > trouble && quick > setup:
		return QuickFacts
	default:
		return Progressive
	}
}

func countMatches(query string, patterns []string) int {
	n := 0
	for _, p := range patterns {
		if strings.Contains(query, p) {
			n++
		}
	}
	return n
}

// Valid reports whether s names a known category.
func Valid(s string) bool {
	switch Category(s) {
	case QuickFacts, Troubleshooting, Setup, Progressive:
		return true
	}
	return false
}
