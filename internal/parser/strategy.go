package parser

import (
	"github.com/PuerkitoBio/goquery"
)

// Strategy is one extraction attempt over a selection. ok reports whether it
// produced a usable result.
type Strategy[T any] func(sel *goquery.Selection) (result T, ok bool)

// FirstOf evaluates strategies in order and returns the first success.
func FirstOf[T any](sel *goquery.Selection, strategies ...Strategy[T]) (T, bool) {
	for _, s := range strategies {
		if result, ok := s(sel); ok {
			return result, true
		}
	}
	var zero T
	return zero, false
}

// FirstMatching returns the matches of the first selector that finds anything.
func FirstMatching(sel *goquery.Selection, selectors []string) *goquery.Selection {
	for _, selector := range selectors {
		if found := sel.Find(selector); found.Length() > 0 {
			return found
		}
	}
	return nil
}
