// Copyright (c) 2015, Arbo von Monkiewitsch All rights reserved.
// Use of this source code is governed by a BSD-style
// license.

// Package levenshtein computes edit distances and picks the closest word
// from a vocabulary, for "did you mean" hints.
package levenshtein

// Distance returns the minimum number of single-rune insertions,
// deletions or substitutions turning a into b. It keeps one column of
// the distance matrix, so memory is O(len(a)).
func Distance(a, b string) int {
	s1 := []rune(a)
	s2 := []rune(b)

	if len(s2) == 0 {
		return len(s1)
	}

	column := make([]int, len(s1)+1)
	for idx := range column {
		column[idx] = idx
	}

	for col, r2 := range s2 {
		column[0] = col + 1
		lastdiag := col

		for row, r1 := range s1 {
			olddiag := column[row+1]

			cost := 0
			if r1 != r2 {
				cost = 1
			}

			column[row+1] = min(column[row+1]+1, column[row]+1, lastdiag+cost)
			lastdiag = olddiag
		}
	}

	return column[len(s1)]
}

// Closest returns the candidate nearest to word, at most maxDistance
// edits away. Ties go to the earlier candidate. An exact match is not a
// suggestion; ok is false then.
func Closest(word string, candidates []string, maxDistance int) (best string, ok bool) {
	bestDistance := maxDistance + 1

	for _, c := range candidates {
		if c == word {
			return "", false
		}

		if d := Distance(word, c); d < bestDistance {
			best, bestDistance = c, d
		}
	}

	return best, bestDistance <= maxDistance
}
