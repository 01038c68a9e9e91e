// Package editdistance implements a bounded Levenshtein distance used by
// fuzzy lookup: the caller supplies a shrinking maximum, and computation
// aborts as soon as every cell in the current row has reached it, since no
// alignment through that row can possibly finish under the limit.
package editdistance

// Bounded returns the Levenshtein edit distance between s and t, or limit
// if that distance is >= limit. Distances at or above limit are not
// distinguished from each other since fuzzy lookup only ever compares
// against limit.
func Bounded(s, t []byte, limit int) int {
	if limit <= 0 {
		return 0
	}

	// Row i holds the edit distance from s[:i] to each prefix of t, using
	// one rolling slice of length len(t)+1 rather than a full matrix.
	row := make([]int, len(t)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(s); i++ {
		prevDiag := row[0]
		row[0] = i
		rowMin := row[0]

		for j := 1; j <= len(t); j++ {
			cost := 1
			if s[i-1] == t[j-1] {
				cost = 0
			}
			deletion := row[j] + 1
			insertion := row[j-1] + 1
			substitution := prevDiag + cost

			prevDiag = row[j]
			row[j] = min3(deletion, insertion, substitution)
			if row[j] < rowMin {
				rowMin = row[j]
			}
		}

		if rowMin >= limit {
			return limit
		}
	}

	if row[len(t)] >= limit {
		return limit
	}
	return row[len(t)]
}

// BoundedString is Bounded over strings.
func BoundedString(s, t string, limit int) int {
	return Bounded([]byte(s), []byte(t), limit)
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
