package database

import "strings"

const (
	// Alphabet bounds used to compute ranks lexicographically.
	// Using ASCII '0'..'z' yields a large space with many available midpoints.
	minChar = '0'
	maxChar = 'z'
	// Default mid character used for the first rank of a sibling list.
	midChar = 'U'
)

// Next returns a new rank string that sorts lexicographically after the given previous rank.
// If prev is empty, it returns a single midChar. Otherwise the last character is bumped
// when there is room, and midChar is appended when there is not.
func Next(prev string) string {
	if prev == "" {
		return string([]rune{midChar})
	}
	r := []rune(prev)
	last := r[len(r)-1]
	if last < maxChar-1 {
		step := (maxChar - last) / 4
		if step < 1 {
			step = 1
		}
		r[len(r)-1] = last + step
		return string(r)
	}
	return prev + string([]rune{midChar})
}

// compare returns the lexicographic comparison of a and b:
// -1 if a < b, 0 if a == b, +1 if a > b
func compare(a, b string) int {
	return strings.Compare(a, b)
}

// IsBetween reports whether rank lies strictly between prev and next.
// Bounds may be empty to indicate no lower (prev="") or upper (next="") bound.
// When both bounds are empty, the function returns false to force the caller to
// generate a canonical rank.
func IsBetween(prev, rank, next string) bool {
	if prev == "" && next == "" {
		return false
	}
	if prev == "" {
		return compare(rank, next) < 0
	}
	if next == "" {
		return compare(prev, rank) < 0
	}
	return compare(prev, rank) < 0 && compare(rank, next) < 0
}

// Between computes a rank string strictly between prev and next using a variable-length
// lexicographic scheme. If next is empty, it returns Next(prev). If prev is empty, it
// chooses a rank strictly less than next.
//
// The algorithm walks character-by-character and selects a midpoint character whenever
// space exists between the lower and upper bound characters. If no space exists at a
// position, it appends the lower bound character and continues deeper.
func Between(prev, next string) string {
	if next == "" {
		return Next(prev)
	}

	p := []rune(prev)
	n := []rune(next)

	var out []rune
	for i := 0; ; i++ {
		pr := rune(minChar)
		if i < len(p) {
			pr = p[i]
		}
		nr := rune(maxChar)
		if i < len(n) {
			nr = n[i]
		}

		if pr == nr {
			out = append(out, pr)
			continue
		}
		if pr+1 < nr {
			out = append(out, pr+(nr-pr)/2)
			return string(out)
		}
		out = append(out, pr)
	}
}

// Reorder computes minimal new ranks for items in the given order based on their existing ranks.
// It returns only the keys that require updates mapped to their new ranks, inserting ranks
// between neighbors rather than rewriting all of them.
//
// For each key in order the neighbor ranks are looked up (preferring ranks already
// updated in this pass); a key whose current rank already lies strictly between its
// neighbors keeps it.
func Reorder[K comparable](existing map[K]string, order []K) map[K]string {
	updates := make(map[K]string, len(order))

	get := func(i int) string {
		if i < 0 || i >= len(order) {
			return ""
		}
		if r, ok := updates[order[i]]; ok {
			return r
		}
		return existing[order[i]]
	}

	for i, key := range order {
		prevRank := get(i - 1)
		nextRank := get(i + 1)
		curRank := existing[key]

		if curRank != "" && IsBetween(prevRank, curRank, nextRank) {
			continue
		}
		// A following neighbor not yet visited may itself be out of place; only
		// respect it as an upper bound when it sorts after prev.
		if nextRank != "" && prevRank != "" && compare(prevRank, nextRank) >= 0 {
			nextRank = ""
		}
		updates[key] = Between(prevRank, nextRank)
	}

	return updates
}
