package resolver

import (
	"strings"

	"github.com/zerbitx/mockserver/mock"
)

// MaxWatchedHeaders caps how many watched headers of a single request take part in candidate
// generation. Candidates grow factorially with it.
const MaxWatchedHeaders = 5

// HeaderValue is a watched header present on a request
type HeaderValue struct {
	Name  string
	Value string
}

// WatchedValues returns the watched headers present on req, in the order they were configured
func WatchedValues(req *mock.Request, watched []string) []HeaderValue {
	var values []HeaderValue
	for _, name := range watched {
		if value := req.Header(name); value != "" {
			values = append(values, HeaderValue{Name: name, Value: value})
		}
	}

	return values
}

// Candidates returns the file name prefixes to probe for, most specific first. Every ordering of
// every non-empty subset of headers is produced, longest first, and the bare method comes last.
func Candidates(method string, headers []HeaderValue) []string {
	suffixes := make([]string, len(headers))
	for i, h := range headers {
		suffixes[i] = "_" + mock.NormalizeHeaderName(h.Name) + "=" + h.Value
	}

	var candidates []string
	for k := len(headers); k > 0; k-- {
		for _, subset := range combinations(len(headers), k) {
			for _, order := range permutations(subset) {
				var b strings.Builder
				b.WriteString(method)
				for _, i := range order {
					b.WriteString(suffixes[i])
				}
				candidates = append(candidates, b.String())
			}
		}
	}

	return append(candidates, method)
}

// combinations returns every k sized subset of 0..n-1 in lexicographic order
func combinations(n, k int) [][]int {
	var out [][]int

	var walk func(start int, picked []int)
	walk = func(start int, picked []int) {
		if len(picked) == k {
			out = append(out, append([]int(nil), picked...))
			return
		}
		for i := start; i < n; i++ {
			walk(i+1, append(picked, i))
		}
	}
	walk(0, make([]int, 0, k))

	return out
}

// permutations returns every ordering of items in lexicographic order of positions, items first
func permutations(items []int) [][]int {
	if len(items) <= 1 {
		return [][]int{append([]int(nil), items...)}
	}

	var out [][]int
	for i := range items {
		rest := make([]int, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)

		for _, p := range permutations(rest) {
			out = append(out, append([]int{items[i]}, p...))
		}
	}

	return out
}
