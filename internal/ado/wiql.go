package ado

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	whereKeyword   = regexp.MustCompile(`(?i)\bwhere\b`)
	orderByKeyword = regexp.MustCompile(`(?i)\border\s+by\b`)
)

// WithChangedSince adds a [System.ChangedDate] >= since predicate to a WIQL
// query. Existing WHERE conditions are parenthesized and ANDed with the
// cutoff; without a WHERE clause one is inserted ahead of any ORDER BY.
// A zero since returns the query unchanged.
func WithChangedSince(query string, since time.Time) string {
	if since.IsZero() {
		return query
	}
	predicate := fmt.Sprintf("[System.ChangedDate] >= '%s'", since.UTC().Format("2006-01-02T15:04:05Z"))

	// Keywords are matched on a copy with string literals masked out, and the
	// offsets applied to the original.
	masked := maskLiterals(query)
	head, tail := query, ""
	if loc := orderByKeyword.FindStringIndex(masked); loc != nil {
		head, tail = query[:loc[0]], query[loc[0]:]
		masked = masked[:loc[0]]
	}
	head = strings.TrimRight(head, " \t\r\n")
	masked = masked[:len(head)]

	var b strings.Builder
	if loc := whereKeyword.FindStringIndex(masked); loc != nil {
		cond := strings.TrimSpace(head[loc[1]:])
		b.WriteString(strings.TrimRight(head[:loc[1]], " \t\r\n"))
		b.WriteString(" ")
		if cond != "" {
			b.WriteString("(" + cond + ") AND ")
		}
		b.WriteString(predicate)
	} else {
		b.WriteString(head)
		b.WriteString(" WHERE ")
		b.WriteString(predicate)
	}
	if tail != "" {
		b.WriteString(" ")
		b.WriteString(tail)
	}
	return b.String()
}

// maskLiterals returns query with the contents of every '...' literal replaced
// byte for byte, so keyword offsets in the result match the original. A doubled
// quote inside a literal is an escaped quote.
func maskLiterals(query string) string {
	b := []byte(query)
	in := false
	for i := 0; i < len(b); i++ {
		if b[i] != '\'' {
			if in {
				b[i] = 'x'
			}
			continue
		}
		if !in {
			in = true
			continue
		}
		if i+1 < len(b) && b[i+1] == '\'' {
			b[i], b[i+1] = 'x', 'x'
			i++
			continue
		}
		in = false
	}
	return string(b)
}

// quote renders a WIQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
