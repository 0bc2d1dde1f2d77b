// Package remap implements the Name Remapper (C5): rewriting a SQL dump's
// text so that references to the source database name become references to
// the target database name, plus the truncate/replica-mode wrapping applied
// to data files before they are replayed into an existing schema.
//
// Rewriting SQL text without a parser is inherently best-effort (§9); this
// package sticks to a closed set of anchored patterns rather than attempting
// a general SQL rewrite, in the style of internal/checks/error_hints.go's
// compiled-pattern table.
package remap

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern pairs a compiled matcher with a replacement template. "%s" in
// replacement is substituted with the target database name.
type pattern struct {
	re          *regexp.Regexp
	replacement string
}

// compile builds the closed set of anchored rewrite patterns for src->dst,
// each anchored to a syntactic position where a bare database name appears
// in pg_dump/psql output: after a leading space, inside quotes, before a
// trailing period (schema qualifier), before a trailing semicolon, or after
// a \c directive.
func compile(src, dst string) []pattern {
	q := regexp.QuoteMeta(src)
	return []pattern{
		{regexp.MustCompile(`(^|\s)` + q + `(\s)`), "${1}" + dst + "${2}"},
		{regexp.MustCompile(`"` + q + `"`), `"` + dst + `"`},
		{regexp.MustCompile(`'` + q + `'`), `'` + dst + `'`},
		{regexp.MustCompile(q + `\.`), dst + "."},
		{regexp.MustCompile(q + `;`), dst + ";"},
		{regexp.MustCompile(`(\\c\s+)` + q + `(\s|$)`), "${1}" + dst + "${2}"},
	}
}

// hostnameGuard flags URL-form connection strings whose hostname begins with
// the target name — a place the naive patterns above could corrupt a literal
// that merely happens to start with the same characters as dst.
var hostnameGuard = regexp.MustCompile(`://[^/\s]*`)

// Rewrite rewrites every occurrence of src as a database name in text to dst.
// If src == dst it is the identity transform. warn is invoked (if non-nil)
// for every line where a URL hostname begins with dst post-rewrite, since
// that is a plausible sign of substring corruption that the caller should
// log but not roll back (§4.5: "log warning, no rollback").
func Rewrite(text, src, dst string, warn func(line string)) string {
	if src == dst {
		return text
	}
	pats := compile(src, dst)
	out := text
	for _, p := range pats {
		out = p.re.ReplaceAllString(out, p.replacement)
	}

	if warn != nil {
		for _, line := range strings.Split(out, "\n") {
			for _, host := range hostnameGuard.FindAllString(line, -1) {
				host = strings.TrimPrefix(host, "://")
				if i := strings.LastIndex(host, "@"); i >= 0 {
					host = host[i+1:]
				}
				if strings.HasPrefix(host, dst) {
					warn(line)
				}
			}
		}
	}
	return out
}

// WrapDataFile wraps a data-only SQL payload with session_replication_role
// toggles and per-table TRUNCATE ... CASCADE statements so that replaying it
// against a non-empty target is idempotent (P4): existing rows are cleared
// first and foreign-key/trigger enforcement is suspended for the duration of
// the load.
func WrapDataFile(dataSQL string, tables []string) string {
	var b strings.Builder
	b.WriteString("SET session_replication_role = 'replica';\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "TRUNCATE TABLE %s CASCADE;\n", quoteTable(t))
	}
	b.WriteString(dataSQL)
	if !strings.HasSuffix(strings.TrimRight(dataSQL, "\n"), ";") {
		b.WriteString(";\n")
	}
	b.WriteString("SET session_replication_role = 'origin';\n")
	return b.String()
}

func quoteTable(name string) string {
	if strings.Contains(name, ".") {
		parts := strings.SplitN(name, ".", 2)
		return fmt.Sprintf("%q.%q", parts[0], parts[1])
	}
	return fmt.Sprintf("%q", name)
}
