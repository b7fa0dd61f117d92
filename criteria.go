package imapkit

import (
	"fmt"
	"time"

	"github.com/oakmoss/imapkit/internal/wire"
)

// Criterion is one SEARCH term, rendered to its wire parts on demand so
// criteria can be composed (AND by juxtaposition, OR/NOT by wrapping)
// before anything touches the network. parts mixes plain strings with
// wire.Literal when an argument carries non-ASCII bytes, since those must
// ship as declared-length literals rather than inside a quoted string.
type Criterion struct {
	parts func() []any
}

// hasNonASCII reports whether s contains any byte outside US-ASCII.
func hasNonASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return true
		}
	}
	return false
}

// quotedOrLiteral renders s as a quoted string when it's all US-ASCII, or
// as a wire.Literal otherwise. RFC 3501 §6.4.4 defaults SEARCH to
// US-ASCII absent a declared CHARSET, so non-ASCII criterion values must
// travel as literals with the command's CHARSET set accordingly (see
// Query.search).
func quotedOrLiteral(s string) any {
	if hasNonASCII(s) {
		return wire.Literal(s)
	}
	return quoteWire(s)
}

func atomCriterion(s string) Criterion {
	return Criterion{parts: func() []any { return []any{s} }}
}

func keyedCriterion(key, value string) Criterion {
	return Criterion{parts: func() []any { return []any{key, quotedOrLiteral(value)} }}
}

func dateCriterion(key string, t time.Time) Criterion {
	return Criterion{parts: func() []any { return []any{key, imapSearchDate(t)} }}
}

func numberCriterion(key string, n int) Criterion {
	return Criterion{parts: func() []any { return []any{fmt.Sprintf("%s %d", key, n)} }}
}

// Boolean/flag criteria.
func All() Criterion        { return atomCriterion("ALL") }
func Answered() Criterion   { return atomCriterion("ANSWERED") }
func Deleted() Criterion    { return atomCriterion("DELETED") }
func Draft() Criterion      { return atomCriterion("DRAFT") }
func Flagged() Criterion    { return atomCriterion("FLAGGED") }

// IsNew matches the SEARCH "NEW" key (named to avoid colliding with New,
// the Client constructor).
func IsNew() Criterion      { return atomCriterion("NEW") }
func Old() Criterion        { return atomCriterion("OLD") }
func Recent() Criterion     { return atomCriterion("RECENT") }
func Seen() Criterion       { return atomCriterion("SEEN") }
func Unanswered() Criterion { return atomCriterion("UNANSWERED") }
func Undeleted() Criterion  { return atomCriterion("UNDELETED") }
func Undraft() Criterion    { return atomCriterion("UNDRAFT") }
func Unflagged() Criterion  { return atomCriterion("UNFLAGGED") }
func Unseen() Criterion     { return atomCriterion("UNSEEN") }

// Text/header criteria.
func Bcc(s string) Criterion     { return keyedCriterion("BCC", s) }
func Body(s string) Criterion    { return keyedCriterion("BODY", s) }
func Cc(s string) Criterion      { return keyedCriterion("CC", s) }
func From(s string) Criterion    { return keyedCriterion("FROM", s) }
func Subject(s string) Criterion { return keyedCriterion("SUBJECT", s) }
func Text(s string) Criterion    { return keyedCriterion("TEXT", s) }
func To(s string) Criterion      { return keyedCriterion("TO", s) }

func Header(field, value string) Criterion {
	return Criterion{parts: func() []any {
		return []any{"HEADER", quotedOrLiteral(field), quotedOrLiteral(value)}
	}}
}

func Keyword(flag string) Criterion   { return keyedCriterion("KEYWORD", flag) }
func Unkeyword(flag string) Criterion { return keyedCriterion("UNKEYWORD", flag) }

// Size criteria.
func Larger(bytes int) Criterion  { return numberCriterion("LARGER", bytes) }
func Smaller(bytes int) Criterion { return numberCriterion("SMALLER", bytes) }

// Date criteria.
func Before(t time.Time) Criterion     { return dateCriterion("BEFORE", t) }
func On(t time.Time) Criterion         { return dateCriterion("ON", t) }
func Since(t time.Time) Criterion      { return dateCriterion("SINCE", t) }
func SentBefore(t time.Time) Criterion { return dateCriterion("SENTBEFORE", t) }
func SentOn(t time.Time) Criterion     { return dateCriterion("SENTON", t) }
func SentSince(t time.Time) Criterion  { return dateCriterion("SENTSINCE", t) }

// UID restricts the search to a set range, e.g. UID("1:*") or UID("100:200").
func UID(set string) Criterion { return keyedCriterion("UID", set) }

// Not negates a single criterion.
func Not(c Criterion) Criterion {
	return Criterion{parts: func() []any {
		return append([]any{"NOT"}, c.parts()...)
	}}
}

// Or combines two criteria disjunctively. IMAP's OR only ever takes two
// search keys; each further criterion is ORed with the combination built
// so far, left-associatively: Or(a, b, c) is OR (OR a b) c.
func Or(a, b Criterion, rest ...Criterion) Criterion {
	combined := Criterion{parts: func() []any { return orParts(a, b) }}
	for _, c := range rest {
		next := c
		prev := combined
		combined = Criterion{parts: func() []any { return orParts(prev, next) }}
	}
	return combined
}

func orParts(a, b Criterion) []any {
	parts := []any{"OR"}
	parts = append(parts, parenthesize(a)...)
	parts = append(parts, parenthesize(b)...)
	return parts
}

func parenthesize(c Criterion) []any {
	parts := []any{"("}
	parts = append(parts, c.parts()...)
	return append(parts, ")")
}

// buildSearchArgs renders a conjunction of criteria into the ordered
// argument list SEARCH expects (implicit AND by juxtaposition), mixing in
// wire.Literal parts wherever a value needed one.
func buildSearchArgs(criteria []Criterion) []any {
	if len(criteria) == 0 {
		return []any{"ALL"}
	}
	var parts []any
	for _, c := range criteria {
		parts = append(parts, c.parts()...)
	}
	return parts
}

// searchArgsContainLiteral reports whether any rendered argument needs a
// CHARSET declaration ahead of it.
func searchArgsContainLiteral(parts []any) bool {
	for _, p := range parts {
		if _, ok := p.(wire.Literal); ok {
			return true
		}
	}
	return false
}
