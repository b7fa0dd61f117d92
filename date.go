package imapkit

import (
	"strings"
	"time"
)

// dateLayouts are tried in order against a Date header value. RFC 2822
// mandates time.RFC1123Z-shaped dates, but real-world senders regularly
// omit seconds, use named zones, or skip the day-of-week.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05",
	time.RFC822Z,
	time.RFC822,
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a Date header value, trying RFC 2822 first and then the
// non-conforming variants senders commonly produce in the wild. Returns
// the zero time and ok == false rather than an error, since a message with
// an unparseable date should never fail to materialise.
func ParseDate(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// imapSearchDate formats t as an IMAP SEARCH date (DD-Mon-YYYY).
func imapSearchDate(t time.Time) string {
	return t.Format("02-Jan-2006")
}
