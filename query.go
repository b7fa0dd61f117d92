package imapkit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/oakmoss/imapkit/internal/wire"
)

// fetchOptions controls how much of each message Query materialises.
type fetchOptions struct {
	includeBody bool
	keepRaw     bool
	softFail    bool
}

// Query is a fluent builder over one folder's SEARCH/FETCH pipeline:
// Where narrows the result set, With* controls population, and Get (or
// the paginate/chunked helpers) executes it.
type Query struct {
	folder   *Folder
	criteria []Criterion
	pageSize int
	opts     fetchOptions
}

func newQuery(f *Folder) *Query {
	return &Query{folder: f, pageSize: 200}
}

// Where appends criteria, ANDed with anything already present.
func (q *Query) Where(c ...Criterion) *Query {
	q.criteria = append(q.criteria, c...)
	return q
}

// WithBody fetches and parses the full RFC 822 source (headers, MIME
// tree, bodies, attachments) rather than envelope/flags only.
func (q *Query) WithBody() *Query {
	q.opts.includeBody = true
	return q
}

// WithRaw retains the raw RFC 822 bytes on each Message alongside the
// parsed view.
func (q *Query) WithRaw() *Query {
	q.opts.keepRaw = true
	return q
}

// SoftFail makes Get collect per-UID fetch/parse errors into the
// Outcome's Errors map instead of aborting the whole query on the first
// failure, matching a large-mailbox batch's all-or-nothing-is-too-costly
// reality.
func (q *Query) SoftFail() *Query {
	q.opts.softFail = true
	return q
}

// PageSize sets the UID batch size used internally by chunked fetches
// (and by Paginate). Defaults to 200.
func (q *Query) PageSize(n int) *Query {
	if n > 0 {
		q.pageSize = n
	}
	return q
}

// Outcome is the result of executing a Query: the materialised messages
// in server order, plus lookup indexes and any per-UID soft failures.
type Outcome struct {
	Messages []*Message
	ByUID    map[uint32]*Message
	ByMsgID  map[string]*Message
	Errors   map[uint32]error
}

func newOutcome() *Outcome {
	return &Outcome{
		ByUID:   make(map[uint32]*Message),
		ByMsgID: make(map[string]*Message),
		Errors:  make(map[uint32]error),
	}
}

func (o *Outcome) add(m *Message) {
	o.Messages = append(o.Messages, m)
	o.ByUID[m.UID] = m
	if m.MessageID != "" {
		o.ByMsgID[m.MessageID] = m
	}
}

// search issues UID SEARCH for the query's criteria and returns the
// matching UIDs in ascending order (the order IMAP servers return them).
func (q *Query) search(ctx context.Context) ([]uint32, error) {
	c := q.folder.client
	if err := c.checkConnection(ctx); err != nil {
		return nil, err
	}
	if err := requireAtLeast(c.state, StateSelected, StateIdling); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageSearchValidationFailed, err)
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	args := buildSearchArgs(q.criteria)
	cmd := []any{"UID", "SEARCH"}
	if searchArgsContainLiteral(args) {
		// A literal argument carries non-ASCII bytes; declare the charset
		// they're encoded in instead of leaving the server to assume
		// US-ASCII (RFC 3501 §6.4.4) and reject the command.
		cmd = append(cmd, "CHARSET", "UTF-8")
	}
	cmd = append(cmd, args...)
	resp, err := c.engine.Do(cmd...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageSearchValidationFailed, err)
	}
	data, err := resp.Data()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageSearchValidationFailed, err)
	}

	var uids []uint32
	for _, line := range data {
		if len(line.Tokens) == 0 || !line.Tokens[0].IsAtomEqual("SEARCH") {
			continue
		}
		for _, tok := range line.Tokens[1:] {
			if tok.Kind == wire.KindNumber {
				uids = append(uids, uint32(tok.Num))
			}
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

// Get executes the query: SEARCH, then FETCH in PageSize-sized batches.
func (q *Query) Get(ctx context.Context) (*Outcome, error) {
	uids, err := q.search(ctx)
	if err != nil {
		return nil, err
	}
	return q.fetchUIDs(ctx, uids)
}

// Paginate fetches only the UIDs in [offset, offset+limit) of the sorted
// search result, for callers presenting results a page at a time without
// materialising the whole mailbox.
func (q *Query) Paginate(ctx context.Context, offset, limit int) (*Outcome, error) {
	uids, err := q.search(ctx)
	if err != nil {
		return nil, err
	}
	if offset > len(uids) {
		offset = len(uids)
	}
	end := offset + limit
	if end > len(uids) || limit <= 0 {
		end = len(uids)
	}
	return q.fetchUIDs(ctx, uids[offset:end])
}

// Chunked runs fn once per PageSize-sized batch of matching UIDs, in
// ascending order, stopping (and returning fn's error) at the first
// failure. It never holds the whole mailbox's messages in memory at
// once, unlike Get.
func (q *Query) Chunked(ctx context.Context, fn func(*Outcome) error) error {
	uids, err := q.search(ctx)
	if err != nil {
		return err
	}
	for _, batch := range chunkUIDs(uids, q.pageSize) {
		out, err := q.fetchUIDs(ctx, batch)
		if err != nil {
			return err
		}
		if err := fn(out); err != nil {
			return err
		}
	}
	return nil
}

// Filter fetches the complete matching UID set, applies predicate to each
// identifier, and populates only the UIDs predicate accepts. The
// predicate runs on identifiers before FETCH, so rejected identifiers are
// never fetched at all.
func (q *Query) Filter(ctx context.Context, predicate func(uid uint32) bool) (*Outcome, error) {
	uids, err := q.search(ctx)
	if err != nil {
		return nil, err
	}
	selected := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if predicate(uid) {
			selected = append(selected, uid)
		}
	}
	return q.fetchUIDs(ctx, selected)
}

func (q *Query) fetchUIDs(ctx context.Context, uids []uint32) (*Outcome, error) {
	out := newOutcome()
	if len(uids) == 0 {
		return out, nil
	}
	c := q.folder.client

	item := "(UID FLAGS)"
	if q.opts.includeBody {
		item = "(UID FLAGS BODY.PEEK[])"
	}

	for _, batch := range chunkUIDs(uids, q.pageSize) {
		if err := c.checkConnection(ctx); err != nil {
			return nil, err
		}
		c.cmdMu.Lock()
		resp, err := c.engine.Do("UID", "FETCH", buildUIDSet(batch), item)
		if err != nil {
			c.cmdMu.Unlock()
			return nil, fmt.Errorf("%w: %v", ErrGetMessagesFailed, err)
		}
		data, err := resp.Data()
		c.cmdMu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGetMessagesFailed, err)
		}

		for _, line := range data {
			msn, fields, ok := parseFetchLine(line)
			if !ok {
				continue
			}
			uidTok, hasUID := fields["UID"]
			if !hasUID || uidTok.Kind != wire.KindNumber {
				continue
			}
			uid := uint32(uidTok.Num)
			var flags []string
			if flagsTok, ok := fields["FLAGS"]; ok && flagsTok.Kind == wire.KindList {
				for _, f := range flagsTok.List {
					flags = append(flags, f.String())
				}
			}
			if c.uidCache != nil {
				c.uidCache.Put(q.folder.name, msn, uid)
			}

			var raw []byte
			if bodyTok, ok := fields["BODY[]"]; ok && bodyTok.Kind == wire.KindString {
				raw = bodyTok.Str
			}

			if !q.opts.includeBody {
				out.add(&Message{UID: uid, MSN: msn, Flags: flags})
				continue
			}

			msg, err := newMessage(uid, msn, flags, raw, c.opts.ContentStore, q.opts.keepRaw)
			if err != nil {
				if q.opts.softFail {
					out.Errors[uid] = err
					continue
				}
				return nil, fmt.Errorf("%w: %v", ErrGetMessagesFailed, err)
			}
			out.add(msg)
		}
	}
	return out, nil
}

// parseFetchLine decodes one "* <msn> FETCH (<key val> ...)" untagged
// response into its message sequence number and a key->value map. Section
// keys (BODY[], BODY[HEADER.FIELDS (...)]) are rendered "ATOM[section]".
func parseFetchLine(line wire.Line) (msn uint32, fields map[string]wire.Token, ok bool) {
	if len(line.Tokens) < 3 {
		return 0, nil, false
	}
	if line.Tokens[0].Kind != wire.KindNumber || !line.Tokens[1].IsAtomEqual("FETCH") {
		return 0, nil, false
	}
	if line.Tokens[2].Kind != wire.KindList {
		return 0, nil, false
	}
	items := line.Tokens[2].List
	fields = make(map[string]wire.Token, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		key := items[i]
		val := items[i+1]
		var name string
		switch key.Kind {
		case wire.KindAtom:
			name = strings.ToUpper(key.Atom)
		case wire.KindSection:
			name = strings.ToUpper(key.Atom) + "[" + key.Section + "]"
		default:
			continue
		}
		fields[name] = val
	}
	return uint32(line.Tokens[0].Num), fields, true
}

// chunkUIDs splits uids into contiguous slices of at most size.
func chunkUIDs(uids []uint32, size int) [][]uint32 {
	if size <= 0 {
		size = len(uids)
	}
	var batches [][]uint32
	for i := 0; i < len(uids); i += size {
		end := i + size
		if end > len(uids) {
			end = len(uids)
		}
		batches = append(batches, uids[i:end])
	}
	return batches
}

// buildUIDSet renders a sorted UID slice as an IMAP sequence set,
// collapsing consecutive runs into "a:b" ranges.
func buildUIDSet(uids []uint32) string {
	if len(uids) == 0 {
		return ""
	}
	sorted := append([]uint32(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var parts []string
	runStart, runEnd := sorted[0], sorted[0]
	flush := func() {
		if runStart == runEnd {
			parts = append(parts, strconv.FormatUint(uint64(runStart), 10))
		} else {
			parts = append(parts, fmt.Sprintf("%d:%d", runStart, runEnd))
		}
	}
	for _, u := range sorted[1:] {
		if u == runEnd+1 {
			runEnd = u
			continue
		}
		flush()
		runStart, runEnd = u, u
	}
	flush()
	return strings.Join(parts, ",")
}
