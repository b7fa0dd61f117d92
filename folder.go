package imapkit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/oakmoss/imapkit/internal/mutf7"
	"github.com/oakmoss/imapkit/internal/wire"
)

// Folder is a thin handle on one mailbox: a reference to its Client plus
// the metadata LIST/LSUB returned. Folder names cross the public API as
// UTF-8; conversion to/from modified UTF-7 happens here, at the boundary.
type Folder struct {
	client *Client

	name      string
	delimiter string
	flags     []string
	children  []*Folder
}

func (f *Folder) Name() string        { return f.name }
func (f *Folder) Delimiter() string   { return f.delimiter }
func (f *Folder) Flags() []string     { return f.flags }
func (f *Folder) Children() []*Folder { return f.children }

// HasChildren reports the \HasChildren attribute, falling back to a
// non-empty Children() slice for folders fetched hierarchically.
func (f *Folder) HasChildren() bool {
	for _, fl := range f.flags {
		if strings.EqualFold(fl, `\HasChildren`) {
			return true
		}
	}
	return len(f.children) > 0
}

// Select opens the folder read-write.
func (f *Folder) Select(ctx context.Context) error {
	if err := f.client.checkConnection(ctx); err != nil {
		return err
	}
	return f.selectOrExamine(false)
}

// Examine opens the folder read-only.
func (f *Folder) Examine(ctx context.Context) error {
	if err := f.client.checkConnection(ctx); err != nil {
		return err
	}
	return f.selectOrExamine(true)
}

func (f *Folder) selectOrExamine(readOnly bool) error {
	c := f.client
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	cmd := "SELECT"
	if readOnly {
		cmd = "EXAMINE"
	}
	resp, err := c.engine.Do(cmd, quoteWire(mutf7.Encode(f.name)))
	if err != nil {
		return wrapFolderFetchErr(err)
	}
	data, err := resp.Data()
	if err != nil {
		return wrapFolderFetchErr(err)
	}

	uidValidity := extractUIDValidity(data)

	c.selected = f.name
	c.state = StateSelected
	if c.uidCache != nil {
		c.uidCache.SetUIDValidity(f.name, uidValidity)
	}
	return nil
}

func extractUIDValidity(lines []wire.Line) uint32 {
	for _, line := range lines {
		for i, tok := range line.Tokens {
			// Bare "UIDVALIDITY 123" pair, as FETCH-style responses frame it.
			if tok.Kind == wire.KindAtom && strings.EqualFold(tok.Atom, "UIDVALIDITY") && i+1 < len(line.Tokens) {
				if line.Tokens[i+1].Kind == wire.KindNumber {
					return uint32(line.Tokens[i+1].Num)
				}
			}
			// "* OK [UIDVALIDITY 123]" response-code form: the bracketed
			// text arrives as one KindSection token's raw Section string.
			if tok.Kind == wire.KindSection {
				fields := strings.Fields(tok.Section)
				if len(fields) == 2 && strings.EqualFold(fields[0], "UIDVALIDITY") {
					if n, err := strconv.ParseUint(fields[1], 10, 32); err == nil {
						return uint32(n)
					}
				}
			}
		}
	}
	return 0
}

// FolderStatus is the parsed result of a STATUS command.
type FolderStatus struct {
	Exists      uint32
	Recent      uint32
	UIDNext     uint32
	UIDValidity uint32
	Unseen      uint32
}

// Status issues STATUS for the common item set.
func (f *Folder) Status(ctx context.Context) (*FolderStatus, error) {
	c := f.client
	if err := c.checkConnection(ctx); err != nil {
		return nil, err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	resp, err := c.engine.Do("STATUS", quoteWire(mutf7.Encode(f.name)),
		"(MESSAGES RECENT UIDNEXT UIDVALIDITY UNSEEN)")
	if err != nil {
		return nil, wrapFolderFetchErr(err)
	}
	data, err := resp.Data()
	if err != nil {
		return nil, wrapFolderFetchErr(err)
	}
	return parseStatusLines(data), nil
}

func parseStatusLines(lines []wire.Line) *FolderStatus {
	st := &FolderStatus{}
	for _, line := range lines {
		for _, tok := range line.Tokens {
			if tok.Kind != wire.KindList {
				continue
			}
			for i := 0; i+1 < len(tok.List); i += 2 {
				key := tok.List[i]
				val := tok.List[i+1]
				if key.Kind != wire.KindAtom || val.Kind != wire.KindNumber {
					continue
				}
				n := uint32(val.Num)
				switch strings.ToUpper(key.Atom) {
				case "MESSAGES":
					st.Exists = n
				case "RECENT":
					st.Recent = n
				case "UIDNEXT":
					st.UIDNext = n
				case "UIDVALIDITY":
					st.UIDValidity = n
				case "UNSEEN":
					st.Unseen = n
				}
			}
		}
	}
	return st
}

// Expunge permanently removes \Deleted messages; the folder must already
// be selected.
func (f *Folder) Expunge(ctx context.Context) error {
	return f.client.Expunge(ctx)
}

// GetMessages returns a Query bound to this folder.
func (f *Folder) GetMessages() *Query {
	return newQuery(f)
}

// Idle returns an IDLE loop bound to this folder, running on a cloned
// client so the primary session's command path is never blocked.
func (f *Folder) Idle(ctx context.Context) (*IdleLoop, error) {
	return newIdleLoop(ctx, f)
}

// Move renames the folder to newPath (a UTF-8 path).
func (f *Folder) Move(ctx context.Context, newPath string) error {
	c := f.client
	if err := c.checkConnection(ctx); err != nil {
		return err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	resp, err := c.engine.Do("RENAME", quoteWire(mutf7.Encode(f.name)), quoteWire(mutf7.Encode(newPath)))
	if err != nil {
		return wrapFolderFetchErr(err)
	}
	if _, err := resp.Data(); err != nil {
		return wrapFolderFetchErr(err)
	}
	if c.uidCache != nil {
		c.uidCache.Flush(f.name)
	}
	old := f.name
	f.name = newPath
	c.events.emit(SectionFolder, EventFolderMoved, FolderEvent{Folder: f})
	_ = old
	return nil
}

// Delete removes the folder.
func (f *Folder) Delete(ctx context.Context) error {
	return f.client.DeleteFolder(ctx, f.name)
}

// Subscribe/Unsubscribe mark the folder as (not) subscribed.
func (f *Folder) Subscribe(ctx context.Context) error   { return f.subscribeCmd(ctx, "SUBSCRIBE") }
func (f *Folder) Unsubscribe(ctx context.Context) error { return f.subscribeCmd(ctx, "UNSUBSCRIBE") }

func (f *Folder) subscribeCmd(ctx context.Context, cmd string) error {
	c := f.client
	if err := c.checkConnection(ctx); err != nil {
		return err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	resp, err := c.engine.Do(cmd, quoteWire(mutf7.Encode(f.name)))
	if err != nil {
		return wrapFolderFetchErr(err)
	}
	_, err = resp.Data()
	return err
}

func parseListLine(c *Client, line wire.Line) *Folder {
	if len(line.Tokens) < 1 || !line.Tokens[0].IsAtomEqual("LIST") {
		return nil
	}
	toks := line.Tokens[1:]
	if len(toks) < 3 {
		return nil
	}
	var flags []string
	if toks[0].Kind == wire.KindList {
		for _, fl := range toks[0].List {
			flags = append(flags, fl.String())
		}
	}
	delimiter := ""
	if toks[1].Kind == wire.KindString {
		delimiter = string(toks[1].Str)
	} else if toks[1].Kind == wire.KindAtom {
		delimiter = toks[1].Atom
	}
	var wireName string
	switch toks[2].Kind {
	case wire.KindString:
		wireName = string(toks[2].Str)
	case wire.KindAtom:
		wireName = toks[2].Atom
	}
	name, err := mutf7.Decode(wireName)
	if err != nil {
		name = wireName
	}
	return &Folder{client: c, name: name, delimiter: delimiter, flags: flags}
}

// buildFolderTree nests folders under their delimiter-split parent paths.
func buildFolderTree(flat []*Folder) []*Folder {
	byName := make(map[string]*Folder, len(flat))
	for _, f := range flat {
		byName[f.name] = f
	}
	var roots []*Folder
	for _, f := range flat {
		if f.delimiter == "" {
			roots = append(roots, f)
			continue
		}
		idx := strings.LastIndex(f.name, f.delimiter)
		if idx < 0 {
			roots = append(roots, f)
			continue
		}
		parentName := f.name[:idx]
		if parent, ok := byName[parentName]; ok {
			parent.children = append(parent.children, f)
		} else {
			roots = append(roots, f)
		}
	}
	return roots
}

func parseQuotaLines(lines []wire.Line) *Quota {
	q := &Quota{Resources: make(map[string][2]int64)}
	for _, line := range lines {
		if len(line.Tokens) == 0 || !line.Tokens[0].IsAtomEqual("QUOTA") {
			continue
		}
		if len(line.Tokens) >= 2 {
			q.Root = line.Tokens[1].String()
		}
		if len(line.Tokens) >= 3 && line.Tokens[2].Kind == wire.KindList {
			items := line.Tokens[2].List
			for i := 0; i+2 < len(items); i += 3 {
				name := items[i]
				usage := items[i+1]
				limit := items[i+2]
				if name.Kind != wire.KindAtom || usage.Kind != wire.KindNumber || limit.Kind != wire.KindNumber {
					continue
				}
				q.Resources[strings.ToUpper(name.Atom)] = [2]int64{usage.Num, limit.Num}
			}
		}
	}
	return q
}

func parseIDLines(lines []wire.Line) map[string]string {
	out := make(map[string]string)
	for _, line := range lines {
		if len(line.Tokens) < 2 || !line.Tokens[0].IsAtomEqual("ID") {
			continue
		}
		if line.Tokens[1].Kind != wire.KindList {
			continue
		}
		items := line.Tokens[1].List
		for i := 0; i+1 < len(items); i += 2 {
			k, v := items[i], items[i+1]
			if k.Kind != wire.KindString && k.Kind != wire.KindAtom {
				continue
			}
			key := k.Str
			if k.Kind == wire.KindAtom {
				key = []byte(k.Atom)
			}
			val := ""
			if v.Kind == wire.KindString {
				val = string(v.Str)
			} else if v.Kind == wire.KindAtom {
				val = v.Atom
			}
			out[string(key)] = val
		}
	}
	return out
}

func wrapFolderFetchErr(err error) error {
	return fmt.Errorf("%w: %v", ErrFolderFetchingFailed, err)
}
