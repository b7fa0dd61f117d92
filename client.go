package imapkit

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oakmoss/imapkit/internal/mutf7"
	"github.com/oakmoss/imapkit/internal/wire"
)

// ClientOptions configures a Client. There is no global configuration
// singleton: every Client is constructed explicitly from an options
// value, typically produced by the config package's loader but just as
// validly built by hand.
type ClientOptions struct {
	Host string
	Port int

	Encryption   wire.Encryption
	ValidateCert bool
	TLSConfig    *tls.Config

	Auth        AuthMethod
	Username    string
	Password    string
	TokenSource TokenSource

	Proxy *wire.ProxyConfig

	ConnectTimeout time.Duration
	StreamTimeout  time.Duration

	// DisableUIDCache turns off the in-memory UID cache entirely.
	DisableUIDCache bool
	// UIDCache overrides the default in-memory cache, e.g. with the
	// durable sqlite-backed implementation from the uidcache package.
	UIDCache UIDCache

	// ContentStore backs lazily-decoded attachment content, e.g. with
	// the blobstore package's filesystem or S3 implementation.
	ContentStore ContentStore

	// Logf receives log lines carrying a level prefix (INFO:, WARN:,
	// ERROR:); lines logged by the session itself are further prefixed
	// with "imapkit[<session id>]: ". Defaults to the standard log
	// package if nil.
	Logf func(format string, args ...any)
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 30 * time.Second
	}
	if o.StreamTimeout == 0 {
		o.StreamTimeout = 5 * time.Minute
	}
	if o.Logf == nil {
		o.Logf = func(format string, args ...any) { log.Printf(format, args...) }
	}
	return o
}

// Client is one IMAP session: transport, protocol engine, state machine,
// and the resources (UID cache, event bus) scoped to it. Concurrent calls
// against one Client are serialised by cmdMu; independent Client instances
// never share state.
type Client struct {
	opts ClientOptions

	cmdMu sync.Mutex

	engine *wire.Engine
	state  ConnState

	selected string // UTF-8 folder name, "" if none

	caps map[string]bool

	uidCache UIDCache
	events   *eventBus

	sessionID string
}

// New constructs a Client without connecting. Call Connect to open the
// transport and Authenticate to log in.
func New(opts ClientOptions) *Client {
	opts = opts.withDefaults()
	c := &Client{
		opts:      opts,
		state:     StateDisconnected,
		sessionID: uuid.NewString(),
		events:    newEventBus(opts.Logf),
	}
	if !opts.DisableUIDCache {
		if opts.UIDCache != nil {
			c.uidCache = opts.UIDCache
		} else {
			c.uidCache = newMemUIDCache()
		}
	}
	return c
}

func (c *Client) logf(format string, args ...any) {
	c.opts.Logf(fmt.Sprintf("imapkit[%s]: ", c.sessionID)+format, args...)
}

// On registers an event handler for section/name; see events.go.
func (c *Client) On(section EventSection, name string, h EventHandler) {
	c.events.On(section, name, h)
}

// AddEventSink registers an additional out-of-process subscriber, e.g. the
// eventbus package's MQTT publisher.
func (c *Client) AddEventSink(s EventSink) {
	c.events.AddSink(s)
}

// State returns the session's current lifecycle state.
func (c *Client) State() ConnState { return c.state }

// Connect opens the transport, reads the greeting, negotiates TLS for
// STARTTLS mode, and reads server capabilities.
func (c *Client) Connect(ctx context.Context) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	t, err := wire.Dial(ctx, wire.Options{
		Host:           c.opts.Host,
		Port:           c.opts.Port,
		Encryption:     c.opts.Encryption,
		ValidateCert:   c.opts.ValidateCert,
		TLSConfig:      c.opts.TLSConfig,
		ConnectTimeout: c.opts.ConnectTimeout,
		StreamTimeout:  c.opts.StreamTimeout,
		Proxy:          c.opts.Proxy,
	})
	if err != nil {
		c.state = StateDisconnected
		return wrapConn(err)
	}

	// Read the server greeting: "* OK ..." untagged line, no tag to
	// match yet.
	greeting, err := wire.ReadLine(t.Reader())
	if err != nil {
		t.Close()
		c.state = StateDisconnected
		return wrapConn(err)
	}
	c.logf("INFO: connected, greeting: %s", greeting.String())

	c.engine = wire.NewEngine(t, "A")

	if c.opts.Encryption == wire.EncryptionStartTLS {
		if err := c.negotiateStartTLS(); err != nil {
			t.Close()
			c.state = StateDisconnected
			return err
		}
	}

	c.state = StateConnected
	c.refreshCapabilities()
	return nil
}

func (c *Client) negotiateStartTLS() error {
	resp, err := c.engine.Do("STARTTLS")
	if err != nil {
		return wrapConn(err)
	}
	if _, err := resp.Data(); err != nil {
		return wrapConn(err)
	}
	return c.engine.Transport().StartTLS(c.opts.TLSConfig)
}

func (c *Client) refreshCapabilities() {
	resp, err := c.engine.Do("CAPABILITY")
	if err != nil {
		return
	}
	caps := make(map[string]bool)
	for _, line := range resp.Untagged {
		for _, tok := range line.Tokens {
			if tok.Kind == wire.KindAtom {
				caps[strings.ToUpper(tok.Atom)] = true
			}
		}
	}
	c.caps = caps
}

// HasCapability reports whether the server advertised name (case-insensitive).
func (c *Client) HasCapability(name string) bool {
	return c.caps[strings.ToUpper(name)]
}

// Authenticate logs in via the configured AuthMethod.
func (c *Client) Authenticate(ctx context.Context) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if err := c.authenticate(ctx); err != nil {
		return err
	}
	c.state = StateAuthenticated
	c.refreshCapabilities()
	return nil
}

// Disconnect sends LOGOUT if authenticated, then tears down the transport.
// The active folder is always cleared.
func (c *Client) Disconnect() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.selected = ""
	if c.engine == nil {
		c.state = StateDisconnected
		return nil
	}
	if c.state == StateAuthenticated || c.state == StateSelected || c.state == StateIdling {
		_, _ = c.engine.Do("LOGOUT")
	}
	err := c.engine.Transport().Close()
	c.state = StateLoggedOut
	return err
}

// Reconnect disconnects (if connected) and connects again, preserving
// configuration.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Disconnect()
	c.state = StateDisconnected
	if err := c.Connect(ctx); err != nil {
		return err
	}
	if c.opts.Username != "" {
		return c.Authenticate(ctx)
	}
	return nil
}

// Clone returns a second Client sharing configuration but with an
// independent transport, used by IDLE so the long-poll loop never blocks
// command traffic on the primary session.
func (c *Client) Clone() *Client {
	return New(c.opts)
}

// checkConnection reconnects if the session is not currently connected.
// Invoked before every command-issuing API.
func (c *Client) checkConnection(ctx context.Context) error {
	if c.state == StateDisconnected || c.state == StateLoggedOut {
		return c.Reconnect(ctx)
	}
	return nil
}

// GetFolder returns a Folder bound to this client for the given UTF-8
// folder path; it does not contact the server.
func (c *Client) GetFolder(name string) *Folder {
	return &Folder{client: c, name: name}
}

// OpenFolder selects (or examines, if readOnly) the named folder. It is a
// no-op if name is already the active folder and force is false.
func (c *Client) OpenFolder(ctx context.Context, name string, readOnly, force bool) (*Folder, error) {
	if err := c.checkConnection(ctx); err != nil {
		return nil, err
	}
	f := c.GetFolder(name)
	if !force && c.selected == name {
		return f, nil
	}
	if err := f.selectOrExamine(readOnly); err != nil {
		return nil, err
	}
	return f, nil
}

// GetFolders lists folders under parent (or the root, if parent == "")
// with a single LIST using a "*" wildcard. When hierarchical is false the
// folders come back as one flat list; when true they are assembled into a
// tree via Folder.Children, and only folders whose parent is not in the
// listing are returned at the top level.
func (c *Client) GetFolders(ctx context.Context, hierarchical bool, parent string) ([]*Folder, error) {
	if err := c.checkConnection(ctx); err != nil {
		return nil, err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	ref := mutf7.Encode(parent)
	pattern := "*"
	resp, err := c.engine.Do("LIST", quoteWire(ref), quoteWire(pattern))
	if err != nil {
		return nil, wrapFolderFetchErr(err)
	}
	data, err := resp.Data()
	if err != nil {
		return nil, wrapFolderFetchErr(err)
	}

	var out []*Folder
	for _, line := range data {
		f := parseListLine(c, line)
		if f != nil {
			out = append(out, f)
		}
	}
	if hierarchical {
		out = buildFolderTree(out)
	}
	return out, nil
}

// CreateFolder issues CREATE for a new mailbox.
func (c *Client) CreateFolder(ctx context.Context, name string) error {
	if err := c.checkConnection(ctx); err != nil {
		return err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	resp, err := c.engine.Do("CREATE", quoteWire(mutf7.Encode(name)))
	if err != nil {
		return wrapFolderFetchErr(err)
	}
	_, err = resp.Data()
	if err == nil {
		c.events.emit(SectionFolder, EventFolderNew, FolderEvent{Folder: c.GetFolder(name)})
	}
	return err
}

// DeleteFolder issues DELETE for an existing mailbox.
func (c *Client) DeleteFolder(ctx context.Context, name string) error {
	if err := c.checkConnection(ctx); err != nil {
		return err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	resp, err := c.engine.Do("DELETE", quoteWire(mutf7.Encode(name)))
	if err != nil {
		return wrapFolderFetchErr(err)
	}
	_, err = resp.Data()
	if err == nil {
		c.events.emit(SectionFolder, EventFolderDeleted, FolderEvent{Folder: c.GetFolder(name)})
		if c.uidCache != nil {
			c.uidCache.Flush(name)
		}
	}
	return err
}

// Expunge permanently removes messages marked \Deleted in the selected
// folder.
func (c *Client) Expunge(ctx context.Context) error {
	if err := c.checkConnection(ctx); err != nil {
		return err
	}
	if c.state != StateSelected {
		return requireAtLeast(c.state, StateSelected)
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	resp, err := c.engine.Do("EXPUNGE")
	if err != nil {
		return wrapFolderFetchErr(err)
	}
	_, err = resp.Data()
	return err
}

// Quota is the result of GETQUOTA/GETQUOTAROOT: per-resource usage and
// limit (e.g. "STORAGE", in KiB).
type Quota struct {
	Root      string
	Resources map[string][2]int64 // name -> [usage, limit]
}

// GetQuota issues GETQUOTAROOT against folder, falling back to GETQUOTA
// "" when the server has no roots for it.
func (c *Client) GetQuota(ctx context.Context, folder string) (*Quota, error) {
	if err := c.checkConnection(ctx); err != nil {
		return nil, err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	resp, err := c.engine.Do("GETQUOTAROOT", quoteWire(mutf7.Encode(folder)))
	if err != nil {
		return nil, err
	}
	data, err := resp.Data()
	if err != nil {
		return nil, err
	}
	q := parseQuotaLines(data)
	if len(q.Resources) == 0 {
		resp, err = c.engine.Do("GETQUOTA", quoteWire(""))
		if err != nil {
			return nil, err
		}
		if data, err = resp.Data(); err != nil {
			return nil, err
		}
		q = parseQuotaLines(data)
	}
	return q, nil
}

// ID exchanges client/server identification strings (RFC 2971).
func (c *Client) ID(ctx context.Context, clientID map[string]string) (map[string]string, error) {
	if err := c.checkConnection(ctx); err != nil {
		return nil, err
	}
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	arg := "NIL"
	if len(clientID) > 0 {
		var parts []string
		for k, v := range clientID {
			parts = append(parts, quoteWire(k), quoteWire(v))
		}
		arg = "(" + strings.Join(parts, " ") + ")"
	}
	resp, err := c.engine.Do("ID", arg)
	if err != nil {
		return nil, err
	}
	data, err := resp.Data()
	if err != nil {
		return nil, err
	}
	return parseIDLines(data), nil
}

func quoteWire(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
