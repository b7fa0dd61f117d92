package wire

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// Encryption selects when (if ever) TLS is applied to the connection.
type Encryption int

const (
	EncryptionNone     Encryption = iota // plaintext, no upgrade offered
	EncryptionNoTLS                      // plaintext, and refuse STARTTLS even if the server offers it
	EncryptionSSL                        // implicit TLS from the first byte (e.g. port 993)
	EncryptionTLS                        // alias of SSL; kept distinct for config-surface parity with callers migrating from other clients
	EncryptionStartTLS                   // plaintext greeting, then STARTTLS upgrade
)

// ProxyConfig describes an HTTP CONNECT or SOCKS5 tunnel to dial through.
type ProxyConfig struct {
	Network  string // "http" or "socks5"
	Addr     string
	Username string
	Password string
}

// Options configures a Dial.
type Options struct {
	Host string
	Port int

	Encryption   Encryption
	ValidateCert bool
	TLSConfig    *tls.Config // overrides the default derived from ValidateCert/Host, if set

	ConnectTimeout time.Duration // bounds the TCP connect (and proxy dial) only; the TLS handshake and greeting read are not bounded by it
	StreamTimeout  time.Duration // bounds any single subsequent read

	Proxy *ProxyConfig
}

// Transport owns the raw socket and the buffered reader the tokeniser reads
// literals from. At most one goroutine may use Read/Write methods at a time;
// serialisation is the engine's responsibility.
type Transport struct {
	conn   net.Conn
	reader *bufio.Reader

	streamTimeout time.Duration
	validateCert  bool
	host          string
}

// Dial opens the TCP connection and, for SSL/TLS modes, performs the TLS
// handshake immediately. STARTTLS upgrades happen later via StartTLS.
func Dial(ctx context.Context, opts Options) (*Transport, error) {
	addr := net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}

	var conn net.Conn
	var err error

	switch {
	case opts.Proxy != nil:
		conn, err = dialViaProxy(ctx, dialer, addr, opts.Proxy)
	default:
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s: %w", addr, err)
	}

	t := &Transport{
		conn:          conn,
		streamTimeout: opts.StreamTimeout,
		validateCert:  opts.ValidateCert,
		host:          opts.Host,
	}

	if opts.Encryption == EncryptionSSL || opts.Encryption == EncryptionTLS {
		if err := t.upgradeTLS(opts.TLSConfig); err != nil {
			conn.Close()
			return nil, err
		}
	}

	t.reader = bufio.NewReaderSize(t.conn, 8192)
	return t, nil
}

func dialViaProxy(ctx context.Context, dialer *net.Dialer, addr string, p *ProxyConfig) (net.Conn, error) {
	switch p.Network {
	case "socks5":
		var auth *proxy.Auth
		if p.Username != "" {
			auth = &proxy.Auth{User: p.Username, Password: p.Password}
		}
		d, err := proxy.SOCKS5("tcp", p.Addr, auth, dialer)
		if err != nil {
			return nil, err
		}
		type contextDialer interface {
			DialContext(ctx context.Context, network, address string) (net.Conn, error)
		}
		if cd, ok := d.(contextDialer); ok {
			return cd.DialContext(ctx, "tcp", addr)
		}
		return d.Dial("tcp", addr)
	case "http", "":
		return dialHTTPConnect(ctx, dialer, p, addr)
	default:
		return nil, fmt.Errorf("wire: unsupported proxy network %q", p.Network)
	}
}

func dialHTTPConnect(ctx context.Context, dialer *net.Dialer, p *ProxyConfig, target string) (net.Conn, error) {
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return nil, err
	}
	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n", target, target)
	if p.Username != "" {
		req += "Proxy-Authorization: Basic " + basicAuth(p.Username, p.Password) + "\r\n"
	}
	req += "\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(status) < 12 || (status[9] != '2') {
		conn.Close()
		return nil, fmt.Errorf("wire: proxy CONNECT failed: %s", status)
	}
	// drain remaining header lines
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			conn.Close()
			return nil, err
		}
		if line == "\r\n" || line == "\n" {
			break
		}
	}
	return conn, nil
}

// NewTransport wraps an already-established net.Conn, skipping Dial. Used
// by tests and by callers that manage their own connection setup (e.g. a
// pre-authenticated tunnel).
func NewTransport(conn net.Conn, streamTimeout time.Duration, validateCert bool, host string) *Transport {
	return &Transport{
		conn:          conn,
		reader:        bufio.NewReaderSize(conn, 8192),
		streamTimeout: streamTimeout,
		validateCert:  validateCert,
		host:          host,
	}
}

// StartTLS performs an in-place TLS upgrade (used after a plaintext STARTTLS
// command completes OK).
func (t *Transport) StartTLS(cfg *tls.Config) error {
	return t.upgradeTLS(cfg)
}

func (t *Transport) upgradeTLS(cfg *tls.Config) error {
	if cfg == nil {
		cfg = &tls.Config{ServerName: t.host, InsecureSkipVerify: !t.validateCert}
	}
	tlsConn := tls.Client(t.conn, cfg)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return fmt.Errorf("wire: tls handshake: %w", err)
	}
	t.conn = tlsConn
	t.reader = bufio.NewReaderSize(t.conn, 8192)
	return nil
}

// Reader returns the buffered reader used by the tokeniser.
func (t *Transport) Reader() *bufio.Reader { return t.reader }

// Write sends raw bytes, applying the stream deadline.
func (t *Transport) Write(b []byte) error {
	if t.streamTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.streamTimeout))
	}
	_, err := t.conn.Write(b)
	return err
}

// SetReadDeadline applies a one-shot read deadline; pass zero time.Time (via
// 0 duration) to clear it. Used by IDLE to bound a single read without
// affecting subsequent command traffic.
func (t *Transport) SetReadDeadline(d time.Duration) {
	if d <= 0 {
		t.conn.SetReadDeadline(time.Time{})
		return
	}
	t.conn.SetReadDeadline(time.Now().Add(d))
}

// ApplyStreamDeadline sets the read deadline to the configured per-read
// stream timeout, as used by ordinary (non-IDLE) command traffic.
func (t *Transport) ApplyStreamDeadline() {
	t.SetReadDeadline(t.streamTimeout)
}

func (t *Transport) Close() error {
	return t.conn.Close()
}

func basicAuth(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
