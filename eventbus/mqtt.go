// Package eventbus provides an MQTT-backed implementation of
// imapkit.EventSink, publishing every dispatched event onto a broker topic
// so out-of-process consumers (dashboards, automation rules) can observe
// message/folder/flag activity without polling the mailbox themselves.
package eventbus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// Config holds the broker connection settings for an MQTT-backed Publisher.
type Config struct {
	// Broker is a URL such as "mqtt://localhost:1883" or
	// "mqtts://broker.example.com:8883".
	Broker   string
	Username string
	Password string

	// TopicPrefix namespaces published topics, e.g. "imapkit/<account>".
	// Events land on TopicPrefix + "/" + section + "/" + name.
	TopicPrefix string

	// ClientID identifies this connection to the broker. Truncated by the
	// broker if it exceeds the protocol's limit.
	ClientID string

	// QoS is the MQTT quality-of-service level used for every publish.
	QoS byte
}

// envelope is the JSON body published for every event. Payload is
// marshalled best-effort: event payload types carry unexported fields the
// publisher cannot see into, so this captures whatever JSON encoding
// exposes rather than a hand-maintained projection.
type envelope struct {
	Section string          `json:"section"`
	Name    string          `json:"name"`
	Time    string          `json:"time"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Publisher connects to an MQTT broker and publishes every event handed to
// it via Publish. It implements imapkit.EventSink through structural
// typing: imapkit never imports this package.
type Publisher struct {
	cfg  Config
	cm   *autopaho.ConnectionManager
	logf func(format string, args ...any)
}

// New creates a Publisher but does not connect. Call Start before
// registering it as a sink.
func New(cfg Config, logf func(format string, args ...any)) *Publisher {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}
	return &Publisher{cfg: cfg, logf: logf}
}

// Start connects to the configured broker. It waits for the initial
// connection for at most ten seconds (less if ctx is cancelled sooner);
// if that wait ends first it logs a warning and returns nil while
// autopaho keeps retrying in the background, so a slow or flapping broker
// never wedges a caller's startup past the initial attempt.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("eventbus: parsing broker URL: %w", err)
	}

	clientID := p.cfg.ClientID
	if clientID == "" {
		clientID = "imapkit"
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logf("INFO: eventbus: connected to %s", p.cfg.Broker)
		},
		OnConnectError: func(err error) {
			p.logf("WARN: eventbus: connection error: %v", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("eventbus: connecting: %w", err)
	}
	p.cm = cm

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logf("WARN: eventbus: initial connection timed out, retrying in background: %v", err)
	}
	return nil
}

// Stop disconnects from the broker, waiting up to the context's deadline
// for in-flight publishes to drain.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	return p.cm.Disconnect(ctx)
}

// Publish implements imapkit.EventSink. The publish runs synchronously
// with its own five-second context, so it holds up the caller's event
// dispatch for at most that long; failures are logged, not returned,
// matching the sink contract's fire-and-forget shape.
func (p *Publisher) Publish(section, name string, payload any) {
	if p.cm == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		p.logf("WARN: eventbus: marshalling payload for %s.%s: %v", section, name, err)
		raw = nil
	}

	body, err := json.Marshal(envelope{
		Section: string(section),
		Name:    name,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Payload: raw,
	})
	if err != nil {
		p.logf("WARN: eventbus: marshalling envelope for %s.%s: %v", section, name, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	topic := p.topicFor(section, name)
	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: body,
		QoS:     p.cfg.QoS,
	}); err != nil {
		p.logf("WARN: eventbus: publishing to %s: %v", topic, err)
	}
}

func (p *Publisher) topicFor(section, name string) string {
	prefix := p.cfg.TopicPrefix
	if prefix == "" {
		prefix = "imapkit"
	}
	return prefix + "/" + section + "/" + name
}
