package eventbus

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestTopicFor(t *testing.T) {
	p := New(Config{TopicPrefix: "imapkit/work"}, nil)
	got := p.topicFor("message", "new")
	want := "imapkit/work/message/new"
	if got != want {
		t.Errorf("topicFor = %q, want %q", got, want)
	}
}

func TestTopicForDefaultsPrefix(t *testing.T) {
	p := New(Config{}, nil)
	got := p.topicFor("folder", "moved")
	want := "imapkit/folder/moved"
	if got != want {
		t.Errorf("topicFor = %q, want %q", got, want)
	}
}

func TestPublishBeforeStartIsNoop(t *testing.T) {
	p := New(Config{}, nil)
	// cm is nil until Start succeeds; Publish must not panic or block.
	p.Publish("message", "new", map[string]string{"uid": "7"})
}

func TestQoSClampedToValidRange(t *testing.T) {
	p := New(Config{QoS: 9}, nil)
	if p.cfg.QoS != 1 {
		t.Errorf("QoS = %d, want clamped to 1", p.cfg.QoS)
	}
}

// TestPublisherConnectAndPublish verifies a live round trip against a
// running MQTT broker. Run Mosquitto or another broker first, then:
//
//	EVENTBUS_BROKER=mqtt://localhost:1883 go test -v ./eventbus/ -run TestPublisherConnectAndPublish
func TestPublisherConnectAndPublish(t *testing.T) {
	broker := os.Getenv("EVENTBUS_BROKER")
	if broker == "" {
		t.Skip("EVENTBUS_BROKER not set, skipping integration test")
	}

	var logged []string
	p := New(Config{Broker: broker, TopicPrefix: "imapkit/test", ClientID: "imapkit-test"}, func(format string, args ...any) {
		logged = append(logged, format)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	p.Publish("message", "new", map[string]string{"uid": "42"})
}
