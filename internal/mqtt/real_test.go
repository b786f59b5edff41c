package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/crate-controller/internal/crate"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	open         bool
	published    []published
	subscribed   []string
	publishErr   error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{err: c.publishErr}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	return &fakeToken{}
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.open = false
}

func (c *fakeClient) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var topics []string
	for _, p := range c.published {
		topics = append(topics, p.topic)
	}
	return topics
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestPublisher(onCommand CommandFunc) (*RealPublisher, *fakeClient) {
	c := &fakeClient{}
	return newPublisher(c, onCommand, func() time.Time { return testNow }), c
}

func TestRealPublisherPublishesWhenConnected(t *testing.T) {
	p, c := newTestPublisher(nil)
	c.open = true

	if err := p.Publish(crate.Event{Timestamp: testNow, Type: crate.EventOpen, State: crate.StateOpening}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Timestamp: testNow, Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(c.published) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(c.published))
	}
	if c.published[0].topic != Topic || c.published[0].qos != 0 {
		t.Errorf("event: got topic=%s qos=%d", c.published[0].topic, c.published[0].qos)
	}
	if c.published[1].topic != TopicSystem || c.published[1].qos != 1 || !c.published[1].retained {
		t.Errorf("system: got %+v", c.published[1])
	}
}

func TestRealPublisherPublishError(t *testing.T) {
	p, c := newTestPublisher(nil)
	c.open = true
	c.publishErr = errors.New("broker says no")

	err := p.Publish(crate.Event{Timestamp: testNow, Type: crate.EventOpen})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, c.publishErr) {
		t.Errorf("expected wrapped broker error, got %v", err)
	}
}

func TestRealPublisherBuffersWhileOffline(t *testing.T) {
	p, c := newTestPublisher(nil)

	p.Publish(crate.Event{Timestamp: testNow, Type: crate.EventOpen})
	p.Publish(crate.Event{Timestamp: testNow, Type: crate.EventTimeout})

	if len(c.published) != 0 {
		t.Fatalf("expected nothing sent while offline, got %d", len(c.published))
	}
	if p.buf.len() != 2 {
		t.Fatalf("expected 2 buffered, got %d", p.buf.len())
	}

	c.open = true
	p.handleConnect()

	got := c.topics()
	if len(got) != 2 || got[0] != Topic || got[1] != Topic {
		t.Errorf("unexpected replay: %v", got)
	}
	if p.buf.len() != 0 {
		t.Errorf("expected empty buffer after replay, got %d", p.buf.len())
	}
	if !p.IsConnected() {
		t.Error("expected connected after handleConnect")
	}
}

func TestRealPublisherReconnectedOnlyAfterFirstConnect(t *testing.T) {
	p, c := newTestPublisher(nil)
	c.open = true

	p.handleConnect()
	if len(c.published) != 0 {
		t.Fatalf("first connect should not publish, got %v", c.topics())
	}

	p.handleConnectionLost(errors.New("EOF"))
	if p.IsConnected() {
		t.Error("expected disconnected after connection lost")
	}

	p.handleConnect()
	if len(c.published) != 1 {
		t.Fatalf("expected RECONNECTED, got %v", c.topics())
	}

	var parsed SystemPayload
	if err := json.Unmarshal(c.published[0].payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Event != "RECONNECTED" {
		t.Errorf("event: got %s, want RECONNECTED", parsed.System.Event)
	}
}

func TestRealPublisherSubscribesToCommands(t *testing.T) {
	p, c := newTestPublisher(func(string) (string, error) { return "", nil })
	c.open = true

	p.handleConnect()

	if len(c.subscribed) != 1 || c.subscribed[0] != TopicCommand {
		t.Errorf("subscriptions: got %v", c.subscribed)
	}
}

func TestRealPublisherNoSubscribeWithoutHandler(t *testing.T) {
	p, c := newTestPublisher(nil)
	c.open = true

	p.handleConnect()

	if len(c.subscribed) != 0 {
		t.Errorf("expected no subscriptions, got %v", c.subscribed)
	}
}

func TestRealPublisherHandleCommand(t *testing.T) {
	var gotPath string
	p, c := newTestPublisher(func(path string) (string, error) {
		gotPath = path
		return "NOT PRESSED\r\n\r\n", nil
	})
	c.open = true

	p.handleCommand([]byte("/reset/get\n"))

	if gotPath != "/reset/get" {
		t.Errorf("path: got %q, want /reset/get", gotPath)
	}
	if len(c.published) != 1 || c.published[0].topic != TopicReply {
		t.Fatalf("expected one reply, got %v", c.topics())
	}

	expected := `{"reply":{"timestamp":"2026-03-01T09:00:00Z","path":"/reset/get","ok":true,"body":"NOT PRESSED"}}`
	if string(c.published[0].payload) != expected {
		t.Errorf("unexpected reply:\ngot:  %s\nwant: %s", c.published[0].payload, expected)
	}
}

func TestRealPublisherHandleCommandError(t *testing.T) {
	p, c := newTestPublisher(func(string) (string, error) {
		return "", errors.New("unknown command path")
	})
	c.open = true

	p.handleCommand([]byte("/nope"))

	var parsed ReplyPayload
	if err := json.Unmarshal(c.published[0].payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Reply.OK {
		t.Error("expected ok=false")
	}
	if parsed.Reply.Error != "unknown command path" {
		t.Errorf("error: got %q", parsed.Reply.Error)
	}
}

func TestRealPublisherClose(t *testing.T) {
	p, c := newTestPublisher(nil)
	c.open = true
	p.handleConnect()

	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.disconnected {
		t.Error("expected client disconnect")
	}
	if p.IsConnected() {
		t.Error("expected disconnected after Close")
	}
}
