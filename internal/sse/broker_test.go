package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func receive(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestBroker_ClientCountFollowsSubscriptions(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	a, c := b.Subscribe(), b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}
	b.Unsubscribe(a)
	b.Unsubscribe(a)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d after unsubscribe, want 1", n)
	}
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel still open")
	}
	b.Unsubscribe(c)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d, want 0", n)
	}
}

func TestPublishBuild_Completed(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishBuild(12, 4, 1500*time.Millisecond, nil)

	s := receive(t, ch)
	if !strings.HasPrefix(s, "event: build.completed\n") {
		t.Errorf("missing event type in %q", s)
	}
	if !strings.Contains(s, `"nodes":12,"documents":4,"elapsed_ms":1500`) {
		t.Errorf("missing data in %q", s)
	}
}

func TestPublishBuild_Failed(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishBuild(0, 0, 0, errors.New("prepare a.md: bad date"))

	s := receive(t, ch)
	if !strings.Contains(s, "event: build.failed") || !strings.Contains(s, `"error":"prepare a.md: bad date"`) {
		t.Errorf("unexpected message %q", s)
	}
}

func TestSubscribe_ReplaysLatestBuild(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	b.Publish(Event{Type: "test", Data: 1})
	b.PublishBuild(0, 0, 0, errors.New("first"))
	b.PublishBuild(3, 1, 0, nil)
	time.Sleep(50 * time.Millisecond)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	if s := receive(t, ch); !strings.Contains(s, "event: build.completed") || !strings.Contains(s, `"nodes":3`) {
		t.Errorf("replay = %q, want latest build.completed", s)
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEvent_EncodeFrame(t *testing.T) {
	frame, err := Event{Type: BuildFailed, Data: BuildFailedData{Error: "x"}}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(frame), "event: build.failed\ndata: {\"error\":\"x\"}\n\n"; got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
	if _, err := (Event{Type: "bad", Data: make(chan int)}).Encode(); err == nil {
		t.Error("expected encode error for unsupported data")
	}
}

func TestServeHTTP_StreamsUntilDisconnect(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx))
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.ClientCount() != 1 {
		cancel()
		t.Fatal("handler did not subscribe")
	}

	b.PublishBuild(1, 1, time.Millisecond, nil)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "event: build.completed") {
		t.Errorf("stream missing event: %q", body)
	}
	time.Sleep(20 * time.Millisecond)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after disconnect, want 0", n)
	}
}

func TestPublish_SlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	finished := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*4; i++ {
			b.PublishBuild(i, 0, 0, nil)
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full client")
	}
}

func TestClose_EndsStreamsAndIgnoresLaterCalls(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	b.Close()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel not closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after close", n)
	}
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
	b.PublishBuild(1, 1, 0, nil)
	b.Close()
}
