package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingTransport struct {
	mu     sync.Mutex
	sent   []Message
	closed bool
	err    error
}

func (t *recordingTransport) Send(msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *recordingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func TestSocketPushUsesTopic(t *testing.T) {
	tr := &recordingTransport{}
	s := NewSocket("abc", tr)

	if err := s.Push("diff", map[string]any{"f": "<p>ok</p>"}); err != nil {
		t.Fatal(err)
	}
	if len(tr.sent) != 1 || tr.sent[0].Topic != "lv:abc" || tr.sent[0].Event != "diff" {
		t.Errorf("sent = %+v", tr.sent)
	}
}

func TestSocketSendWrapsTransportError(t *testing.T) {
	s := NewSocket("abc", &recordingTransport{err: errors.New("broken pipe")})
	if err := s.Push("diff", nil); !errors.Is(err, ErrSendFailed) {
		t.Errorf("err = %v, want ErrSendFailed", err)
	}
}

func TestSocketInfoQueue(t *testing.T) {
	s := NewSocket("abc", &recordingTransport{})

	if err := s.SendInfo("submitted"); err != nil {
		t.Fatal(err)
	}
	if got := <-s.Info(); got != "submitted" {
		t.Errorf("info = %v", got)
	}

	for i := 0; i < infoQueueSize; i++ {
		_ = s.SendInfo(i)
	}
	if err := s.SendInfo("overflow"); !errors.Is(err, ErrInfoFull) {
		t.Errorf("overflow err = %v", err)
	}
}

func TestSocketClose(t *testing.T) {
	tr := &recordingTransport{}
	s := NewSocket("abc", tr)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !tr.closed || !s.Closed() {
		t.Error("transport not closed")
	}
	if err := s.Push("diff", nil); !errors.Is(err, ErrSocketClosed) {
		t.Errorf("Push after close = %v", err)
	}
	if err := s.SendInfo("late"); !errors.Is(err, ErrSocketClosed) {
		t.Errorf("SendInfo after close = %v", err)
	}
}

func TestBuildContext(t *testing.T) {
	s := NewSocket("abc", &recordingTransport{})
	ctx := BuildContext(context.Background(), s, Session{"cookie:cart": "c1"}, Params{"role": "client"})

	if SocketFromContext(ctx) != s {
		t.Error("socket missing")
	}
	if SessionFromContext(ctx).Cookie("cart") != "c1" {
		t.Error("session missing")
	}
	if ParamsFromContext(ctx).Get("role") != "client" {
		t.Error("params missing")
	}
	if SocketFromContext(context.Background()) != nil {
		t.Error("expected nil socket")
	}
}
