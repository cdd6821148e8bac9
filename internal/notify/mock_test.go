package notify

import (
	"context"
	"testing"
)

// Compile-time interface compliance check.
var _ Adapter = (*MockAdapter)(nil)

func TestMockAdapter_ConnectAndClose(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Connect after close should fail.
	if err := m.Connect(ctx); err == nil {
		t.Fatal("Connect after Close should fail")
	}

	// Double close should be safe.
	if err := m.Close(); err != nil {
		t.Fatalf("double Close should succeed: %v", err)
	}
}

func TestMockAdapter_SendRequiresConnect(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()

	err := m.Send(ctx, Message{Text: "hello"})
	if err == nil {
		t.Fatal("Send before Connect should fail")
	}
}

func TestMockAdapter_RecordsSends(t *testing.T) {
	m := NewMockAdapter()
	ctx := context.Background()
	m.Connect(ctx)

	if _, ok := m.LastSent(); ok {
		t.Fatal("LastSent should report false before any send")
	}

	m.Send(ctx, Message{Text: "one"})
	m.Send(ctx, Message{Text: "two", ChannelID: "C9"})

	if m.SentCount() != 2 {
		t.Fatalf("SentCount = %d, want 2", m.SentCount())
	}
	last, ok := m.LastSent()
	if !ok {
		t.Fatal("LastSent should report true")
	}
	if last.Text != "two" || last.ChannelID != "C9" {
		t.Errorf("last = %+v, want text 'two' on C9", last)
	}
	all := m.AllSent()
	if len(all) != 2 || all[0].Text != "one" {
		t.Errorf("AllSent = %+v, want [one two]", all)
	}
}
