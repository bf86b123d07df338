package store

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := s.Last(ctx, "req-1"); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}

	if err := s.Save(ctx, "req-1", []byte(`{"request_id":"req-1"}`)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	body, ok, err := s.Last(ctx, "req-1")
	if err != nil || !ok {
		t.Fatalf("expected stored payload, got ok=%v err=%v", ok, err)
	}
	if string(body) != `{"request_id":"req-1"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestMemoryStoreKeepsLastPayload(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Save(ctx, "req-1", []byte(`first`))
	_ = s.Save(ctx, "req-1", []byte(`second`))

	body, ok, _ := s.Last(ctx, "req-1")
	if !ok || string(body) != "second" {
		t.Fatalf("expected last payload, got %q", body)
	}
}

func TestMemoryStoreCopiesBody(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("payload")
	_ = s.Save(ctx, "req-1", buf)
	buf[0] = 'X'

	body, _, _ := s.Last(ctx, "req-1")
	if string(body) != "payload" {
		t.Fatalf("stored body was mutated: %q", body)
	}
}
