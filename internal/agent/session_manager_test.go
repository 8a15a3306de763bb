package agent

import "testing"

func TestSessionManagerGetOrCreateMintsFreshID(t *testing.T) {
	m := NewSessionManager()
	id1 := m.GetOrCreate("chat-1", "telegram")
	if id1 == "" {
		t.Fatal("expected a non-empty session id")
	}

	id2 := m.GetOrCreate("chat-2", "telegram")
	if id2 == "" || id2 == id1 {
		t.Fatalf("expected a distinct fresh id for a new key, got %q and %q", id1, id2)
	}
}

func TestSessionManagerGetOrCreateReusesExistingBinding(t *testing.T) {
	m := NewSessionManager()
	first := m.GetOrCreate("chat-1", "telegram")
	second := m.GetOrCreate("chat-1", "telegram")

	if first != second {
		t.Fatalf("expected the same session id on repeat lookup, got %q then %q", first, second)
	}
}

func TestSessionManagerGetOrCreateRefreshesLastActive(t *testing.T) {
	m := NewSessionManager()
	m.GetOrCreate("chat-1", "telegram")
	first, _ := m.Info("chat-1")

	m.GetOrCreate("chat-1", "telegram")
	second, _ := m.Info("chat-1")

	if second.LastActive.Before(first.LastActive) {
		t.Fatal("expected LastActive to advance or stay equal, never regress")
	}
	if second.StartedAt != first.StartedAt {
		t.Fatal("expected StartedAt to remain stable across repeat lookups")
	}
}

func TestSessionManagerListReturnsAllKeys(t *testing.T) {
	m := NewSessionManager()
	m.GetOrCreate("a", "telegram")
	m.GetOrCreate("b", "slack")

	keys := m.List()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}

func TestSessionManagerForgetRemovesBinding(t *testing.T) {
	m := NewSessionManager()
	first := m.GetOrCreate("chat-1", "telegram")
	m.Forget("chat-1")
	second := m.GetOrCreate("chat-1", "telegram")

	if first == second {
		t.Fatal("expected a fresh session id after Forget")
	}
}

func TestSessionManagerInfoUnknownKey(t *testing.T) {
	m := NewSessionManager()
	if _, ok := m.Info("nope"); ok {
		t.Fatal("expected no info for an unknown key")
	}
}
