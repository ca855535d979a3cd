package gate

import (
	"errors"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	g := New()

	if err := g.Acquire("s1"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := g.Acquire("s1"); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	// other sessions are unaffected
	if err := g.Acquire("s2"); err != nil {
		t.Fatalf("acquire distinct session: %v", err)
	}

	g.Release("s1")
	if err := g.Acquire("s1"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestReleaseUnknownSession(t *testing.T) {
	g := New()
	g.Release("never-acquired")
	if err := g.Acquire("never-acquired"); err != nil {
		t.Fatalf("acquire after spurious release: %v", err)
	}
}
