package notify

import (
	"context"
	"sync"
	"testing"
)

type fakePoster struct {
	mu       sync.Mutex
	replaces []uint32
	next     uint32
}

func (p *fakePoster) post(_ string, replaces uint32, _, _ string) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replaces = append(p.replaces, replaces)
	p.next++
	return p.next, nil
}

func newTestDesktopAdapter(p poster) *DesktopAdapter {
	return &DesktopAdapter{AppName: "tickbar", dialed: true, poster: p}
}

func TestDeliverReplacesPreviousInstanceOfSameID(t *testing.T) {
	fp := &fakePoster{}
	a := newTestDesktopAdapter(fp)
	ctx := context.Background()

	if err := a.Deliver(ctx, Notification{ID: IdentStale, Title: "t", Body: "first"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := a.Deliver(ctx, Notification{ID: IdentStale, Title: "t", Body: "second"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if len(fp.replaces) != 2 {
		t.Fatalf("posted %d notifications, want 2", len(fp.replaces))
	}
	if fp.replaces[0] != 0 {
		t.Fatalf("first delivery replaced handle %d, want fresh post", fp.replaces[0])
	}
	if fp.replaces[1] != 1 {
		t.Fatalf("second delivery replaced handle %d, want the first instance's handle 1", fp.replaces[1])
	}
}

func TestDeliverDistinctIDsDoNotReplaceEachOther(t *testing.T) {
	fp := &fakePoster{}
	a := newTestDesktopAdapter(fp)
	ctx := context.Background()

	if err := a.Deliver(ctx, Notification{ID: IdentStale, Body: "stale"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := a.Deliver(ctx, Notification{ID: IdentTest, Body: "test"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if fp.replaces[1] != 0 {
		t.Fatalf("unrelated identifier replaced handle %d, want fresh post", fp.replaces[1])
	}
}
