package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	logx "tickbar/pkg/logx"
)

func openTestStore(t *testing.T, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestFileStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t, t.TempDir())
	defer st.Close()

	if _, ok, err := st.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := st.Put(ctx, "a", "1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := st.Get(ctx, "a")
	if err != nil || !ok || v != "1" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := st.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "a"); ok {
		t.Fatalf("key survived delete")
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st := openTestStore(t, dir)
	if err := st.Put(ctx, "timer.hours", "1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Put(ctx, "timer.message", "tea"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Delete(ctx, "timer.hours"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2 := openTestStore(t, dir)
	defer st2.Close()
	if _, ok, _ := st2.Get(ctx, "timer.hours"); ok {
		t.Fatalf("deleted key resurrected after reopen")
	}
	v, ok, _ := st2.Get(ctx, "timer.message")
	if !ok || v != "tea" {
		t.Fatalf("value lost across reopen: v=%q ok=%v", v, ok)
	}
}

func TestFileStoreCompaction(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st := openTestStore(t, dir)
	// Enough writes to cross the compaction boundary at least once.
	for i := 0; i < compactEvery+10; i++ {
		if err := st.Put(ctx, fmt.Sprintf("k%03d", i%20), fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2 := openTestStore(t, dir)
	defer st2.Close()
	for i := compactEvery - 10; i < compactEvery+10; i++ {
		key := fmt.Sprintf("k%03d", i%20)
		if _, ok, _ := st2.Get(ctx, key); !ok {
			t.Fatalf("key %s lost after compaction", key)
		}
	}
}

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("disabled open: st=%v err=%v", st, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "etcd", Path: "x"}, logx.Nop()); err == nil {
		t.Fatalf("unknown driver accepted")
	}
}
