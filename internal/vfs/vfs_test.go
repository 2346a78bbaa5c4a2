package vfs

import (
	"path/filepath"
	"testing"

	"github.com/limpingninja/ci2go/internal/object"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	fs, err := New(filepath.Join(t.TempDir(), "root"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fs
}

func TestReadWriteRoundTrip(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.WriteFile("/notes.txt", "line one\nline two\nline three", object.Handle{}, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := fs.ReadFile("/notes.txt", object.Handle{}, true, 0, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "line one\nline two\nline three"
	if got != want {
		t.Fatalf("ReadFile whole = %q, want %q", got, want)
	}

	got, err = fs.ReadFile("/notes.txt", object.Handle{}, true, 2, 1)
	if err != nil {
		t.Fatalf("ReadFile range: %v", err)
	}
	if got != "line two" {
		t.Fatalf("ReadFile(2,1) = %q, want %q", got, "line two")
	}
}

func TestWriteAppends(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.WriteFile("/log.txt", "first\n", object.Handle{}, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fs.WriteFile("/log.txt", "second\n", object.Handle{}, true); err != nil {
		t.Fatalf("WriteFile append: %v", err)
	}
	got, err := fs.ReadFile("/log.txt", object.Handle{}, true, 0, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "first\nsecond\n" {
		t.Fatalf("got %q, want appended content", got)
	}
}

func TestPathEscapeIsContained(t *testing.T) {
	fs := newTestFS(t)
	if err := fs.WriteFile("/../../../../etc/passwd", "pwned", object.Handle{}, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	host := fs.hostPath("/../../../../etc/passwd")
	if host != filepath.Join(fs.Base, "etc", "passwd") {
		t.Fatalf("hostPath escaped the sandbox: %s", host)
	}
}

func TestMasterCallbackGatesAccess(t *testing.T) {
	fs := newTestFS(t)
	denyAll := func(path string, op Op, caller, owner object.Handle, flags int) bool { return false }
	fs.Callback = denyAll

	caller := object.Handle{Slot: 1, Gen: 1}
	if err := fs.WriteFile("/secret.txt", "x", caller, false); err != ErrPermission {
		t.Fatalf("WriteFile with denying callback = %v, want ErrPermission", err)
	}

	// privileged bypasses the callback entirely
	if err := fs.WriteFile("/secret.txt", "x", caller, true); err != nil {
		t.Fatalf("privileged WriteFile should bypass callback: %v", err)
	}

	// a NULL (zero) caller is a system operation and also bypasses
	if err := fs.WriteFile("/sysfile.txt", "x", object.Handle{}, false); err != nil {
		t.Fatalf("NULL-caller WriteFile should bypass callback: %v", err)
	}
}

func TestMasterCallbackObservesPath(t *testing.T) {
	fs := newTestFS(t)
	var seenPath string
	var seenOp Op
	fs.Callback = func(path string, op Op, caller, owner object.Handle, flags int) bool {
		seenPath, seenOp = path, op
		return true
	}
	caller := object.Handle{Slot: 1, Gen: 1}
	if err := fs.WriteFile("/data/thing.txt", "x", caller, false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if seenPath != "/data/thing.txt" {
		t.Fatalf("callback saw path %q, want /data/thing.txt", seenPath)
	}
	if seenOp != OpWrite {
		t.Fatalf("callback saw op %q, want %q", seenOp, OpWrite)
	}
}

func TestFileSizeSentinels(t *testing.T) {
	fs := newTestFS(t)
	caller := object.Handle{}
	if err := fs.Mkdir("/adir", caller, PermRead|PermWrite); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := fs.WriteFile("/afile.txt", "hello", caller, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if sz, err := fs.FileSize("/afile.txt", caller, true); err != nil || sz != 5 {
		t.Fatalf("FileSize(afile.txt) = (%d,%v), want (5,nil)", sz, err)
	}
	if sz, err := fs.FileSize("/adir", caller, true); err != nil || sz != -2 {
		t.Fatalf("FileSize(adir) = (%d,%v), want (-2,nil)", sz, err)
	}
	if sz, err := fs.FileSize("/nope.txt", caller, true); err != nil || sz != -1 {
		t.Fatalf("FileSize(nope.txt) = (%d,%v), want (-1,nil)", sz, err)
	}
}

func TestRenameAndRemove(t *testing.T) {
	fs := newTestFS(t)
	caller := object.Handle{}
	if err := fs.WriteFile("/old.txt", "payload", caller, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fs.Rename("/old.txt", "/sub/new.txt", caller, true); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := fs.ReadFile("/old.txt", caller, true, 0, 0); err == nil {
		t.Fatalf("expected /old.txt to be gone after rename")
	}
	got, err := fs.ReadFile("/sub/new.txt", caller, true, 0, 0)
	if err != nil || got != "payload" {
		t.Fatalf("ReadFile(/sub/new.txt) = (%q,%v), want (payload,nil)", got, err)
	}
	if err := fs.Remove("/sub/new.txt", caller, true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := fs.ReadFile("/sub/new.txt", caller, true, 0, 0); err == nil {
		t.Fatalf("expected /sub/new.txt to be gone after remove")
	}
}

func TestGetDirListsEntries(t *testing.T) {
	fs := newTestFS(t)
	caller := object.Handle{}
	if err := fs.WriteFile("/room/a.c", "x", caller, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fs.WriteFile("/room/b.c", "x", caller, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	names, err := fs.GetDir("/room", caller, true)
	if err != nil {
		t.Fatalf("GetDir: %v", err)
	}
	if len(names) != 2 || names[0] != "a.c" || names[1] != "b.c" {
		t.Fatalf("GetDir(/room) = %v, want [a.c b.c]", names)
	}
}
