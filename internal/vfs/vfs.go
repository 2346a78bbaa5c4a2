// Package vfs implements the sandboxed, `/`-rooted virtual filesystem
// described by spec.md §4.5: a tree of entries carrying permission bits
// and an owner object, gated by the master object's valid_read/valid_write
// callback before any host file is touched.
package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/limpingninja/ci2go/internal/object"
)

// Perm is the bitmask of permission bits an entry carries.
type Perm int

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermDir
)

// Node is one entry in the virtual filesystem tree: a directory (with
// Children) or a leaf backed by a host-OS file (Children nil). The tree
// tracks structure, ownership, and permission bits only — file content
// always lives on the host filesystem under FS.Base, addressed the same
// way for every node (spec.md §4.5 "mapping to a host-OS file").
type Node struct {
	Name     string
	Perm     Perm
	Owner    object.Handle
	Children map[string]*Node
}

func (n *Node) IsDir() bool { return n.Children != nil }

func newDir(name string, owner object.Handle, perm Perm) *Node {
	return &Node{Name: name, Perm: perm | PermDir, Owner: owner, Children: map[string]*Node{}}
}

// Op names the efun driving a master-object callback dispatch, passed as
// valid_read/valid_write's "func" argument.
type Op string

const (
	OpReadFile Op = "read_file"
	OpWrite    Op = "write_file"
	OpRemove   Op = "remove"
	OpRename   Op = "rename"
	OpGetDir   Op = "get_dir"
	OpFileSize Op = "file_size"
)

// Callback is the master-object's valid_read/valid_write hook (spec.md
// §4.5): given the cleaned path, the efun name, the calling object, the
// entry's owner, and an operation-specific flags word, it reports whether
// the operation is permitted.
type Callback func(path string, op Op, caller, owner object.Handle, flags int) bool

// FS is a sandboxed virtual filesystem rooted at Base. Every path is
// resolved textually (Clean-style "."/".." handling) and confined under
// Base before any host call is made — the same sandboxing idiom as the
// teacher's file-transfer service (internal/iomeshage's cleanPath), so a
// path can never escape Base regardless of how many ".." segments it
// contains or what it targets on the host (spec.md §4.5 "no symlink
// traversal is permitted").
type FS struct {
	Base     string
	Callback Callback
	root     *Node
}

func New(base string) (*FS, error) {
	base = filepath.Clean(base)
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, err
	}
	return &FS{Base: base, root: newDir("", object.Handle{}, PermRead|PermWrite)}, nil
}

// clean splits path into its `/`-separated virtual segments after
// collapsing "."/".." purely as text, never by asking the host OS to
// resolve anything.
func clean(path string) []string {
	cleaned := filepath.Clean("/" + path)
	if cleaned == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
}

func (fs *FS) hostPath(path string) string {
	return filepath.Join(fs.Base, filepath.Clean("/"+path))
}

// lookup walks the node tree for path, returning the deepest node found
// and whether that node is exactly path (rather than some ancestor,
// which happens for host files never explicitly registered with Touch).
func (fs *FS) lookup(path string) (node *Node, exact bool) {
	segs := clean(path)
	cur := fs.root
	if len(segs) == 0 {
		return cur, true
	}
	for i, s := range segs {
		if cur.Children == nil {
			return cur, false
		}
		child, ok := cur.Children[s]
		if !ok {
			return cur, false
		}
		cur = child
		if i == len(segs)-1 {
			return cur, true
		}
	}
	return cur, true
}

// Mkdir registers a directory node at path, creating any missing parent
// directories with default permissions, plus the corresponding host
// directory.
func (fs *FS) Mkdir(path string, owner object.Handle, perm Perm) error {
	segs := clean(path)
	cur := fs.root
	for i, s := range segs {
		if cur.Children == nil {
			return fmt.Errorf("vfs: %q is not a directory", strings.Join(segs[:i], "/"))
		}
		child, ok := cur.Children[s]
		if !ok {
			p, o := PermRead|PermWrite, object.Handle{}
			if i == len(segs)-1 {
				p, o = perm, owner
			}
			child = newDir(s, o, p)
			cur.Children[s] = child
		}
		cur = child
	}
	return os.MkdirAll(fs.hostPath(path), 0755)
}

// Touch registers a file node at path, creating parent directories as
// needed, without writing any content.
func (fs *FS) Touch(path string, owner object.Handle, perm Perm) error {
	segs := clean(path)
	if len(segs) == 0 {
		return fmt.Errorf("vfs: %q is not a file path", path)
	}
	dir := "/" + strings.Join(segs[:len(segs)-1], "/")
	if err := fs.Mkdir(dir, object.Handle{}, PermRead|PermWrite); err != nil {
		return err
	}
	parent, _ := fs.lookup(dir)
	name := segs[len(segs)-1]
	if _, ok := parent.Children[name]; !ok {
		parent.Children[name] = &Node{Name: name, Perm: perm, Owner: owner}
	}
	return nil
}

func (fs *FS) unlink(path string) {
	segs := clean(path)
	if len(segs) == 0 {
		return
	}
	dir := "/" + strings.Join(segs[:len(segs)-1], "/")
	parent, ok := fs.lookup(dir)
	if !ok || parent.Children == nil {
		return
	}
	delete(parent.Children, segs[len(segs)-1])
}

func (fs *FS) attach(path string, node *Node) {
	segs := clean(path)
	if len(segs) == 0 || node == nil {
		return
	}
	dir := "/" + strings.Join(segs[:len(segs)-1], "/")
	if err := fs.Mkdir(dir, object.Handle{}, PermRead|PermWrite); err != nil {
		return
	}
	parent, _ := fs.lookup(dir)
	name := segs[len(segs)-1]
	node.Name = name
	parent.Children[name] = node
}
