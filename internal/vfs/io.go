package vfs

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/limpingninja/ci2go/internal/object"
)

// ErrPermission is returned when the master-object callback refuses an
// operation (spec.md §4.5).
var ErrPermission = errors.New("vfs: permission denied")

// valid runs the master-object callback for op against path, honoring
// the privileged-bypass and NULL-caller-bypass rules (spec.md §4.5). A
// nil Callback (no master object configured yet) permits everything:
// the driver compiles and loads the boot object itself before a master
// can be attached to consult, the same bootstrap exemption the original
// driver needed to read its own boot file.
func (fs *FS) valid(path string, op Op, caller object.Handle, privileged bool, flags int) bool {
	if privileged || !caller.Valid() || fs.Callback == nil {
		return true
	}
	node, _ := fs.lookup(path)
	return fs.Callback(path, op, caller, node.Owner, flags)
}

// ReadFile implements read_file(path[,start[,count]]) (spec.md §6):
// start/count select a 1-based inclusive line range; count==0 reads the
// whole file.
func (fs *FS) ReadFile(path string, caller object.Handle, privileged bool, start, count int) (string, error) {
	if !fs.valid(path, OpReadFile, caller, privileged, 0) {
		return "", ErrPermission
	}
	data, err := os.ReadFile(fs.hostPath(path))
	if err != nil {
		return "", err
	}
	if count == 0 {
		return string(data), nil
	}
	lines := strings.Split(string(data), "\n")
	if start < 1 {
		start = 1
	}
	if start-1 >= len(lines) {
		return "", nil
	}
	end := start - 1 + count
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

// WriteFile implements write_file(path, str) (spec.md §6): appends str
// to path, creating the file (and its parent directories) if needed.
func (fs *FS) WriteFile(path, data string, caller object.Handle, privileged bool) error {
	if !fs.valid(path, OpWrite, caller, privileged, 0) {
		return ErrPermission
	}
	if err := fs.Touch(path, caller, PermRead|PermWrite); err != nil {
		return err
	}
	f, err := os.OpenFile(fs.hostPath(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(data)
	return err
}

// Remove implements remove(path) (spec.md §6).
func (fs *FS) Remove(path string, caller object.Handle, privileged bool) error {
	if !fs.valid(path, OpRemove, caller, privileged, 0) {
		return ErrPermission
	}
	if err := os.RemoveAll(fs.hostPath(path)); err != nil {
		return err
	}
	fs.unlink(path)
	return nil
}

// Rename implements rename(old,new) (spec.md §6), requiring write
// permission at both the source and destination path.
func (fs *FS) Rename(oldPath, newPath string, caller object.Handle, privileged bool) error {
	if !fs.valid(oldPath, OpRename, caller, privileged, 0) {
		return ErrPermission
	}
	if !fs.valid(newPath, OpRename, caller, privileged, 1) {
		return ErrPermission
	}
	if err := os.MkdirAll(filepath.Dir(fs.hostPath(newPath)), 0755); err != nil {
		return err
	}
	if err := os.Rename(fs.hostPath(oldPath), fs.hostPath(newPath)); err != nil {
		return err
	}
	segs := clean(oldPath)
	dir := "/" + strings.Join(segs[:len(segs)-1], "/")
	var node *Node
	if parent, ok := fs.lookup(dir); ok && parent.Children != nil {
		node = parent.Children[segs[len(segs)-1]]
	}
	fs.unlink(oldPath)
	fs.attach(newPath, node)
	return nil
}

// GetDir implements get_dir(path) (spec.md §6): the sorted base names of
// path's host directory entries.
func (fs *FS) GetDir(path string, caller object.Handle, privileged bool) ([]string, error) {
	if !fs.valid(path, OpGetDir, caller, privileged, 0) {
		return nil, ErrPermission
	}
	entries, err := os.ReadDir(fs.hostPath(path))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FileSize implements file_size(path) (spec.md §6): byte length of a
// file, -2 for a directory, -1 if it doesn't exist — the original
// driver's sentinel convention, which the file_size efun exposes as-is.
func (fs *FS) FileSize(path string, caller object.Handle, privileged bool) (int64, error) {
	if !fs.valid(path, OpFileSize, caller, privileged, 0) {
		return 0, ErrPermission
	}
	fi, err := os.Stat(fs.hostPath(path))
	if os.IsNotExist(err) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	if fi.IsDir() {
		return -2, nil
	}
	return fi.Size(), nil
}
