// Package fstest provides an in-memory fs.FileSystem / fs.Remote pair and a
// conformance suite that provider implementations run in their own tests.
//
// MemFS keeps explicit modification and access times so reconciliation logic
// that depends on timestamps can be exercised without touching the disk.
// Faults can be injected per path to simulate failing or interrupted
// transfers.
package fstest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"adbsync/internal/fs"

	"github.com/bmatcuk/doublestar/v4"
)

const maxLinkDepth = 40

type node struct {
	meta   fs.FileMeta
	data   []byte
	target string // symlink target
}

// MemFS is an in-memory filesystem keyed by cleaned slash paths.
type MemFS struct {
	nodes map[string]*node

	// Now supplies timestamps for newly created entries.
	Now func() time.Time
	// PingErr is returned by Ping when set.
	PingErr error
	// FailOps makes the named mutating operation fail for a path, keyed
	// "op path" (e.g. "rm /a/b").
	FailOps map[string]error

	// Ops records every mutating call as "op path".
	Ops []string
}

// NewMemFS returns a filesystem containing only the root directory.
func NewMemFS() *MemFS {
	m := &MemFS{
		nodes:   make(map[string]*node),
		Now:     func() time.Time { return time.Unix(1_700_000_000, 0) },
		FailOps: make(map[string]error),
	}
	now := m.Now()
	m.nodes["/"] = &node{meta: fs.FileMeta{Kind: fs.KindDirectory, ModTime: now, AccessTime: now}}
	return m
}

func clean(p string) string {
	return path.Clean("/" + p)
}

func notFound(op, p string) error {
	return fmt.Errorf("memfs: %s %q: %w", op, p, fs.ErrNotFound)
}

func (m *MemFS) record(op, p string) error {
	m.Ops = append(m.Ops, op+" "+p)
	if err, ok := m.FailOps[op+" "+p]; ok {
		return err
	}
	return nil
}

// realPath resolves symlinks in every component of p. The final component
// is only resolved when followLast is set.
func (m *MemFS) realPath(p string, followLast bool, depth int) (string, error) {
	if depth > maxLinkDepth {
		return "", fmt.Errorf("memfs: stat %q: too many levels of symbolic links", p)
	}
	p = clean(p)
	if p == "/" {
		return p, nil
	}
	parts := strings.Split(p[1:], "/")
	cur := "/"
	for i, part := range parts {
		next := path.Join(cur, part)
		n, ok := m.nodes[next]
		if ok && n.meta.Kind == fs.KindSymlink && (i < len(parts)-1 || followLast) {
			target := n.target
			if !strings.HasPrefix(target, "/") {
				target = path.Join(cur, target)
			}
			resolved, err := m.realPath(target, true, depth+1)
			if err != nil {
				return "", err
			}
			next = resolved
		}
		cur = next
	}
	return cur, nil
}

// resolve follows symlinks until a non-link node is found.
func (m *MemFS) resolve(p string) (string, *node, error) {
	rp, err := m.realPath(p, true, 0)
	if err != nil {
		return p, nil, err
	}
	n, ok := m.nodes[rp]
	if !ok {
		return rp, nil, notFound("stat", p)
	}
	return rp, n, nil
}

func (m *MemFS) requireParentDir(p string) error {
	parent := path.Dir(p)
	_, n, err := m.resolve(parent)
	if err != nil {
		return err
	}
	if n.meta.Kind != fs.KindDirectory {
		return fmt.Errorf("memfs: %q: not a directory", parent)
	}
	return nil
}

// Mkdir creates a directory and missing parents with the given mtime.
func (m *MemFS) Mkdir(p string, mtime time.Time) {
	p = clean(p)
	if p != "/" {
		m.Mkdir(path.Dir(p), mtime)
	}
	if _, ok := m.nodes[p]; !ok {
		m.nodes[p] = &node{meta: fs.FileMeta{Kind: fs.KindDirectory, ModTime: mtime, AccessTime: mtime}}
	}
}

// WriteFile creates or replaces a regular file, creating parents.
func (m *MemFS) WriteFile(p string, data []byte, mtime time.Time) {
	p = clean(p)
	m.Mkdir(path.Dir(p), mtime)
	m.nodes[p] = &node{
		meta: fs.FileMeta{Kind: fs.KindRegular, Size: int64(len(data)), ModTime: mtime, AccessTime: mtime},
		data: append([]byte(nil), data...),
	}
}

// Symlink creates link pointing at target.
func (m *MemFS) Symlink(target, link string, mtime time.Time) {
	link = clean(link)
	m.Mkdir(path.Dir(link), mtime)
	m.nodes[link] = &node{
		meta:   fs.FileMeta{Kind: fs.KindSymlink, Size: int64(len(target)), ModTime: mtime, AccessTime: mtime},
		target: target,
	}
}

// Special creates an entry of unsupported kind (device, fifo, socket).
func (m *MemFS) Special(p string, mtime time.Time) {
	p = clean(p)
	m.Mkdir(path.Dir(p), mtime)
	m.nodes[p] = &node{meta: fs.FileMeta{Kind: fs.KindUnsupported, ModTime: mtime, AccessTime: mtime}}
}

// Exists reports whether p exists without following links.
func (m *MemFS) Exists(p string) bool {
	_, ok := m.nodes[clean(p)]
	return ok
}

// ReadFile returns the content of a regular file, following links.
func (m *MemFS) ReadFile(p string) ([]byte, error) {
	_, n, err := m.resolve(p)
	if err != nil {
		return nil, err
	}
	if n.meta.Kind != fs.KindRegular {
		return nil, fmt.Errorf("memfs: read %q: not a regular file", p)
	}
	return append([]byte(nil), n.data...), nil
}

// Paths returns every path in the filesystem, sorted.
func (m *MemFS) Paths() []string {
	out := make([]string, 0, len(m.nodes))
	for p := range m.nodes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MemFS) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MemFS) ListChildren(ctx context.Context, dir string) ([]string, error) {
	resolved, n, err := m.resolve(dir)
	if err != nil {
		return nil, err
	}
	if n.meta.Kind != fs.KindDirectory {
		return nil, fmt.Errorf("memfs: readdir %q: not a directory", dir)
	}
	prefix := strings.TrimSuffix(resolved, "/") + "/"
	var names []string
	for p := range m.nodes {
		if p == resolved || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemFS) StatFollow(ctx context.Context, p string) (*fs.FileMeta, error) {
	_, n, err := m.resolve(p)
	if err != nil {
		return nil, err
	}
	meta := n.meta
	return &meta, nil
}

func (m *MemFS) StatNoFollow(ctx context.Context, p string) (*fs.FileMeta, error) {
	rp, err := m.realPath(p, false, 0)
	if err != nil {
		return nil, err
	}
	n, ok := m.nodes[rp]
	if !ok {
		return nil, notFound("lstat", p)
	}
	meta := n.meta
	return &meta, nil
}

func (m *MemFS) DeleteEntry(ctx context.Context, p string) error {
	p = clean(p)
	if err := m.record("rm", p); err != nil {
		return err
	}
	n, ok := m.nodes[p]
	if !ok {
		return notFound("rm", p)
	}
	if n.meta.Kind == fs.KindDirectory {
		return fmt.Errorf("memfs: rm %q: is a directory", p)
	}
	delete(m.nodes, p)
	return nil
}

func (m *MemFS) DeleteEmptyDir(ctx context.Context, p string) error {
	p = clean(p)
	if err := m.record("rmdir", p); err != nil {
		return err
	}
	n, ok := m.nodes[p]
	if !ok {
		return notFound("rmdir", p)
	}
	if n.meta.Kind != fs.KindDirectory {
		return fmt.Errorf("memfs: rmdir %q: not a directory", p)
	}
	children, _ := m.ListChildren(ctx, p)
	if len(children) > 0 {
		return fmt.Errorf("memfs: rmdir %q: directory not empty", p)
	}
	delete(m.nodes, p)
	return nil
}

func (m *MemFS) CreateDirTree(ctx context.Context, p string) error {
	p = clean(p)
	if err := m.record("mkdir", p); err != nil {
		return err
	}
	for cur := p; ; cur = path.Dir(cur) {
		if n, ok := m.nodes[cur]; ok && n.meta.Kind != fs.KindDirectory {
			return fmt.Errorf("memfs: mkdir %q: %q is not a directory", p, cur)
		}
		if cur == "/" {
			break
		}
	}
	m.Mkdir(p, m.Now())
	return nil
}

func (m *MemFS) SetTimes(ctx context.Context, p string, atime, mtime time.Time) error {
	if err := m.record("touch", clean(p)); err != nil {
		return err
	}
	_, n, err := m.resolve(p)
	if err != nil {
		return err
	}
	n.meta.AccessTime = atime
	n.meta.ModTime = mtime
	return nil
}

// ExpandPattern matches the pattern against every existing path.
func (m *MemFS) ExpandPattern(ctx context.Context, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("memfs: glob %q: %w", pattern, doublestar.ErrBadPattern)
	}
	var out []string
	for p := range m.nodes {
		if doublestar.MatchUnvalidated(pattern, p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// copyFile transfers content from src (in from) to dst (in to). When
// fail is non-nil, half the content is written before the error is
// returned, leaving a partial destination behind.
func copyFile(from *MemFS, src string, to *MemFS, dst string, fail error) error {
	data, err := from.ReadFile(src)
	if err != nil {
		return err
	}
	dst = clean(dst)
	if err := to.requireParentDir(dst); err != nil {
		return err
	}
	if n, ok := to.nodes[dst]; ok && n.meta.Kind == fs.KindDirectory {
		return fmt.Errorf("memfs: copy to %q: is a directory", dst)
	}
	if fail != nil {
		to.WriteFile(dst, data[:len(data)/2], to.Now())
		return fail
	}
	to.WriteFile(dst, data, to.Now())
	return nil
}

// MemRemote is the device side of an in-memory pair. Push and Pull move
// content between it and Local.
type MemRemote struct {
	*MemFS
	Local *MemFS

	// CopyErr makes Push or Pull to the given destination path fail after
	// writing a partial file.
	CopyErr map[string]error
	// CopyPanic makes Push or Pull to the given destination panic after
	// writing a partial file.
	CopyPanic map[string]string
}

// NewPair returns an empty local filesystem and a remote bound to it.
func NewPair() (*MemFS, *MemRemote) {
	local := NewMemFS()
	remote := &MemRemote{
		MemFS:     NewMemFS(),
		Local:     local,
		CopyErr:   make(map[string]error),
		CopyPanic: make(map[string]string),
	}
	return local, remote
}

func (r *MemRemote) transfer(op string, from *MemFS, src string, to *MemFS, dst string) error {
	dst = clean(dst)
	r.Ops = append(r.Ops, op+" "+clean(src)+" "+dst)
	if msg, ok := r.CopyPanic[dst]; ok {
		_ = copyFile(from, src, to, dst, fmt.Errorf("interrupted"))
		panic(msg)
	}
	if err := copyFile(from, src, to, dst, r.CopyErr[dst]); err != nil {
		return fmt.Errorf("memfs: %s %q -> %q: %w", op, src, dst, err)
	}
	return nil
}

func (r *MemRemote) Push(ctx context.Context, localSrc, remoteDst string) error {
	return r.transfer("push", r.Local, localSrc, r.MemFS, remoteDst)
}

func (r *MemRemote) Pull(ctx context.Context, remoteSrc, localDst string) error {
	return r.transfer("pull", r.MemFS, remoteSrc, r.Local, localDst)
}
