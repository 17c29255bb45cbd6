// Package vfs implements the CLIPRDR-backed FUSE filesystem (spec.md
// §4.8): a user-space mount exposing the client's advertised file
// selections as a directory tree rooted at "/", one subdirectory per
// locked clip-data-id, with file sizes and contents resolved lazily via
// FileContentsRequest round-trips to the client.
package vfs

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/GNOME/gnome-remote-desktop-sub000/internal/clipboard/wire"
	"github.com/GNOME/gnome-remote-desktop-sub000/internal/logging"
)

var log = logging.L("clipboard-vfs")

// MaxRangeRequest bounds a single FileContentsRequest(RANGE), per
// spec.md §4.8.
const MaxRangeRequest = 8 * 1024 * 1024

// noClipDataID mirrors clipboard.NoClipDataID: the sentinel clip-data-id
// used for requests that carry none. Mirrored locally rather than
// imported so this package doesn't need to depend on its parent.
const noClipDataID uint32 = 0xFFFFFFFF

// FileEntry is one file in the client's FileGroupDescriptorW, prior to
// size resolution.
type FileEntry struct {
	Name          string
	ListIndex     uint32
	KnownSize     int64 // -1 if unresolved
	LastWriteTime time.Time
}

// Requester issues FileContentsRequest PDUs to the client; responses are
// delivered back via FileSystem's OnSizeResult/OnRangeResult.
type Requester interface {
	RequestSize(streamID uint32, listIndex uint32) error
	RequestRange(streamID uint32, listIndex uint32, offset int64, length int) error
}

type pendingSize struct {
	clipDataID uint32
	ch         chan sizeResult
}

type sizeResult struct {
	size int64
	err  error
}

type pendingRange struct {
	clipDataID uint32
	ch         chan rangeResult
}

type rangeResult struct {
	data []byte
	err  error
}

// clipDataTree is one locked clip-data-id's file selection.
type clipDataTree struct {
	entries map[uint32]*FileEntry // by list index
}

// FileSystem is the per-session clipboard FUSE tree: a root directory
// holding one subdirectory per locked clip-data-id, each owning its own
// file tree independently of the others (spec.md §4.8). SetSelection
// installs or replaces a single clip-data-id's subtree without
// disturbing any other concurrently locked selection.
type FileSystem struct {
	req Requester

	mu         sync.Mutex
	nextStream uint32
	sizes      map[uint32]*pendingSize
	ranges     map[uint32]*pendingRange
	clipData   map[uint32]*clipDataTree
}

func NewFileSystem(req Requester) *FileSystem {
	return &FileSystem{
		req:      req,
		sizes:    make(map[uint32]*pendingSize),
		ranges:   make(map[uint32]*pendingRange),
		clipData: make(map[uint32]*clipDataTree),
	}
}

// SetSelection installs or replaces the file tree owned by clipDataID,
// leaving every other clip-data-id's subtree untouched, and fails any
// outstanding request scoped to clipDataID with EIO (spec.md §4.8). A
// nil or empty files list removes the subtree entirely, e.g. on Unlock.
func (fsys *FileSystem) SetSelection(clipDataID uint32, files []FileEntry) error {
	entries := make(map[uint32]*FileEntry, len(files))
	for i := range files {
		f := files[i]
		if err := wire.ValidateName(f.Name); err != nil {
			return fmt.Errorf("clip-data %d selection rejected: %w", clipDataID, err)
		}
		entries[f.ListIndex] = &f
	}

	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	fsys.failClipDataLocked(clipDataID, syscall.EIO)
	if len(entries) == 0 {
		delete(fsys.clipData, clipDataID)
		return nil
	}
	fsys.clipData[clipDataID] = &clipDataTree{entries: entries}
	return nil
}

// Shutdown fails every outstanding request with EIO, per spec.md §4.8's
// session-shutdown behavior.
func (fsys *FileSystem) Shutdown() {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.failAllLocked(syscall.EIO)
}

func (fsys *FileSystem) failAllLocked(errno syscall.Errno) {
	for id, p := range fsys.sizes {
		p.ch <- sizeResult{err: fmt.Errorf("clipboard file request failed: %w", errno)}
		delete(fsys.sizes, id)
	}
	for id, p := range fsys.ranges {
		p.ch <- rangeResult{err: fmt.Errorf("clipboard file request failed: %w", errno)}
		delete(fsys.ranges, id)
	}
}

func (fsys *FileSystem) failClipDataLocked(clipDataID uint32, errno syscall.Errno) {
	for id, p := range fsys.sizes {
		if p.clipDataID != clipDataID {
			continue
		}
		p.ch <- sizeResult{err: fmt.Errorf("clipboard file request failed: %w", errno)}
		delete(fsys.sizes, id)
	}
	for id, p := range fsys.ranges {
		if p.clipDataID != clipDataID {
			continue
		}
		p.ch <- rangeResult{err: fmt.Errorf("clipboard file request failed: %w", errno)}
		delete(fsys.ranges, id)
	}
}

func (fsys *FileSystem) allocStream() uint32 {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.nextStream++
	return fsys.nextStream
}

// resolveSize blocks until the client answers a FileContentsRequest(SIZE)
// for listIndex, or until Shutdown/SetSelection fails it.
func (fsys *FileSystem) resolveSize(clipDataID, listIndex uint32) (int64, error) {
	streamID := fsys.allocStream()
	p := &pendingSize{clipDataID: clipDataID, ch: make(chan sizeResult, 1)}

	fsys.mu.Lock()
	fsys.sizes[streamID] = p
	fsys.mu.Unlock()

	if err := fsys.req.RequestSize(streamID, listIndex); err != nil {
		fsys.mu.Lock()
		delete(fsys.sizes, streamID)
		fsys.mu.Unlock()
		return 0, err
	}

	res := <-p.ch
	return res.size, res.err
}

// resolveRange blocks until the client answers a
// FileContentsRequest(RANGE) for listIndex.
func (fsys *FileSystem) resolveRange(clipDataID, listIndex uint32, offset int64, length int) ([]byte, error) {
	if length > MaxRangeRequest {
		length = MaxRangeRequest
	}
	streamID := fsys.allocStream()
	p := &pendingRange{clipDataID: clipDataID, ch: make(chan rangeResult, 1)}

	fsys.mu.Lock()
	fsys.ranges[streamID] = p
	fsys.mu.Unlock()

	if err := fsys.req.RequestRange(streamID, listIndex, offset, length); err != nil {
		fsys.mu.Lock()
		delete(fsys.ranges, streamID)
		fsys.mu.Unlock()
		return nil, err
	}

	res := <-p.ch
	return res.data, res.err
}

// OnSizeResult delivers a FileContentsResponse(SIZE) back to the waiter.
func (fsys *FileSystem) OnSizeResult(streamID uint32, size int64, err error) {
	fsys.mu.Lock()
	p, ok := fsys.sizes[streamID]
	delete(fsys.sizes, streamID)
	fsys.mu.Unlock()
	if !ok {
		return
	}
	p.ch <- sizeResult{size: size, err: err}
}

// OnRangeResult delivers a FileContentsResponse(RANGE) back to the waiter.
func (fsys *FileSystem) OnRangeResult(streamID uint32, data []byte, err error) {
	fsys.mu.Lock()
	p, ok := fsys.ranges[streamID]
	delete(fsys.ranges, streamID)
	fsys.mu.Unlock()
	if !ok {
		return
	}
	p.ch <- rangeResult{data: data, err: err}
}

// Root returns the filesystem's root node, ready to pass to fs.Mount.
func (fsys *FileSystem) Root() fs.InodeEmbedder {
	return &rootNode{fsys: fsys}
}

// Mount starts serving the filesystem at mountpoint.
func (fsys *FileSystem) Mount(mountpoint string) (*fuse.Server, error) {
	return fs.Mount(mountpoint, fsys.Root(), &fs.Options{
		MountOptions: fuse.MountOptions{FsName: "cliprdr", Name: "cliprdr"},
	})
}

func clipDataDirName(clipDataID uint32) string {
	if clipDataID == noClipDataID {
		return "NO_CLIP_DATA_ID"
	}
	return fmt.Sprintf("%d", clipDataID)
}

// rootNode lists one subdirectory per locked clip-data-id.
type rootNode struct {
	fs.Inode
	fsys *FileSystem
}

var _ fs.InodeEmbedder = (*rootNode)(nil)
var _ fs.NodeLookuper = (*rootNode)(nil)
var _ fs.NodeReaddirer = (*rootNode)(nil)

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	r.fsys.mu.Lock()
	var found uint32
	var ok bool
	for id := range r.fsys.clipData {
		if clipDataDirName(id) == name {
			found, ok = id, true
			break
		}
	}
	r.fsys.mu.Unlock()
	if !ok {
		return nil, syscall.ENOENT
	}

	out.Mode = 0755
	child := r.NewInode(ctx, &clipDataDirNode{fsys: r.fsys, clipDataID: found},
		fs.StableAttr{Mode: fuse.S_IFDIR})
	return child, 0
}

func (r *rootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	r.fsys.mu.Lock()
	defer r.fsys.mu.Unlock()

	entries := make([]fuse.DirEntry, 0, len(r.fsys.clipData))
	for id := range r.fsys.clipData {
		entries = append(entries, fuse.DirEntry{Name: clipDataDirName(id), Mode: fuse.S_IFDIR})
	}
	return fs.NewListDirStream(entries), 0
}

// clipDataDirNode lists the files belonging to one locked clip-data-id,
// flat since spec.md §4.8 rejects '/' in names.
type clipDataDirNode struct {
	fs.Inode
	fsys       *FileSystem
	clipDataID uint32
}

var _ fs.InodeEmbedder = (*clipDataDirNode)(nil)
var _ fs.NodeLookuper = (*clipDataDirNode)(nil)
var _ fs.NodeReaddirer = (*clipDataDirNode)(nil)

func (d *clipDataDirNode) tree() (*clipDataTree, bool) {
	d.fsys.mu.Lock()
	defer d.fsys.mu.Unlock()
	t, ok := d.fsys.clipData[d.clipDataID]
	return t, ok
}

func (d *clipDataDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	t, ok := d.tree()
	if !ok {
		return nil, syscall.ENOENT
	}

	d.fsys.mu.Lock()
	var found *FileEntry
	for _, e := range t.entries {
		if e.Name == name {
			found = e
			break
		}
	}
	d.fsys.mu.Unlock()

	if found == nil {
		return nil, syscall.ENOENT
	}

	out.Mode = 0444
	if found.KnownSize >= 0 {
		out.Size = uint64(found.KnownSize)
	}

	child := d.NewInode(ctx, &fileNode{fsys: d.fsys, clipDataID: d.clipDataID, listIndex: found.ListIndex},
		fs.StableAttr{Mode: fuse.S_IFREG})
	return child, 0
}

func (d *clipDataDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	t, ok := d.tree()
	if !ok {
		return fs.NewListDirStream(nil), 0
	}

	d.fsys.mu.Lock()
	defer d.fsys.mu.Unlock()
	entries := make([]fuse.DirEntry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, fuse.DirEntry{Name: e.Name, Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(entries), 0
}

// fileNode is one lazily-sized file backed by client-side content.
type fileNode struct {
	fs.Inode
	fsys       *FileSystem
	clipDataID uint32
	listIndex  uint32
}

var _ fs.InodeEmbedder = (*fileNode)(nil)
var _ fs.NodeGetattrer = (*fileNode)(nil)
var _ fs.NodeOpener = (*fileNode)(nil)
var _ fs.NodeReader = (*fileNode)(nil)

func (f *fileNode) entry() (*FileEntry, bool) {
	f.fsys.mu.Lock()
	defer f.fsys.mu.Unlock()
	t, ok := f.fsys.clipData[f.clipDataID]
	if !ok {
		return nil, false
	}
	e, ok := t.entries[f.listIndex]
	return e, ok
}

func (f *fileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	entry, ok := f.entry()
	if !ok {
		return syscall.ENOENT
	}

	if entry.KnownSize < 0 {
		size, err := f.fsys.resolveSize(f.clipDataID, f.listIndex)
		if err != nil {
			log.Warn("resolve clipboard file size failed", "error", err)
			return syscall.EIO
		}
		f.fsys.mu.Lock()
		entry.KnownSize = size
		f.fsys.mu.Unlock()
	}

	out.Mode = 0444
	out.Size = uint64(entry.KnownSize)
	return 0
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (f *fileNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := f.fsys.resolveRange(f.clipDataID, f.listIndex, off, len(dest))
	if err != nil {
		log.Warn("resolve clipboard file range failed", "error", err)
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(data), 0
}
