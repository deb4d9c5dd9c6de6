// Package watch implements the publisher's file-change watcher: it tracks a
// set of append-only log files through truncation, deletion, and
// rename/rotation, and emits only newly appended content, never duplicates.
//
// State is single-threaded by design: only the goroutine started by New
// touches the watched/pending maps, mirroring the original implementation's
// single-threaded MonitorDeFicheros. Callers interact with the watcher
// exclusively through the Events/Errors channels and the Add/Remove/Close
// methods, which hand their requests to that goroutine over internal
// channels.
package watch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/guillermofarina/lognotify/internal/wire"
)

// watchMask and rotationMask mirror the original's two watch-descriptor
// domains: one per regular watched file, one per pending-reappearance
// directory.
const (
	watchMask    = unix.IN_MODIFY | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF
	rotationMask = unix.IN_CREATE | unix.IN_MOVED_TO
)

// inotifyReadBufferEvents bounds how many raw inotify events are read from
// the kernel per syscall, sized the same way the original's fixed-size
// buffer was (event header plus a maximum filename).
const inotifyReadBufferEvents = 32

const inotifyReadBufferSize = inotifyReadBufferEvents * (unix.SizeofInotifyEvent + unix.PathMax + 1)

// trackedFile is the publisher-side equivalent of the original Fichero: it
// remembers a watched file's last observed size so that only newly appended
// bytes are ever emitted.
type trackedFile struct {
	wd       int
	name     string
	location string // relative to the log root, with a trailing separator, "" for root-level files
	lastSize int64
}

// path returns the file's path relative to the log root.
func (f *trackedFile) path() string {
	return f.location + f.name
}

// ultimaModificacion-equivalent: reads the file's current size, and if it
// grew since lastSize, returns the newly appended content; otherwise resets
// lastSize to the (possibly shrunk) current size and returns no content.
func (f *trackedFile) observeAppend(root string) (string, bool, error) {
	file, err := os.Open(filepath.Join(root, f.path()))
	if err != nil {
		return "", false, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", false, err
	}
	size := info.Size()

	if size <= f.lastSize {
		f.lastSize = size
		return "", false, nil
	}

	if _, err := file.Seek(f.lastSize, io.SeekStart); err != nil {
		return "", false, err
	}
	appended := make([]byte, size-f.lastSize)
	if _, err := io.ReadFull(file, appended); err != nil {
		return "", false, err
	}
	f.lastSize = size

	// The original builds the description line-by-line with getline, which
	// strips exactly one trailing newline from the final line; the net
	// effect over the whole appended chunk is stripping a single trailing
	// '\n', if present.
	description := strings.TrimSuffix(string(appended), "\n")
	return description, true, nil
}

// pendingGroup holds files that were removed/renamed and are awaiting
// reappearance in a single directory, keyed by that directory's watch
// descriptor.
type pendingGroup struct {
	directory string // relative directory path, with trailing separator
	files     []*trackedFile
}

// Watcher turns kernel inotify notifications into a stream of Events,
// surviving the rename-then-recreate log rotation pattern.
type Watcher struct {
	fd   int
	root string // canonical absolute path, with trailing separator

	watched      map[int]*trackedFile    // watch descriptor -> watched file
	pendingByWD  map[int]*pendingGroup   // directory watch descriptor -> pending files
	pendingDirWD map[string]int          // relative directory -> its pending watch descriptor
	byPath       map[string]*trackedFile // relative path -> watched file, for Remove lookups

	requests chan func()
	events   chan wire.Event
	errs     chan error

	ctx    context.Context
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// New initializes a watcher rooted at logDirectory, which must exist and
// resolve to a canonical absolute directory.
func New(logDirectory string) (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize inotify")
	}

	root, err := canonicalize(logDirectory)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "unable to resolve log directory")
	}

	info, err := os.Stat(root)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "unable to stat log directory")
	}
	if !info.IsDir() {
		unix.Close(fd)
		return nil, errors.New("log directory path is not a directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fd:           fd,
		root:         root + string(filepath.Separator),
		watched:      make(map[int]*trackedFile),
		pendingByWD:  make(map[int]*pendingGroup),
		pendingDirWD: make(map[string]int),
		byPath:       make(map[string]*trackedFile),
		requests:     make(chan func()),
		events:       make(chan wire.Event, 16),
		errs:         make(chan error, 1),
		ctx:          ctx,
		cancel:       cancel,
	}

	w.done.Add(1)
	go w.run()

	return w, nil
}

// canonicalize resolves path to its canonical absolute form, following
// symlinks, the equivalent of the original's realpath-based normalizarRuta.
func canonicalize(path string) (string, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// Add resolves relativePath inside the canonical root, confirms it names a
// regular file, records its current size, and attaches a kernel watch for
// MODIFY, DELETE-SELF, and MOVE-SELF. It blocks until the watcher's run
// loop has processed the request, since watch state is single-threaded.
func (w *Watcher) Add(relativePath string) error {
	result := make(chan error, 1)
	select {
	case w.requests <- func() { result <- w.addLocked(relativePath) }:
	case <-w.ctx.Done():
		return errors.New("watcher terminated")
	}
	select {
	case err := <-result:
		return err
	case <-w.ctx.Done():
		return errors.New("watcher terminated")
	}
}

// addLocked implements Add; it must only run on the watcher's run loop.
func (w *Watcher) addLocked(relativePath string) error {
	full, err := canonicalize(filepath.Join(w.root, relativePath))
	if err != nil {
		return errors.Wrap(err, "unable to resolve file path")
	}
	if !strings.HasPrefix(full, w.root) {
		return errors.New("path escapes log root")
	}
	canonicalRelative := strings.TrimPrefix(full, w.root)

	info, err := os.Stat(full)
	if err != nil {
		return errors.Wrap(err, "unable to stat file")
	}
	if !info.Mode().IsRegular() {
		return errors.New("path does not name a regular file")
	}

	location, name := splitLocation(canonicalRelative)

	wd, err := unix.InotifyAddWatch(w.fd, full, watchMask)
	if err != nil {
		return errors.Wrap(err, "unable to add kernel watch")
	}

	file := &trackedFile{
		wd:       wd,
		name:     name,
		location: location,
		lastSize: info.Size(),
	}
	w.watched[wd] = file
	w.byPath[canonicalRelative] = file

	return nil
}

// splitLocation splits a canonical relative path into its directory (with a
// trailing separator, "" for root-level files) and base name, matching the
// original's ubicacion_/nombre_ split.
func splitLocation(relativePath string) (location, name string) {
	index := strings.LastIndexByte(relativePath, filepath.Separator)
	if index < 0 {
		return "", relativePath
	}
	return relativePath[:index+1], relativePath[index+1:]
}

// Remove detaches the kernel watch for relativePath; later events for it are
// discarded.
func (w *Watcher) Remove(relativePath string) {
	select {
	case w.requests <- func() { w.removeLocked(relativePath) }:
	case <-w.ctx.Done():
	}
}

func (w *Watcher) removeLocked(relativePath string) {
	full, err := canonicalize(filepath.Join(w.root, relativePath))
	if err != nil {
		return
	}
	canonicalRelative := strings.TrimPrefix(full, w.root)

	file, ok := w.byPath[canonicalRelative]
	if !ok {
		return
	}
	w.detach(file)
}

func (w *Watcher) detach(file *trackedFile) {
	unix.InotifyRmWatch(w.fd, uint32(file.wd))
	delete(w.watched, file.wd)
	delete(w.byPath, file.path())
}

// RemoveAll detaches every watched file's kernel watch.
func (w *Watcher) RemoveAll() {
	select {
	case w.requests <- func() {
		for _, file := range w.watched {
			unix.InotifyRmWatch(w.fd, uint32(file.wd))
		}
		w.watched = make(map[int]*trackedFile)
		w.byPath = make(map[string]*trackedFile)
	}:
	case <-w.ctx.Done():
	}
}

// Count returns the number of files currently actively watched.
func (w *Watcher) Count() int {
	result := make(chan int, 1)
	select {
	case w.requests <- func() { result <- len(w.watched) }:
	case <-w.ctx.Done():
		return 0
	}
	select {
	case n := <-result:
		return n
	case <-w.ctx.Done():
		return 0
	}
}

// Events returns the channel on which newly appended content is delivered.
func (w *Watcher) Events() <-chan wire.Event {
	return w.events
}

// Errors returns the channel on which a terminal read error is delivered; a
// read from the kernel event stream failing is fatal for the watcher.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Close terminates the watcher's run loop and closes the underlying inotify
// file descriptor.
func (w *Watcher) Close() error {
	w.cancel()
	// Closing the descriptor is what actually unblocks the reader
	// goroutine's pending unix.Read call; cancellation alone only stops
	// the run loop from accepting further requests.
	err := unix.Close(w.fd)
	w.done.Wait()
	return err
}

// run is the watcher's single-threaded event loop: it owns every map above,
// processes queued Add/Remove/Count requests, and translates raw inotify
// events (delivered by a separate reader goroutine, since unix.Read blocks
// indefinitely between kernel events) into wire.Events or internal rotation
// bookkeeping.
func (w *Watcher) run() {
	defer w.done.Done()

	rawEvents := make(chan []byte, 4)
	readErrors := make(chan error, 1)

	go w.readLoop(rawEvents, readErrors)

	for {
		select {
		case <-w.ctx.Done():
			return
		case request := <-w.requests:
			request()
		case buffer, ok := <-rawEvents:
			if !ok {
				return
			}
			w.processBuffer(buffer)
		case err := <-readErrors:
			select {
			case w.errs <- err:
			default:
			}
			return
		}
	}
}

// readLoop blocks on the inotify file descriptor and forwards each raw read
// to the run loop; it exits once the watcher is closed (the fd being
// closed causes the pending Read to fail) or on a read error.
func (w *Watcher) readLoop(rawEvents chan<- []byte, readErrors chan<- error) {
	defer close(rawEvents)

	for {
		raw := make([]byte, inotifyReadBufferSize)
		n, err := unix.Read(w.fd, raw)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			select {
			case readErrors <- errors.Wrap(err, "inotify read failed"):
			case <-w.ctx.Done():
			}
			return
		}
		if n <= 0 {
			continue
		}
		select {
		case rawEvents <- raw[:n]:
		case <-w.ctx.Done():
			return
		}
	}
}

// processBuffer walks one or more raw inotify_event records, in FIFO order,
// dispatching each to the appropriate handler; any unconsumed trailing bytes
// would indicate a short read mid-record, which does not happen with the
// blocking unix.Read used here.
func (w *Watcher) processBuffer(buffer []byte) {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buffer[offset]))
		nameStart := offset + unix.SizeofInotifyEvent
		nameEnd := nameStart + int(raw.Len)
		if nameEnd > len(buffer) {
			break
		}
		name := ""
		if raw.Len > 0 {
			name = string(bytes.TrimRight(buffer[nameStart:nameEnd], "\x00"))
		}
		offset = nameEnd

		w.dispatch(int(raw.Wd), uint32(raw.Mask), name)
	}
}

// dispatch handles one decoded inotify event, in the same priority order as
// the original: MODIFY first, then DELETE-SELF/MOVE-SELF, then
// CREATE/MOVED-TO.
func (w *Watcher) dispatch(wd int, mask uint32, name string) {
	if mask&unix.IN_MODIFY != 0 {
		w.handleModify(wd)
		return
	}
	if mask&(unix.IN_DELETE_SELF|unix.IN_MOVE_SELF) != 0 {
		w.handleRotationStart(wd)
		return
	}
	if mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0 {
		w.handleRotationComplete(wd, name)
		return
	}
}

func (w *Watcher) handleModify(wd int) {
	file, ok := w.watched[wd]
	if !ok {
		return
	}
	description, changed, err := file.observeAppend(w.root)
	if err != nil || !changed || description == "" {
		return
	}
	event := wire.Event{
		Name:     file.name,
		Location: w.root + file.location,
		Description: description,
	}
	select {
	case w.events <- event:
	case <-w.ctx.Done():
	}
}

// handleRotationStart moves a watched file into the pending-reappearance
// set for its directory, attaching a directory watch for CREATE/MOVED-TO if
// one doesn't already exist.
func (w *Watcher) handleRotationStart(wd int) {
	file, ok := w.watched[wd]
	if !ok {
		return
	}
	unix.InotifyRmWatch(w.fd, uint32(wd))
	delete(w.watched, wd)
	delete(w.byPath, file.path())

	if dirWD, ok := w.pendingDirWD[file.location]; ok {
		w.pendingByWD[dirWD].files = append(w.pendingByWD[dirWD].files, file)
		return
	}

	dirPath := filepath.Join(w.root, file.location)
	dirWD, err := unix.InotifyAddWatch(w.fd, dirPath, rotationMask)
	if err != nil {
		// The directory itself may have vanished; the file is simply lost
		// from the pending set in that case, matching the original, which
		// also silently drops the file if the directory watch can't be
		// established.
		return
	}
	w.pendingDirWD[file.location] = dirWD
	w.pendingByWD[dirWD] = &pendingGroup{
		directory: file.location,
		files:     []*trackedFile{file},
	}
}

// handleRotationComplete looks for a pending file with the given basename
// in the directory identified by wd; if found, it re-adds the file and,
// once the directory's pending set empties, detaches the directory watch.
// The re-added file is tracked from its size at re-add time, so anything
// written to it between the rotation event and the re-add is never emitted.
func (w *Watcher) handleRotationComplete(wd int, name string) {
	group, ok := w.pendingByWD[wd]
	if !ok {
		return
	}
	if len(group.files) == 0 {
		w.detachPendingGroup(wd, group)
		return
	}

	for i, file := range group.files {
		if file.name != name {
			continue
		}
		if err := w.addLocked(file.path()); err == nil {
			group.files = append(group.files[:i], group.files[i+1:]...)
			if len(group.files) == 0 {
				w.detachPendingGroup(wd, group)
			}
		}
		return
	}
}

func (w *Watcher) detachPendingGroup(wd int, group *pendingGroup) {
	unix.InotifyRmWatch(w.fd, uint32(wd))
	delete(w.pendingByWD, wd)
	delete(w.pendingDirWD, group.directory)
}
