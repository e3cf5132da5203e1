package runtimeclient

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

// mirrorRoot is the fixed virtual workdir every runtime session's editor
// sees (mirrors internal/pathmap.Root on the server side).
const mirrorRoot = "/home/project"

// MirrorEntryType distinguishes files from folders in a RemoteFilesMirror.
type MirrorEntryType string

const (
	MirrorFile   MirrorEntryType = "file"
	MirrorFolder MirrorEntryType = "folder"
)

// MirrorEntry is one node of the client-side tree model.
type MirrorEntry struct {
	VirtualPath string
	Type        MirrorEntryType
	Size        int64
	Content     string
	Loaded      bool
	Modified    bool
}

// RemoteFilesMirror keeps a client-side copy of the remote project tree in
// sync, backed by a DirectoryCache for listings and a WriteCoalescer for
// writes (§4.12).
type RemoteFilesMirror struct {
	api       RuntimeAPI
	dirCache  *DirectoryCache
	coalescer *WriteCoalescer

	mu      sync.Mutex
	token   string
	entries map[string]*MirrorEntry

	refreshGroup singleflight.Group
}

// NewRemoteFilesMirror builds a RemoteFilesMirror over the given
// dependencies, which are ordinarily backed by the same api for list/read
// and write respectively.
func NewRemoteFilesMirror(api RuntimeAPI, dirCache *DirectoryCache, coalescer *WriteCoalescer) *RemoteFilesMirror {
	return &RemoteFilesMirror{api: api, dirCache: dirCache, coalescer: coalescer, entries: make(map[string]*MirrorEntry)}
}

// SetToken updates the token used for subsequent remote calls, e.g. after
// SessionClient mints or rotates one.
func (m *RemoteFilesMirror) SetToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// Entries returns a snapshot copy of the current tree model.
func (m *RemoteFilesMirror) Entries() map[string]*MirrorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*MirrorEntry, len(m.entries))
	for k, v := range m.entries {
		cp := *v
		out[k] = &cp
	}
	return out
}

// RefreshFromRemote walks the remote tree and rebuilds the local entry map,
// preserving previously-loaded file content for files still present. It is
// single-flight: concurrent callers share one walk.
func (m *RemoteFilesMirror) RefreshFromRemote(ctx context.Context, force bool) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx, force)
	})
	return err
}

func (m *RemoteFilesMirror) refresh(ctx context.Context, force bool) error {
	m.mu.Lock()
	token := m.token
	prior := m.entries
	m.mu.Unlock()

	next := make(map[string]*MirrorEntry)
	if err := m.walk(ctx, token, mirrorRoot, force, next); err != nil {
		return err
	}

	for vp, entry := range next {
		if entry.Type != MirrorFile {
			continue
		}
		if old, ok := prior[vp]; ok && old.Type == MirrorFile && old.Loaded {
			entry.Content = old.Content
			entry.Loaded = true
		}
	}

	m.mu.Lock()
	m.entries = next
	m.mu.Unlock()
	return nil
}

func (m *RemoteFilesMirror) walk(ctx context.Context, token, virtualPath string, force bool, out map[string]*MirrorEntry) error {
	children, err := m.dirCache.List(ctx, token, virtualPath, force)
	if err != nil {
		return err
	}
	for _, c := range children {
		vp := joinVirtual(virtualPath, c.Name)
		if c.Type == "directory" {
			out[vp] = &MirrorEntry{VirtualPath: vp, Type: MirrorFolder}
			if err := m.walk(ctx, token, vp, force, out); err != nil {
				return err
			}
			continue
		}
		out[vp] = &MirrorEntry{VirtualPath: vp, Type: MirrorFile, Size: c.Size}
	}
	return nil
}

func joinVirtual(parent, name string) string {
	if strings.HasSuffix(parent, "/") {
		return parent + name
	}
	return parent + "/" + name
}

func parentVirtualPath(virtualPath string) string {
	idx := strings.LastIndex(virtualPath, "/")
	if idx <= 0 {
		return mirrorRoot
	}
	return virtualPath[:idx]
}

// EnsureFileContent loads a file's content on first access and caches it
// on the entry.
func (m *RemoteFilesMirror) EnsureFileContent(ctx context.Context, virtualPath string) (string, error) {
	m.mu.Lock()
	token := m.token
	entry, ok := m.entries[virtualPath]
	m.mu.Unlock()
	if !ok || entry.Type != MirrorFile {
		return "", fmt.Errorf("runtimeclient: %s is not a known file", virtualPath)
	}
	if entry.Loaded {
		return entry.Content, nil
	}

	content, err := m.api.ReadFile(ctx, token, virtualPath)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	entry.Content = content.Content
	entry.Loaded = true
	m.mu.Unlock()
	return content.Content, nil
}

// SaveFile ensures parent directories exist remotely, invalidates the
// directory cache, mutates local state optimistically, and enqueues the
// write in the coalescer. On coalescer rejection it rolls back local state
// exactly.
func (m *RemoteFilesMirror) SaveFile(ctx context.Context, virtualPath, content string) error {
	if err := m.ensureParentDirs(ctx, virtualPath); err != nil {
		return err
	}

	m.mu.Lock()
	token := m.token
	parent := parentVirtualPath(virtualPath)
	prior, hadPrior := m.entries[virtualPath]
	var snapshot MirrorEntry
	if hadPrior {
		snapshot = *prior
	}
	m.entries[virtualPath] = &MirrorEntry{
		VirtualPath: virtualPath,
		Type:        MirrorFile,
		Size:        int64(len(content)),
		Content:     content,
		Loaded:      true,
		Modified:    true,
	}
	m.mu.Unlock()

	m.dirCache.Invalidate(token, parent)

	resultCh := m.coalescer.Enqueue(token, WriteInput{Path: virtualPath, Content: content, Encoding: "utf8"})
	result := <-resultCh
	if result.Err != nil {
		m.mu.Lock()
		if hadPrior {
			m.entries[virtualPath] = &snapshot
		} else {
			delete(m.entries, virtualPath)
		}
		m.mu.Unlock()
		return result.Err
	}
	return nil
}

func (m *RemoteFilesMirror) ensureParentDirs(ctx context.Context, virtualPath string) error {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	trimmed := strings.Trim(strings.TrimPrefix(virtualPath, mirrorRoot), "/")
	segments := strings.Split(trimmed, "/")
	current := mirrorRoot
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] == "" {
			continue
		}
		current = joinVirtual(current, segments[i])
		if err := m.api.Mkdir(ctx, token, current); err != nil && !isAlreadyExists(err) {
			return err
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return runtimeerr.As(err).Code == runtimeerr.CodeConflict
}

// CreateFile creates an empty file at virtualPath.
func (m *RemoteFilesMirror) CreateFile(ctx context.Context, virtualPath string) error {
	return m.SaveFile(ctx, virtualPath, "")
}

// CreateFolder creates an empty folder remotely and adds it to local state.
func (m *RemoteFilesMirror) CreateFolder(ctx context.Context, virtualPath string) error {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if err := m.api.Mkdir(ctx, token, virtualPath); err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[virtualPath] = &MirrorEntry{VirtualPath: virtualPath, Type: MirrorFolder}
	m.mu.Unlock()
	m.dirCache.Invalidate(token, parentVirtualPath(virtualPath))
	return nil
}

// DeleteFile flushes, then cancels, any pending coalescer writes for
// virtualPath before deleting it remotely and locally.
func (m *RemoteFilesMirror) DeleteFile(ctx context.Context, virtualPath string) error {
	m.coalescer.Flush(virtualPath)
	m.coalescer.Cancel(virtualPath)

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if err := m.api.DeleteFile(ctx, token, virtualPath, false); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.entries, virtualPath)
	m.mu.Unlock()
	m.dirCache.Invalidate(token, parentVirtualPath(virtualPath))
	return nil
}

// DeleteFolder flushes and cancels pending writes for every file under
// virtualPath, then deletes the folder remotely and locally.
func (m *RemoteFilesMirror) DeleteFolder(ctx context.Context, virtualPath string) error {
	prefix := virtualPath + "/"
	under := func(p string) bool { return strings.HasPrefix(p, prefix) }
	m.coalescer.FlushMatching(under)
	m.coalescer.CancelMatching(under)

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if err := m.api.DeleteFile(ctx, token, virtualPath, true); err != nil {
		return err
	}

	m.mu.Lock()
	for p := range m.entries {
		if p == virtualPath || under(p) {
			delete(m.entries, p)
		}
	}
	m.mu.Unlock()
	m.dirCache.Invalidate(token, parentVirtualPath(virtualPath))
	return nil
}
