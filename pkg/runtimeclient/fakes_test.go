package runtimeclient

import (
	"context"
	"sync"
)

// fakeAPI is a scripted, in-memory stand-in for RuntimeAPI used across this
// package's tests.
type fakeAPI struct {
	mu sync.Mutex

	createResult *CreateResponse
	createErr    error
	deleteErr    error
	heartbeatResult *HeartbeatResponse
	heartbeatErr    error
	getResult       *GetResponse
	getErr          error

	tree map[string][]FileEntry // virtual dir path -> children
	content map[string]string   // virtual file path -> content

	writeErr  error
	mkdirErr  error
	deleteFileErr error

	writeCalls []string
	mkdirCalls []string
	deleteCalls []string
}

var _ RuntimeAPI = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{tree: make(map[string][]FileEntry), content: make(map[string]string)}
}

func (f *fakeAPI) CreateSession(ctx context.Context, chatID, templateID, runtimeToken string) (*CreateResponse, error) {
	return f.createResult, f.createErr
}

func (f *fakeAPI) GetSession(ctx context.Context, token string) (*GetResponse, error) {
	return f.getResult, f.getErr
}

func (f *fakeAPI) DeleteSession(ctx context.Context, token string) error {
	return f.deleteErr
}

func (f *fakeAPI) Heartbeat(ctx context.Context, token string) (*HeartbeatResponse, error) {
	return f.heartbeatResult, f.heartbeatErr
}

func (f *fakeAPI) ListFiles(ctx context.Context, token, path string) ([]FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tree[path], nil
}

func (f *fakeAPI) ReadFile(ctx context.Context, token, path string) (*FileContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &FileContent{FileEntry: FileEntry{Name: path, Path: path}, Content: f.content[path], Encoding: "utf8"}, nil
}

func (f *fakeAPI) WriteFile(ctx context.Context, token, path, content, encoding string) error {
	f.mu.Lock()
	f.writeCalls = append(f.writeCalls, path)
	if f.writeErr == nil {
		f.content[path] = content
	}
	f.mu.Unlock()
	return f.writeErr
}

func (f *fakeAPI) Mkdir(ctx context.Context, token, path string) error {
	f.mu.Lock()
	f.mkdirCalls = append(f.mkdirCalls, path)
	f.mu.Unlock()
	return f.mkdirErr
}

func (f *fakeAPI) DeleteFile(ctx context.Context, token, path string, recursive bool) error {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, path)
	f.mu.Unlock()
	return f.deleteFileErr
}

func (f *fakeAPI) SearchFiles(ctx context.Context, token, query, path string) ([]FileEntry, error) {
	return nil, nil
}

func (f *fakeAPI) Redeploy(ctx context.Context, token, reason string) error {
	return nil
}
