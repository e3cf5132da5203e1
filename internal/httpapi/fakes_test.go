package httpapi

import (
	"context"

	"github.com/bolthost/runtime/internal/platform"
	"github.com/bolthost/runtime/internal/runtimeerr"
	"github.com/bolthost/runtime/internal/tokencodec"
)

// fakeOrchestrator is a scripted stand-in for OrchestratorAPI.
type fakeOrchestrator struct {
	createResult *CreateResult
	createErr    error

	getResult *GetResult
	getErr    error

	heartbeatResult *HeartbeatResult
	heartbeatErr    error

	deleteErr error

	claims    *tokencodec.Claims
	claimsErr error

	redeployErr error

	lastToken string
}

func (f *fakeOrchestrator) Create(ctx context.Context, actorID, chatID, templateID, requestID string) (*CreateResult, error) {
	return f.createResult, f.createErr
}

func (f *fakeOrchestrator) Get(ctx context.Context, token, requestID string) (*GetResult, error) {
	f.lastToken = token
	return f.getResult, f.getErr
}

func (f *fakeOrchestrator) Heartbeat(ctx context.Context, token, requestID string) (*HeartbeatResult, error) {
	f.lastToken = token
	return f.heartbeatResult, f.heartbeatErr
}

func (f *fakeOrchestrator) Delete(ctx context.Context, token, requestID string) error {
	f.lastToken = token
	return f.deleteErr
}

func (f *fakeOrchestrator) WithClaims(token string) (*tokencodec.Claims, error) {
	if f.claimsErr != nil {
		return nil, f.claimsErr
	}
	if f.claims != nil {
		return f.claims, nil
	}
	return nil, runtimeerr.MissingToken()
}

func (f *fakeOrchestrator) Redeploy(ctx context.Context, token, requestID string) error {
	f.lastToken = token
	return f.redeployErr
}

// fakeFiles is a scripted stand-in for FilesAPI.
type fakeFiles struct {
	listEntries []platform.FileEntry
	listErr     error

	readContent *platform.FileContent
	readErr     error

	writeErr     error
	writeCalls   int
	mkdirErr     error
	deleteErr    error
	searchEntries []platform.FileEntry
	searchErr    error
}

func (f *fakeFiles) FileList(ctx context.Context, in platform.FileListInput, requestID string) ([]platform.FileEntry, error) {
	return f.listEntries, f.listErr
}

func (f *fakeFiles) FileRead(ctx context.Context, in platform.FileReadInput, requestID string) (*platform.FileContent, error) {
	return f.readContent, f.readErr
}

func (f *fakeFiles) FileWrite(ctx context.Context, in platform.FileWriteInput, requestID string) error {
	f.writeCalls++
	return f.writeErr
}

func (f *fakeFiles) FileMkdir(ctx context.Context, in platform.FileMkdirInput, requestID string) error {
	return f.mkdirErr
}

func (f *fakeFiles) FileDelete(ctx context.Context, in platform.FileDeleteInput, requestID string) error {
	return f.deleteErr
}

func (f *fakeFiles) FileSearch(ctx context.Context, in platform.FileSearchInput, requestID string) ([]platform.FileEntry, error) {
	return f.searchEntries, f.searchErr
}

// fakeCleanup is a scripted stand-in for CleanupAPI.
type fakeCleanup struct {
	runErr    error
	runAllN   int
	runAllErr error
}

func (f *fakeCleanup) Run(ctx context.Context, actorID, requestID string) error {
	return f.runErr
}

func (f *fakeCleanup) RunAll(ctx context.Context, requestID string) (int, error) {
	return f.runAllN, f.runAllErr
}
