package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolthost/runtime/internal/platform"
	"github.com/bolthost/runtime/internal/tokencodec"
)

func withClaims() *fakeOrchestrator {
	return &fakeOrchestrator{claims: &tokencodec.Claims{ComposeID: "compose-1"}}
}

func TestFilesListRequiresToken(t *testing.T) {
	router := newTestServer(t, &fakeOrchestrator{}, &fakeFiles{}, &fakeCleanup{})

	req := httptest.NewRequest(http.MethodGet, "/api/runtime/files/list?path=/home/project/src", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFilesListReturnsVirtualPaths(t *testing.T) {
	files := &fakeFiles{listEntries: []platform.FileEntry{
		{Name: "main.ts", PlatformPath: "src/main.ts", Type: "file", Size: 10},
	}}
	router := newTestServer(t, withClaims(), files, &fakeCleanup{})

	req := httptest.NewRequest(http.MethodGet, "/api/runtime/files/list?path=/home/project/src&runtimeToken=tok", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Entries []map[string]any `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "/home/project/src/main.ts", resp.Entries[0]["virtualPath"])
}

func TestFilesListRejectsTraversal(t *testing.T) {
	router := newTestServer(t, withClaims(), &fakeFiles{}, &fakeCleanup{})

	req := httptest.NewRequest(http.MethodGet, "/api/runtime/files/list?path=/home/project/../secret&runtimeToken=tok", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFilesWriteTriggersRedeployOnManifestPath(t *testing.T) {
	orch := withClaims()
	files := &fakeFiles{}
	router := newTestServer(t, orch, files, &fakeCleanup{})

	body, _ := json.Marshal(map[string]string{
		"path":         "/home/project/package.json",
		"content":      `{"name":"x"}`,
		"encoding":     "utf8",
		"runtimeToken": "tok",
	})
	req := httptest.NewRequest(http.MethodPut, "/api/runtime/files/write", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, files.writeCalls)
	assert.Equal(t, "tok", orch.lastToken)
}

func TestFilesWriteSkipsRedeployOnOrdinaryPath(t *testing.T) {
	orch := withClaims()
	files := &fakeFiles{}
	router := newTestServer(t, orch, files, &fakeCleanup{})

	body, _ := json.Marshal(map[string]string{
		"path":         "/home/project/src/app.tsx",
		"content":      "export default 1",
		"encoding":     "utf8",
		"runtimeToken": "tok",
	})
	req := httptest.NewRequest(http.MethodPut, "/api/runtime/files/write", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, files.writeCalls)
	assert.Equal(t, "", orch.lastToken)
}

func TestFilesWriteRejectsBadEncoding(t *testing.T) {
	router := newTestServer(t, withClaims(), &fakeFiles{}, &fakeCleanup{})

	body, _ := json.Marshal(map[string]string{
		"path":         "/home/project/a.txt",
		"content":      "x",
		"encoding":     "latin1",
		"runtimeToken": "tok",
	})
	req := httptest.NewRequest(http.MethodPut, "/api/runtime/files/write", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFilesSearchRejectsOversizedQuery(t *testing.T) {
	router := newTestServer(t, withClaims(), &fakeFiles{}, &fakeCleanup{})

	longQuery := make([]byte, 600)
	for i := range longQuery {
		longQuery[i] = 'a'
	}
	req := httptest.NewRequest(http.MethodGet, "/api/runtime/files/search?runtimeToken=tok&query="+string(longQuery), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
