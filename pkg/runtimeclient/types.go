// Package runtimeclient is a Go client SDK for runtimed's HTTP surface
// (spec §6). It is the server-side counterpart of the editor's in-browser
// runtime client: SessionClient drives session lifecycle, RemoteFilesMirror
// keeps a local tree model in sync, WriteCoalescer debounces and serializes
// per-file writes, DirectoryCache deduplicates listing calls, and
// PreviewStateProjector derives a UI-facing status snapshot. Callers embed
// this package directly (a CLI, an integration test, a headless agent)
// rather than going through a browser.
package runtimeclient

// Session mirrors the session object the HTTP surface embeds in its
// responses (see internal/orchestrator.Session on the server side).
type Session struct {
	ActorID       string `json:"actorId"`
	ChatID        string `json:"chatId"`
	ProjectID     string `json:"projectId"`
	EnvironmentID string `json:"environmentId"`
	ComposeID     string `json:"composeId"`
	Domain        string `json:"domain"`
	PreviewURL    string `json:"previewUrl"`
	Status        string `json:"status"`
	ExpiresAt     int64  `json:"expiresAt"`
	ServerID      string `json:"serverId,omitempty"`
	Cohort        string `json:"rolloutCohort"`
}

// CreateResponse is the JSON body of POST /api/runtime/session.
type CreateResponse struct {
	RuntimeToken     string  `json:"runtimeToken"`
	Session          Session `json:"session"`
	DeploymentStatus string  `json:"deploymentStatus"`
}

// GetResponse is the JSON body of GET /api/runtime/session.
type GetResponse struct {
	SessionStatus    string  `json:"sessionStatus"`
	PreviewURL       string  `json:"previewUrl"`
	DeploymentStatus string  `json:"deploymentStatus"`
	Session          Session `json:"session"`
}

// HeartbeatResponse is the JSON body of POST /api/runtime/session/heartbeat.
type HeartbeatResponse struct {
	Status       string `json:"status"`
	ExpiresAt    int64  `json:"expiresAt"`
	RuntimeToken string `json:"runtimeToken,omitempty"`
}

// FileEntry mirrors one entry of a files/list or files/search response.
type FileEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"` // "file" | "directory"
	Size        int64  `json:"size"`
	ModifiedAt  string `json:"modifiedAt"`
	VirtualPath string `json:"virtualPath"`
}

// FileContent is the JSON body of GET /api/runtime/files/read's "file" field.
type FileContent struct {
	FileEntry
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	IsBinary bool   `json:"isBinary"`
}
