package orchestrator

import (
	"context"

	"github.com/bolthost/runtime/internal/platform"
)

// PlatformAPI is the subset of platform.Client the orchestrator depends on.
// Tests supply a fake satisfying this interface instead of a real Client.
type PlatformAPI interface {
	ProjectAll(ctx context.Context, requestID string) ([]platform.Project, error)
	ProjectOne(ctx context.Context, projectID, requestID string) (*platform.Project, error)
	ProjectCreate(ctx context.Context, name, requestID string) (*platform.Project, error)

	ComposeOne(ctx context.Context, composeID, requestID string) (*platform.Compose, error)
	ComposeCreate(ctx context.Context, in platform.ComposeCreateInput, requestID string) (*platform.Compose, error)
	ComposeUpdate(ctx context.Context, in platform.ComposeUpdateInput, requestID string) error
	ComposeDelete(ctx context.Context, in platform.ComposeDeleteInput, requestID string) error
	ComposeDeploy(ctx context.Context, composeID, requestID string) (*platform.Deployment, error)

	DeploymentAllByCompose(ctx context.Context, composeID, requestID string) ([]platform.Deployment, error)

	DomainByComposeID(ctx context.Context, composeID, requestID string) ([]platform.Domain, error)
	DomainGenerate(ctx context.Context, in platform.DomainGenerateInput, requestID string) (*platform.DomainGenerateOutput, error)
	DomainCreate(ctx context.Context, in platform.DomainCreateInput, requestID string) (*platform.Domain, error)

	ServerAll(ctx context.Context, requestID string) ([]platform.Server, error)

	FileWrite(ctx context.Context, in platform.FileWriteInput, requestID string) error
}

// Session is the logical lease an orchestrator operation hands back to the
// HTTP surface.
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

// CreateResult is the return value of Create.
type CreateResult struct {
	Token            string
	Session          Session
	DeploymentStatus string
}

// GetResult is the return value of Get.
type GetResult struct {
	Session          Session
	DeploymentStatus string
}

// HeartbeatResult is the return value of Heartbeat.
type HeartbeatResult struct {
	Status    string
	ExpiresAt int64
	Token     string
}
