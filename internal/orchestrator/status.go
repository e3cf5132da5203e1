package orchestrator

import (
	"sort"

	"github.com/bolthost/runtime/internal/platform"
)

const (
	DeploymentQueued  = "queued"
	DeploymentRunning = "running"
	DeploymentDone    = "done"
	DeploymentError   = "error"

	SessionCreating  = "creating"
	SessionDeploying = "deploying"
	SessionReady     = "ready"
	SessionError     = "error"
	SessionDeleted   = "deleted"
)

// deploymentStatus derives the DeploymentStatus of the most recent deploy
// attempt for a compose, per §4.6.
func deploymentStatus(deployments []platform.Deployment) string {
	if len(deployments) == 0 {
		return DeploymentQueued
	}
	sorted := make([]platform.Deployment, len(deployments))
	copy(sorted, deployments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt > sorted[j].CreatedAt })
	latest := sorted[0]

	switch latest.Status {
	case "done":
		return DeploymentDone
	case "error", "cancelled":
		return DeploymentError
	default:
		return DeploymentRunning
	}
}

// sessionStatus derives the user-visible session status from deployment
// and compose status, per §4.6.
func sessionStatus(deployStatus, composeStatus string) string {
	if deployStatus == DeploymentError || composeStatus == "error" {
		return SessionError
	}
	if deployStatus == DeploymentDone || composeStatus == "done" {
		return SessionReady
	}
	if deployStatus == DeploymentRunning {
		return SessionDeploying
	}
	return SessionCreating
}

// isReusable reports whether a session status still represents a live,
// reclaimable compose.
func isReusable(status string) bool {
	switch status {
	case SessionCreating, SessionDeploying, SessionReady:
		return true
	default:
		return false
	}
}
