package runtimeclient

import "time"

// ConnectionState summarizes the last SessionClient call's network outcome,
// as the projector's transient-error precedence rule needs it.
type ConnectionState string

const (
	ConnectionOK             ConnectionState = "ok"
	ConnectionTransientError ConnectionState = "transient-error"
)

// Preview states (§4.11 output domain).
const (
	PreviewProvisioning = "provisioning"
	PreviewDeploying    = "deploying"
	PreviewReady        = "ready"
	PreviewError        = "error"
	PreviewReconnecting = "reconnecting"
)

const (
	queuedTimeout    = 180 * time.Second
	reconnectGrace   = 30 * time.Second
	maxQueuedRetries = 1
)

// ProjectorInput is the SessionClient-observable state the projector reads
// on each tick.
type ProjectorInput struct {
	ConnectionState  ConnectionState
	SessionStatus    string
	DeploymentStatus string
	RuntimeToken     string
	PreviewURL       string
	ComposeID        string
	ChatID           string
}

// ProjectorMemory is the projector's own state, carried from call to call.
type ProjectorMemory struct {
	SessionKey        string
	RetryCount        int
	QueuedSince       *time.Time
	LastHealthyAt     *time.Time
	LastTransitionAt  time.Time
	LastState         string
}

// ProjectorSnapshot is the UI-facing status derived on this tick.
type ProjectorSnapshot struct {
	State            string
	Message          string
	RetryCount       int
	MaxRetries       int
	QueuedSince      *time.Time
	LastTransitionAt time.Time
}

// ProjectorResult is ProjectPreviewState's return value.
type ProjectorResult struct {
	Snapshot           ProjectorSnapshot
	Memory             ProjectorMemory
	ShouldAutoRedeploy bool
}

// ProjectPreviewState derives a preview status snapshot from SessionClient
// state and prior projector memory. It is pure: given the same inputs it
// always returns the same outputs, with no access to the clock except
// through now.
func ProjectPreviewState(in ProjectorInput, mem ProjectorMemory, now time.Time) ProjectorResult {
	sessionKey := in.ChatID + "\x00" + in.ComposeID
	if mem.SessionKey != sessionKey {
		mem = ProjectorMemory{SessionKey: sessionKey, LastTransitionAt: now}
	}

	shouldAutoRedeploy := false
	forcedErrorMessage := ""

	if in.DeploymentStatus == "queued" {
		if mem.QueuedSince == nil {
			t := now
			mem.QueuedSince = &t
		}
		if now.Sub(*mem.QueuedSince) >= queuedTimeout {
			if mem.RetryCount < maxQueuedRetries {
				shouldAutoRedeploy = true
				mem.RetryCount++
				mem.QueuedSince = nil
			} else {
				forcedErrorMessage = "Deployment is still queued past the automatic retry time limit"
			}
		}
	} else {
		mem.QueuedSince = nil
	}

	var state, message string
	switch {
	case forcedErrorMessage != "":
		state, message = PreviewError, forcedErrorMessage
	case in.ConnectionState == ConnectionTransientError:
		if in.RuntimeToken != "" && mem.LastHealthyAt != nil && now.Sub(*mem.LastHealthyAt) <= reconnectGrace {
			state, message = PreviewReconnecting, "Reconnecting to the runtime session"
		} else {
			state, message = PreviewError, "Lost connection to the runtime session"
		}
	case in.SessionStatus == "creating":
		state, message = PreviewProvisioning, "Provisioning runtime environment"
	case in.DeploymentStatus == "queued", in.DeploymentStatus == "running", in.SessionStatus == "deploying":
		state, message = PreviewDeploying, "Deployment in progress"
	case in.SessionStatus == "ready" && in.DeploymentStatus == "done":
		state, message = PreviewReady, "Preview ready"
		t := now
		mem.LastHealthyAt = &t
	case in.PreviewURL != "":
		state, message = PreviewDeploying, "Deployment in progress"
	default:
		state, message = PreviewProvisioning, "Provisioning runtime environment"
	}

	if state != mem.LastState {
		mem.LastTransitionAt = now
	}
	mem.LastState = state

	return ProjectorResult{
		Snapshot: ProjectorSnapshot{
			State:            state,
			Message:          message,
			RetryCount:       mem.RetryCount,
			MaxRetries:       maxQueuedRetries,
			QueuedSince:      mem.QueuedSince,
			LastTransitionAt: mem.LastTransitionAt,
		},
		Memory:             mem,
		ShouldAutoRedeploy: shouldAutoRedeploy,
	}
}
