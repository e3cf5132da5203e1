package httpapi

import "github.com/bolthost/runtime/internal/orchestrator"

// Aliases so OrchestratorAPI can be declared without every caller importing
// internal/orchestrator directly.
type (
	CreateResult    = orchestrator.CreateResult
	GetResult       = orchestrator.GetResult
	HeartbeatResult = orchestrator.HeartbeatResult
)
