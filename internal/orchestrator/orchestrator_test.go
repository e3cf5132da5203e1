package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolthost/runtime/internal/metadatacodec"
	"github.com/bolthost/runtime/internal/platform"
	"github.com/bolthost/runtime/internal/runtimeerr"
)

func testConfig() Config {
	return Config{
		CanaryRolloutPercent: 0,
		StableServerID:       "server-stable",
		SessionIdleMinutes:   15,
		TokenSecret:          "test-secret",
	}
}

func TestCreateProvisionsNewSession(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	res, err := o.Create(context.Background(), "actor-1", "chat-1", "", "req-1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "actor-1", res.Session.ActorID)
	assert.Equal(t, "chat-1", res.Session.ChatID)
	assert.NotEmpty(t, res.Session.ComposeID)
	assert.NotEmpty(t, res.Session.PreviewURL)
	assert.Equal(t, int32(1), fp.composeCreateCalls.Load())
}

func TestCreateConcurrentCallsDedupeViaSingleflight(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	const n = 8
	var wg sync.WaitGroup
	results := make([]*CreateResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.Create(context.Background(), "actor-dup", "chat-dup", "", "req-dup")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
	}
	assert.Equal(t, int32(1), fp.composeCreateCalls.Load(), "concurrent creates for the same actor/chat must dedupe to one compose.create")
	for i := 1; i < n; i++ {
		assert.Equal(t, results[0].Session.ComposeID, results[i].Session.ComposeID)
	}
}

func TestCreateReusesExistingReadyCompose(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	first, err := o.Create(context.Background(), "actor-2", "chat-2", "", "req-1")
	require.NoError(t, err)
	fp.deployments[first.Session.ComposeID] = []platform.Deployment{
		{DeploymentID: "d1", ComposeID: first.Session.ComposeID, Status: "done", CreatedAt: "1"},
	}

	fp.composeCreateCalls.Store(0)
	fp.composeDeleteCalls.Store(0)

	second, err := o.Create(context.Background(), "actor-2", "chat-2", "", "req-2")
	require.NoError(t, err)

	assert.Equal(t, first.Session.ComposeID, second.Session.ComposeID, "a ready compose for the same actor/chat must be reused")
	assert.Equal(t, int32(0), fp.composeCreateCalls.Load(), "reuse path must not call compose.create")
	assert.Equal(t, int32(0), fp.composeDeleteCalls.Load(), "the winning reused compose must not be deleted")
}

func TestCreateCanaryWithoutServerIDFails(t *testing.T) {
	fp := newFakePlatform()
	cfg := testConfig()
	cfg.CanaryRolloutPercent = 100
	cfg.CanaryServerID = ""
	o := New(fp, nil, cfg)

	_, err := o.Create(context.Background(), "actor-3", "chat-3", "", "req-1")
	require.Error(t, err)
	re := runtimeerr.As(err)
	assert.Equal(t, runtimeerr.CodeNoCanaryDeployServer, re.Code)
	assert.Equal(t, 503, re.StatusCode)
}

func TestCreateConflictWithNoReusableWinnerPropagatesConflict(t *testing.T) {
	fp := newFakePlatform()
	fp.createConflictOnce = true
	o := New(fp, nil, testConfig())

	_, err := o.Create(context.Background(), "actor-4", "chat-4", "", "req-1")
	require.Error(t, err)
	re := runtimeerr.As(err)
	assert.Equal(t, runtimeerr.CodeConflict, re.Code)
	assert.Equal(t, int32(1), fp.composeCreateCalls.Load(), "the rescan on conflict must not retry compose.create itself")
}

func TestCreateReusesWinnerLeftByRacingCaller(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	// A racing caller already won: create the project and compose directly
	// against the fake so the environment the orchestrator fetches already
	// contains it.
	proj, err := fp.ProjectCreate(context.Background(), actorProjectName("actor-4b"), "req-0")
	require.NoError(t, err)
	existing, err := fp.ComposeCreate(context.Background(), platform.ComposeCreateInput{
		ProjectID:     proj.ProjectID,
		EnvironmentID: proj.Environments[0].EnvironmentID,
		Name:          chatComposeName("actor-4b", "chat-4b"),
		AppName:       chatComposeName("actor-4b", "chat-4b"),
	}, "req-0")
	require.NoError(t, err)
	meta := metadatacodec.Metadata{
		Version:    metadatacodec.SchemaVersion,
		ActorID:    "actor-4b",
		ChatID:     "chat-4b",
		CreatedAt:  time.Now().Unix(),
		LastSeenAt: time.Now().Unix(),
		IdleTTLSec: 900,
	}
	desc, err := metadatacodec.Format(meta)
	require.NoError(t, err)
	require.NoError(t, fp.ComposeUpdate(context.Background(), platform.ComposeUpdateInput{ComposeID: existing.ComposeID, Description: desc}, "req-0"))
	fp.composeCreateCalls.Store(0)

	// Now calling Create for the same actor/chat finds the winner on the
	// very first scan, taking the reuse path without ever calling
	// compose.create — this exercises the same findReusable machinery the
	// conflict-recovery rescan uses.
	res, err := o.Create(context.Background(), "actor-4b", "chat-4b", "", "req-1")
	require.NoError(t, err)
	assert.Equal(t, existing.ComposeID, res.Session.ComposeID)
	assert.Equal(t, int32(0), fp.composeCreateCalls.Load())
}

func TestGetReturnsCurrentSessionView(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	created, err := o.Create(context.Background(), "actor-5", "chat-5", "", "req-1")
	require.NoError(t, err)

	got, err := o.Get(context.Background(), created.Token, "req-2")
	require.NoError(t, err)
	assert.Equal(t, created.Session.ComposeID, got.Session.ComposeID)
	assert.Equal(t, "actor-5", got.Session.ActorID)
}

func TestHeartbeatSlidesExpiryAndReturnsFreshToken(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	created, err := o.Create(context.Background(), "actor-6", "chat-6", "", "req-1")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	hb, err := o.Heartbeat(context.Background(), created.Token, "req-2")
	require.NoError(t, err)
	assert.NotEmpty(t, hb.Token)
	assert.NotEqual(t, created.Token, hb.Token)
	assert.GreaterOrEqual(t, hb.ExpiresAt, created.Session.ExpiresAt)

	claims, err := o.WithClaims(hb.Token)
	require.NoError(t, err)
	assert.Equal(t, created.Session.ComposeID, claims.ComposeID)
}

func TestHeartbeatTriggersSweeperBestEffort(t *testing.T) {
	fp := newFakePlatform()
	sweeper := &fakeSweeper{}
	o := New(fp, sweeper, testConfig())

	created, err := o.Create(context.Background(), "actor-7", "chat-7", "", "req-1")
	require.NoError(t, err)
	sweeper.calls.Store(0)

	_, err = o.Heartbeat(context.Background(), created.Token, "req-2")
	require.NoError(t, err)
	assert.Equal(t, int32(1), sweeper.calls.Load())
}

func TestDeleteRemovesComposeAndVolumes(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	created, err := o.Create(context.Background(), "actor-8", "chat-8", "", "req-1")
	require.NoError(t, err)

	err = o.Delete(context.Background(), created.Token, "req-2")
	require.NoError(t, err)

	_, err = fp.ComposeOne(context.Background(), created.Session.ComposeID, "req-3")
	require.Error(t, err)
}

func TestRedeployTriggersComposeDeploy(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	created, err := o.Create(context.Background(), "actor-9", "chat-9", "", "req-1")
	require.NoError(t, err)
	fp.composeDeployCalls.Store(0)

	err = o.Redeploy(context.Background(), created.Token, "req-2")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fp.composeDeployCalls.Load())
}

func TestFindReusableTreatsErroredDeploymentAsStale(t *testing.T) {
	fp := newFakePlatform()
	o := New(fp, nil, testConfig())

	proj, err := fp.ProjectCreate(context.Background(), "p", "req-0")
	require.NoError(t, err)
	compose, err := fp.ComposeCreate(context.Background(), platform.ComposeCreateInput{
		ProjectID: proj.ProjectID, Name: "c", AppName: "c",
	}, "req-0")
	require.NoError(t, err)
	meta := metadatacodec.Metadata{ActorID: "a", ChatID: "c", CreatedAt: 1, LastSeenAt: 1, IdleTTLSec: 60}
	desc, err := metadatacodec.Format(meta)
	require.NoError(t, err)
	compose.Description = desc
	fp.composes[compose.ComposeID] = compose
	fp.deployments[compose.ComposeID] = []platform.Deployment{{Status: "error", CreatedAt: "1"}}

	log := o.log.With().Logger()
	winner, stale := o.findReusable(context.Background(), []platform.Compose{*compose}, "a", "c", "req-1", &log)
	assert.Nil(t, winner)
	require.Len(t, stale, 1)
	assert.Equal(t, compose.ComposeID, stale[0].ComposeID)
}

func TestDeploymentStatusOrdering(t *testing.T) {
	assert.Equal(t, DeploymentQueued, deploymentStatus(nil))
	assert.Equal(t, DeploymentDone, deploymentStatus([]platform.Deployment{{Status: "done", CreatedAt: "1"}}))
	assert.Equal(t, DeploymentError, deploymentStatus([]platform.Deployment{{Status: "error", CreatedAt: "1"}}))
	assert.Equal(t, DeploymentRunning, deploymentStatus([]platform.Deployment{{Status: "deploying", CreatedAt: "1"}}))

	latestFirst := []platform.Deployment{
		{Status: "error", CreatedAt: "1"},
		{Status: "done", CreatedAt: "2"},
	}
	assert.Equal(t, DeploymentDone, deploymentStatus(latestFirst), "most recent deployment wins regardless of slice order")
}

func TestSessionStatusPrecedence(t *testing.T) {
	assert.Equal(t, SessionError, sessionStatus(DeploymentError, "done"))
	assert.Equal(t, SessionReady, sessionStatus(DeploymentDone, "running"))
	assert.Equal(t, SessionDeploying, sessionStatus(DeploymentRunning, "idle"))
	assert.Equal(t, SessionCreating, sessionStatus(DeploymentQueued, "idle"))
}
