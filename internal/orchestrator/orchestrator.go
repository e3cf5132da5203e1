// Package orchestrator implements session create/reuse/recover, heartbeat,
// and teardown against the platform client, per §4.6.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bolthost/runtime/internal/logger"
	"github.com/bolthost/runtime/internal/metadatacodec"
	"github.com/bolthost/runtime/internal/platform"
	"github.com/bolthost/runtime/internal/rollout"
	"github.com/bolthost/runtime/internal/runtimeerr"
	"github.com/bolthost/runtime/internal/template"
	"github.com/bolthost/runtime/internal/tokencodec"
)

// Sweeper is the subset of IdleSweeper the orchestrator invokes best-effort
// around create and heartbeat.
type Sweeper interface {
	Run(ctx context.Context, actorID, requestID string) error
}

// Config carries the resolved rollout/deploy-target knobs the orchestrator
// needs; it is a narrow view over internal/config.Config.
type Config struct {
	CanaryRolloutPercent int
	CanaryServerID       string
	StableServerID       string
	SessionIdleMinutes   int
	TokenSecret          string
}

// Orchestrator owns the single-flight session-create lock and drives the
// platform client through the create/reuse/recover state machine.
type Orchestrator struct {
	platform PlatformAPI
	sweeper  Sweeper
	cfg      Config
	sf       singleflight.Group
	log      *zerolog.Logger
}

// New builds an Orchestrator.
func New(p PlatformAPI, sweeper Sweeper, cfg Config) *Orchestrator {
	return &Orchestrator{platform: p, sweeper: sweeper, cfg: cfg, log: logger.Component("orchestrator")}
}

func (o *Orchestrator) idleTTLSeconds() int64 {
	return int64(o.cfg.SessionIdleMinutes) * 60
}

// Create provisions or reuses a compose deployment for (actorID, chatID),
// per §4.6 create().
func (o *Orchestrator) Create(ctx context.Context, actorID, chatID, templateID, requestID string) (*CreateResult, error) {
	key := actorID + ":" + chatID
	v, err, _ := o.sf.Do(key, func() (any, error) {
		return o.create(ctx, actorID, chatID, templateID, requestID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CreateResult), nil
}

func (o *Orchestrator) create(ctx context.Context, actorID, chatID, templateID, requestID string) (*CreateResult, error) {
	log := o.log.With().Str("actor_id", actorID).Str("chat_id", chatID).Logger()

	if o.sweeper != nil {
		if err := o.sweeper.Run(ctx, actorID, requestID); err != nil {
			log.Warn().Err(err).Msg("pre-create sweep failed, continuing")
		}
	}

	project, err := o.ensureActorProject(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}

	env, err := resolveEnvironment(project)
	if err != nil {
		return nil, err
	}

	sel := rollout.Select(actorID, chatID, o.cfg.CanaryRolloutPercent)

	winner, stale := o.findReusable(ctx, env.Composes, actorID, chatID, requestID, &log)
	if winner != nil {
		return o.reuse(ctx, actorID, chatID, project, env, winner, stale, sel, requestID)
	}

	return o.createNew(ctx, actorID, chatID, templateID, project, env, sel, requestID)
}

// ensureActorProject finds or creates the per-actor project, then refetches
// it in full (with environments and their composes).
func (o *Orchestrator) ensureActorProject(ctx context.Context, actorID, requestID string) (*platform.Project, error) {
	name := actorProjectName(actorID)

	all, err := o.platform.ProjectAll(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var found *platform.Project
	for i := range all {
		if all[i].Name == name {
			found = &all[i]
			break
		}
	}
	if found == nil {
		created, err := o.platform.ProjectCreate(ctx, name, requestID)
		if err != nil {
			return nil, err
		}
		found = created
	}

	full, err := o.platform.ProjectOne(ctx, found.ProjectID, requestID)
	if err != nil {
		return nil, err
	}
	return full, nil
}

// resolveEnvironment picks the environment flagged default, else named
// "production", else the first available, else fails.
func resolveEnvironment(project *platform.Project) (*platform.Environment, error) {
	for i := range project.Environments {
		if project.Environments[i].IsDefault {
			return &project.Environments[i], nil
		}
	}
	for i := range project.Environments {
		if project.Environments[i].Name == "production" {
			return &project.Environments[i], nil
		}
	}
	if len(project.Environments) > 0 {
		return &project.Environments[0], nil
	}
	return nil, runtimeerr.NoEnvironment()
}

// candidate pairs a compose with its derived session status for reuse
// evaluation.
type candidate struct {
	compose platform.Compose
	meta    *metadatacodec.Metadata
	status  string
}

// findReusable scans composes under an environment for ones owned by
// (actorID, chatID): for each match it re-fetches the compose and its
// deployment history to compute a derived session status, per §4.6 step 6.
// Among reusable candidates the most recently seen wins; the rest are
// returned as stale.
func (o *Orchestrator) findReusable(ctx context.Context, composes []platform.Compose, actorID, chatID, requestID string, log *zerolog.Logger) (*candidate, []platform.Compose) {
	var winner *candidate
	var stale []platform.Compose

	for _, c := range composes {
		meta := metadatacodec.Parse(c.Description)
		if meta == nil || !meta.Matches(actorID, chatID) {
			continue
		}

		fresh, err := o.platform.ComposeOne(ctx, c.ComposeID, requestID)
		if err != nil {
			log.Warn().Err(err).Str("compose_id", c.ComposeID).Msg("reuse candidate lookup failed, treating as stale")
			stale = append(stale, c)
			continue
		}
		deployments, err := o.platform.DeploymentAllByCompose(ctx, c.ComposeID, requestID)
		if err != nil {
			log.Warn().Err(err).Str("compose_id", c.ComposeID).Msg("reuse candidate deployment lookup failed, treating as stale")
			stale = append(stale, c)
			continue
		}

		status := sessionStatus(deploymentStatus(deployments), fresh.Status)
		if !isReusable(status) {
			stale = append(stale, *fresh)
			continue
		}

		cand := &candidate{compose: *fresh, meta: meta, status: status}
		if winner == nil || meta.LastSeenAt > winner.meta.LastSeenAt {
			if winner != nil {
				stale = append(stale, winner.compose)
			}
			winner = cand
		} else {
			stale = append(stale, *fresh)
		}
	}
	return winner, stale
}

func (o *Orchestrator) reuse(ctx context.Context, actorID, chatID string, project *platform.Project, env *platform.Environment,
	winner *candidate, stale []platform.Compose, sel rollout.Selection, requestID string) (*CreateResult, error) {

	log := o.log.With().Str("actor_id", actorID).Str("chat_id", chatID).Str("compose_id", winner.compose.ComposeID).Logger()

	cohort := metadatacodec.Cohort(sel.Cohort)
	if winner.meta.RolloutCohort != "" {
		cohort = winner.meta.RolloutCohort
	} else if winner.compose.ServerID != "" && winner.compose.ServerID == o.cfg.CanaryServerID {
		cohort = metadatacodec.CohortCanary
	}

	nowUnix := time.Now().Unix()
	meta := metadatacodec.Metadata{
		Version:       metadatacodec.SchemaVersion,
		ActorID:       actorID,
		ChatID:        chatID,
		CreatedAt:     winner.meta.CreatedAt,
		LastSeenAt:    nowUnix,
		IdleTTLSec:    o.idleTTLSeconds(),
		RolloutCohort: cohort,
	}
	desc, err := metadatacodec.Format(meta)
	if err != nil {
		return nil, runtimeerr.Wrap(runtimeerr.CodeInternal, "failed to encode session metadata", err)
	}
	if err := o.platform.ComposeUpdate(ctx, platform.ComposeUpdateInput{
		ComposeID:   winner.compose.ComposeID,
		Description: desc,
	}, requestID); err != nil {
		return nil, err
	}

	domain, err := o.ensureDomain(ctx, winner.compose, requestID)
	if err != nil {
		return nil, err
	}

	deployments, err := o.platform.DeploymentAllByCompose(ctx, winner.compose.ComposeID, requestID)
	if err != nil {
		return nil, err
	}
	deployStatus := deploymentStatus(deployments)
	if deployStatus == DeploymentQueued || deployStatus == DeploymentError {
		if _, err := o.platform.ComposeDeploy(ctx, winner.compose.ComposeID, requestID); err != nil {
			log.Warn().Err(err).Msg("redeploy-on-reuse failed")
		} else {
			deployStatus = DeploymentQueued
		}
	}

	o.deleteStale(ctx, stale, requestID, &log)

	return o.finish(actorID, chatID, project, env, winner.compose, domain, deployStatus, cohort)
}

func (o *Orchestrator) createNew(ctx context.Context, actorID, chatID, templateID string, project *platform.Project,
	env *platform.Environment, sel rollout.Selection, requestID string) (*CreateResult, error) {

	log := o.log.With().Str("actor_id", actorID).Str("chat_id", chatID).Logger()

	serverID, err := o.resolveServerID(ctx, sel, requestID)
	if err != nil {
		return nil, err
	}

	name := chatComposeName(actorID, chatID)
	tpl := template.Get(templateID)

	nowUnix := time.Now().Unix()
	cohort := metadatacodec.Cohort(sel.Cohort)
	meta := metadatacodec.Metadata{
		Version:       metadatacodec.SchemaVersion,
		ActorID:       actorID,
		ChatID:        chatID,
		CreatedAt:     nowUnix,
		LastSeenAt:    nowUnix,
		IdleTTLSec:    o.idleTTLSeconds(),
		RolloutCohort: cohort,
	}
	desc, err := metadatacodec.Format(meta)
	if err != nil {
		return nil, runtimeerr.Wrap(runtimeerr.CodeInternal, "failed to encode session metadata", err)
	}

	compose, err := o.platform.ComposeCreate(ctx, platform.ComposeCreateInput{
		ProjectID:     project.ProjectID,
		EnvironmentID: env.EnvironmentID,
		Name:          name,
		AppName:       name,
		ComposeType:   "docker-compose",
		ComposeFile:   tpl.ComposeFile,
		Description:   desc,
		ServerID:      serverID,
	}, requestID)
	if err != nil {
		re := runtimeerr.As(err)
		if re.Code == runtimeerr.CodeConflict {
			log.Warn().Msg("compose.create conflicted, re-scanning for a winner")
			refreshed, rerr := o.platform.ProjectOne(ctx, project.ProjectID, requestID)
			if rerr != nil {
				return nil, rerr
			}
			refreshedEnv, rerr := resolveEnvironment(refreshed)
			if rerr != nil {
				return nil, rerr
			}
			winner, stale := o.findReusable(ctx, refreshedEnv.Composes, actorID, chatID, requestID, &log)
			if winner != nil {
				return o.reuse(ctx, actorID, chatID, refreshed, refreshedEnv, winner, stale, sel, requestID)
			}
		}
		return nil, err
	}

	if err := o.platform.ComposeUpdate(ctx, platform.ComposeUpdateInput{
		ComposeID:   compose.ComposeID,
		SourceType:  "raw",
		ComposePath: "docker-compose.yml",
		Description: desc,
	}, requestID); err != nil {
		return nil, err
	}

	for _, path := range tpl.SortedPaths() {
		if err := o.platform.FileWrite(ctx, platform.FileWriteInput{
			ComposeID: compose.ComposeID,
			Path:      path,
			Content:   tpl.Files[path],
			Encoding:  "utf8",
			Overwrite: true,
		}, requestID); err != nil {
			return nil, err
		}
	}

	domain, err := o.ensureDomain(ctx, *compose, requestID)
	if err != nil {
		return nil, err
	}

	deployments, err := o.platform.DeploymentAllByCompose(ctx, compose.ComposeID, requestID)
	if err != nil {
		return nil, err
	}
	deployStatus := deploymentStatus(deployments)
	if deployStatus == DeploymentQueued || deployStatus == DeploymentError {
		if _, err := o.platform.ComposeDeploy(ctx, compose.ComposeID, requestID); err != nil {
			return nil, err
		}
		deployStatus = DeploymentQueued
	}

	return o.finish(actorID, chatID, project, env, *compose, domain, deployStatus, cohort)
}

func (o *Orchestrator) resolveServerID(ctx context.Context, sel rollout.Selection, requestID string) (string, error) {
	if sel.Cohort == rollout.CohortCanary {
		if o.cfg.CanaryServerID == "" {
			return "", runtimeerr.NoCanaryDeployServer()
		}
		return o.cfg.CanaryServerID, nil
	}
	if o.cfg.StableServerID != "" {
		return o.cfg.StableServerID, nil
	}
	servers, err := o.platform.ServerAll(ctx, requestID)
	if err != nil {
		return "", err
	}
	for _, s := range servers {
		if s.SSHEnabled {
			return s.ServerID, nil
		}
	}
	return "", nil
}

// ensureDomain fetches or creates the preview domain for compose.
func (o *Orchestrator) ensureDomain(ctx context.Context, compose platform.Compose, requestID string) (platform.Domain, error) {
	existing, err := o.platform.DomainByComposeID(ctx, compose.ComposeID, requestID)
	if err != nil {
		return platform.Domain{}, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	gen, err := o.platform.DomainGenerate(ctx, platform.DomainGenerateInput{
		AppName:  compose.AppName,
		ServerID: compose.ServerID,
	}, requestID)
	if err != nil {
		return platform.Domain{}, err
	}
	if gen.Host == "" {
		return platform.Domain{}, runtimeerr.DomainUnavailable("platform returned no preview host")
	}

	created, err := o.platform.DomainCreate(ctx, platform.DomainCreateInput{
		ComposeID:   compose.ComposeID,
		Host:        gen.Host,
		Path:        "/",
		Port:        4173,
		HTTPS:       true,
		ServiceName: "app",
	}, requestID)
	if err != nil {
		return platform.Domain{}, err
	}
	return *created, nil
}

func (o *Orchestrator) deleteStale(ctx context.Context, stale []platform.Compose, requestID string, log *zerolog.Logger) {
	for _, c := range stale {
		if err := o.platform.ComposeDelete(ctx, platform.ComposeDeleteInput{ComposeID: c.ComposeID, DeleteVolumes: true}, requestID); err != nil {
			log.Warn().Err(err).Str("compose_id", c.ComposeID).Msg("failed to delete stale compose, continuing")
		}
	}
}

func (o *Orchestrator) finish(actorID, chatID string, project *platform.Project, env *platform.Environment,
	compose platform.Compose, domain platform.Domain, deployStatus string, cohort metadatacodec.Cohort) (*CreateResult, error) {

	token, err := tokencodec.Sign(tokencodec.Claims{
		ActorID:       actorID,
		ChatID:        chatID,
		ProjectID:     project.ProjectID,
		EnvironmentID: env.EnvironmentID,
		ComposeID:     compose.ComposeID,
		Domain:        domain.Host,
	}, o.cfg.TokenSecret, o.idleTTLSeconds())
	if err != nil {
		return nil, err
	}

	status := sessionStatus(deployStatus, compose.Status)
	session := Session{
		ActorID:       actorID,
		ChatID:        chatID,
		ProjectID:     project.ProjectID,
		EnvironmentID: env.EnvironmentID,
		ComposeID:     compose.ComposeID,
		Domain:        domain.Host,
		PreviewURL:    previewURL(domain),
		Status:        status,
		ExpiresAt:     time.Now().Unix() + o.idleTTLSeconds(),
		ServerID:      compose.ServerID,
		Cohort:        string(cohort),
	}

	return &CreateResult{Token: token, Session: session, DeploymentStatus: deployStatus}, nil
}

func previewURL(domain platform.Domain) string {
	if domain.Host == "" {
		return ""
	}
	scheme := "http"
	if domain.HTTPS {
		scheme = "https"
	}
	path := domain.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s://%s%s", scheme, domain.Host, path)
}

// Get verifies a token and rebuilds the current session view, per §4.6 get().
func (o *Orchestrator) Get(ctx context.Context, token, requestID string) (*GetResult, error) {
	claims, err := tokencodec.Verify(token, o.cfg.TokenSecret)
	if err != nil {
		return nil, err
	}

	compose, err := o.platform.ComposeOne(ctx, claims.ComposeID, requestID)
	if err != nil {
		return nil, err
	}
	deployments, err := o.platform.DeploymentAllByCompose(ctx, claims.ComposeID, requestID)
	if err != nil {
		return nil, err
	}
	domains, err := o.platform.DomainByComposeID(ctx, claims.ComposeID, requestID)
	if err != nil {
		return nil, err
	}

	meta := metadatacodec.Parse(compose.Description)
	if meta == nil {
		issuedAt := time.Now().Unix()
		if claims.IssuedAt != nil {
			issuedAt = claims.IssuedAt.Unix()
		}
		meta = &metadatacodec.Metadata{
			Version:    metadatacodec.SchemaVersion,
			ActorID:    claims.ActorID,
			ChatID:     claims.ChatID,
			CreatedAt:  issuedAt,
			LastSeenAt: issuedAt,
			IdleTTLSec: o.idleTTLSeconds(),
		}
	}

	var domain platform.Domain
	if len(domains) > 0 {
		domain = domains[0]
	} else {
		domain.Host = claims.Domain
	}

	deployStatus := deploymentStatus(deployments)
	status := sessionStatus(deployStatus, compose.Status)

	session := Session{
		ActorID:       claims.ActorID,
		ChatID:        claims.ChatID,
		ProjectID:     claims.ProjectID,
		EnvironmentID: claims.EnvironmentID,
		ComposeID:     claims.ComposeID,
		Domain:        domain.Host,
		PreviewURL:    previewURL(domain),
		Status:        status,
		ExpiresAt:     meta.ExpiresAt(),
		ServerID:      compose.ServerID,
		Cohort:        string(meta.RolloutCohort),
	}
	return &GetResult{Session: session, DeploymentStatus: deployStatus}, nil
}

// Heartbeat extends a session's lease and returns a freshly-signed token
// with a slid expiry, per §4.6 heartbeat().
func (o *Orchestrator) Heartbeat(ctx context.Context, token, requestID string) (*HeartbeatResult, error) {
	got, err := o.Get(ctx, token, requestID)
	if err != nil {
		return nil, err
	}
	claims, err := tokencodec.Verify(token, o.cfg.TokenSecret)
	if err != nil {
		return nil, err
	}

	compose, err := o.platform.ComposeOne(ctx, claims.ComposeID, requestID)
	if err != nil {
		return nil, err
	}
	current := metadatacodec.Parse(compose.Description)
	cohort := metadatacodec.Cohort(got.Session.Cohort)
	nowUnix := time.Now().Unix()
	createdAt := nowUnix
	if current != nil {
		createdAt = current.CreatedAt
	}
	next := metadatacodec.Metadata{
		Version:       metadatacodec.SchemaVersion,
		ActorID:       claims.ActorID,
		ChatID:        claims.ChatID,
		CreatedAt:     createdAt,
		LastSeenAt:    nowUnix,
		IdleTTLSec:    o.idleTTLSeconds(),
		RolloutCohort: cohort,
	}
	desc, err := metadatacodec.Format(next)
	if err != nil {
		return nil, runtimeerr.Wrap(runtimeerr.CodeInternal, "failed to encode session metadata", err)
	}
	if err := o.platform.ComposeUpdate(ctx, platform.ComposeUpdateInput{
		ComposeID:   claims.ComposeID,
		Description: desc,
	}, requestID); err != nil {
		return nil, err
	}

	if o.sweeper != nil {
		if err := o.sweeper.Run(ctx, claims.ActorID, requestID); err != nil {
			o.log.Warn().Err(err).Msg("heartbeat-triggered sweep failed")
		}
	}

	newToken, err := tokencodec.Sign(tokencodec.Claims{
		ActorID:       claims.ActorID,
		ChatID:        claims.ChatID,
		ProjectID:     claims.ProjectID,
		EnvironmentID: claims.EnvironmentID,
		ComposeID:     claims.ComposeID,
		Domain:        claims.Domain,
	}, o.cfg.TokenSecret, o.idleTTLSeconds())
	if err != nil {
		return nil, err
	}

	return &HeartbeatResult{
		Status:    got.Session.Status,
		ExpiresAt: next.ExpiresAt(),
		Token:     newToken,
	}, nil
}

// Delete tears a session down, deleting its compose and volumes.
func (o *Orchestrator) Delete(ctx context.Context, token, requestID string) error {
	claims, err := tokencodec.Verify(token, o.cfg.TokenSecret)
	if err != nil {
		return err
	}
	return o.platform.ComposeDelete(ctx, platform.ComposeDeleteInput{ComposeID: claims.ComposeID, DeleteVolumes: true}, requestID)
}

// WithClaims verifies token and returns its claims, used by file operations
// to recover the authoritative composeId.
func (o *Orchestrator) WithClaims(token string) (*tokencodec.Claims, error) {
	return tokencodec.Verify(token, o.cfg.TokenSecret)
}

// Redeploy triggers a redeploy for the compose bound to token, used when a
// write touches a redeploy-trigger path.
func (o *Orchestrator) Redeploy(ctx context.Context, token, requestID string) error {
	claims, err := tokencodec.Verify(token, o.cfg.TokenSecret)
	if err != nil {
		return err
	}
	_, err = o.platform.ComposeDeploy(ctx, claims.ComposeID, requestID)
	return err
}
