// Package sweeper implements IdleSweeper: best-effort, non-reentrant
// garbage collection of sessions whose lease has expired, per §4.7.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bolthost/runtime/internal/logger"
	"github.com/bolthost/runtime/internal/metadatacodec"
	"github.com/bolthost/runtime/internal/platform"
)

// PlatformAPI is the subset of platform.Client the sweeper needs.
type PlatformAPI interface {
	ProjectAll(ctx context.Context, requestID string) ([]platform.Project, error)
	ProjectOne(ctx context.Context, projectID, requestID string) (*platform.Project, error)
	ComposeDelete(ctx context.Context, in platform.ComposeDeleteInput, requestID string) error
}

// Sweeper deletes expired compose deployments on behalf of each actor. A
// Run call for an actor that is already being swept returns immediately
// instead of waiting: the lock is non-reentrant and never queues.
type Sweeper struct {
	platform PlatformAPI
	log      *zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a Sweeper over platform.
func New(p PlatformAPI) *Sweeper {
	return &Sweeper{
		platform: p,
		log:      logger.Component("sweeper"),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Sweeper) lockFor(actorID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[actorID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[actorID] = l
	}
	return l
}

// Run sweeps expired composes belonging to actorID. If a sweep for this
// actor is already in flight, Run returns nil without doing anything —
// per §4.7, there is no queue.
func (s *Sweeper) Run(ctx context.Context, actorID, requestID string) error {
	l := s.lockFor(actorID)
	if !l.TryLock() {
		s.log.Debug().Str("actor_id", actorID).Msg("sweep already in flight, skipping")
		return nil
	}
	defer l.Unlock()

	log := s.log.With().Str("actor_id", actorID).Str("request_id", requestID).Logger()

	projects, err := s.platform.ProjectAll(ctx, requestID)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	deleted := 0
	for _, p := range projects {
		full, err := s.platform.ProjectOne(ctx, p.ProjectID, requestID)
		if err != nil {
			log.Warn().Err(err).Str("project_id", p.ProjectID).Msg("failed to fetch project during sweep, skipping")
			continue
		}
		for _, env := range full.Environments {
			for _, c := range env.Composes {
				meta := metadatacodec.Parse(c.Description)
				if meta == nil || meta.ActorID != actorID {
					continue
				}
				if !expired(meta, now) {
					continue
				}
				if err := s.platform.ComposeDelete(ctx, platform.ComposeDeleteInput{
					ComposeID:     c.ComposeID,
					DeleteVolumes: true,
				}, requestID); err != nil {
					log.Warn().Err(err).Str("compose_id", c.ComposeID).Msg("sweep delete failed, continuing")
					continue
				}
				deleted++
			}
		}
	}

	log.Info().Int("deleted", deleted).Msg("sweep complete")
	return nil
}

// RunAll sweeps every actor that owns at least one compose. It enumerates
// every project once, collects the distinct actor ids it finds in
// metadata, and invokes Run for each. It returns the number of distinct
// actors swept, for the cleanup endpoint's {ok:true, actorCount} response.
func (s *Sweeper) RunAll(ctx context.Context, requestID string) (int, error) {
	projects, err := s.platform.ProjectAll(ctx, requestID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	var actorIDs []string
	for _, p := range projects {
		full, err := s.platform.ProjectOne(ctx, p.ProjectID, requestID)
		if err != nil {
			s.log.Warn().Err(err).Str("project_id", p.ProjectID).Msg("failed to fetch project during bulk sweep, skipping")
			continue
		}
		for _, env := range full.Environments {
			for _, c := range env.Composes {
				meta := metadatacodec.Parse(c.Description)
				if meta == nil {
					continue
				}
				if _, ok := seen[meta.ActorID]; !ok {
					seen[meta.ActorID] = struct{}{}
					actorIDs = append(actorIDs, meta.ActorID)
				}
			}
		}
	}

	for _, actorID := range actorIDs {
		if err := s.Run(ctx, actorID, requestID); err != nil {
			s.log.Warn().Err(err).Str("actor_id", actorID).Msg("per-actor sweep failed during bulk sweep, continuing")
		}
	}
	return len(actorIDs), nil
}

// expired reports whether m's session has outlived its idle TTL as of now
// (both in unix seconds).
func expired(m *metadatacodec.Metadata, now int64) bool {
	return m.ExpiresAt() < now
}
