package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bolthost/runtime/internal/platform"
	"github.com/bolthost/runtime/internal/runtimeerr"
)

// fakePlatform is an in-memory stand-in for platform.Client used to drive
// orchestrator tests without a real HTTP round trip.
type fakePlatform struct {
	mu sync.Mutex

	projects    map[string]*platform.Project
	composes    map[string]*platform.Compose
	deployments map[string][]platform.Deployment
	domains     map[string][]platform.Domain
	servers     []platform.Server

	composeCreateCalls atomic.Int32
	composeDeployCalls atomic.Int32
	composeDeleteCalls atomic.Int32
	nextComposeID      atomic.Int64

	createConflictOnce bool
	conflicted         atomic.Bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		projects:    map[string]*platform.Project{},
		composes:    map[string]*platform.Compose{},
		deployments: map[string][]platform.Deployment{},
		domains:     map[string][]platform.Domain{},
	}
}

func (f *fakePlatform) ProjectAll(ctx context.Context, requestID string) ([]platform.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platform.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePlatform) ProjectOne(ctx context.Context, projectID, requestID string) (*platform.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[projectID]
	if !ok {
		return nil, runtimeerr.NotFound("project")
	}
	cp := *p
	cp.Environments = append([]platform.Environment{}, p.Environments...)
	for i := range cp.Environments {
		var composes []platform.Compose
		for _, c := range f.composes {
			if c.ProjectID == projectID {
				composes = append(composes, *c)
			}
		}
		cp.Environments[i].Composes = composes
	}
	return &cp, nil
}

func (f *fakePlatform) ProjectCreate(ctx context.Context, name, requestID string) (*platform.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("proj-%d", len(f.projects)+1)
	p := &platform.Project{
		ProjectID: id,
		Name:      name,
		Environments: []platform.Environment{
			{EnvironmentID: "env-1", Name: "production", IsDefault: true},
		},
	}
	f.projects[id] = p
	return p, nil
}

func (f *fakePlatform) ComposeOne(ctx context.Context, composeID, requestID string) (*platform.Compose, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.composes[composeID]
	if !ok {
		return nil, runtimeerr.NotFound("compose")
	}
	cp := *c
	return &cp, nil
}

func (f *fakePlatform) ComposeCreate(ctx context.Context, in platform.ComposeCreateInput, requestID string) (*platform.Compose, error) {
	f.composeCreateCalls.Add(1)

	if f.createConflictOnce && f.conflicted.CompareAndSwap(false, true) {
		return nil, runtimeerr.Conflict("compose already exists")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("compose-%d", f.nextComposeID.Add(1))
	c := &platform.Compose{
		ComposeID:   id,
		Name:        in.Name,
		AppName:     in.AppName,
		ProjectID:   in.ProjectID,
		ServerID:    in.ServerID,
		Description: in.Description,
		Status:      "idle",
	}
	f.composes[id] = c
	return c, nil
}

func (f *fakePlatform) ComposeUpdate(ctx context.Context, in platform.ComposeUpdateInput, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.composes[in.ComposeID]
	if !ok {
		return runtimeerr.NotFound("compose")
	}
	if in.Description != "" {
		c.Description = in.Description
	}
	if in.SourceType != "" {
		c.SourceType = in.SourceType
	}
	if in.ComposePath != "" {
		c.ComposePath = in.ComposePath
	}
	return nil
}

func (f *fakePlatform) ComposeDelete(ctx context.Context, in platform.ComposeDeleteInput, requestID string) error {
	f.composeDeleteCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.composes, in.ComposeID)
	return nil
}

func (f *fakePlatform) ComposeDeploy(ctx context.Context, composeID, requestID string) (*platform.Deployment, error) {
	f.composeDeployCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	dep := platform.Deployment{DeploymentID: fmt.Sprintf("deploy-%s", composeID), ComposeID: composeID, Status: "running", CreatedAt: "2"}
	f.deployments[composeID] = append(f.deployments[composeID], dep)
	return &dep, nil
}

func (f *fakePlatform) DeploymentAllByCompose(ctx context.Context, composeID, requestID string) ([]platform.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Deployment{}, f.deployments[composeID]...), nil
}

func (f *fakePlatform) DomainByComposeID(ctx context.Context, composeID, requestID string) ([]platform.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Domain{}, f.domains[composeID]...), nil
}

func (f *fakePlatform) DomainGenerate(ctx context.Context, in platform.DomainGenerateInput, requestID string) (*platform.DomainGenerateOutput, error) {
	return &platform.DomainGenerateOutput{Host: in.AppName + ".preview.example.com"}, nil
}

func (f *fakePlatform) DomainCreate(ctx context.Context, in platform.DomainCreateInput, requestID string) (*platform.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := platform.Domain{
		DomainID:    fmt.Sprintf("domain-%s", in.ComposeID),
		Host:        in.Host,
		Path:        in.Path,
		Port:        in.Port,
		HTTPS:       in.HTTPS,
		ComposeID:   in.ComposeID,
		ServiceName: in.ServiceName,
	}
	f.domains[in.ComposeID] = append(f.domains[in.ComposeID], d)
	return &d, nil
}

func (f *fakePlatform) ServerAll(ctx context.Context, requestID string) ([]platform.Server, error) {
	return f.servers, nil
}

func (f *fakePlatform) FileWrite(ctx context.Context, in platform.FileWriteInput, requestID string) error {
	return nil
}

// fakeSweeper counts invocations without doing anything.
type fakeSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *fakeSweeper) Run(ctx context.Context, actorID, requestID string) error {
	s.calls.Add(1)
	return s.err
}
