package platform

import "context"

// Typed wrappers over call(), one per platform RPC procedure used by the
// orchestrator. Each validates its own required fields locally before
// dispatching, so obviously-bad calls fail fast with 400 instead of
// round-tripping to the platform.

func (c *Client) ProjectAll(ctx context.Context, requestID string) ([]Project, error) {
	var out []Project
	err := c.call(ctx, "project.all", ProjectAllInput{}, &out, false, requestID)
	return out, err
}

func (c *Client) ProjectOne(ctx context.Context, projectID, requestID string) (*Project, error) {
	if err := requireNonEmpty("project.one", map[string]string{"projectId": projectID}); err != nil {
		return nil, err
	}
	var out Project
	err := c.call(ctx, "project.one", ProjectOneInput{ProjectID: projectID}, &out, false, requestID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ProjectCreate(ctx context.Context, name, requestID string) (*Project, error) {
	if err := requireNonEmpty("project.create", map[string]string{"name": name}); err != nil {
		return nil, err
	}
	var out Project
	err := c.call(ctx, "project.create", ProjectCreateInput{Name: name}, &out, true, requestID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ComposeOne(ctx context.Context, composeID, requestID string) (*Compose, error) {
	if err := requireNonEmpty("compose.one", map[string]string{"composeId": composeID}); err != nil {
		return nil, err
	}
	var out Compose
	err := c.call(ctx, "compose.one", ComposeOneInput{ComposeID: composeID}, &out, false, requestID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ComposeCreate(ctx context.Context, in ComposeCreateInput, requestID string) (*Compose, error) {
	if err := requireNonEmpty("compose.create", map[string]string{
		"projectId":     in.ProjectID,
		"environmentId": in.EnvironmentID,
		"appName":       in.AppName,
		"composeFile":   in.ComposeFile,
	}); err != nil {
		return nil, err
	}
	var out Compose
	err := c.call(ctx, "compose.create", in, &out, true, requestID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ComposeUpdate(ctx context.Context, in ComposeUpdateInput, requestID string) error {
	if err := requireNonEmpty("compose.update", map[string]string{"composeId": in.ComposeID}); err != nil {
		return err
	}
	return c.call(ctx, "compose.update", in, nil, true, requestID)
}

func (c *Client) ComposeDelete(ctx context.Context, in ComposeDeleteInput, requestID string) error {
	if err := requireNonEmpty("compose.delete", map[string]string{"composeId": in.ComposeID}); err != nil {
		return err
	}
	return c.call(ctx, "compose.delete", in, nil, true, requestID)
}

func (c *Client) ComposeDeploy(ctx context.Context, composeID, requestID string) (*Deployment, error) {
	if err := requireNonEmpty("compose.deploy", map[string]string{"composeId": composeID}); err != nil {
		return nil, err
	}
	var out Deployment
	err := c.call(ctx, "compose.deploy", ComposeDeployInput{ComposeID: composeID}, &out, true, requestID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeploymentAllByCompose(ctx context.Context, composeID, requestID string) ([]Deployment, error) {
	if err := requireNonEmpty("deployment.allByCompose", map[string]string{"composeId": composeID}); err != nil {
		return nil, err
	}
	var out []Deployment
	err := c.call(ctx, "deployment.allByCompose", DeploymentAllByComposeInput{ComposeID: composeID}, &out, false, requestID)
	return out, err
}

func (c *Client) DomainByComposeID(ctx context.Context, composeID, requestID string) ([]Domain, error) {
	if err := requireNonEmpty("domain.byComposeId", map[string]string{"composeId": composeID}); err != nil {
		return nil, err
	}
	var out []Domain
	err := c.call(ctx, "domain.byComposeId", DomainByComposeIDInput{ComposeID: composeID}, &out, false, requestID)
	return out, err
}

func (c *Client) DomainGenerate(ctx context.Context, in DomainGenerateInput, requestID string) (*DomainGenerateOutput, error) {
	if err := requireNonEmpty("domain.generateDomain", map[string]string{"appName": in.AppName}); err != nil {
		return nil, err
	}
	var out DomainGenerateOutput
	err := c.call(ctx, "domain.generateDomain", in, &out, false, requestID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DomainCreate(ctx context.Context, in DomainCreateInput, requestID string) (*Domain, error) {
	if err := requireNonEmpty("domain.create", map[string]string{
		"composeId":   in.ComposeID,
		"host":        in.Host,
		"serviceName": in.ServiceName,
	}); err != nil {
		return nil, err
	}
	var out Domain
	err := c.call(ctx, "domain.create", in, &out, true, requestID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ServerAll(ctx context.Context, requestID string) ([]Server, error) {
	var out []Server
	err := c.call(ctx, "server.all", struct{}{}, &out, false, requestID)
	return out, err
}

func (c *Client) FileList(ctx context.Context, in FileListInput, requestID string) ([]FileEntry, error) {
	if err := requireNonEmpty("compose.readFolders", map[string]string{"composeId": in.ComposeID}); err != nil {
		return nil, err
	}
	var out []FileEntry
	err := c.call(ctx, "compose.readFolders", in, &out, false, requestID)
	return out, err
}

func (c *Client) FileRead(ctx context.Context, in FileReadInput, requestID string) (*FileContent, error) {
	if err := requireNonEmpty("compose.readFile", map[string]string{"composeId": in.ComposeID, "path": in.Path}); err != nil {
		return nil, err
	}
	var out FileContent
	err := c.call(ctx, "compose.readFile", in, &out, false, requestID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FileWrite(ctx context.Context, in FileWriteInput, requestID string) error {
	if err := requireNonEmpty("compose.writeFile", map[string]string{"composeId": in.ComposeID, "path": in.Path}); err != nil {
		return err
	}
	return c.call(ctx, "compose.writeFile", in, nil, true, requestID)
}

func (c *Client) FileMkdir(ctx context.Context, in FileMkdirInput, requestID string) error {
	if err := requireNonEmpty("compose.createFolder", map[string]string{"composeId": in.ComposeID, "path": in.Path}); err != nil {
		return err
	}
	return c.call(ctx, "compose.createFolder", in, nil, true, requestID)
}

func (c *Client) FileDelete(ctx context.Context, in FileDeleteInput, requestID string) error {
	if err := requireNonEmpty("compose.deleteFile", map[string]string{"composeId": in.ComposeID, "path": in.Path}); err != nil {
		return err
	}
	return c.call(ctx, "compose.deleteFile", in, nil, true, requestID)
}

func (c *Client) FileSearch(ctx context.Context, in FileSearchInput, requestID string) ([]FileEntry, error) {
	if err := requireNonEmpty("compose.searchFiles", map[string]string{"composeId": in.ComposeID, "query": in.Query}); err != nil {
		return nil, err
	}
	var out []FileEntry
	err := c.call(ctx, "compose.searchFiles", in, &out, false, requestID)
	return out, err
}
