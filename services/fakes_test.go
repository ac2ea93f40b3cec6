package services

import (
	"context"
	"fmt"
	"sync"

	"go.pilab.hu/toolbridge/domain"
	"go.pilab.hu/toolbridge/errors"
)

type fakeToolRepo struct {
	tools map[string]*domain.Tool
	reads int
}

func newFakeToolRepo(tools ...*domain.Tool) *fakeToolRepo {
	m := make(map[string]*domain.Tool, len(tools))
	for _, t := range tools {
		m[t.ID] = t
	}
	return &fakeToolRepo{tools: m}
}

func (f *fakeToolRepo) GetToolByID(_ context.Context, id string) (*domain.Tool, error) {
	f.reads++
	tool, ok := f.tools[id]
	if !ok {
		return nil, errors.NewNotFound("tool not found: " + id)
	}
	return tool, nil
}

type fakeConfigRepo struct {
	mu      sync.Mutex
	configs map[string]*domain.OrgAuthConfig
	reads   int
	upserts int
	deletes int
}

func configKey(orgID, toolID string) string { return orgID + "/" + toolID }

func newFakeConfigRepo(configs ...*domain.OrgAuthConfig) *fakeConfigRepo {
	m := make(map[string]*domain.OrgAuthConfig, len(configs))
	for _, c := range configs {
		m[configKey(c.OrgID, c.ToolID)] = c
	}
	return &fakeConfigRepo{configs: m}
}

func (f *fakeConfigRepo) GetAuthConfig(_ context.Context, orgID, toolID string) (*domain.OrgAuthConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	cfg, ok := f.configs[configKey(orgID, toolID)]
	if !ok {
		return nil, errors.NewNotFound("auth config not found for tool " + toolID)
	}
	return cfg, nil
}

func (f *fakeConfigRepo) UpsertAuthConfig(_ context.Context, cfg *domain.OrgAuthConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("cfg-%d", f.upserts)
	}
	f.configs[configKey(cfg.OrgID, cfg.ToolID)] = cfg
	return nil
}

func (f *fakeConfigRepo) DeleteAuthConfig(_ context.Context, orgID, toolID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	key := configKey(orgID, toolID)
	if _, ok := f.configs[key]; !ok {
		return errors.NewNotFound("auth config not found for tool " + toolID)
	}
	delete(f.configs, key)
	return nil
}

type fakeCredRepo struct {
	mu      sync.Mutex
	creds   map[string]*domain.UserCredential
	upserts int
}

func credKey(orgID, userID, toolID string) string { return orgID + "/" + userID + "/" + toolID }

func newFakeCredRepo(creds ...*domain.UserCredential) *fakeCredRepo {
	m := make(map[string]*domain.UserCredential, len(creds))
	for _, c := range creds {
		m[credKey(c.OrgID, c.UserID, c.ToolID)] = c
	}
	return &fakeCredRepo{creds: m}
}

func (f *fakeCredRepo) GetCredential(_ context.Context, orgID, userID, toolID string) (*domain.UserCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.creds[credKey(orgID, userID, toolID)]
	if !ok {
		return nil, errors.NewNotFound("credential not found for user " + userID)
	}
	copied := *cred
	return &copied, nil
}

func (f *fakeCredRepo) UpsertCredential(_ context.Context, cred *domain.UserCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	key := credKey(cred.OrgID, cred.UserID, cred.ToolID)
	if existing, ok := f.creds[key]; ok {
		cred.ID = existing.ID
	} else if cred.ID == "" {
		cred.ID = fmt.Sprintf("cred-%d", f.upserts)
	}
	copied := *cred
	f.creds[key] = &copied
	return nil
}

func (f *fakeCredRepo) DeleteCredential(_ context.Context, orgID, userID, toolID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := credKey(orgID, userID, toolID)
	if _, ok := f.creds[key]; !ok {
		return errors.NewNotFound("credential not found for user " + userID)
	}
	delete(f.creds, key)
	return nil
}

type fakeActionRepo struct {
	actions map[string]*domain.ActionDefinition
}

func newFakeActionRepo(actions ...*domain.ActionDefinition) *fakeActionRepo {
	m := make(map[string]*domain.ActionDefinition, len(actions))
	for _, a := range actions {
		m[a.OrgID+"/"+a.Key] = a
	}
	return &fakeActionRepo{actions: m}
}

func (f *fakeActionRepo) GetActionByKey(_ context.Context, orgID, key string) (*domain.ActionDefinition, error) {
	action, ok := f.actions[orgID+"/"+key]
	if !ok {
		return nil, errors.NewNotFound("action not found: " + key)
	}
	return action, nil
}

type fakeTransport struct {
	calls   int
	lastReq *DispatchRequest
	result  *DispatchResult
	err     error
}

func (f *fakeTransport) Dispatch(_ context.Context, req *DispatchRequest) (*DispatchResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &DispatchResult{Success: true, StatusCode: 200}, nil
}

type failingValidator struct{ err error }

func (f failingValidator) Validate(context.Context, map[string]any, map[string]any, string) (map[string]any, error) {
	return nil, f.err
}
