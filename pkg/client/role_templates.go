package client

import (
	"context"
	"net/http"
	"net/url"
)

// RoleTemplatesService manages reusable permission sets
type RoleTemplatesService struct {
	client *Client
}

func (o ListTemplatesOptions) values() url.Values {
	q := url.Values{}
	setString(q, "search", o.Search)
	setBool(q, "isActive", o.IsActive)
	setBool(q, "isDefault", o.IsDefault)
	pageValues(q, o.Page, o.Limit)
	return q
}

func templatePath(id string) string {
	return "/api/role-templates/" + url.PathEscape(id)
}

func (s *RoleTemplatesService) List(ctx context.Context, opts ListTemplatesOptions) (*RoleTemplateList, error) {
	var list RoleTemplateList
	if err := s.client.do(ctx, http.MethodGet, "/api/role-templates", opts.values(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *RoleTemplatesService) Get(ctx context.Context, id string) (*RoleTemplate, error) {
	return s.one(ctx, http.MethodGet, templatePath(id), nil)
}

func (s *RoleTemplatesService) Create(ctx context.Context, req CreateRoleTemplateRequest) (*RoleTemplate, error) {
	return s.one(ctx, http.MethodPost, "/api/role-templates", req)
}

func (s *RoleTemplatesService) Update(ctx context.Context, id string, req UpdateRoleTemplateRequest) (*RoleTemplate, error) {
	return s.one(ctx, http.MethodPut, templatePath(id), req)
}

// Delete fails with 403 for default templates
func (s *RoleTemplatesService) Delete(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, templatePath(id), nil, nil, nil)
}

// ToggleStatus flips IsActive and returns the updated template
func (s *RoleTemplatesService) ToggleStatus(ctx context.Context, id string) (*RoleTemplate, error) {
	return s.one(ctx, http.MethodPatch, templatePath(id)+"/toggle-status", nil)
}

// ActiveForUserCreation lists the templates offered when creating a user
func (s *RoleTemplatesService) ActiveForUserCreation(ctx context.Context) ([]RoleTemplate, error) {
	var resp struct {
		Templates []RoleTemplate `json:"templates"`
	}
	if err := s.client.do(ctx, http.MethodGet, "/api/role-templates/active/for-user-creation", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

// IncrementUsage bumps the usage counter and returns the new value
func (s *RoleTemplatesService) IncrementUsage(ctx context.Context, id string) (int64, error) {
	var resp struct {
		UsageCount int64 `json:"usageCount"`
	}
	if err := s.client.do(ctx, http.MethodPost, templatePath(id)+"/increment-usage", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.UsageCount, nil
}

// Match finds the template a free-text role name most resembles
func (s *RoleTemplatesService) Match(ctx context.Context, roleName string) (*TemplateMatch, error) {
	var m TemplateMatch
	q := url.Values{"roleName": {roleName}}
	if err := s.client.do(ctx, http.MethodGet, "/api/role-templates/match", q, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *RoleTemplatesService) one(ctx context.Context, method, path string, body interface{}) (*RoleTemplate, error) {
	var t RoleTemplate
	if err := s.client.do(ctx, method, path, nil, body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
