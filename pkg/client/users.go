package client

import (
	"context"
	"net/http"
	"net/url"
)

// UsersService manages user accounts
type UsersService struct {
	client *Client
}

func (o ListUsersOptions) values() url.Values {
	q := url.Values{}
	setString(q, "search", o.Search)
	setBool(q, "isActive", o.IsActive)
	setBool(q, "isAdmin", o.IsAdmin)
	setString(q, "roleTemplateId", o.RoleTemplateID)
	setString(q, "sortBy", o.SortBy)
	setString(q, "sortOrder", o.SortOrder)
	pageValues(q, o.Page, o.Limit)
	return q
}

// List returns one page of the users the caller may see
func (s *UsersService) List(ctx context.Context, opts ListUsersOptions) (*UserList, error) {
	var list UserList
	if err := s.client.do(ctx, http.MethodGet, "/api/users", opts.values(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *UsersService) Get(ctx context.Context, id string) (*User, error) {
	var u User
	if err := s.client.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UsersService) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	var u User
	if err := s.client.do(ctx, http.MethodPost, "/api/users", nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UsersService) Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	var u User
	if err := s.client.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UsersService) Delete(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil, nil, nil)
}

// BulkDelete removes up to 100 users; the caller's own ID is skipped
func (s *UsersService) BulkDelete(ctx context.Context, ids []string) (*BulkDeleteResult, error) {
	var res BulkDeleteResult
	body := map[string][]string{"ids": ids}
	if err := s.client.do(ctx, http.MethodPost, "/api/users/bulk-delete", nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Export downloads the filtered users as "csv" or "xlsx"
func (s *UsersService) Export(ctx context.Context, format string, opts ListUsersOptions) (*File, error) {
	q := opts.values()
	q.Set("format", format)
	return s.client.download(ctx, "/api/users/export", q)
}
