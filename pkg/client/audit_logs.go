package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// AuditLogsService reads the audit trail
type AuditLogsService struct {
	client *Client
}

func (o ListAuditLogsOptions) values() url.Values {
	q := url.Values{}
	setString(q, "action", o.Action)
	setString(q, "status", o.Status)
	setString(q, "userId", o.UserID)
	setString(q, "search", o.Search)
	if o.From != nil {
		q.Set("from", o.From.UTC().Format(time.RFC3339))
	}
	if o.To != nil {
		q.Set("to", o.To.UTC().Format(time.RFC3339))
	}
	pageValues(q, o.Page, o.Limit)
	return q
}

// List returns one page of entries, newest first
func (s *AuditLogsService) List(ctx context.Context, opts ListAuditLogsOptions) (*AuditLogList, error) {
	var list AuditLogList
	if err := s.client.do(ctx, http.MethodGet, "/api/auth/audit-logs", opts.values(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Users lists the actors that appear in the trail
func (s *AuditLogsService) Users(ctx context.Context) ([]AuditActor, error) {
	var resp struct {
		Users []AuditActor `json:"users"`
	}
	if err := s.client.do(ctx, http.MethodGet, "/api/auth/audit-logs/users", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// Export downloads the filtered trail as "csv" or "xlsx"
func (s *AuditLogsService) Export(ctx context.Context, format string, opts ListAuditLogsOptions) (*File, error) {
	q := opts.values()
	q.Set("format", format)
	return s.client.download(ctx, "/api/auth/audit-logs/export", q)
}
