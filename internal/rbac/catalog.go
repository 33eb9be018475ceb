// Package rbac holds the static page/action rule table, the permission
// evaluator, the constraint rules between actions and the role template matcher.
package rbac

// Page identifies an application page that permissions are granted on
type Page string

const (
	PageDashboard     Page = "dashboard"
	PageUsers         Page = "users"
	PageRoleTemplates Page = "role-templates"
	PageAuditLogs     Page = "audit-logs"
)

// Action is something a user may do on a page
type Action string

const (
	ActionView    Action = "view"
	ActionViewOwn Action = "view_own" // only records the user created
	ActionAdd     Action = "add"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionExport  Action = "export"
)

// pageRule is one row of the static rule table
type pageRule struct {
	page    Page
	label   string
	actions []Action
}

// rules is ordered; Normalize and Catalog follow this order.
var rules = []pageRule{
	{page: PageDashboard, label: "Dashboard", actions: []Action{ActionView}},
	{page: PageUsers, label: "Users", actions: []Action{ActionView, ActionViewOwn, ActionAdd, ActionEdit, ActionDelete, ActionExport}},
	{page: PageRoleTemplates, label: "Role Templates", actions: []Action{ActionView, ActionViewOwn, ActionAdd, ActionEdit, ActionDelete}},
	{page: PageAuditLogs, label: "Audit Logs", actions: []Action{ActionView, ActionViewOwn, ActionExport}},
}

var ruleIndex = func() map[Page]pageRule {
	m := make(map[Page]pageRule, len(rules))
	for _, r := range rules {
		m[r.page] = r
	}
	return m
}()

// PageCatalogEntry describes a page and the actions it supports
type PageCatalogEntry struct {
	Page    Page     `json:"page"`
	Label   string   `json:"label"`
	Actions []Action `json:"actions"`
}

// Catalog returns the full rule table in display order
func Catalog() []PageCatalogEntry {
	out := make([]PageCatalogEntry, 0, len(rules))
	for _, r := range rules {
		out = append(out, PageCatalogEntry{
			Page:    r.page,
			Label:   r.label,
			Actions: append([]Action(nil), r.actions...),
		})
	}
	return out
}

// Pages returns every known page in catalog order
func Pages() []Page {
	out := make([]Page, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.page)
	}
	return out
}

// ActionsFor returns the actions a page supports, or nil for an unknown page
func ActionsFor(page Page) []Action {
	r, ok := ruleIndex[page]
	if !ok {
		return nil
	}
	return append([]Action(nil), r.actions...)
}

// IsValidPage reports whether page is part of the catalog
func IsValidPage(page Page) bool {
	_, ok := ruleIndex[page]
	return ok
}

// IsValidAction reports whether action is defined for page
func IsValidAction(page Page, action Action) bool {
	return actionRank(page, action) >= 0
}

// definesViewScope reports whether the page has view or view_own,
// which makes every other action on it dependent on one of them.
func definesViewScope(page Page) bool {
	return IsValidAction(page, ActionView) || IsValidAction(page, ActionViewOwn)
}

func actionRank(page Page, action Action) int {
	r, ok := ruleIndex[page]
	if !ok {
		return -1
	}
	for i, a := range r.actions {
		if a == action {
			return i
		}
	}
	return -1
}

func isViewAction(a Action) bool {
	return a == ActionView || a == ActionViewOwn
}
