package rbac

import (
	"fmt"
	"sort"
)

// Rejection codes returned in ConstraintError
const (
	CodeInvalidAction     = "invalid_action"
	CodeMutuallyExclusive = "mutually_exclusive"
	CodeViewRequired      = "view_required"
)

// ConstraintError explains why a permission change or set was rejected
type ConstraintError struct {
	Code    string `json:"code"`
	Page    Page   `json:"page"`
	Action  Action `json:"action,omitempty"`
	Message string `json:"message"`
}

func (e *ConstraintError) Error() string {
	return e.Message
}

// ApplyChange toggles action on page and returns the resulting permission list.
// On rejection the returned list is an unchanged copy of current.
func ApplyChange(current []Permission, page Page, action Action, checked bool) ([]Permission, error) {
	original := Clone(current)

	if !IsValidAction(page, action) {
		return original, &ConstraintError{
			Code:    CodeInvalidAction,
			Page:    page,
			Action:  action,
			Message: fmt.Sprintf("action %q is not available on page %q", action, page),
		}
	}

	next := Clone(current)
	idx := indexOfPage(next, page)

	if checked {
		var existing Permission
		if idx >= 0 {
			existing = next[idx]
		}
		switch {
		case action == ActionView && existing.Has(ActionViewOwn),
			action == ActionViewOwn && existing.Has(ActionView):
			return original, &ConstraintError{
				Code:    CodeMutuallyExclusive,
				Page:    page,
				Action:  action,
				Message: "view and view_own are mutually exclusive",
			}
		case !isViewAction(action) && definesViewScope(page) &&
			!existing.Has(ActionView) && !existing.Has(ActionViewOwn):
			return original, &ConstraintError{
				Code:    CodeViewRequired,
				Page:    page,
				Action:  action,
				Message: "must select view or view_own first",
			}
		}

		if idx < 0 {
			next = append(next, Permission{Page: page, Actions: []Action{action}})
			idx = len(next) - 1
		} else if !existing.Has(action) {
			next[idx].Actions = append(next[idx].Actions, action)
		}
	} else {
		if idx < 0 {
			return next, nil
		}
		next[idx].Actions = without(next[idx].Actions, action)
	}

	next[idx] = stripDependents(next[idx])
	sortActions(&next[idx])
	if len(next[idx].Actions) == 0 {
		next = append(next[:idx], next[idx+1:]...)
	}
	return next, nil
}

// Validate checks a complete permission set against the rule table
func Validate(perms []Permission) error {
	seen := make(map[Page]bool, len(perms))
	for _, p := range perms {
		if !IsValidPage(p.Page) {
			return &ConstraintError{Code: CodeInvalidAction, Page: p.Page, Message: fmt.Sprintf("unknown page %q", p.Page)}
		}
		if seen[p.Page] {
			return &ConstraintError{Code: CodeInvalidAction, Page: p.Page, Message: fmt.Sprintf("page %q listed more than once", p.Page)}
		}
		seen[p.Page] = true

		for _, a := range p.Actions {
			if !IsValidAction(p.Page, a) {
				return &ConstraintError{Code: CodeInvalidAction, Page: p.Page, Action: a, Message: fmt.Sprintf("action %q is not available on page %q", a, p.Page)}
			}
		}
		if p.Has(ActionView) && p.Has(ActionViewOwn) {
			return &ConstraintError{Code: CodeMutuallyExclusive, Page: p.Page, Message: fmt.Sprintf("%s: view and view_own are mutually exclusive", p.Page)}
		}
		if definesViewScope(p.Page) && !p.Has(ActionView) && !p.Has(ActionViewOwn) {
			for _, a := range p.Actions {
				if !isViewAction(a) {
					return &ConstraintError{Code: CodeViewRequired, Page: p.Page, Action: a, Message: fmt.Sprintf("%s: must select view or view_own first", p.Page)}
				}
			}
		}
	}
	return nil
}

// Normalize returns a canonical copy of perms: known pages and actions only,
// one entry per page, catalog ordering, dependents stripped, empties dropped.
// If both view and view_own are present, view_own is dropped.
func Normalize(perms []Permission) []Permission {
	merged := make(map[Page]map[Action]bool)
	for _, p := range perms {
		if !IsValidPage(p.Page) {
			continue
		}
		set, ok := merged[p.Page]
		if !ok {
			set = make(map[Action]bool)
			merged[p.Page] = set
		}
		for _, a := range p.Actions {
			if IsValidAction(p.Page, a) {
				set[a] = true
			}
		}
	}

	out := make([]Permission, 0, len(merged))
	for _, page := range Pages() {
		set, ok := merged[page]
		if !ok {
			continue
		}
		if set[ActionView] && set[ActionViewOwn] {
			delete(set, ActionViewOwn)
		}
		p := Permission{Page: page}
		for _, a := range ActionsFor(page) {
			if set[a] {
				p.Actions = append(p.Actions, a)
			}
		}
		p = stripDependents(p)
		if len(p.Actions) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Equal compares two permission lists after normalizing both
func Equal(a, b []Permission) bool {
	na, nb := Normalize(a), Normalize(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i].Page != nb[i].Page || len(na[i].Actions) != len(nb[i].Actions) {
			return false
		}
		for j := range na[i].Actions {
			if na[i].Actions[j] != nb[i].Actions[j] {
				return false
			}
		}
	}
	return true
}

// Clone deep-copies a permission list
func Clone(perms []Permission) []Permission {
	if perms == nil {
		return []Permission{}
	}
	out := make([]Permission, len(perms))
	for i, p := range perms {
		out[i] = Permission{Page: p.Page, Actions: append([]Action(nil), p.Actions...)}
	}
	return out
}

// stripDependents drops every non-view action when the page has neither view nor view_own
func stripDependents(p Permission) Permission {
	if !definesViewScope(p.Page) || p.Has(ActionView) || p.Has(ActionViewOwn) {
		return p
	}
	return Permission{Page: p.Page, Actions: nil}
}

func sortActions(p *Permission) {
	sort.SliceStable(p.Actions, func(i, j int) bool {
		return actionRank(p.Page, p.Actions[i]) < actionRank(p.Page, p.Actions[j])
	})
}

func indexOfPage(perms []Permission, page Page) int {
	for i, p := range perms {
		if p.Page == page {
			return i
		}
	}
	return -1
}

func without(actions []Action, action Action) []Action {
	out := actions[:0]
	for _, a := range actions {
		if a != action {
			out = append(out, a)
		}
	}
	return out
}
