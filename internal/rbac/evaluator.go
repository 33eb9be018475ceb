package rbac

// Permission grants a set of actions on a single page
type Permission struct {
	Page    Page     `bson:"page" json:"page"`
	Actions []Action `bson:"actions" json:"actions"`
}

// Has reports whether the permission entry contains action
func (p Permission) Has(action Action) bool {
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Subject is anything permissions can be evaluated against
type Subject interface {
	IsAdministrator() bool
	GrantedPermissions() []Permission
}

// HasPermission answers whether subject may perform action on page.
// A nil subject never passes; an admin always passes.
func HasPermission(subject Subject, page Page, action Action) bool {
	if isNilSubject(subject) {
		return false
	}
	if subject.IsAdministrator() {
		return true
	}
	for _, p := range subject.GrantedPermissions() {
		if p.Page == page {
			return p.Has(action)
		}
	}
	return false
}

// HasAny reports whether subject has at least one of actions on page
func HasAny(subject Subject, page Page, actions ...Action) bool {
	for _, a := range actions {
		if HasPermission(subject, page, a) {
			return true
		}
	}
	return false
}

// Covers reports whether subject holds every action in perms, so it may hand
// them to someone else. view also covers view_own.
func Covers(subject Subject, perms []Permission) bool {
	for _, p := range perms {
		for _, a := range p.Actions {
			if HasPermission(subject, p.Page, a) {
				continue
			}
			if a == ActionViewOwn && HasPermission(subject, p.Page, ActionView) {
				continue
			}
			return false
		}
	}
	return true
}

// ViewScope is the breadth of records a subject may read on a page
type ViewScope int

const (
	ScopeNone ViewScope = iota
	ScopeOwn
	ScopeAll
)

// ResolveViewScope maps view/view_own to a scope; view wins if both are somehow present.
func ResolveViewScope(subject Subject, page Page) ViewScope {
	switch {
	case HasPermission(subject, page, ActionView):
		return ScopeAll
	case HasPermission(subject, page, ActionViewOwn):
		return ScopeOwn
	default:
		return ScopeNone
	}
}

func isNilSubject(s Subject) bool {
	if s == nil {
		return true
	}
	if n, ok := s.(interface{ IsNil() bool }); ok {
		return n.IsNil()
	}
	return false
}
