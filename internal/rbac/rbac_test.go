package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSubject struct {
	admin bool
	perms []Permission
}

func (s *testSubject) IsAdministrator() bool            { return s.admin }
func (s *testSubject) GrantedPermissions() []Permission { return s.perms }

func TestHasPermission_NilSubject(t *testing.T) {
	assert.False(t, HasPermission(nil, PageUsers, ActionView))
}

func TestHasPermission_AdminPassesEverything(t *testing.T) {
	admin := &testSubject{admin: true}
	for _, entry := range Catalog() {
		for _, a := range entry.Actions {
			assert.True(t, HasPermission(admin, entry.Page, a), "%s:%s", entry.Page, a)
		}
	}
	assert.True(t, HasPermission(admin, Page("unknown"), Action("anything")))
}

func TestHasPermission_NonAdmin(t *testing.T) {
	user := &testSubject{perms: []Permission{
		{Page: PageUsers, Actions: []Action{ActionView, ActionEdit}},
	}}

	assert.True(t, HasPermission(user, PageUsers, ActionView))
	assert.True(t, HasPermission(user, PageUsers, ActionEdit))
	assert.False(t, HasPermission(user, PageUsers, ActionDelete))
	assert.False(t, HasPermission(user, PageAuditLogs, ActionView))
}

func TestHasPermission_NeverGrantsMissingActions(t *testing.T) {
	granted := []Permission{
		{Page: PageUsers, Actions: []Action{ActionViewOwn, ActionAdd}},
		{Page: PageAuditLogs, Actions: []Action{ActionView}},
	}
	user := &testSubject{perms: granted}

	for _, entry := range Catalog() {
		for _, a := range entry.Actions {
			want := false
			for _, p := range granted {
				if p.Page == entry.Page && p.Has(a) {
					want = true
				}
			}
			assert.Equal(t, want, HasPermission(user, entry.Page, a), "%s:%s", entry.Page, a)
		}
	}
}

func TestResolveViewScope(t *testing.T) {
	own := &testSubject{perms: []Permission{{Page: PageUsers, Actions: []Action{ActionViewOwn}}}}
	all := &testSubject{perms: []Permission{{Page: PageUsers, Actions: []Action{ActionView}}}}

	assert.Equal(t, ScopeOwn, ResolveViewScope(own, PageUsers))
	assert.Equal(t, ScopeAll, ResolveViewScope(all, PageUsers))
	assert.Equal(t, ScopeNone, ResolveViewScope(own, PageAuditLogs))
	assert.Equal(t, ScopeAll, ResolveViewScope(&testSubject{admin: true}, PageAuditLogs))
}

func TestApplyChange_RejectsViewOwnWhenViewPresent(t *testing.T) {
	current := []Permission{{Page: PageUsers, Actions: []Action{ActionView, ActionEdit}}}

	result, err := ApplyChange(current, PageUsers, ActionViewOwn, true)

	var cerr *ConstraintError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, CodeMutuallyExclusive, cerr.Code)
	assert.Equal(t, current, result)
}

func TestApplyChange_RejectsViewWhenViewOwnPresent(t *testing.T) {
	current := []Permission{{Page: PageAuditLogs, Actions: []Action{ActionViewOwn}}}

	result, err := ApplyChange(current, PageAuditLogs, ActionView, true)

	var cerr *ConstraintError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, CodeMutuallyExclusive, cerr.Code)
	assert.Equal(t, current, result)
	assert.False(t, result[0].Has(ActionView) && result[0].Has(ActionViewOwn))
}

func TestApplyChange_DependentActionNeedsView(t *testing.T) {
	result, err := ApplyChange(nil, PageUsers, ActionEdit, true)

	var cerr *ConstraintError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, CodeViewRequired, cerr.Code)
	assert.Equal(t, "must select view or view_own first", cerr.Message)
	assert.Empty(t, result)
}

func TestApplyChange_InvalidAction(t *testing.T) {
	_, err := ApplyChange(nil, PageDashboard, ActionDelete, true)

	var cerr *ConstraintError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, CodeInvalidAction, cerr.Code)
}

func TestApplyChange_AddsInCatalogOrder(t *testing.T) {
	perms, err := ApplyChange(nil, PageUsers, ActionViewOwn, true)
	require.NoError(t, err)
	perms, err = ApplyChange(perms, PageUsers, ActionExport, true)
	require.NoError(t, err)
	perms, err = ApplyChange(perms, PageUsers, ActionAdd, true)
	require.NoError(t, err)

	assert.Equal(t, []Permission{
		{Page: PageUsers, Actions: []Action{ActionViewOwn, ActionAdd, ActionExport}},
	}, perms)
}

func TestApplyChange_Idempotent(t *testing.T) {
	start := []Permission{{Page: PageAuditLogs, Actions: []Action{ActionView}}}

	for _, entry := range Catalog() {
		for _, a := range []Action{ActionView, ActionViewOwn} {
			if !IsValidAction(entry.Page, a) {
				continue
			}
			once, err1 := ApplyChange(start, entry.Page, a, true)
			twice, err2 := ApplyChange(once, entry.Page, a, true)
			if err1 != nil {
				continue
			}
			require.NoError(t, err2)
			assert.Equal(t, once, twice, "%s:%s", entry.Page, a)
		}
	}
}

func TestApplyChange_UncheckingViewStripsDependents(t *testing.T) {
	current := []Permission{
		{Page: PageUsers, Actions: []Action{ActionView, ActionAdd, ActionDelete}},
		{Page: PageDashboard, Actions: []Action{ActionView}},
	}

	result, err := ApplyChange(current, PageUsers, ActionView, false)

	require.NoError(t, err)
	assert.Equal(t, []Permission{{Page: PageDashboard, Actions: []Action{ActionView}}}, result)
	// input untouched
	assert.Len(t, current[0].Actions, 3)
}

func TestApplyChange_UncheckLastActionDropsPage(t *testing.T) {
	current := []Permission{{Page: PageDashboard, Actions: []Action{ActionView}}}

	result, err := ApplyChange(current, PageDashboard, ActionView, false)

	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestApplyChange_UncheckMissingPageIsNoop(t *testing.T) {
	current := []Permission{{Page: PageDashboard, Actions: []Action{ActionView}}}

	result, err := ApplyChange(current, PageUsers, ActionEdit, false)

	require.NoError(t, err)
	assert.Equal(t, current, result)
}

func TestApplyChange_NeverYieldsDependentsWithoutView(t *testing.T) {
	perms := []Permission{}
	steps := []struct {
		page    Page
		action  Action
		checked bool
	}{
		{PageUsers, ActionView, true},
		{PageUsers, ActionEdit, true},
		{PageUsers, ActionViewOwn, true},
		{PageUsers, ActionView, false},
		{PageUsers, ActionViewOwn, true},
		{PageUsers, ActionDelete, true},
		{PageUsers, ActionViewOwn, false},
		{PageRoleTemplates, ActionAdd, true},
	}
	for _, s := range steps {
		perms, _ = ApplyChange(perms, s.page, s.action, s.checked)
		assert.NoError(t, Validate(perms))
	}
	assert.Empty(t, perms)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		perms []Permission
		code  string
	}{
		{"valid", []Permission{{Page: PageUsers, Actions: []Action{ActionView, ActionEdit}}}, ""},
		{"unknown page", []Permission{{Page: "reports", Actions: []Action{ActionView}}}, CodeInvalidAction},
		{"unknown action", []Permission{{Page: PageDashboard, Actions: []Action{ActionExport}}}, CodeInvalidAction},
		{"both views", []Permission{{Page: PageUsers, Actions: []Action{ActionView, ActionViewOwn}}}, CodeMutuallyExclusive},
		{"dependent without view", []Permission{{Page: PageUsers, Actions: []Action{ActionDelete}}}, CodeViewRequired},
		{"duplicate page", []Permission{
			{Page: PageUsers, Actions: []Action{ActionView}},
			{Page: PageUsers, Actions: []Action{ActionEdit}},
		}, CodeInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.perms)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *ConstraintError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.code, cerr.Code)
		})
	}
}

func TestNormalize(t *testing.T) {
	input := []Permission{
		{Page: PageAuditLogs, Actions: []Action{ActionExport}},
		{Page: PageUsers, Actions: []Action{ActionEdit, ActionView, ActionEdit}},
		{Page: "reports", Actions: []Action{ActionView}},
		{Page: PageUsers, Actions: []Action{ActionViewOwn, ActionAdd}},
		{Page: PageDashboard, Actions: []Action{ActionDelete}},
	}

	got := Normalize(input)

	assert.Equal(t, []Permission{
		{Page: PageUsers, Actions: []Action{ActionView, ActionAdd, ActionEdit}},
	}, got)
	assert.NoError(t, Validate(got))
}

func TestMatchTemplate(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		names    []string
		wantIdx  int
		wantTier MatchTier
	}{
		{"exact beats cleaned", "Manager", []string{"Manager 2", "manager"}, 1, TierExact},
		{"substring", "Senior Manager", []string{"Admin", "Manager"}, 1, TierSubstring},
		{"digits stripped", "Manager2", []string{"Manager", "Admin"}, 0, TierSubstring},
		{"cleaned exact", "Sup-port", []string{"Admin", "support"}, 1, TierCleanedExact},
		{"cleaned substring", "H.R. Lead 1", []string{"Admin", "hr lead team"}, 1, TierCleanedSubstring},
		{"word overlap", "Regional Sales Lead", []string{"Viewer", "Sales Regional Director"}, 1, TierWordOverlap},
		{"first wins in tier", "Operations", []string{"Ops Operations", "Operations Team"}, 0, TierSubstring},
		{"no match", "Janitor", []string{"Admin", "Viewer"}, -1, TierNone},
		{"empty role", "  ", []string{"Admin"}, -1, TierNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, tier, ok := MatchTemplate(tt.role, tt.names)
			assert.Equal(t, tt.wantIdx, idx)
			assert.Equal(t, tt.wantTier, tier)
			assert.Equal(t, tt.wantIdx >= 0, ok)
		})
	}
}

func TestMatchTemplate_ManagerExample(t *testing.T) {
	names := []string{"Manager", "Admin"}
	idx, tier, ok := MatchTemplate("Manager2", names)
	require.True(t, ok)
	assert.Equal(t, "Manager", names[idx])
	// "manager2" already contains "manager", so the digit-stripping tier is never reached
	assert.Equal(t, TierSubstring, tier)
	assert.Equal(t, "substring", tier.String())
}

func TestCovers(t *testing.T) {
	viewOwnEditor := &testSubject{perms: []Permission{
		{Page: PageUsers, Actions: []Action{ActionViewOwn, ActionEdit}},
	}}
	viewer := &testSubject{perms: []Permission{
		{Page: PageUsers, Actions: []Action{ActionView, ActionAdd}},
	}}

	tests := []struct {
		name    string
		subject Subject
		perms   []Permission
		want    bool
	}{
		{"nothing requested", viewOwnEditor, nil, true},
		{"same set", viewOwnEditor, []Permission{{Page: PageUsers, Actions: []Action{ActionViewOwn, ActionEdit}}}, true},
		{"view is broader than view_own", viewOwnEditor, []Permission{{Page: PageUsers, Actions: []Action{ActionView}}}, false},
		{"view covers view_own", viewer, []Permission{{Page: PageUsers, Actions: []Action{ActionViewOwn, ActionAdd}}}, true},
		{"other page", viewer, []Permission{{Page: PageAuditLogs, Actions: []Action{ActionView}}}, false},
		{"admin covers all", &testSubject{admin: true}, []Permission{{Page: PageAuditLogs, Actions: []Action{ActionView, ActionExport}}}, true},
		{"nil subject", nil, []Permission{{Page: PageDashboard, Actions: []Action{ActionView}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Covers(tt.subject, tt.perms))
		})
	}
}

func TestEqual(t *testing.T) {
	a := []Permission{{Page: PageUsers, Actions: []Action{ActionEdit, ActionView}}}
	b := []Permission{{Page: PageUsers, Actions: []Action{ActionView, ActionEdit}}}

	assert.True(t, Equal(a, b))
	assert.True(t, Equal(nil, []Permission{}))
	assert.False(t, Equal(a, []Permission{{Page: PageUsers, Actions: []Action{ActionView}}}))
	assert.False(t, Equal(a, append(b, Permission{Page: PageDashboard, Actions: []Action{ActionView}})))
}
