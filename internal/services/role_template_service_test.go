package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
)

func TestBuildNewTemplate(t *testing.T) {
	actor := managerActor()
	req := models.CreateRoleTemplateRequest{
		Name: "  Support Lead ",
		Permissions: []rbac.Permission{
			{Page: rbac.PageUsers, Actions: []rbac.Action{rbac.ActionEdit, rbac.ActionViewOwn}},
		},
	}

	tmpl, err := buildNewTemplate(actor, req, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "Support Lead", tmpl.Name)
	assert.Equal(t, "support lead", tmpl.NameLower)
	assert.Equal(t, models.DefaultTemplateColor, tmpl.Color)
	assert.Equal(t, models.DefaultTemplateIcon, tmpl.Icon)
	assert.True(t, tmpl.IsActive)
	assert.False(t, tmpl.IsDefault)
	assert.True(t, tmpl.CanBeDeleted())
	assert.Equal(t, []rbac.Action{rbac.ActionViewOwn, rbac.ActionEdit}, tmpl.Permissions[0].Actions)
}

func TestBuildNewTemplate_Rejections(t *testing.T) {
	_, err := buildNewTemplate(managerActor(), models.CreateRoleTemplateRequest{Name: "Root", IsAdmin: true}, time.Now())
	assert.ErrorIs(t, err, ErrAdminRequired)

	_, err = buildNewTemplate(adminActor(), models.CreateRoleTemplateRequest{
		Name:        "Broken",
		Permissions: []rbac.Permission{{Page: rbac.PageUsers, Actions: []rbac.Action{rbac.ActionView, rbac.ActionViewOwn}}},
	}, time.Now())
	var cerr *rbac.ConstraintError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, rbac.CodeMutuallyExclusive, cerr.Code)
}

func TestBuildTemplateUpdate(t *testing.T) {
	name := "Helpdesk"
	existing := &models.RoleTemplate{ID: primitive.NewObjectID(), Name: "Support"}

	set, err := buildTemplateUpdate(managerActor(), existing, models.UpdateRoleTemplateRequest{Name: &name}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Helpdesk", set["name"])
	assert.Equal(t, "helpdesk", set["name_lower"])

	_, err = buildTemplateUpdate(adminActor(), &models.RoleTemplate{IsDefault: true}, models.UpdateRoleTemplateRequest{Name: &name}, time.Now())
	assert.ErrorIs(t, err, ErrDefaultTemplateImmutable)
}

func TestMatchTemplates(t *testing.T) {
	templates := []models.RoleTemplate{
		{ID: primitive.NewObjectID(), Name: "Manager", Color: "#2563EB", Icon: "briefcase"},
		{ID: primitive.NewObjectID(), Name: "Admin", Color: "#DC2626", Icon: "shield"},
	}

	got := matchTemplates("Manager2", templates)
	require.True(t, got.Matched)
	assert.Equal(t, "Manager", got.Template.Name)
	assert.Equal(t, "#2563EB", got.Color)

	miss := matchTemplates("Janitor", templates)
	assert.False(t, miss.Matched)
	assert.Nil(t, miss.Template)
	assert.Equal(t, models.DefaultTemplateColor, miss.Color)
	assert.Equal(t, models.DefaultTemplateIcon, miss.Icon)
}
