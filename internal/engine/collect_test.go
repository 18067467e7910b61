package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/engine"
	"github.com/bcnelson/env-manager/internal/validation"
)

func TestCollectGroup_DropsIncompleteRows(t *testing.T) {
	input := domain.Group{
		Name:   "  dev ",
		Remark: "local services",
		Items: []domain.GroupItem{
			{Name: "   ", Variables: []domain.EnvironmentVariable{userVar("IGNORED", "1")}},
			{
				Name:     "local",
				Selected: true,
				Variables: []domain.EnvironmentVariable{
					{Name: " API_URL ", Value: " http://localhost ", Scope: ""},
					{Name: "", Value: "orphan", Scope: domain.ScopeUser},
					{Name: "EMPTY", Value: "  ", Scope: domain.ScopeUser},
					{Name: "JAVA_HOME", Value: "/opt/jdk", Scope: "SYSTEM", Remark: " jdk "},
				},
			},
			{Name: "empty"},
		},
	}

	group, err := engine.CollectGroup(input)
	require.NoError(t, err)

	assert.Equal(t, "dev", group.Name)
	require.Len(t, group.Items, 2)
	assert.Equal(t, "local", group.Items[0].Name)
	assert.True(t, group.Items[0].Selected)
	assert.Equal(t, []domain.EnvironmentVariable{
		{Name: "API_URL", Value: "http://localhost", Scope: domain.ScopeUser},
		{Name: "JAVA_HOME", Value: "/opt/jdk", Scope: domain.ScopeSystem, Remark: "jdk"},
	}, group.Items[0].Variables)

	assert.Equal(t, "empty", group.Items[1].Name)
	assert.Empty(t, group.Items[1].Variables)
}

func TestCollectGroup_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input domain.Group
		field string
	}{
		{
			name:  "blank group name",
			input: domain.Group{Name: "  "},
			field: "name",
		},
		{
			name: "duplicate item",
			input: domain.Group{Name: "g", Items: []domain.GroupItem{
				{Name: "a"}, {Name: " a "},
			}},
			field: "itemList[1].name",
		},
		{
			name: "unknown scope",
			input: domain.Group{Name: "g", Items: []domain.GroupItem{{
				Name:      "a",
				Variables: []domain.EnvironmentVariable{{Name: "X", Value: "1", Scope: "machine"}},
			}}},
			field: "itemList[0].envList[0]",
		},
		{
			name: "equals sign in name",
			input: domain.Group{Name: "g", Items: []domain.GroupItem{{
				Name:      "a",
				Variables: []domain.EnvironmentVariable{userVar("A=B", "1")},
			}}},
			field: "itemList[0].envList[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group, err := engine.CollectGroup(tt.input)
			require.Error(t, err)
			assert.Nil(t, group)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)

			var verrs validation.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestCollectGroup_DoesNotModifyInput(t *testing.T) {
	input := domain.Group{Name: " g ", Items: []domain.GroupItem{{
		Name:      " a ",
		Variables: []domain.EnvironmentVariable{userVar(" X ", "1")},
	}}}
	_, err := engine.CollectGroup(input)
	require.NoError(t, err)
	assert.Equal(t, " a ", input.Items[0].Name)
	assert.Equal(t, " X ", input.Items[0].Variables[0].Name)
}
