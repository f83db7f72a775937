package edge_test

import (
	"testing"

	"github.com/syssam/uow/schema/edge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		build    func() *edge.Descriptor
		validate func(t *testing.T, desc *edge.Descriptor)
	}{
		{
			name: "basic_edge",
			build: func() *edge.Descriptor {
				return edge.To("posts", "Post").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, "posts", desc.Name)
				assert.Equal(t, "Post", desc.Type)
				assert.False(t, desc.Inverse)
				assert.False(t, desc.Unique)
				assert.False(t, desc.Required)
				assert.Nil(t, desc.StorageKey)
				assert.Equal(t, edge.SaveUpdate, desc.Cascade)
				assert.False(t, desc.PostUpdate)
			},
		},
		{
			name: "unique_required",
			build: func() *edge.Descriptor {
				return edge.To("profile", "Profile").Unique().Required().Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.True(t, desc.Unique)
				assert.True(t, desc.Required)
			},
		},
		{
			name: "cascade_none",
			build: func() *edge.Descriptor {
				return edge.To("posts", "Post").Cascade(edge.None).Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.Equal(t, edge.None, desc.Cascade)
			},
		},
		{
			name: "m2m_storage_key",
			build: func() *edge.Descriptor {
				return edge.To("groups", "Group").
					StorageKey(edge.Table("user_groups"), edge.Columns("user_id", "group_id")).
					Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				require.NotNil(t, desc.StorageKey)
				assert.Equal(t, "user_groups", desc.StorageKey.Table)
				assert.Equal(t, []string{"user_id", "group_id"}, desc.StorageKey.Columns)
			},
		},
		{
			name: "missing_type",
			build: func() *edge.Descriptor {
				return edge.To("posts", "").Descriptor()
			},
			validate: func(t *testing.T, desc *edge.Descriptor) {
				assert.EqualError(t, desc.Err, "edge posts: missing target type")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.validate(t, tt.build())
		})
	}
}

func TestEdgeFrom(t *testing.T) {
	desc := edge.From("parent", "Node").
		Ref("children").
		Unique().
		Field("parent_id").
		OnDelete(edge.SetNull).
		PostUpdate().
		Descriptor()
	assert.True(t, desc.Inverse)
	assert.Equal(t, "children", desc.RefName)
	assert.Equal(t, []string{"parent_id"}, desc.StorageKey.Columns)
	assert.Equal(t, edge.SetNull, desc.OnDelete)
	assert.True(t, desc.PostUpdate)
	assert.NoError(t, desc.Err)
}

func TestCascade(t *testing.T) {
	assert.True(t, edge.All.Has(edge.SaveUpdate))
	assert.True(t, edge.All.Has(edge.Delete))
	assert.False(t, edge.All.Has(edge.DeleteOrphan))
	assert.True(t, edge.DeleteOrphan.Has(edge.Delete))
	assert.False(t, edge.SaveUpdate.Has(edge.None))
	assert.False(t, edge.None.Has(edge.SaveUpdate))

	assert.Equal(t, "none", edge.None.String())
	assert.Equal(t, "save-update, delete", edge.All.String())
	assert.Equal(t, "save-update, delete-orphan", (edge.SaveUpdate | edge.DeleteOrphan).String())
	assert.Equal(t, "SetNull", edge.SetNull.ConstName())
	assert.Equal(t, "NoAction", edge.Action("").ConstName())
}
