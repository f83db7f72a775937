package mixin_test

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/uow"
	"github.com/syssam/uow/dialect"
	"github.com/syssam/uow/dialect/sql"
	"github.com/syssam/uow/dialect/sql/schema"
	"github.com/syssam/uow/schema/edge"
	"github.com/syssam/uow/schema/field"
	"github.com/syssam/uow/schema/mixin"
	"github.com/syssam/uow/session"
)

func TestSchemaBaseMixin(t *testing.T) {
	m := mixin.Schema{}
	assert.Nil(t, m.Fields())
	assert.Nil(t, m.Edges())
}

type owned struct{ mixin.Schema }

func (owned) Fields() []uow.Field {
	return []uow.Field{field.Int64("owner_id").Nillable()}
}

func (owned) Edges() []uow.Edge {
	return []uow.Edge{edge.From("owner", "User").Ref("items").Unique().Field("owner_id")}
}

func registry(t *testing.T) *uow.Registry {
	t.Helper()
	reg, err := uow.NewRegistry(
		uow.Schema{
			Name:   "User",
			Mixins: []uow.Mixin{mixin.ID{}},
			Fields: []uow.Field{field.String("name")},
			Edges:  []uow.Edge{edge.To("items", "Item")},
		},
		uow.Schema{
			Name:   "Item",
			Mixins: []uow.Mixin{mixin.Compose(mixin.ID{}, mixin.Time{}), mixin.SoftDelete{}, owned{}},
			Fields: []uow.Field{field.String("title")},
		},
	)
	require.NoError(t, err)
	return reg
}

func TestMixins(t *testing.T) {
	reg := registry(t)
	item, ok := reg.Entity("Item")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "created_at", "updated_at", "deleted_at", "owner_id", "title"}, item.Columns())
	assert.True(t, item.AutoIncrement())

	created, ok := item.Field("created_at")
	require.True(t, ok)
	assert.True(t, created.Immutable)
	assert.True(t, created.HasDefault())
	assert.False(t, created.HasUpdateDefault())

	updated, ok := item.Field("updated_at")
	require.True(t, ok)
	assert.True(t, updated.HasUpdateDefault())

	owner, ok := item.Relationship("owner")
	require.True(t, ok)
	assert.Equal(t, uow.M2O, owner.Rel)
	assert.Equal(t, "owner_id", owner.Column)
}

func TestUUIDAndTenant(t *testing.T) {
	reg, err := uow.NewRegistry(uow.Schema{
		Name:   "Doc",
		Mixins: []uow.Mixin{mixin.UUID{}, mixin.TenantID{}},
	})
	require.NoError(t, err)
	doc, ok := reg.Entity("Doc")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "tenant_id"}, doc.Columns())
	assert.False(t, doc.AutoIncrement())
}

func TestDuplicateMixinField(t *testing.T) {
	_, err := uow.NewRegistry(uow.Schema{
		Name:   "Doc",
		Mixins: []uow.Mixin{mixin.ID{}, mixin.Time{}, mixin.CreateTime{}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "created_at" defined twice`)
}

func TestUpdateTime(t *testing.T) {
	ctx := context.Background()
	db, err := stdsql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	drv := sql.OpenDB(dialect.SQLite, db)

	reg := registry(t)
	tables, err := schema.Tables(reg)
	require.NoError(t, err)
	require.NoError(t, schema.Create(ctx, drv, tables))

	s, err := session.New(reg, drv, session.WithExpireOnCommit(false))
	require.NoError(t, err)
	itemEntity, _ := reg.Entity("Item")
	userEntity, _ := reg.Entity("User")
	item := itemEntity.New()
	require.NoError(t, item.Set("title", "draft"))
	require.NoError(t, s.Add(item))
	require.NoError(t, s.Commit(ctx))

	createdAt := item.Get("created_at").(time.Time)
	updatedAt := item.Get("updated_at").(time.Time)
	assert.False(t, createdAt.IsZero())

	// Setting the owner writes the row of the item.
	user := userEntity.New()
	require.NoError(t, user.Set("name", "a8m"))
	require.NoError(t, item.SetRef("owner", user))
	require.NoError(t, s.Add(user))
	require.NoError(t, s.Commit(ctx))
	touched := item.Get("updated_at").(time.Time)
	assert.True(t, touched.After(updatedAt), "updated_at must move forward")
	assert.True(t, createdAt.Equal(item.Get("created_at").(time.Time)))

	// An explicit value is kept.
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, item.Set("title", "final"))
	require.NoError(t, item.Set("updated_at", fixed))
	require.NoError(t, s.Commit(ctx))
	assert.True(t, fixed.Equal(item.Get("updated_at").(time.Time)))

	var title string
	require.NoError(t, db.QueryRow("SELECT title FROM items").Scan(&title))
	assert.Equal(t, "final", title)
}
