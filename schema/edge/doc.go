// Package edge provides fluent builders for describing relationships
// between mapped entities.
//
// The cardinality of a relationship is derived from the pair of edges
// that describe it:
//
//	// Many-to-one. The foreign key lives on the owner (Post.author_id).
//	edge.From("author", "User").Ref("posts").Unique()
//
//	// One-to-many. The foreign key lives on the target.
//	edge.To("posts", "Post")
//
//	// One-to-one. The foreign key lives on the target.
//	edge.To("profile", "Profile").Unique()
//
//	// Many-to-many through a join table.
//	edge.To("groups", "Group").
//	    StorageKey(edge.Table("user_groups"), edge.Columns("user_id", "group_id"))
//
// # Cascades
//
// Each edge carries a Cascade policy set, evaluated by the session when
// it flushes:
//
//	edge.To("children", "Node").Cascade(edge.SaveUpdate | edge.DeleteOrphan)
//
// Edges cascade SaveUpdate by default. Cascade(edge.None) turns off
// propagation for an edge.
//
// # Deletes and cycles
//
// OnDelete(edge.SetNull) makes the session clear the foreign key of
// surviving rows before the referenced row is deleted. PostUpdate makes
// the session insert the referencing row with a NULL foreign key and
// assign it afterwards, which is how mutually dependent rows are stored.
package edge
