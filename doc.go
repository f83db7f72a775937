// Package uow is the core of a unit-of-work engine for relational data.
//
// A Registry resolves entity schemas into immutable mappings. Instances of
// those entities are mutated through typed accessors, and a session (see
// package session) tracks them in an identity map, records attribute
// history, cascades operations along relationships and flushes the
// changes as dependency-ordered batches of statements to an Executor.
//
//	reg := uow.MustRegistry(uow.Schema{
//		Name: "Node",
//		Fields: []uow.Field{
//			field.Int64("id"),
//			field.String("name"),
//		},
//		Edges: []uow.Edge{
//			edge.To("children", "Node").Cascade(edge.All),
//			edge.From("parent", "Node").Ref("children").Unique(),
//		},
//	})
//	node, _ := reg.Entity("Node")
//	root := node.New()
//	NodeName.Set(root, "root")
package uow
