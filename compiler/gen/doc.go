// Package gen generates typed accessors for the entities of a registry.
//
// For every entity the generator writes a wrapper type embedding
// *uow.Instance, the uow.FieldOf, uow.RefOf and uow.CollectionOf accessors
// of its fields and relationships, and typed getters and setters using
// them. Every assignment made through the generated code goes through the
// attribute tracker of the instance, so it is seen by the next flush.
//
//	paths, err := gen.Generate(ctx, reg,
//	    gen.WithTarget("./model"),
//	    gen.WithPackage("model"),
//	)
//
// Given the Node entity, the generated code is used as:
//
//	root := model.NewNode(reg).SetName("root")
//	child := model.NewNode(reg).SetName("child")
//	if err := child.SetParent(root); err != nil {
//	    return err
//	}
//	err := s.Add(root.Instance, child.Instance)
//
// # Generated Output
//
//	{target}/
//	├── uow.go        // entity names and shared helpers
//	└── {entity}.go   // wrapper type and accessors
//
// Files are rendered with Jennifer and written in parallel through an
// afero file system, which defaults to the OS file system.
package gen
