// Package graph builds the instance-level dependency graph of a flush.
//
// Every Insert, Update and Delete of the working set is a node. Edges
// order the writes that reference each other through foreign keys:
//
//   - the insert of a parent precedes the insert or update of its children,
//   - the delete of a child precedes the delete of its parent,
//   - join table links follow the inserts of both rows, and unlinks
//     precede their deletes.
//
// Edges through nullable foreign keys are breakable: Graph.Break replaces
// them with a PostUpdate or NullifyFK node.
package graph
