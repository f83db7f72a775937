// Package flush turns the operations of a unit of work into an ordered
// plan and executes it.
//
// NewPlan resolves the dependency cycles of the graph, breaking each one
// at its first nullable foreign key, and sorts the operations in waves:
//
//	wave 1
//	  insert nodes x1
//	    insert Node(pending#1)
//	wave 2
//	  insert nodes x2
//	    insert Node(pending#2)
//	    insert Node(pending#3)
//
// Operations of one wave are grouped in batches by kind and table. A
// Flusher runs the waves in order, and the batches of a wave concurrently
// when the executor supports it.
package flush
