// Package session implements the unit of work: a Session tracks the
// instances of one logical task, flushes their changes in dependency
// order inside a transaction and ends it with Commit or Rollback.
//
//	s, err := session.New(reg, drv, session.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer s.Close(ctx)
//	root := node.New()
//	NodeName.Set(root, "root")
//	if err := s.Add(root); err != nil {
//		return err
//	}
//	return s.Commit(ctx)
//
// A failed flush restores the instances to their values before the
// flush, rolls the transaction back and aborts the session. An aborted
// session accepts only Rollback and Close.
package session
