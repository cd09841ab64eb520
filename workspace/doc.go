// Package workspace manages the ephemeral directory each execution runs in.
//
// A Workspace is created immediately before execution, owned by exactly one
// request, and removed unconditionally afterwards. Callers pair Acquire with
// a deferred Release:
//
//	ws, err := manager.Acquire(requestID)
//	if err != nil {
//	    return err
//	}
//	defer manager.Release(ws)
//
// File names are checked with CheckName before anything touches the disk;
// names that are absolute or climb out of the root are rejected.
package workspace
