// Package changes tracks which project files have changed since they were
// last indexed.
//
// The Registry persists, per relative path, the SHA-256 of the file content
// and its modification time. Diff uses a two-tier check: a file whose mtime
// matches the stored value is assumed unchanged without reading it, and only
// files whose mtime moved are hashed. A touched but unmodified file has its
// stored mtime refreshed so the next diff skips it again.
//
//	reg := changes.Load(stateDir, logger)
//	diff := reg.Diff(files, root)
//	for _, file := range diff.Changed {
//	    // re-chunk, then
//	    _ = reg.Update(file, root)
//	}
//	for _, rel := range diff.Deleted {
//	    reg.Remove(rel)
//	}
//	err := reg.Save()
//
// The registry is the only authority on what has been indexed; it is written
// atomically so a crash leaves either the old or the new version on disk.
package changes
