// Package fs abstracts filesystem access so cursor and snapshot I/O can
// be fault-tested.
//
// [FileSystem] covers the operations the index needs (open, stat,
// remove, rename, mkdir); [File] is an open handle with read, write and
// sync. [LocalFS] is the production implementation over the os package,
// reachable as fs.Default. [WriteFileAtomic] writes through a temp file
// and renames it into place; cursor saves and local blob puts share it.
//
// [FaultyFS] wraps another FileSystem and injects failures by path
// substring:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("cursor", fs.Fault{FailAfterBytes: 0})
//
// A rule matches every path containing its pattern, including derived
// temp files, so an atomic write can be failed at the write, sync or
// rename step.
//
// Operations here take no context.Context: local filesystem calls are
// not interruptible at the syscall level. Remote storage goes through
// blobstore, which is context-aware.
package fs
