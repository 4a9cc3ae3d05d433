// Package vfs defines the file-system collaborator used by the kernel's
// file system calls.
//
// The namespace is flat: a file is addressed by a short name with no
// directory components. Files are created with a fixed length and never
// grow; writes stop at end of file. An open File carries its own position,
// so two opens of the same name read and write independently.
//
// # Backends
//
//   - memfs: in-memory files, used by tests and the default kernel
//   - diskfs: files stored in a host directory
//
// # Usage
//
//	fs := memfs.New()
//	if err := fs.Create("notes", 512); err != nil {
//		log.Fatal(err)
//	}
//	f, err := fs.Open("notes")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer f.Close()
package vfs
