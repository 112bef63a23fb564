// Package fileutil provides glob-based file discovery over an afero filesystem.
//
// It is the single place where filescout walks directory trees. The visitor's
// filesystem facade delegates to it, and tests run it against an in-memory
// filesystem.
//
// # Patterns
//
// Patterns use doublestar syntax relative to the scanned directory, in the same
// spirit as Ant file sets:
//
//   - "**/*.txt" matches every .txt file, including the ones at the top level
//   - "reports/*.xml" matches only direct children of reports/
//   - "build/" is shorthand for "build/**"
//
// SplitPatterns accepts a comma-separated list ("**/*.md, docs/**/*.yaml"); a file
// matching several patterns is reported once.
//
// # Usage
//
//	result, err := fileutil.ScanDirectory(afero.NewOsFs(), "/path/to/workspace", fileutil.ScanOptions{
//	    Patterns:       fileutil.SplitPatterns("**/*.md"),
//	    FollowSymlinks: true,
//	    ExcludeDirs:    []string{".git", "node_modules"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, file := range result.Files {
//	    fmt.Println(file)
//	}
//
// # Error Tolerance
//
// The scanner collects non-fatal errors (a subdirectory without permission, a
// dangling symbolic link) in ScanResult.Errors and keeps going. Only a missing root
// directory or a malformed pattern fails the scan.
//
// # Symbolic Links
//
// With FollowSymlinks enabled, links to files are reported and links to directories
// are traversed. A link that points back to one of its ancestors is skipped, so
// cyclic trees terminate. With FollowSymlinks disabled, links are ignored entirely.
//
// # Output
//
// Files are relative, slash-separated and sorted, which keeps the order of the
// visitor's results and log deterministic across runs and platforms.
package fileutil
