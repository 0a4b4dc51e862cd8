// Package credwatch keeps an mTLS client current while its credential files
// change on disk.
//
//   - watcher.go: fsnotify-driven rebuild of an *mtls.Client
//
// Features:
//
//   - Directory watches, so editor renames and Kubernetes secret symlink
//     swaps are picked up
//   - Debounced, rate-limited rebuilds
//   - The previous client stays in service when a rebuild fails
package credwatch
