// Package search maintains a per-repository inverted index over text
// documents. Rebuilding an index is slow and must not run twice for the same
// repository at once, which is why it runs as a queued, locked task.
package search
