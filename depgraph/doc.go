// Package depgraph builds the dependency manifest used by preview mode.
//
// Starting at the entry file it walks relative imports depth-first, visiting
// every file at most once, and collects external package imports into a
// manifest pinned to "latest". Nothing is executed. A file that fails to
// parse contributes no external packages; the failure is logged and the walk
// continues.
package depgraph
