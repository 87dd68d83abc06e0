// Package preflight provides readiness checks for the filesystem paths and
// external binaries simloop depends on.
//
// These checks run in two contexts:
//   - The app runs RunAll before starting the worker and refuses to start
//     when a required check fails.
//   - The CLI "simloop deps" command prints the same results as a table.
//
// Checks for disabled features are skipped.
package preflight
