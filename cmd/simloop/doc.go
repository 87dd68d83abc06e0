// Package main hosts the simloop CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration, builds the logger, and hands
// runs to internal/app. Inspection commands (sims, sessions, deps, config)
// read state directly and render tables or JSON.
package main
