// Package model defines the domain types for flotilla: container and group
// definitions, the container lifecycle status enum, and the error taxonomy
// shared by the graph, registry, and engine packages.
//
// Definitions are validated once, when they enter the system, and are
// treated as immutable afterwards. Everything downstream (dependency graph,
// lifecycle engine) may assume a definition that reached it has already
// passed Validate.
package model
