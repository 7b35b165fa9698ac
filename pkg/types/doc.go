// Package types defines the Workspace and store interfaces, entity types,
// operation inputs, and standard errors for the Interfold core.
//
// Three structures are bound together: atomic sets (concept vertices),
// intersections (hyperedges over 1 to 20 atomic sets, indexed through
// intersection elements), and outline nodes (a parent-pointer tree that
// optionally references an intersection). Every entity belongs to exactly
// one user and every store operation is scoped by the caller's user ID.
package types
