// Package component defines the lifecycle contract shared by the resolver,
// registry providers and HTTP server of a mesh node, and a Registry that
// starts them in order and stops them in reverse.
package component
