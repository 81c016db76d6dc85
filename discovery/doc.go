// Package discovery resolves logical service names to live instance
// addresses.
//
// A Resolver sits in front of a Registry backend. It caches the healthy
// instance set of every name it has been asked about, refreshes those sets
// on a fixed interval, and hands out one instance per call according to a
// load-balancing Strategy (round-robin by default).
//
// # Backends
//
//   - discovery/static: in-memory endpoints from config, also the test fake
//   - discovery/consul: HashiCorp Consul agent
//   - discovery/redis: TTL keys in Redis
//   - discovery/etcd: leased keys in etcd v3
//
// Backends register a ProviderFactory in init; importing the package for
// its side effect makes the provider selectable by name in Config.Provider.
package discovery
