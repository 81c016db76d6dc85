// Package endpoint provides the operational Gin handlers every node serves.
package endpoint
