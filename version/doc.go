// Package version reports the build of the running binary.
//
// Release builds stamp it through -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/meshnode/version.Version=1.4.0 \
//	    -X github.com/kbukum/meshnode/version.GitBranch=main" ./cmd/service1
//
// Anything not stamped is filled from the VCS settings the Go toolchain
// embeds. The result is served on /info and tagged on telemetry resources.
package version
