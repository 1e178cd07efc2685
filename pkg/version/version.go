// Package version holds the build version, overridable at link time:
//
//	go build -ldflags "-X cilaosgo/pkg/version.Version=v1.2.3" ./cmd/cilaosgo
package version

// Version is the server version reported by /api/version and the User-Agent.
var Version = "v0.3.0"
