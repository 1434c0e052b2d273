// Package version holds the plannerbench release version.
package version

// Version is reported by "plannerbench version", in the startup event and
// as a metrics label. Override at build time with:
//
//	go build -ldflags "-X github.com/AaronLay10/plannerbench/internal/version.Version=x.y.z" ./cmd/plannerbench
var Version = "0.1.0"
