// Package buildinfo holds the project metadata every command reports.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	Name     = "lc3tools"
	Homepage = "https://github.com/LandonTheCoder/lc3tools-ng"
	License  = "GPL-2.0-only"
)

// Version is set at link time with -ldflags "-X lc3tools/pkg/buildinfo.Version=...".
var Version = "13.0~beta"

// Dependency is one module compiled into the running binary.
type Dependency struct {
	Path    string
	Version string
}

// Dependencies lists the modules the binary was built with, when the Go
// toolchain recorded them.
func Dependencies() []Dependency {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	deps := make([]Dependency, 0, len(info.Deps))
	for _, d := range info.Deps {
		deps = append(deps, Dependency{Path: d.Path, Version: d.Version})
	}
	return deps
}

// Summary is the text printed by "<command> version".
func Summary(command string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) version %s\n", command, Name, strings.TrimSpace(Version))
	fmt.Fprintf(&b, "%s\n", Homepage)
	fmt.Fprintf(&b, "License: %s\n", License)
	return b.String()
}
