// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/puppet/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the tree had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. Set manually for releases.
	Version = "0.1.0-dev"
)

type stamp struct {
	commit string
	dirty  bool
	time   string
}

var resolved = sync.OnceValue(func() stamp {
	s := stamp{commit: GitCommit, dirty: GitDirty == "true", time: BuildTime}
	if s.commit != "unknown" {
		return s
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			s.commit = setting.Value
			if len(s.commit) > 12 {
				s.commit = s.commit[:12]
			}
		case "vcs.modified":
			s.dirty = setting.Value == "true"
		case "vcs.time":
			if s.time == "unknown" {
				s.time = setting.Value
			}
		}
	}
	return s
})

// Info returns the --version line.
func Info() string {
	s := resolved()
	dirty := ""
	if s.dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, s.commit, dirty, s.time)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA.
func Commit() string {
	return resolved().commit
}

// UserAgent identifies this build to the provider.
func UserAgent() string {
	return "puppet/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

// Print writes "binary version" to stdout, for --version flags.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Info())
}
