// Package version reports the impactview release and the commit it was
// built from.
package version

import "runtime/debug"

// Version is overridden at release time:
//
//	go build -ldflags "-X github.com/vanderheijden86/impactview/pkg/version.Version=v0.2.0"
var Version = "dev"

// String returns Version, with the short VCS revision appended when the
// binary carries build info.
func String() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version
	}
	v := Version
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return v
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return v + " (" + rev + ")"
}
