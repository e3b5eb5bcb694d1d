package version

import (
	"strings"
	"testing"
)

func TestStringStartsWithVersion(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "v9.9.9"
	if got := String(); !strings.HasPrefix(got, "v9.9.9") {
		t.Errorf("String() = %q, want prefix v9.9.9", got)
	}
}
