package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetVersion(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "1.2.3"
	v := GetVersion()
	require.Equal(t, "1.2.3", v.Version)
	require.Equal(t, runtime.Version(), v.GoVersion)
}
