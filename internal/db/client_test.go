package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	dir := Migrations()
	entries, err := fs.ReadDir(dir, ".")
	require.NoError(t, err)

	var sql []string
	var haveSum bool
	for _, e := range entries {
		switch {
		case e.Name() == "atlas.sum":
			haveSum = true
		case strings.HasSuffix(e.Name(), ".sql"):
			sql = append(sql, e.Name())
		}
	}
	require.True(t, haveSum)
	require.NotEmpty(t, sql)

	b, err := fs.ReadFile(dir, sql[0])
	require.NoError(t, err)
	require.Contains(t, string(b), `"stegokey"."operation"`)
}
