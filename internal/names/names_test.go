package names

import (
	"os"
	"path/filepath"
	"testing"

	"mev-monitor-sol/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wsolStr = "So11111111111111111111111111111111111111112"

func TestLoadAndDisplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yaml")
	content := "programs:\n  \"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8\": Raydium v4\ntokens:\n  \"" + wsolStr + "\": WSOL\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "WSOL", table.Display(types.PubkeyFromBase58(wsolStr)))
	assert.Equal(t, "Raydium v4", table.DisplayString("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"))

	// 未知地址降级为截断前缀
	unknown := types.PubkeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5")
	assert.Equal(t, unknown.Short(), table.Display(unknown))
}

func TestLoadEmptyPath(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	var p types.Pubkey
	p[0] = 1
	assert.Equal(t, p.Short(), table.Display(p))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/names.yaml")
	assert.Error(t, err)
}

func TestNilTableSafe(t *testing.T) {
	var table *Table
	var p types.Pubkey
	p[0] = 2
	assert.Equal(t, p.Short(), table.Display(p))
}
