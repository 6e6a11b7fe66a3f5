package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_LookupDefault(t *testing.T) {
	table := NewTable()
	p := table.Lookup("005930")
	assert.Equal(t, 0.02, p.Margin)
	assert.False(t, p.AllowShort)
}

func TestTable_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	content := []byte(`
default:
  margin: 0.03
  allow_short: false
instruments:
  "005930":
    margin: 0.01
    allow_short: true
`)
	assert.NoError(t, os.WriteFile(path, content, 0o644))

	table := NewTable()
	assert.NoError(t, table.LoadFile(path))

	assert.Equal(t, Policy{Margin: 0.01, AllowShort: true}, table.Lookup("005930"))
	assert.Equal(t, Policy{Margin: 0.03, AllowShort: false}, table.Lookup("000660"))
}

func TestTable_LoadFileRejectsBadMargin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("default:\n  margin: 1.5\n"), 0o644))

	table := NewTable()
	table.Set("006400", Policy{Margin: 0.05})
	assert.Error(t, table.LoadFile(path))
	// 加载失败不得污染已有表
	assert.Equal(t, Policy{Margin: 0.05}, table.Lookup("006400"))
}
