package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConfigDefaultsToInfo(t *testing.T) {
	cfg := newConfig("not-a-level", "json", "")
	require.Equal(t, zap.InfoLevel, cfg.Level.Level())
	require.Equal(t, "json", cfg.Encoding)
	require.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}

func TestInitWritesToFile(t *testing.T) {
	prev := sugar
	t.Cleanup(func() { sugar = prev })

	dir := filepath.Join(t.TempDir(), "logs")
	Init("debug", "json", dir)
	With("client", "c1").Infow("connected", "path", "/chat/ws")
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	require.Contains(t, line, `"msg":"connected"`)
	require.Contains(t, line, `"client":"c1"`)
}
