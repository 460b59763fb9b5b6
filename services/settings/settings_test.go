package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespacesAreIsolated(t *testing.T) {
	s := NewMemory()
	net := s.Namespace("network")
	disp := s.Namespace("display")

	require.NoError(t, net.SetString("type", "cellular"))
	require.NoError(t, disp.SetInt("brightness", 60))

	assert.Equal(t, "cellular", net.String("type", "wifi"))
	assert.Equal(t, "wifi", disp.String("type", "wifi"))
	assert.Equal(t, 60, disp.Int("brightness", 75))
	assert.Equal(t, 75, net.Int("brightness", 75))
}

func TestTypeMismatchFallsBack(t *testing.T) {
	s := NewMemory().Namespace("audio")
	require.NoError(t, s.SetString("output_volume", "loud"))
	assert.Equal(t, 70, s.Int("output_volume", 70))
	assert.True(t, s.Bool("missing", true))
}

func TestEraseKeyAndNamespace(t *testing.T) {
	s := NewMemory().Namespace("wifi")
	require.NoError(t, s.SetString("ssid", "home"))
	require.NoError(t, s.SetBool("force_ap", true))

	require.NoError(t, s.Erase("ssid"))
	assert.Equal(t, "", s.String("ssid", ""))
	assert.True(t, s.Bool("force_ap", false))

	require.NoError(t, s.EraseAll())
	assert.False(t, s.Bool("force_ap", false))
}

func TestFileBackendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvs", "settings.cbor")

	s, err := Open(NewFileBackend(path))
	require.NoError(t, err)
	require.NoError(t, s.Namespace("display").SetInt("brightness", 42))
	require.NoError(t, s.Namespace("audio").SetBool("press_to_talk", true))

	again, err := Open(NewFileBackend(path))
	require.NoError(t, err)
	assert.Equal(t, 42, again.Namespace("display").Int("brightness", 0))
	assert.True(t, again.Namespace("audio").Bool("press_to_talk", false))
}

func TestImageIsCanonical(t *testing.T) {
	a, b := &MemBackend{}, &MemBackend{}
	sa, _ := Open(a)
	sb, _ := Open(b)

	require.NoError(t, sa.Namespace("x").SetInt("a", 1))
	require.NoError(t, sa.Namespace("y").SetInt("b", 2))
	require.NoError(t, sb.Namespace("y").SetInt("b", 2))
	require.NoError(t, sb.Namespace("x").SetInt("a", 1))

	ra, _ := a.Load()
	rb, _ := b.Load()
	assert.Equal(t, ra, rb)
}
