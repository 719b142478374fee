package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealkit/internal/config"
	"sealkit/sdk"
)

func TestRightsFlags(t *testing.T) {
	full := rightsFlags{}.recipients([]string{"u1", "g1"})
	require.Len(t, full, 2)
	assert.Equal(t, "g1", full[1].ID)
	assert.True(t, full[0].Rights.Revoke)

	read := rightsFlags{readOnly: true}.recipients([]string{"u1"})
	assert.True(t, read[0].Rights.Read)
	assert.False(t, read[0].Rights.Forward)
	assert.False(t, read[0].Rights.Revoke)
}

func TestReadSecret_Order(t *testing.T) {
	cmd := &cobra.Command{}
	t.Setenv("SEALKIT_TEST_SECRET", "from-env")

	got, err := readSecret(cmd, "from-flag", "SEALKIT_TEST_SECRET", "x: ")
	require.NoError(t, err)
	assert.Equal(t, "from-flag", got)

	got, err = readSecret(cmd, "", "SEALKIT_TEST_SECRET", "x: ")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}

func TestLoadConfig_HomeAndOverrides(t *testing.T) {
	dir := t.TempDir()
	c := config.Default()
	c.Client.AppID = "from-file"
	require.NoError(t, c.Save(filepath.Join(dir, config.FileName)))

	home, serverURL, appID = dir, "https://keys.example.com", ""
	t.Cleanup(func() { home, serverURL, cfg = "", "", nil })

	require.NoError(t, loadConfig(nil))
	assert.Equal(t, "from-file", cfg.Client.AppID)
	assert.Equal(t, "https://keys.example.com", cfg.Client.ServerURL)
	assert.Equal(t, filepath.Join(dir, "db"), cfg.Client.DatabasePath)
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("client:\n  colour: red\n"), 0o600))

	home = dir
	t.Cleanup(func() { home, cfg = "", nil })

	err := loadConfig(nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "colour"))
}

func TestPrintStatus_Sorted(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	printStatus(cmd, map[string]sdk.ActionStatus{
		"b": {Success: false, ErrorCode: "not_found"},
		"a": {Success: true},
	})
	assert.Equal(t, "a\tok\nb\tnot_found\n", buf.String())
}
