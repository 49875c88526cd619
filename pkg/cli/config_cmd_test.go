package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "****"},
		{"1234567890", "****"},
		{"qk_longsecret1234", "qk_l****1234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maskSecret(tt.in), "maskSecret(%q)", tt.in)
	}
}

func TestMaskConfig_DoesNotMutateOriginal(t *testing.T) {
	cfg := NewUserConfig()
	cfg.Profiles["work"] = Profile{
		Host:   "https://quarry.internal",
		APIKey: "qk_longsecret1234",
		Token:  "header.payload.signature",
	}

	masked := maskConfig(cfg)

	assert.Equal(t, "qk_l****1234", masked.Profiles["work"].APIKey)
	assert.Equal(t, "head****ture", masked.Profiles["work"].Token)
	assert.Equal(t, "https://quarry.internal", masked.Profiles["work"].Host)

	assert.Equal(t, "qk_longsecret1234", cfg.Profiles["work"].APIKey)
	assert.Equal(t, "header.payload.signature", cfg.Profiles["work"].Token)
}

func TestConfigSetProfile_WritesFile(t *testing.T) {
	setTestHome(t)

	out := captureStdout(t, func() {
		require.NoError(t, execCLI("config", "set-profile", "work",
			"--host", "https://quarry.internal",
			"--api-key", "qk_longsecret1234",
			"--set-output", "json",
		))
	})
	assert.Contains(t, out, `Profile "work" saved to `)
	assert.Contains(t, out, "config.yaml")

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, Profile{
		Host:   "https://quarry.internal",
		APIKey: "qk_longsecret1234",
		Output: "json",
	}, cfg.Profiles["work"])
}

func TestConfigSetProfile_MergesExistingFields(t *testing.T) {
	setTestHome(t)

	_ = captureStdout(t, func() {
		require.NoError(t, execCLI("config", "set-profile", "work", "--host", "https://quarry.internal"))
		require.NoError(t, execCLI("config", "set-profile", "work", "--api-key", "qk_new"))
	})

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://quarry.internal", cfg.Profiles["work"].Host)
	assert.Equal(t, "qk_new", cfg.Profiles["work"].APIKey)
}

func TestConfigSetProfile_RejectsBadHost(t *testing.T) {
	err := runCLI(t, "config", "set-profile", "work", "--host", "localhost:8080")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme must be http or https")
}

func TestConfigSetProfile_RejectsBadOutput(t *testing.T) {
	err := runCLI(t, "config", "set-profile", "work", "--set-output", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported output format "yaml"`)
}

func TestConfigUseProfile(t *testing.T) {
	setTestHome(t)

	out := captureStdout(t, func() {
		require.NoError(t, execCLI("config", "set-profile", "work", "--host", "https://quarry.internal"))
		require.NoError(t, execCLI("config", "use-profile", "work"))
	})
	assert.Contains(t, out, `Switched to profile "work".`)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "work", cfg.CurrentProfile)
}

func TestConfigUseProfile_UnknownProfile(t *testing.T) {
	err := runCLI(t, "config", "use-profile", "ghost")
	require.Error(t, err)
	assert.Equal(t, `profile "ghost" not found`, err.Error())
}

func TestConfigShow_MasksCredentials(t *testing.T) {
	setTestHome(t)

	out := captureStdout(t, func() {
		require.NoError(t, execCLI("config", "set-profile", "work",
			"--host", "https://quarry.internal", "--api-key", "qk_longsecret1234"))
		require.NoError(t, execCLI("config", "use-profile", "work"))
		require.NoError(t, execCLI("config", "show"))
	})

	assert.Contains(t, out, "PROFILE")
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "HOST")
	assert.Contains(t, out, "*")
	assert.Contains(t, out, "qk_l****1234")
	assert.NotContains(t, out, "qk_longsecret1234")
}

func TestConfigShow_RevealJSON(t *testing.T) {
	setTestHome(t)

	out := captureStdout(t, func() {
		require.NoError(t, execCLI("config", "set-profile", "work", "--api-key", "qk_longsecret1234"))
		require.NoError(t, execCLI("-o", "json", "config", "show", "--reveal"))
	})

	// Two JSON documents are printed; the reveal output comes last.
	assert.Contains(t, out, `"qk_longsecret1234"`)
}

func TestConfigShow_JSONShape(t *testing.T) {
	setTestHome(t)

	_ = captureStdout(t, func() {
		require.NoError(t, execCLI("config", "set-profile", "work", "--host", "https://quarry.internal"))
	})
	out := captureStdout(t, func() {
		require.NoError(t, execCLI("-o", "json", "config", "show"))
	})

	var got UserConfig
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "default", got.CurrentProfile)
	assert.Equal(t, "https://quarry.internal", got.Profiles["work"].Host)
}
