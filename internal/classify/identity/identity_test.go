package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, "ghostty", Normalize("com.mitchellh.ghostty"))
	require.Equal(t, "dolphin", Normalize("org.kde.dolphin"))
	require.Equal(t, "firefox", Normalize("firefox"))
	require.Equal(t, "ffpwa-01234567890", Normalize("FFPWA-01234567890"))
	require.Equal(t, "unknown", Normalize(""))
}

func TestMatch_Tiers(t *testing.T) {
	ok, mt := Match("Code", "Code", "code", nil)
	require.True(t, ok)
	require.Equal(t, MatchExact, mt)

	ok, mt = Match("Code", "CODE-WRONG", "Code", nil)
	require.True(t, ok)
	require.Equal(t, MatchInstance, mt)

	ok, mt = Match("com.mitchellh.ghostty", "dev.ghostty", "", nil)
	require.True(t, ok)
	require.Equal(t, MatchNormalized, mt)

	ok, _ = Match("Code", "Slack", "slack-instance", nil)
	require.False(t, ok)
}

func TestMatch_Aliases(t *testing.T) {
	ok, mt := Match("Code", "VSCodium", "vscodium", []string{"VSCodium"})
	require.True(t, ok)
	require.Equal(t, MatchAliasExact, mt)
}

func TestGetIdentity_FirefoxPWA(t *testing.T) {
	id := GetIdentity("FFPWA-01234567890", "", "YouTube")
	require.True(t, id.IsPWA)
	require.Equal(t, PWAFirefox, id.PWAType)
	require.Equal(t, "FFPWA-01234567890", id.PWAID)
}

func TestGetIdentity_ChromePWA(t *testing.T) {
	id := GetIdentity("Google-chrome", "crx-abc123", "Gmail")
	require.True(t, id.IsPWA)
	require.Equal(t, PWAChrome, id.PWAType)
	require.Equal(t, "crx-abc123", id.PWAID)
}

func TestGetIdentity_DefaultChromeNotPWA(t *testing.T) {
	id := GetIdentity("Google-chrome", "google-chrome", "Google")
	require.False(t, id.IsPWA)
}
