// Package identity implements the tiered window-class identifier shared by
// the classification pipeline (4.D) and the workspace assigner (4.F):
// exact match, case-insensitive WM_CLASS instance match, and a
// reverse-domain-prefix-normalized match, each retried against any
// registered aliases, plus PWA subclass detection.
package identity

import "strings"

// reverseDomainPrefixes are the recognized top-level components stripped
// from a reverse-domain class name before normalization, e.g.
// "com.mitchellh.ghostty" -> "ghostty".
var reverseDomainPrefixes = map[string]struct{}{
	"com": {}, "org": {}, "io": {}, "net": {}, "dev": {}, "app": {}, "de": {},
}

// Normalize strips a recognized reverse-domain prefix by taking the last
// dotted component, then lowercases the result.
func Normalize(class string) string {
	if class == "" {
		return "unknown"
	}
	if strings.Contains(class, ".") {
		parts := strings.Split(class, ".")
		if len(parts) > 1 {
			if _, ok := reverseDomainPrefixes[strings.ToLower(parts[0])]; ok {
				class = parts[len(parts)-1]
			}
		}
	}
	return strings.ToLower(class)
}

// MatchType names which tier (or alias-prefixed tier) produced a match.
type MatchType string

const (
	MatchNone             MatchType = "none"
	MatchExact            MatchType = "exact"
	MatchInstance         MatchType = "instance"
	MatchNormalized       MatchType = "normalized"
	MatchAliasExact       MatchType = "alias_exact"
	MatchAliasInstance    MatchType = "alias_instance"
	MatchAliasNormalized  MatchType = "alias_normalized"
)

// Match runs the tiered matching strategy for expected against an observed
// window's class/instance, retrying against aliases on failure.
func Match(expected, actualClass, actualInstance string, aliases []string) (bool, MatchType) {
	if ok, mt := matchSingle(expected, actualClass, actualInstance); ok {
		return true, mt
	}
	for _, alias := range aliases {
		if ok, mt := matchSingle(alias, actualClass, actualInstance); ok {
			return true, aliasPrefixed(mt)
		}
	}
	return false, MatchNone
}

func aliasPrefixed(mt MatchType) MatchType {
	switch mt {
	case MatchExact:
		return MatchAliasExact
	case MatchInstance:
		return MatchAliasInstance
	case MatchNormalized:
		return MatchAliasNormalized
	default:
		return MatchNone
	}
}

func matchSingle(expected, actualClass, actualInstance string) (bool, MatchType) {
	if expected == actualClass {
		return true, MatchExact
	}
	if actualInstance != "" && strings.EqualFold(expected, actualInstance) {
		return true, MatchInstance
	}
	if Normalize(expected) == Normalize(actualClass) {
		return true, MatchNormalized
	}
	return false, MatchNone
}

// PWAType identifies which browser family produced a PWA window.
type PWAType string

const (
	PWANone    PWAType = ""
	PWAFirefox PWAType = "firefox"
	PWAChrome  PWAType = "chrome"
)

// Identity is the comprehensive diagnostic bundle for an observed window,
// including PWA subclass detection.
type Identity struct {
	OriginalClass      string
	OriginalInstance   string
	NormalizedClass    string
	NormalizedInstance string
	Title              string
	IsPWA              bool
	PWAID              string
	PWAType            PWAType
}

// GetIdentity extracts the full diagnostic identity bundle for a window,
// including Firefox (FFPWA-*) and Chrome (Google-chrome with a non-default
// instance) PWA detection.
func GetIdentity(actualClass, actualInstance, title string) Identity {
	id := Identity{
		OriginalClass:    actualClass,
		OriginalInstance: actualInstance,
		NormalizedClass:  Normalize(actualClass),
		Title:            title,
	}
	if actualInstance != "" {
		id.NormalizedInstance = Normalize(actualInstance)
	}

	switch {
	case strings.HasPrefix(actualClass, "FFPWA-"):
		id.IsPWA = true
		id.PWAID = actualClass
		id.PWAType = PWAFirefox
	case actualClass == "Google-chrome" && actualInstance != "" && actualInstance != "google-chrome":
		id.IsPWA = true
		id.PWAID = actualInstance
		id.PWAType = PWAChrome
	}
	return id
}
