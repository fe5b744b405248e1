package models

import (
	"fmt"
	"strings"
	"unicode"
)

// DeriveGroupCode derives the short slug used to namespace trail and POI
// identifiers from a free-text group name. Runs of non-alphanumeric
// characters collapse to a single hyphen. The derivation is stable: the same
// group name always yields the same code.
func DeriveGroupCode(groupName string) string {
	return slugify(groupName)
}

// TrailID derives the deterministic trail id for a group code and type,
// e.g. "clonfert-graveyard".
func TrailID(groupCode string, trailType TrailType) string {
	return fmt.Sprintf("%s-%s", groupCode, trailType)
}

// POIID derives the stable POI id from its identity triple,
// e.g. "clonfert-graveyard-03".
func POIID(groupCode string, trailType TrailType, sequence int) string {
	return fmt.Sprintf("%s-%s-%02d", groupCode, trailType, sequence)
}

// POIFilename derives the deterministic image filename for a POI. The
// thumbnail shares the basename under a separate archive directory.
func POIFilename(groupCode string, trailType TrailType, sequence int) string {
	return POIID(groupCode, trailType, sequence) + ".jpg"
}

// NormalizeEmail lowercases and trims an email for use as the remote
// ownership key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
