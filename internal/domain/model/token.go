package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ChallengeTokenLength is the exact length of a DNS-01 TXT value: the
// base64url encoding of a SHA-256 digest. The acme-dns server rejects
// anything else, so the token is checked here before any network call.
const ChallengeTokenLength = 43

var challengeTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)

// NormalizeChallengeToken trims surrounding whitespace, truncates overlong
// input to the expected length, and verifies the result is a well-formed
// DNS-01 TXT value.
func NormalizeChallengeToken(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	if len(token) > ChallengeTokenLength {
		token = token[:ChallengeTokenLength]
	}
	if !challengeTokenPattern.MatchString(token) {
		return "", fmt.Errorf("challenge token %q is not %d base64url characters", token, ChallengeTokenLength)
	}
	return token, nil
}
