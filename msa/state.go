package msa

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// PipelineState accumulates the output of each login stage. A later field is
// populated only after every earlier field its stage depends on is set. The
// whole struct is zeroed once the flow's caller has consumed the result so
// no secret material stays resident.
type PipelineState struct {
	DeviceAuth     *oauth2.DeviceAuthResponse
	AccessToken    string // Microsoft identity access token
	RefreshToken   string
	XBLToken       string
	UserHash       string
	XSTSToken      string
	MinecraftToken string
	Profile        *Profile
}

// Reset clears every field, secrets included. Mandatory on every flow exit
// path, success or failure.
func (s *PipelineState) Reset() {
	*s = PipelineState{}
}

// Profile is proof that the authenticated account owns the game, plus
// everything needed to start a session as it.
type Profile struct {
	Name  string
	UUID  uuid.UUID
	Token string // Minecraft services access token; empty when mimicking

	// Properties holds the raw profile properties JSON returned by the
	// session server when mimicking a player. Empty for real logins.
	Properties string
}

// LaunchArgs serializes the profile into the --key value pairs the game
// expects on its command line.
func (p *Profile) LaunchArgs() []string {
	args := []string{"--username", p.Name, "--uuid", p.UUID.String()}
	if p.Token != "" {
		args = append(args, "--accessToken", p.Token, "--userType", "msa")
	}
	if p.Properties != "" {
		args = append(args, "--profileProperties", p.Properties)
	}
	return args
}

// CachedCredential is the persisted record read at flow start and written
// after a fresh successful login. The mcToken key matches the cache files
// written by earlier versions of this tool.
type CachedCredential struct {
	RefreshToken   string `json:"refreshToken,omitempty"`
	MinecraftToken string `json:"mcToken,omitempty"`
}

// ParseProfileUUID parses an account id as returned by the profile services,
// which omit the dashes. Dashed ids are accepted too.
func ParseProfileUUID(s string) (uuid.UUID, error) {
	if strings.Contains(s, "-") {
		return uuid.Parse(s)
	}
	if len(s) != 32 {
		return uuid.UUID{}, fmt.Errorf("invalid undashed UUID %q: want 32 hex chars, got %d", s, len(s))
	}
	dashed := s[:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:]
	return uuid.Parse(dashed)
}

// UndashedUUID renders id the way the profile services expect it.
func UndashedUUID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
