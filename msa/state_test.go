package msa

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

func TestParseProfileUUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "undashed",
			input: "11111111222233334444555555555555",
			want:  "11111111-2222-3333-4444-555555555555",
		},
		{
			name:  "dashed",
			input: "11111111-2222-3333-4444-555555555555",
			want:  "11111111-2222-3333-4444-555555555555",
		},
		{
			name:    "too short",
			input:   "1111",
			wantErr: true,
		},
		{
			name:    "not hex",
			input:   "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProfileUUID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProfileUUID(%q) error = %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestUndashedUUID(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	if got := UndashedUUID(id); got != "11111111222233334444555555555555" {
		t.Errorf("Expected undashed form, got %q", got)
	}
}

func TestLaunchArgs(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	t.Run("with token", func(t *testing.T) {
		p := Profile{Name: "Alice", UUID: id, Token: "FT"}
		got := strings.Join(p.LaunchArgs(), " ")
		want := "--username Alice --uuid 11111111-2222-3333-4444-555555555555 --accessToken FT --userType msa"
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("mimic without token", func(t *testing.T) {
		p := Profile{Name: "Alice", UUID: id, Properties: "[]"}
		got := p.LaunchArgs()
		for _, arg := range got {
			if arg == "--accessToken" || arg == "--userType" {
				t.Errorf("Expected no token args when mimicking, got %v", got)
			}
		}
		want := "--username Alice --uuid 11111111-2222-3333-4444-555555555555 --profileProperties []"
		if strings.Join(got, " ") != want {
			t.Errorf("Expected %q, got %q", want, strings.Join(got, " "))
		}
	})
}

func TestPipelineStateReset(t *testing.T) {
	s := PipelineState{
		DeviceAuth:     &oauth2.DeviceAuthResponse{DeviceCode: "D"},
		AccessToken:    "AT",
		RefreshToken:   "RT",
		XBLToken:       "XBL",
		UserHash:       "H",
		XSTSToken:      "XSTS",
		MinecraftToken: "FT",
		Profile:        &Profile{Name: "Alice"},
	}
	s.Reset()
	if s != (PipelineState{}) {
		t.Errorf("Expected zero state after Reset, got %+v", s)
	}
}
