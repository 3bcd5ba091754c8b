package msa

// Endpoints holds the base URLs of every service the pipeline talks to.
// Overridable so tests can point the flow at local servers.
type Endpoints struct {
	DeviceCodeURL     string
	TokenURL          string
	XBLAuthURL        string
	XSTSAuthURL       string
	LoginWithXboxURL  string
	ProfileURL        string
	NameLookupURL     string // "/<name>" is appended
	SessionProfileURL string // "/<undashed uuid>" is appended
}

// DefaultEndpoints returns the production service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		DeviceCodeURL:     "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode",
		TokenURL:          "https://login.microsoftonline.com/consumers/oauth2/v2.0/token",
		XBLAuthURL:        "https://user.auth.xboxlive.com/user/authenticate",
		XSTSAuthURL:       "https://xsts.auth.xboxlive.com/xsts/authorize",
		LoginWithXboxURL:  "https://api.minecraftservices.com/authentication/login_with_xbox",
		ProfileURL:        "https://api.minecraftservices.com/minecraft/profile",
		NameLookupURL:     "https://api.mojang.com/users/profiles/minecraft",
		SessionProfileURL: "https://sessionserver.mojang.com/session/minecraft/profile",
	}
}
