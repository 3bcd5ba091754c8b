package msa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Stage names, used in errors and logs.
const (
	stageNameDeviceCode = "device code"
	stageNamePoll       = "token poll"
	stageNameRefresh    = "refresh token"
	stageNameXBL        = "xbl token"
	stageNameXSTS       = "xsts token"
	stageNameMinecraft  = "minecraft token"
	stageNameProfile    = "profile"
)

// Per-stage request timeouts.
const (
	deviceCodeRequestTimeout = 10 * time.Second
	tokenExchangeTimeout     = 10 * time.Second
	profileFetchTimeout      = 10 * time.Second
)

var formHeaders = map[string]string{
	"Content-Type": "application/x-www-form-urlencoded",
}

var jsonHeaders = map[string]string{
	"Content-Type": "application/json",
	"Accept":       "application/json",
}

// oauthErrorBody is the error shape of the two OAuth token endpoints.
type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// stageDeviceCode requests a device authorization and shows the prompt.
func (f *Flow) stageDeviceCode(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, deviceCodeRequestTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("client_id", f.opts.ClientID)
	data.Set("scope", oauthScope)

	resp, err := f.exec.Execute(
		reqCtx, http.MethodPost, f.opts.Endpoints.DeviceCodeURL, data.Encode(), formHeaders,
	)
	if err != nil {
		return transportErr(stageNameDeviceCode, err)
	}

	var body struct {
		oauthErrorBody
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		ExpiresIn       int    `json:"expires_in"`
		Interval        int    `json:"interval"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return providerErr(stageNameDeviceCode, resp.Body, err)
	}
	if body.Error != "" || body.DeviceCode == "" {
		return providerErr(stageNameDeviceCode,
			fmt.Sprintf("%s: %s", body.Error, body.ErrorDescription), nil)
	}

	f.state.DeviceAuth = &oauth2.DeviceAuthResponse{
		DeviceCode:      body.DeviceCode,
		UserCode:        body.UserCode,
		VerificationURI: body.VerificationURI,
		Expiry:          time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
		Interval:        int64(body.Interval),
	}

	f.log.Info("device code acquired",
		zap.String("verification_uri", body.VerificationURI),
		zap.Int("interval", body.Interval),
		zap.Int("expires_in", body.ExpiresIn),
	)
	f.prompt = f.sink.Prompt(
		body.UserCode, body.VerificationURI, f.state.DeviceAuth.Expiry,
		func() { f.cancelled.Store(true) },
	)
	return nil
}

// stagePoll polls the token endpoint with the device-code grant until the
// user authorizes, the code expires, or the prompt is dismissed. The
// authorization_pending response is the expected interim state and is
// recovered locally; everything else is terminal.
func (f *Flow) stagePoll(ctx context.Context) error {
	auth := f.state.DeviceAuth
	interval := time.Duration(auth.Interval) * time.Second
	if interval == 0 {
		interval = 5 * time.Second // RFC 8628 default
	}

	for {
		if err := sleepCtx(ctx, interval); err != nil {
			return pollInterrupted(err)
		}
		if f.cancelled.Load() {
			return &FlowError{Kind: KindCancelled, Stage: stageNamePoll}
		}
		if !time.Now().Before(auth.Expiry) {
			return &FlowError{Kind: KindExpired, Stage: stageNamePoll}
		}

		data := url.Values{}
		data.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
		data.Set("client_id", f.opts.ClientID)
		data.Set("scope", oauthScope)
		data.Set("device_code", auth.DeviceCode)

		reqCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
		resp, err := f.exec.Execute(
			reqCtx, http.MethodPost, f.opts.Endpoints.TokenURL, data.Encode(), formHeaders,
		)
		cancel()
		if err != nil {
			return transportErr(stageNamePoll, err)
		}

		var body struct {
			oauthErrorBody
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
			return providerErr(stageNamePoll, resp.Body, err)
		}
		if body.Error == "authorization_pending" {
			continue
		}
		if body.Error != "" {
			return providerErr(stageNamePoll,
				fmt.Sprintf("%s: %s", body.Error, body.ErrorDescription), nil)
		}

		f.state.AccessToken = body.AccessToken
		f.state.RefreshToken = body.RefreshToken
		f.log.Info("authorization complete, requesting tokens")
		if f.prompt != nil {
			f.prompt.Dismiss()
			f.prompt = nil
		}
		return nil
	}
}

// stageRefresh exchanges the cached refresh token for a fresh identity
// token pair via the refresh-token grant.
func (f *Flow) stageRefresh(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", f.opts.ClientID)
	data.Set("scope", oauthScope)
	data.Set("refresh_token", f.state.RefreshToken)

	resp, err := f.exec.Execute(
		reqCtx, http.MethodPost, f.opts.Endpoints.TokenURL, data.Encode(), formHeaders,
	)
	if err != nil {
		return transportErr(stageNameRefresh, err)
	}

	var body struct {
		oauthErrorBody
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return providerErr(stageNameRefresh, resp.Body, err)
	}
	if body.Error != "" || body.AccessToken == "" {
		return providerErr(stageNameRefresh,
			fmt.Sprintf("%s: %s", body.Error, body.ErrorDescription), nil)
	}

	f.state.AccessToken = body.AccessToken
	// Keep the old refresh token when the server runs in fixed mode and
	// returns none.
	if body.RefreshToken != "" {
		f.state.RefreshToken = body.RefreshToken
	}
	return nil
}

// stageXBL exchanges the identity access token for an Xbox Live token and
// the user-hash claim required by the later exchanges.
func (f *Flow) stageXBL(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	reqBody, err := json.Marshal(map[string]any{
		"Properties": map[string]any{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=" + f.state.AccessToken,
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	})
	if err != nil {
		return transportErr(stageNameXBL, err)
	}

	resp, err := f.exec.Execute(
		reqCtx, http.MethodPost, f.opts.Endpoints.XBLAuthURL, string(reqBody), jsonHeaders,
	)
	if err != nil {
		return transportErr(stageNameXBL, err)
	}

	var body struct {
		Token         string `json:"Token"`
		DisplayClaims struct {
			XUI []struct {
				UHS string `json:"uhs"`
			} `json:"xui"`
		} `json:"DisplayClaims"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return providerErr(stageNameXBL, resp.Body, err)
	}
	if body.Token == "" || len(body.DisplayClaims.XUI) == 0 {
		return providerErr(stageNameXBL, resp.Body, nil)
	}

	f.state.XBLToken = body.Token
	f.state.UserHash = body.DisplayClaims.XUI[0].UHS
	return nil
}

// stageXSTS exchanges the Xbox Live token for an XSTS token. An XErr code
// in the response is the provider telling the user exactly what is wrong
// with their account (no Xbox profile, region restriction, missing adult
// verification) and is surfaced raw.
func (f *Flow) stageXSTS(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	reqBody, err := json.Marshal(map[string]any{
		"Properties": map[string]any{
			"SandboxId":  "RETAIL",
			"UserTokens": []string{f.state.XBLToken},
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	})
	if err != nil {
		return transportErr(stageNameXSTS, err)
	}

	resp, err := f.exec.Execute(
		reqCtx, http.MethodPost, f.opts.Endpoints.XSTSAuthURL, string(reqBody), jsonHeaders,
	)
	if err != nil {
		return transportErr(stageNameXSTS, err)
	}

	var body struct {
		Token    string `json:"Token"`
		XErr     int64  `json:"XErr"`
		Message  string `json:"Message"`
		Redirect string `json:"Redirect"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return providerErr(stageNameXSTS, resp.Body, err)
	}
	if body.XErr != 0 {
		return &FlowError{
			Kind:    KindProvider,
			Stage:   stageNameXSTS,
			Code:    body.XErr,
			Message: body.Message,
		}
	}
	if body.Token == "" {
		return providerErr(stageNameXSTS, resp.Body, nil)
	}

	f.state.XSTSToken = body.Token
	return nil
}

// stageMinecraft exchanges the user-hash and XSTS token for the Minecraft
// services access token.
func (f *Flow) stageMinecraft(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()

	reqBody, err := json.Marshal(map[string]string{
		"identityToken": fmt.Sprintf("XBL3.0 x=%s;%s", f.state.UserHash, f.state.XSTSToken),
	})
	if err != nil {
		return transportErr(stageNameMinecraft, err)
	}

	resp, err := f.exec.Execute(
		reqCtx, http.MethodPost, f.opts.Endpoints.LoginWithXboxURL, string(reqBody), jsonHeaders,
	)
	if err != nil {
		return transportErr(stageNameMinecraft, err)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return providerErr(stageNameMinecraft, resp.Body, err)
	}
	if body.Error == "UnauthorizedOperationException" {
		return &FlowError{Kind: KindNotEntitled, Stage: stageNameMinecraft, Message: body.ErrorMessage}
	}
	if body.Error != "" || body.AccessToken == "" {
		return providerErr(stageNameMinecraft,
			fmt.Sprintf("%s: %s", body.Error, body.ErrorMessage), nil)
	}

	f.state.MinecraftToken = body.AccessToken
	return nil
}

// stageProfile fetches the player profile with the Minecraft token. An
// error-free body with a name and id is the only accepted proof that the
// account owns the game; it doubles as the cache-validation probe.
func (f *Flow) stageProfile(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, profileFetchTimeout)
	defer cancel()

	headers := map[string]string{
		"Authorization": "Bearer " + f.state.MinecraftToken,
	}
	resp, err := f.exec.Execute(
		reqCtx, http.MethodGet, f.opts.Endpoints.ProfileURL, "", headers,
	)
	if err != nil {
		return transportErr(stageNameProfile, err)
	}

	var body struct {
		Name         string `json:"name"`
		ID           string `json:"id"`
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return providerErr(stageNameProfile, resp.Body, err)
	}
	if body.Error != "" || body.Name == "" || body.ID == "" {
		return &FlowError{Kind: KindNotEntitled, Stage: stageNameProfile, Message: body.ErrorMessage}
	}

	id, err := ParseProfileUUID(body.ID)
	if err != nil {
		return providerErr(stageNameProfile, resp.Body, err)
	}

	f.state.Profile = &Profile{
		Name:  body.Name,
		UUID:  id,
		Token: f.state.MinecraftToken,
	}
	return nil
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollInterrupted maps a context error during the inter-attempt sleep:
// caller cancellation reads as the user giving up.
func pollInterrupted(err error) *FlowError {
	if errors.Is(err, context.Canceled) {
		return &FlowError{Kind: KindCancelled, Stage: stageNamePoll, Err: err}
	}
	return transportErr(stageNamePoll, err)
}
