package security

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

const defaultDingTalkBaseURL = "https://api.dingtalk.com"

type DingTalkConfig struct {
	BaseURL   string
	AppKey    string
	AppSecret string
	// AllowedMobiles and AllowedEmails gate sign-in to known staff. Empty
	// lists admit everyone the tenant authenticates.
	AllowedMobiles []string
	AllowedEmails  []string
	HTTPClient     *http.Client
}

// DingTalkVerifier exchanges DingTalk authorization codes for user profiles
// over the tenant's open-platform API.
type DingTalkVerifier struct {
	baseURL    string
	appKey     string
	appSecret  string
	mobiles    map[string]struct{}
	emails     map[string]struct{}
	httpClient *http.Client
}

var _ ports.SSOVerifier = (*DingTalkVerifier)(nil)

func NewDingTalkVerifier(cfg DingTalkConfig) *DingTalkVerifier {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultDingTalkBaseURL
	}
	v := &DingTalkVerifier{
		baseURL:    baseURL,
		appKey:     cfg.AppKey,
		appSecret:  cfg.AppSecret,
		mobiles:    map[string]struct{}{},
		emails:     map[string]struct{}{},
		httpClient: httpClient,
	}
	for _, m := range cfg.AllowedMobiles {
		if m = strings.TrimSpace(m); m != "" {
			v.mobiles[m] = struct{}{}
		}
	}
	for _, e := range cfg.AllowedEmails {
		if e = strings.TrimSpace(strings.ToLower(e)); e != "" {
			v.emails[e] = struct{}{}
		}
	}
	return v
}

type dingTalkTokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Code         string `json:"code"`
	GrantType    string `json:"grantType"`
}

type dingTalkTokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpireIn    int64  `json:"expireIn"`
}

type dingTalkUserResponse struct {
	UnionID   string `json:"unionId"`
	OpenID    string `json:"openId"`
	Nick      string `json:"nick"`
	AvatarURL string `json:"avatarUrl"`
	Mobile    string `json:"mobile"`
	Email     string `json:"email"`
	StateCode string `json:"stateCode"`
}

// ExchangeCode trades a one-time authorization code for the signed-in user's
// profile and enforces the staff whitelist.
func (v *DingTalkVerifier) ExchangeCode(ctx context.Context, code string) (ports.SSOProfile, error) {
	token, err := v.userAccessToken(ctx, code)
	if err != nil {
		return ports.SSOProfile{}, err
	}

	user, err := v.userInfo(ctx, token)
	if err != nil {
		return ports.SSOProfile{}, err
	}

	profile := ports.SSOProfile{
		UnionID: user.UnionID,
		UserID:  user.OpenID,
		Nick:    user.Nick,
		Avatar:  user.AvatarURL,
		Mobile:  user.Mobile,
		Email:   user.Email,
	}
	if !v.allowed(profile) {
		return ports.SSOProfile{}, fmt.Errorf("account %q is not on the access list: %w", profile.Nick, domain.ErrNotWhitelisted)
	}
	return profile, nil
}

func (v *DingTalkVerifier) userAccessToken(ctx context.Context, code string) (string, error) {
	body, err := json.Marshal(dingTalkTokenRequest{
		ClientID:     v.appKey,
		ClientSecret: v.appSecret,
		Code:         code,
		GrantType:    "authorization_code",
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1.0/oauth2/userAccessToken", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var parsed dingTalkTokenResponse
	if err := v.do(req, &parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("empty user access token: %w", domain.ErrSSOExchange)
	}
	return parsed.AccessToken, nil
}

func (v *DingTalkVerifier) userInfo(ctx context.Context, accessToken string) (dingTalkUserResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/v1.0/contact/users/me", nil)
	if err != nil {
		return dingTalkUserResponse{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("x-acs-dingtalk-access-token", accessToken)

	var parsed dingTalkUserResponse
	if err := v.do(req, &parsed); err != nil {
		return dingTalkUserResponse{}, err
	}
	if parsed.UnionID == "" {
		return dingTalkUserResponse{}, fmt.Errorf("userinfo without union id: %w", domain.ErrSSOExchange)
	}
	return parsed, nil
}

func (v *DingTalkVerifier) do(req *http.Request, out any) error {
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalk request: %w", errors.Join(domain.ErrSSOExchange, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read dingtalk response: %w", errors.Join(domain.ErrSSOExchange, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dingtalk replied %d: %w", resp.StatusCode, domain.ErrSSOExchange)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode dingtalk response: %w", errors.Join(domain.ErrSSOExchange, err))
	}
	return nil
}

func (v *DingTalkVerifier) allowed(profile ports.SSOProfile) bool {
	if len(v.mobiles) == 0 && len(v.emails) == 0 {
		return true
	}
	if profile.Mobile != "" {
		if _, ok := v.mobiles[profile.Mobile]; ok {
			return true
		}
	}
	if profile.Email != "" {
		if _, ok := v.emails[strings.ToLower(profile.Email)]; ok {
			return true
		}
	}
	return false
}
