package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	datastoreScope = "https://www.googleapis.com/auth/datastore https://www.googleapis.com/auth/cloud-platform"

	assertionLifetime = time.Hour
	// Tokens are reused until five minutes before expiry, i.e. about 55 minutes.
	tokenEarlyExpiry = 5 * time.Minute
)

// ServiceAccount holds the fields of a Google service-account key used to sign assertions.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	ProjectID   string `json:"project_id"`
}

// ParseServiceAccount decodes a service-account JSON key.
func ParseServiceAccount(raw string) (ServiceAccount, error) {
	var sa ServiceAccount
	if strings.TrimSpace(raw) == "" {
		return sa, errors.New("service account secret is empty")
	}
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return sa, fmt.Errorf("invalid service account json: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return sa, errors.New("service account requires client_email and private_key")
	}
	return sa, nil
}

type assertionTokenSource struct {
	ctx      context.Context
	account  ServiceAccount
	tokenURL string
	client   *http.Client
	now      func() time.Time
}

// NewTokenSource returns a cached token source that exchanges RS256-signed JWT assertions
// for access tokens at tokenURL.
func NewTokenSource(ctx context.Context, account ServiceAccount, tokenURL string, client *http.Client) oauth2.TokenSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	src := &assertionTokenSource{
		ctx:      ctx,
		account:  account,
		tokenURL: tokenURL,
		client:   client,
		now:      time.Now,
	}
	return oauth2.ReuseTokenSourceWithExpiry(nil, src, tokenEarlyExpiry)
}

func (s *assertionTokenSource) Token() (*oauth2.Token, error) {
	assertion, err := s.signAssertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &oauth2.RetrieveError{Response: resp, Body: body}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access_token")
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = int64(assertionLifetime / time.Second)
	}
	if payload.TokenType == "" {
		payload.TokenType = "Bearer"
	}

	return &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		Expiry:      s.now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

func (s *assertionTokenSource) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(s.account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse service account key: %w", err)
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.account.ClientEmail,
		"scope": datastoreScope,
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}
