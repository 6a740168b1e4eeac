package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/helmdeck/notify-agent/pkg/config"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/models"
)

// Fetcher is the preference service seam.
type Fetcher interface {
	Fetch(ctx context.Context, userID string) (models.UserPreferences, error)
	Persist(ctx context.Context, userID string, patch models.PreferencesPatch) (models.UserPreferences, error)
}

// HTTPClient talks to the preference service over its request-reply API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a preference service client.
func NewHTTPClient(cfg config.PrefsConfig) (*HTTPClient, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("preference service base url required")
	}
	return &HTTPClient{
		baseURL: base,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

type preferencesEnvelope struct {
	Data models.UserPreferences `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch loads the user's preferences.
func (c *HTTPClient) Fetch(ctx context.Context, userID string) (models.UserPreferences, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.preferencesURL(userID), nil)
	if err != nil {
		return models.UserPreferences{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building preferences request")
	}
	return c.do(req)
}

// Persist applies a partial update and returns the merged, stored copy.
func (c *HTTPClient) Persist(ctx context.Context, userID string, patch models.PreferencesPatch) (models.UserPreferences, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return models.UserPreferences{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding preferences patch")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.preferencesURL(userID), bytes.NewReader(body))
	if err != nil {
		return models.UserPreferences{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building preferences request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) preferencesURL(userID string) string {
	return fmt.Sprintf("%s/api/v1/users/%s/preferences", c.baseURL, userID)
}

func (c *HTTPClient) do(req *http.Request) (models.UserPreferences, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return models.UserPreferences{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "preference service unreachable")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.UserPreferences{}, c.errorFromStatus(resp)
	}

	var envelope preferencesEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return models.UserPreferences{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding preferences response")
	}
	return envelope.Data, nil
}

func (c *HTTPClient) errorFromStatus(resp *http.Response) error {
	message := fmt.Sprintf("preference service returned %d", resp.StatusCode)
	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return pkgerrors.New(pkgerrors.CodeValidation, message)
	case resp.StatusCode == http.StatusUnauthorized:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, message)
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	case resp.StatusCode == http.StatusConflict:
		return pkgerrors.New(pkgerrors.CodeConflict, message)
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, message)
	}
}
