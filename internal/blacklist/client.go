// Package blacklist looks up identities against the Adjutor karma service.
package blacklist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sixwallet/internal/models"

	"github.com/google/uuid"
)

type LogStore interface {
	InsertBlacklistLog(ctx context.Context, entry *models.BlacklistLog) error
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	store   LogStore
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey string, store LogStore, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
		logger:  logger,
	}
}

// Check reports whether the identity is blacklisted. Without API
// credentials it falls back to a dev-mode match; lookup failures report
// not-blacklisted so registration is never blocked by the side service.
func (c *Client) Check(ctx context.Context, identityType, identityValue string) (bool, error) {
	if c.baseURL == "" || c.apiKey == "" {
		c.logger.Info("Blacklist check running in dev mode",
			slog.String("identity_type", identityType),
			slog.String("identity_value", identityValue),
		)
		return strings.Contains(identityValue, "blacklisted"), nil
	}

	payload, err := json.Marshal(map[string]string{
		"identityType":  identityType,
		"identityValue": identityValue,
	})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/karma/lookup", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Blacklist lookup failed", slog.Any("err", err))
		return false, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Blacklist lookup failed",
			slog.Any("err", fmt.Errorf("adjutor api status %d", resp.StatusCode)),
		)
		return false, nil
	}

	var out struct {
		Blacklisted bool `json:"blacklisted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn("Blacklist response decode failed", slog.Any("err", err))
		return false, nil
	}

	if c.store != nil {
		_ = c.store.InsertBlacklistLog(ctx, &models.BlacklistLog{
			ID:            uuid.New(),
			IdentityType:  identityType,
			IdentityValue: identityValue,
			IsBlacklisted: out.Blacklisted,
		})
	}
	return out.Blacklisted, nil
}
