package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 512

// APIError is returned when the platform answers with an unexpected status.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Client struct {
	baseURL  string
	botToken string
	guildID  string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(baseURL, botToken, guildID string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		guildID:  guildID,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type messagePayload struct {
	Content string `json:"content"`
}

// SendDirectMessage posts text to the per-user endpoint the bot has always
// used, POST /users/{id}/messages. It does not open a DM channel first
// (POST /users/@me/channels then POST /channels/{id}/messages); callers treat
// a failure here as non-fatal.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) error {
	path := "/users/" + url.PathEscape(userID) + "/messages"
	err := c.call(ctx, http.MethodPost, path, messagePayload{Content: text}, http.StatusOK, http.StatusCreated)
	if err != nil {
		c.logger.Error("direct message failed", "user_id", userID, "error", err)
		return err
	}
	c.logger.Info("direct message sent", "user_id", userID)
	return nil
}

// GrantRole adds roleID to the guild member userID. The platform answers 204.
func (c *Client) GrantRole(ctx context.Context, userID, roleID string) error {
	path := fmt.Sprintf("/guilds/%s/members/%s/roles/%s",
		url.PathEscape(c.guildID), url.PathEscape(userID), url.PathEscape(roleID))
	err := c.call(ctx, http.MethodPut, path, nil, http.StatusNoContent)
	if err != nil {
		c.logger.Error("role grant failed", "user_id", userID, "role_id", roleID, "error", err)
		return err
	}
	c.logger.Info("role granted", "user_id", userID, "role_id", roleID)
	return nil
}

// RegisterCommands overwrites the guild's application commands.
func (c *Client) RegisterCommands(ctx context.Context, applicationID string, cmds []ApplicationCommand) error {
	path := fmt.Sprintf("/applications/%s/guilds/%s/commands",
		url.PathEscape(applicationID), url.PathEscape(c.guildID))
	return c.call(ctx, http.MethodPut, path, cmds, http.StatusOK)
}

func (c *Client) call(ctx context.Context, method, path string, payload any, okStatus ...int) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	for _, s := range okStatus {
		if resp.StatusCode == s {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(excerpt)}
}
