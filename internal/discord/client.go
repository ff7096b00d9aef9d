package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/parsascontentcorner/phoenix/internal/config"
	"github.com/parsascontentcorner/phoenix/internal/metrics"
	"github.com/parsascontentcorner/phoenix/internal/ratelimit"
)

const (
	userAgent           = "DiscordBot (https://github.com/parsascontentcorner/phoenix, 1.0)"
	maxRateLimitRetries = 3
)

// APIError is a non-2xx response from the Discord API
type APIError struct {
	Method     string `json:"-"`
	Route      string `json:"-"`
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API returned status %d on %s %s: %s (code %d)",
		e.StatusCode, e.Method, e.Route, e.Message, e.Code)
}

// IsNotFound reports whether err is a 404 from the Discord API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the Discord REST API with the bot token
type Client struct {
	applicationID snowflake.ID
	baseURL       string // Discord API base URL (configurable for testing)
	httpClient    *http.Client
	rateLimiter   *ratelimit.RateLimiter
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewClient creates a REST client authorized with the bot token
func NewClient(cfg *config.DiscordConfig, logger *zap.Logger) *Client {
	// Bot tokens use the "Bot" scheme, which oauth2 passes through from TokenType
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.BotToken,
		TokenType:   "Bot",
	})
	httpClient := oauth2.NewClient(context.Background(), tokenSource)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		applicationID: cfg.ApplicationID,
		baseURL:       cfg.APIBaseURL,
		httpClient:    httpClient,
		logger:        logger,
	}
}

// SetRateLimiter sets the rate limiter for the client
func (c *Client) SetRateLimiter(rl *ratelimit.RateLimiter) {
	c.rateLimiter = rl
}

// SetMetrics sets the collectors used to record request latency
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// SetBaseURL sets the base URL for the Discord API (used for testing)
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// request describes one REST call. route is the rate limit bucket key,
// path the concrete URL path.
type request struct {
	method string
	route  string
	path   string
	body   any
	files  []*File
	reason string
}

// do performs a rate-limited request, retrying on 429, and decodes the JSON response into out
func (c *Client) do(ctx context.Context, req request, out any) error {
	payload, contentType, err := encodeBody(req.body, req.files)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		retry, err := c.doOnce(ctx, req, payload, contentType, out)
		if !retry {
			return err
		}
		if attempt >= maxRateLimitRetries {
			return fmt.Errorf("rate limited by Discord API on %s %s", req.method, req.route)
		}
	}
}

func (c *Client) doOnce(ctx context.Context, req request, payload []byte, contentType string, out any) (bool, error) {
	// Wait for rate limit if limiter is set
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, req.route); err != nil {
			return false, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.reason != "" {
		httpReq.Header.Set("X-Audit-Log-Reason", url.PathEscape(req.reason))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRESTRequest(req.method, req.route, 0, time.Since(start))
		return false, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()
	c.metrics.ObserveRESTRequest(req.method, req.route, resp.StatusCode, time.Since(start))

	// Update rate limit info from headers
	if c.rateLimiter != nil {
		c.rateLimiter.UpdateFromHeaders(req.route, resp.Header)
	}

	// Handle rate limiting
	if resp.StatusCode == http.StatusTooManyRequests {
		if c.rateLimiter != nil {
			_ = c.rateLimiter.HandleRateLimitResponse(req.route, resp.Header)
			return true, nil
		}
		return false, fmt.Errorf("rate limited by Discord API on %s %s", req.method, req.route)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Method: req.method, Route: req.route, StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = string(raw)
		}
		return false, apiErr
	}

	c.logger.Debug("discord API request completed",
		zap.String("method", req.method),
		zap.String("route", req.route),
		zap.Int("status", resp.StatusCode),
	)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return false, nil
}

// encodeBody encodes body as JSON, or as multipart/form-data with a
// payload_json part when files are attached
func encodeBody(body any, files []*File) ([]byte, string, error) {
	if body == nil && len(files) == 0 {
		return nil, "", nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}
	if len(files) == 0 {
		return payload, "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	jsonPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="payload_json"`},
		"Content-Type":        {"application/json"},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create payload part: %w", err)
	}
	if _, err := jsonPart.Write(payload); err != nil {
		return nil, "", fmt.Errorf("failed to write payload part: %w", err)
	}

	for i, file := range files {
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {fmt.Sprintf(`form-data; name="files[%d]"; filename=%q`, i, file.Name)},
			"Content-Type":        {contentType},
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// CreateInteractionResponse sends the initial response to an interaction and marks it responded
func (c *Client) CreateInteractionResponse(ctx context.Context, i *Interaction, resp *InteractionResponse) error {
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/interactions/:id/:token/callback",
		path:   fmt.Sprintf("/interactions/%s/%s/callback", i.ID, i.Token),
		body:   resp,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create interaction response: %w", err)
	}

	i.MarkResponded()
	return nil
}

// CreateFollowupMessage sends an additional message for an already answered interaction
func (c *Client) CreateFollowupMessage(ctx context.Context, i *Interaction, msg *MessageSend) (*Message, error) {
	var out Message
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/webhooks/" + i.ApplicationID.String() + "/:token",
		path:   fmt.Sprintf("/webhooks/%s/%s", i.ApplicationID, i.Token),
		body:   msg,
		files:  msg.Files,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to create followup message: %w", err)
	}

	return &out, nil
}

// EditOriginalResponse edits the initial response of an interaction
func (c *Client) EditOriginalResponse(ctx context.Context, i *Interaction, edit *MessageEdit) (*Message, error) {
	var out Message
	err := c.do(ctx, request{
		method: http.MethodPatch,
		route:  "/webhooks/" + i.ApplicationID.String() + "/:token/messages/@original",
		path:   fmt.Sprintf("/webhooks/%s/%s/messages/@original", i.ApplicationID, i.Token),
		body:   edit,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to edit original response: %w", err)
	}

	return &out, nil
}

// CreateMessage posts a message to a channel
func (c *Client) CreateMessage(ctx context.Context, channelID snowflake.ID, msg *MessageSend) (*Message, error) {
	endpoint := "/channels/" + channelID.String() + "/messages"

	var out Message
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  endpoint,
		path:   endpoint,
		body:   msg,
		files:  msg.Files,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	c.logger.Debug("created message",
		zap.String("channel_id", channelID.String()),
		zap.String("message_id", out.ID.String()),
	)

	return &out, nil
}

// EditMessage edits a message the bot previously sent
func (c *Client) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, edit *MessageEdit) (*Message, error) {
	var out Message
	err := c.do(ctx, request{
		method: http.MethodPatch,
		route:  "/channels/" + channelID.String() + "/messages/:id",
		path:   "/channels/" + channelID.String() + "/messages/" + messageID.String(),
		body:   edit,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}

	return &out, nil
}

// GetMessage fetches one message of a channel
func (c *Client) GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (*Message, error) {
	var out Message
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/channels/" + channelID.String() + "/messages/:id",
		path:   "/channels/" + channelID.String() + "/messages/" + messageID.String(),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &out, nil
}

// GetMember fetches a guild member
func (c *Client) GetMember(ctx context.Context, guildID, userID snowflake.ID) (*Member, error) {
	var out Member
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/guilds/" + guildID.String() + "/members/:id",
		path:   "/guilds/" + guildID.String() + "/members/" + userID.String(),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &out, nil
}

// GetGuildRoles fetches all roles of a guild
func (c *Client) GetGuildRoles(ctx context.Context, guildID snowflake.ID) ([]*Role, error) {
	endpoint := "/guilds/" + guildID.String() + "/roles"

	var out []*Role
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  endpoint,
		path:   endpoint,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild roles: %w", err)
	}

	c.logger.Debug("fetched guild roles from Discord",
		zap.String("guild_id", guildID.String()),
		zap.Int("role_count", len(out)),
	)

	return out, nil
}

// AddMemberRole grants a role to a guild member
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	err := c.do(ctx, request{
		method: http.MethodPut,
		route:  "/guilds/" + guildID.String() + "/members/:id/roles/:id",
		path:   fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID),
		reason: reason,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to add member role: %w", err)
	}

	return nil
}

// RemoveMemberRole revokes a role from a guild member
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	err := c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/guilds/" + guildID.String() + "/members/:id/roles/:id",
		path:   fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID),
		reason: reason,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to remove member role: %w", err)
	}

	return nil
}

// BulkOverwriteCommands replaces the application's commands, globally when
// guildID is zero, otherwise for that guild only
func (c *Client) BulkOverwriteCommands(ctx context.Context, guildID snowflake.ID, commands []*ApplicationCommand) ([]*ApplicationCommand, error) {
	endpoint := "/applications/" + c.applicationID.String() + "/commands"
	if guildID != 0 {
		endpoint = "/applications/" + c.applicationID.String() + "/guilds/" + guildID.String() + "/commands"
	}

	if commands == nil {
		commands = []*ApplicationCommand{}
	}

	var out []*ApplicationCommand
	err := c.do(ctx, request{
		method: http.MethodPut,
		route:  endpoint,
		path:   endpoint,
		body:   commands,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to overwrite application commands: %w", err)
	}

	c.logger.Info("synced application commands",
		zap.String("guild_id", guildID.String()),
		zap.Int("command_count", len(out)),
	)

	return out, nil
}

// GetGatewayBot fetches the gateway URL and session start limits
func (c *Client) GetGatewayBot(ctx context.Context) (*GatewayBot, error) {
	var out GatewayBot
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  "/gateway/bot",
		path:   "/gateway/bot",
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway: %w", err)
	}

	return &out, nil
}
