// Package platform is the thin REST client for the community platform
// gateway. It only knows how to list guilds and fetch a guild's current
// invites; everything else arrives as webhook notifications.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"invitetrack/entity"
	"invitetrack/internal/config"
	"invitetrack/lib/sl"
)

type Client struct {
	hc      *http.Client
	baseURL string
	token   string
	log     *slog.Logger
}

func NewClient(cfg config.PlatformConfig, logger *slog.Logger) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: cfg.BaseUrl,
		token:   cfg.Token,
		log:     logger.With(sl.Module("platform")),
	}
}

type guildInfo struct {
	ID string `json:"id"`
}

func (c *Client) FetchGuilds(ctx context.Context) ([]string, error) {
	body, err := c.request(ctx, "/guilds")
	if err != nil {
		return nil, err
	}
	var guilds []guildInfo
	if err = json.Unmarshal(body, &guilds); err != nil {
		return nil, fmt.Errorf("decode guilds: %w", err)
	}
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		ids = append(ids, g.ID)
	}
	return ids, nil
}

func (c *Client) FetchGuildInvites(ctx context.Context, guildID string) ([]entity.InviteSnapshot, error) {
	body, err := c.request(ctx, fmt.Sprintf("/guilds/%s/invites", guildID))
	if err != nil {
		return nil, err
	}
	var snapshots []entity.InviteSnapshot
	if err = json.Unmarshal(body, &snapshots); err != nil {
		return nil, fmt.Errorf("decode invites: %w", err)
	}
	for i := range snapshots {
		snapshots[i].GuildID = guildID
	}
	return snapshots, nil
}

func (c *Client) request(ctx context.Context, path string) ([]byte, error) {
	log := c.log.With(slog.String("path", path))

	status := "ERROR"
	t1 := time.Now()
	defer func() {
		log.Debug("gateway request completed",
			slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))),
			slog.String("status", status))
	}()

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway status %d: %s", resp.StatusCode, string(body))
	}
	status = "OK"
	return body, nil
}
