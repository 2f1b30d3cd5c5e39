// Package mediaserver polls a Plex-compatible media server for active
// playback sessions, the input the throttle monitor counts against its
// threshold.
package mediaserver

import (
	"context"
	"encoding/xml"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/uploadop/uploadop/internal/logging"
)

const requestTimeout = 5 * time.Second

// retryLogger silences retryablehttp's default chatter except errors, which
// it logs as warnings.
type retryLogger struct {
	log *logging.Logger
}

func (l *retryLogger) Error(msg string, kv ...interface{}) { l.log.Warn().Interface("kv", kv).Msg(msg) }
func (l *retryLogger) Info(msg string, kv ...interface{})  {}
func (l *retryLogger) Debug(msg string, kv ...interface{}) {}
func (l *retryLogger) Warn(msg string, kv ...interface{})  {}

// Stream is one active playback session.
type Stream struct {
	State   string // "playing", "buffering", "paused", ...
	Local   bool
}

// Client queries a media server's active-session endpoint.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

// New builds a client for baseURL, authenticating with token.
func New(baseURL, token string, log *logging.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &nethttp.Client{Timeout: requestTimeout}
	retryClient.RetryMax = 1
	retryClient.Logger = &retryLogger{log: log}

	return &Client{baseURL: baseURL, token: token, http: retryClient}
}

// Validate performs a lightweight reachability check, returning an error if
// the media server or token is unusable.
func (c *Client) Validate(ctx context.Context) error {
	_, err := c.ActiveStreams(ctx)
	return err
}

type sessionContainer struct {
	XMLName xml.Name `xml:"MediaContainer"`
	Videos  []struct {
		State  string `xml:"state,attr"`
		Player struct {
			Address string `xml:"address,attr"`
			Local   string `xml:"local,attr"`
		} `xml:"Player"`
	} `xml:"Video"`
}

// ActiveStreams fetches the current session list from the media server.
func (c *Client) ActiveStreams(ctx context.Context) ([]Stream, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, c.baseURL+"/status/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("build sessions request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, fmt.Errorf("sessions request returned %s", resp.Status)
	}

	var container sessionContainer
	if err := xml.NewDecoder(resp.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}

	streams := make([]Stream, 0, len(container.Videos))
	for _, v := range container.Videos {
		streams = append(streams, Stream{State: v.State, Local: v.Player.Local == "1"})
	}
	return streams, nil
}

// CountActive counts streams in {playing, buffering}, optionally excluding
// local ones.
func CountActive(streams []Stream, ignoreLocal bool) int {
	count := 0
	for _, s := range streams {
		if s.State != "playing" && s.State != "buffering" {
			continue
		}
		if ignoreLocal && s.Local {
			continue
		}
		count++
	}
	return count
}
