package rclone

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/uploadop/uploadop/internal/logging"
)

const rcRequestTimeout = 5 * time.Second

// RC is the transfer tool's remote-control HTTP endpoint. It implements throttle.RCClient and also serves the
// stats poller.
type RC struct {
	baseURL string
	http    *retryablehttp.Client
}

type quietRCLogger struct{ log *logging.Logger }

func (l *quietRCLogger) Error(msg string, kv ...interface{}) { l.log.Warn().Interface("kv", kv).Msg(msg) }
func (l *quietRCLogger) Info(msg string, kv ...interface{})  {}
func (l *quietRCLogger) Debug(msg string, kv ...interface{}) {}
func (l *quietRCLogger) Warn(msg string, kv ...interface{})  {}

// NewRC builds an RC client against baseURL (e.g. "http://localhost:5572").
func NewRC(baseURL string, log *logging.Logger) *RC {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &nethttp.Client{Timeout: rcRequestTimeout}
	retryClient.RetryMax = 1
	retryClient.Logger = &quietRCLogger{log: log}
	return &RC{baseURL: baseURL, http: retryClient}
}

func (r *RC) post(ctx context.Context, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodPost, r.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Throttle issues `/core/bwlimit` with the given rate.
func (r *RC) Throttle(ctx context.Context, speed string) error {
	return r.post(ctx, "/core/bwlimit", map[string]string{"rate": speed}, nil)
}

// NoThrottle clears the bandwidth limit (rate "off").
func (r *RC) NoThrottle(ctx context.Context) error {
	return r.post(ctx, "/core/bwlimit", map[string]string{"rate": "off"}, nil)
}

type bwlimitResponse struct {
	Rate string `json:"rate"`
}

// ThrottleActive reports whether the tool currently has a bandwidth limit
// applied, by re-reading its bwlimit state.
func (r *RC) ThrottleActive(ctx context.Context) (bool, error) {
	var out bwlimitResponse
	if err := r.post(ctx, "/core/bwlimit", nil, &out); err != nil {
		return false, err
	}
	return out.Rate != "" && out.Rate != "off", nil
}

// StatsSnapshot is the subset of `/core/stats` the completion parser
// consults for byte counts.
type StatsSnapshot struct {
	Transferring []TransferStat `json:"transferring"`
}

// TransferStat is one in-flight transfer reported by the tool.
type TransferStat struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	SpeedAvg float64 `json:"speedAvg"`
	SrcFs    string  `json:"srcFs"`
	DstFs    string  `json:"dstFs"`
}

// Stats fetches `/core/stats`.
func (r *RC) Stats(ctx context.Context) (StatsSnapshot, error) {
	var out StatsSnapshot
	err := r.post(ctx, "/core/stats", nil, &out)
	return out, err
}
