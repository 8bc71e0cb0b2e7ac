// Package feeder implements the client side of the feeder gateway: raw
// payload fetches for blocks, state updates and class definitions.
package feeder

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/NethermindEth/feedermirror/utils"
)

type Client struct {
	url        string
	client     *http.Client
	retryDelay time.Duration
	log        utils.SimpleLogger
	userAgent  string
	apiKey     string
	listener   EventListener
}

func NewClient(clientURL string) *Client {
	return &Client{
		url:        clientURL,
		client:     http.DefaultClient,
		retryDelay: 5 * time.Second,
		log:        utils.NewNopZapLogger(),
		listener:   &SelectiveListener{},
	}
}

// WithListener registers an EventListener
func (c *Client) WithListener(l EventListener) *Client {
	c.listener = l
	return c
}

// WithRetryDelay sets how long the client sleeps before retrying a
// rate-limited request
func (c *Client) WithRetryDelay(d time.Duration) *Client {
	c.retryDelay = d
	return c
}

func (c *Client) WithLogger(log utils.SimpleLogger) *Client {
	c.log = log
	return c
}

func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

func (c *Client) WithAPIKey(key string) *Client {
	c.apiKey = key
	return c
}

func (c *Client) buildQueryString(endpoint string, args map[string]string) string {
	base, err := url.Parse(c.url)
	if err != nil {
		panic("malformed feeder base URL")
	}

	base.Path += "/feeder_gateway/" + endpoint

	params := url.Values{}
	for k, v := range args {
		params.Add(k, v)
	}
	base.RawQuery = params.Encode()

	return base.String()
}

// get performs a "GET" http request with the given URL and returns the raw
// response body. A 429 response sleeps a fixed delay and retries the same
// request for as long as the context allows; being rate limited is not an
// error. Any other non-200 status or a transport failure is returned to the
// caller, which owns the retry decision.
func (c *Client) get(ctx context.Context, queryURL string) ([]byte, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, http.NoBody)
		if err != nil {
			return nil, err
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		if c.apiKey != "" {
			req.Header.Set("X-Throttling-Bypass", c.apiKey)
		}

		reqTimer := time.Now()
		res, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		c.listener.OnResponse(req.URL.Path, res.StatusCode, time.Since(reqTimer))

		if res.StatusCode == http.StatusTooManyRequests {
			res.Body.Close()
			c.log.Debugw("Rate limited by the feeder, waiting before retry",
				"url", req.URL.String(), "delay", c.retryDelay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
				continue
			}
		}

		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			return nil, errors.New(res.Status)
		}

		body, err := io.ReadAll(res.Body)
		return body, errors.Join(err, res.Body.Close())
	}
}

// Block fetches the verbatim body of get_block for the given block number
func (c *Client) Block(ctx context.Context, blockNumber uint64) ([]byte, error) {
	queryURL := c.buildQueryString("get_block", map[string]string{
		"blockNumber": strconv.FormatUint(blockNumber, 10),
	})
	return c.get(ctx, queryURL)
}

// StateUpdate fetches the verbatim body of get_state_update for the given
// block number
func (c *Client) StateUpdate(ctx context.Context, blockNumber uint64) ([]byte, error) {
	queryURL := c.buildQueryString("get_state_update", map[string]string{
		"blockNumber": strconv.FormatUint(blockNumber, 10),
	})
	return c.get(ctx, queryURL)
}

// ClassDefinition fetches the verbatim body of get_class_by_hash for the
// given class hash, passed through unmodified
func (c *Client) ClassDefinition(ctx context.Context, classHash string) ([]byte, error) {
	queryURL := c.buildQueryString("get_class_by_hash", map[string]string{
		"classHash": classHash,
	})
	return c.get(ctx, queryURL)
}
