package bili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL = "https://api.bilibili.com"

	trendingPath = "/x/web-interface/popular"
	recentPath   = "/x/web-interface/newlist"
	statPath     = "/x/web-interface/archive/stat"

	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
	refererHeader = "https://www.bilibili.com/"

	defaultTimeout       = 20 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = 800 * time.Millisecond
)

// ErrSkip marks upstream responses that callers should skip without
// treating as fatal: non-zero API codes, 404s, malformed payloads, and
// exhausted retries all wrap it.
var ErrSkip = errors.New("skip upstream response")

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithUserAgent overrides the browser-like User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxRetries bounds the retry budget for retryable status codes.
func WithMaxRetries(n uint64) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryInterval sets the initial backoff interval (useful for testing).
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryInterval = d
	}
}

// Client is a bilibili web API client.
type Client struct {
	baseURL       string
	httpClient    HTTPClient
	userAgent     string
	maxRetries    uint64
	retryInterval time.Duration
}

// NewClient creates a client with the default endpoint and retry policy.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		userAgent:     defaultUserAgent,
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Trending fetches one page of the "currently popular" feed. An empty Items
// slice with a nil error means the feed is exhausted.
func (c *Client) Trending(ctx context.Context, page, pageSize int) (*TrendingPage, error) {
	query := url.Values{}
	query.Set("pn", strconv.Itoa(page))
	query.Set("ps", strconv.Itoa(pageSize))

	data, raw, err := c.getData(ctx, trendingPath, query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		List []wireItem `json:"list"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed trending data: %v", ErrSkip, err)
	}

	items := make([]Item, 0, len(payload.List))
	for _, it := range payload.List {
		items = append(items, it.toItem())
	}
	return &TrendingPage{Items: items, Raw: raw}, nil
}

// RecentByCategory fetches one page of a category's recent-upload feed.
// The item container key varies across deployments ("archives" or "list"),
// so both are accepted.
func (c *Client) RecentByCategory(ctx context.Context, categoryID int64, page, pageSize int) ([]Item, error) {
	query := url.Values{}
	query.Set("rid", strconv.FormatInt(categoryID, 10))
	query.Set("pn", strconv.Itoa(page))
	query.Set("ps", strconv.Itoa(pageSize))

	data, _, err := c.getData(ctx, recentPath, query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Archives []wireItem `json:"archives"`
		List     []wireItem `json:"list"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed recent-upload data: %v", ErrSkip, err)
	}

	wire := payload.Archives
	if len(wire) == 0 {
		wire = payload.List
	}
	items := make([]Item, 0, len(wire))
	for _, it := range wire {
		items = append(items, it.toItem())
	}
	return items, nil
}

// Stats fetches the current engagement counters for one video. The numeric
// aid is preferred; bvid is the fallback.
func (c *Client) Stats(ctx context.Context, aid int64, bvid string) (*Stat, error) {
	query := url.Values{}
	switch {
	case aid > 0:
		query.Set("aid", strconv.FormatInt(aid, 10))
	case bvid != "":
		query.Set("bvid", bvid)
	default:
		return nil, fmt.Errorf("%w: no video identifier", ErrSkip)
	}

	data, _, err := c.getData(ctx, statPath, query)
	if err != nil {
		return nil, err
	}

	var ws wireStat
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: malformed stat data: %v", ErrSkip, err)
	}
	stat := ws.toStat()
	return &stat, nil
}

// getData performs a GET with the retry policy and unwraps the response
// envelope. Only {429, 500, 502, 503, 504} are retried; every other failure
// is surfaced immediately as a skip.
func (c *Client) getData(ctx context.Context, path string, query url.Values) (json.RawMessage, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("Referer", refererHeader)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: request failed: %v", ErrSkip, err))
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: failed to read response: %v", ErrSkip, err))
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body = b
			return nil
		case http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: no data (404)", ErrSkip))
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return fmt.Errorf("upstream status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%w: unexpected status %d", ErrSkip, resp.StatusCode))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, ErrSkip) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: retries exhausted: %v", ErrSkip, err)
	}

	var env struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: malformed response: %v", ErrSkip, err)
	}
	if env.Code != 0 {
		return nil, nil, fmt.Errorf("%w: upstream code %d (%s)", ErrSkip, env.Code, env.Message)
	}
	return env.Data, body, nil
}

// Wire types (private - implementation detail). The feeds disagree on a few
// field names; toItem folds the fallbacks.

type wireItem struct {
	Bvid    string `json:"bvid"`
	Aid     int64  `json:"aid"`
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Tid     *int64 `json:"tid"`
	Tname   string `json:"tname"`
	Pubdate int64  `json:"pubdate"`
	Ctime   int64  `json:"ctime"`
	Mid     int64  `json:"mid"`
	Author  string `json:"author"`
	Owner   struct {
		Mid  int64  `json:"mid"`
		Name string `json:"name"`
	} `json:"owner"`
	Stat *wireStat `json:"stat"`
}

func (w wireItem) toItem() Item {
	item := Item{
		Bvid:    w.Bvid,
		Aid:     w.Aid,
		Title:   w.Title,
		Tid:     w.Tid,
		Tname:   w.Tname,
		Pubdate: w.Pubdate,
		Owner:   Owner{Mid: w.Owner.Mid, Name: w.Owner.Name},
	}
	if item.Aid == 0 {
		item.Aid = w.ID
	}
	if item.Pubdate == 0 {
		item.Pubdate = w.Ctime
	}
	if item.Owner.Mid == 0 {
		item.Owner.Mid = w.Mid
	}
	if item.Owner.Name == "" {
		item.Owner.Name = w.Author
	}
	if w.Stat != nil {
		stat := w.Stat.toStat()
		item.Stat = &stat
	}
	return item
}

type wireStat struct {
	View     int64  `json:"view"`
	Like     int64  `json:"like"`
	Coin     int64  `json:"coin"`
	Favorite *int64 `json:"favorite"`
	Reply    *int64 `json:"reply"`
	Danmaku  *int64 `json:"danmaku"`
	Share    *int64 `json:"share"`
}

func (w wireStat) toStat() Stat {
	return Stat{
		View:     w.View,
		Like:     w.Like,
		Coin:     w.Coin,
		Favorite: w.Favorite,
		Reply:    w.Reply,
		Danmaku:  w.Danmaku,
		Share:    w.Share,
	}
}
