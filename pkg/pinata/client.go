// Package pinata pins files and JSON documents to IPFS through the Pinata API
// and reads them back through the Pinata gateway.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud/ipfs"

	authOKMessage = "Congratulations! You are communicating with the Pinata API!"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinata %s failed: %d %s", e.Op, e.StatusCode, e.Body)
}

type Client struct {
	jwt        string
	apiURL     string
	gatewayURL string
	http       *http.Client
	cache      Cache
	log        *zap.Logger
	now        func() time.Time
}

type Option func(*Client)

func WithCache(c Cache) Option { return func(cl *Client) { cl.cache = c } }

func WithHTTPClient(h *http.Client) Option { return func(cl *Client) { cl.http = h } }

func WithLogger(l *zap.Logger) Option { return func(cl *Client) { cl.log = l } }

func New(jwt, apiURL, gatewayURL string, opts ...Option) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}
	c := &Client{
		jwt:        jwt,
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		http:       &http.Client{Timeout: 60 * time.Second},
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type PinResponse struct {
	IpfsHash    string `json:"IpfsHash"`
	PinSize     int64  `json:"PinSize"`
	Timestamp   string `json:"Timestamp"`
	IsDuplicate bool   `json:"isDuplicate,omitempty"`
}

// FileMetadata is attached to a pinned file as Pinata key-values.
type FileMetadata struct {
	Name        string
	Description string
	Course      string
	Professor   string
	Topic       string
	ContentType string
	Size        int64
}

type pinataMetadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues"`
}

// PinFile uploads content as a single file.
func (c *Client) PinFile(ctx context.Context, fileName string, content io.Reader, meta FileMetadata) (*PinResponse, error) {
	name := meta.Name
	if name == "" {
		name = fileName
	}
	md, err := json.Marshal(pinataMetadata{Name: name, KeyValues: map[string]string{
		"description": meta.Description,
		"course":      meta.Course,
		"professor":   meta.Professor,
		"topic":       meta.Topic,
		"uploadedAt":  c.now().UTC().Format(time.RFC3339),
		"fileType":    meta.ContentType,
		"fileSize":    strconv.FormatInt(meta.Size, 10),
	}})
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("pinata: read upload: %w", err)
	}
	_ = mw.WriteField("pinataMetadata", string(md))
	_ = mw.WriteField("pinataOptions", `{"cidVersion":1,"wrapWithDirectory":false}`)
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out PinResponse
	if err := c.do(ctx, "pin file", http.MethodPost, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	c.log.Info("pinned file", zap.String("cid", out.IpfsHash), zap.Int64("size", out.PinSize), zap.Bool("duplicate", out.IsDuplicate))
	return &out, nil
}

// PinJSON uploads v as a JSON document.
func (c *Client) PinJSON(ctx context.Context, v interface{}, name, description string) (*PinResponse, error) {
	if name == "" {
		name = "CampusConnect Data"
	}
	payload, err := json.Marshal(map[string]interface{}{
		"pinataContent": v,
		"pinataMetadata": pinataMetadata{Name: name, KeyValues: map[string]string{
			"description": description,
			"uploadedAt":  c.now().UTC().Format(time.RFC3339),
			"dataType":    "json",
		}},
		"pinataOptions": map[string]int{"cidVersion": 1},
	})
	if err != nil {
		return nil, err
	}
	var out PinResponse
	if err := c.do(ctx, "pin json", http.MethodPost, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FileURL is the public gateway URL for cid.
func (c *Client) FileURL(cid string) string {
	return c.gatewayURL + "/" + cid
}

// GetFile downloads cid from the gateway.
func (c *Client) GetFile(ctx context.Context, cid string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(cid), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinata get %s: %w", cid, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "get file", StatusCode: resp.StatusCode, Body: string(b)}
	}
	return b, nil
}

// GetJSON fetches cid from the gateway and decodes it into out, going through
// the cache when one is configured.
func (c *Client) GetJSON(ctx context.Context, cid string, out interface{}) error {
	if c.cache != nil {
		if b, ok, err := c.cache.Get(ctx, cid); err != nil {
			c.log.Warn("ipfs cache read failed", zap.String("cid", cid), zap.Error(err))
		} else if ok {
			return json.Unmarshal(b, out)
		}
	}
	b, err := c.GetFile(ctx, cid)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("pinata get %s: %w", cid, err)
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, cid, b); err != nil {
			c.log.Warn("ipfs cache write failed", zap.String("cid", cid), zap.Error(err))
		}
	}
	return nil
}

type PinFilter struct {
	Status     string // pinned or unpinned
	PageLimit  int
	PageOffset int
	KeyValues  map[string]string
}

type PinRow struct {
	ID           string     `json:"id"`
	IpfsPinHash  string     `json:"ipfs_pin_hash"`
	Size         int64      `json:"size"`
	UserID       string     `json:"user_id"`
	DatePinned   string     `json:"date_pinned"`
	DateUnpinned *string    `json:"date_unpinned"`
	Metadata     PinRowMeta `json:"metadata"`
}

type PinRowMeta struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues"`
}

type PinList struct {
	Count int      `json:"count"`
	Rows  []PinRow `json:"rows"`
}

func (c *Client) ListPins(ctx context.Context, f PinFilter) (*PinList, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.PageLimit > 0 {
		q.Set("pageLimit", strconv.Itoa(f.PageLimit))
	}
	if f.PageOffset > 0 {
		q.Set("pageOffset", strconv.Itoa(f.PageOffset))
	}
	for k, v := range f.KeyValues {
		q.Set("metadata[keyvalues]["+k+"]", v)
	}
	path := "/data/pinList"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out PinList
	if err := c.do(ctx, "list pins", http.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Unpin(ctx context.Context, cid string) error {
	return c.do(ctx, "unpin", http.MethodDelete, "/pinning/unpin/"+url.PathEscape(cid), "", nil, nil)
}

type Usage struct {
	PinCount                     int64 `json:"pin_count"`
	PinSizeTotal                 int64 `json:"pin_size_total"`
	PinSizeWithReplicationsTotal int64 `json:"pin_size_with_replications_total"`
}

func (c *Client) Usage(ctx context.Context) (*Usage, error) {
	var out Usage
	if err := c.do(ctx, "usage", http.MethodGet, "/data/userPinnedDataTotal", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TestAuthentication reports whether the configured JWT is accepted.
func (c *Client) TestAuthentication(ctx context.Context) bool {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, "test authentication", http.MethodGet, "/data/testAuthentication", "", nil, &out); err != nil {
		c.log.Warn("pinata authentication failed", zap.Error(err))
		return false
	}
	return out.Message == authOKMessage
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinata %s: %w", op, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("pinata %s: %w", op, err)
	}
	return nil
}
