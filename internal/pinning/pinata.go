// Package pinning stores certificate documents on IPFS through the Pinata API and
// reads them back through the configured gateway.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	APIUrl = "https://api.pinata.cloud"

	// MaxDocumentSize bounds what Fetch reads from the gateway.
	MaxDocumentSize = 5 << 20
)

var (
	ErrMissingCredentials = errors.New("pinata jwt and gateway must be configured")
	ErrNotFound           = errors.New("not found")
	ErrTooLarge           = errors.New("document exceeds size limit")
)

type Option func(*Client)

func WithAPIURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.APIURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

type Client struct {
	APIURL     string
	JWT        string
	Gateway    string // host only, e.g. "my.mypinata.cloud"
	HTTPClient *http.Client
}

type pinResponse struct {
	IpfsHash  string          `json:"IpfsHash"`
	PinSize   int64           `json:"PinSize"`
	Timestamp string          `json:"Timestamp"`
	Error     json.RawMessage `json:"error,omitempty"`
}

func NewClient(jwt, gateway string, opts ...Option) *Client {
	c := &Client{
		APIURL:     APIUrl,
		JWT:        strings.TrimSpace(jwt),
		Gateway:    strings.TrimSpace(gateway),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PinFile uploads content and returns "ipfs://<cid>".
func (c *Client) PinFile(ctx context.Context, name string, content []byte) (string, error) {
	if c.JWT == "" || c.Gateway == "" {
		return "", ErrMissingCredentials
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(content); err != nil {
		return "", err
	}

	meta, _ := json.Marshal(map[string]string{"name": name})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", err
	}
	if err := mw.WriteField("pinataOptions", `{"cidVersion":1}`); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+"/pinning/pinFileToIPFS", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.JWT)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinata upload: %w", err)
	}
	defer resp.Body.Close()

	var pr pinResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&pr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("pinata upload failed (%d): %s", resp.StatusCode, errorReason(pr.Error))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode pinata response: %w", decodeErr)
	}
	if pr.IpfsHash == "" {
		return "", errors.New("pinata response has no IpfsHash")
	}

	return "ipfs://" + pr.IpfsHash, nil
}

// errorReason handles both {"error":{"reason":...}} and {"error":"..."}.
func errorReason(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "pinata error"
	}

	var obj struct {
		Reason  string `json:"reason"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Reason != "" {
		return obj.Reason
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	return "pinata error"
}

// CID strips the ipfs:// scheme.
func CID(ipfsRef string) string {
	return strings.TrimPrefix(ipfsRef, "ipfs://")
}

func (c *Client) GatewayURL(ipfsRef string) string {
	gw := c.Gateway
	if gw == "" {
		gw = "gateway.pinata.cloud"
	}
	if !strings.HasPrefix(gw, "http://") && !strings.HasPrefix(gw, "https://") {
		gw = "https://" + gw
	}
	return strings.TrimRight(gw, "/") + "/ipfs/" + CID(ipfsRef)
}

// Fetch downloads a pinned document through the gateway.
func (c *Client) Fetch(ctx context.Context, ipfsRef string) ([]byte, error) {
	if CID(ipfsRef) == "" {
		return nil, ErrNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL(ipfsRef), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway fetch: HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxDocumentSize {
		return nil, ErrTooLarge
	}
	return b, nil
}
