// Package client talks to the certsvc REST API.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
)

var ErrUnauthorized = errors.New("no valid token, please login")

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// envelope mirrors the service response wrapper.
type envelope struct {
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return c.HTTPClient.Do(req)
}

// Request decodes the data field of the response into target.
func (c *Client) Request(method, path string, target interface{}) error {
	resp, err := c.do(method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && resp.Header.Get("Content-Type") != "application/json" {
		return ErrUnauthorized
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("unexpected response (%d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s (%d): %s", env.Message, resp.StatusCode, env.Error)
	}
	if target == nil {
		return nil
	}
	return json.Unmarshal(env.Data, target)
}

func (c *Client) Verify(id string) (*models.Verification, error) {
	var v models.Verification
	if err := c.Request(http.MethodGet, "/v1/verify/"+url.PathEscape(id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// BatchResultsCSV streams the results file of a batch to w.
func (c *Client) BatchResultsCSV(batchID string, w io.Writer) error {
	resp, err := c.do(http.MethodGet, "/v1/org/batches/"+url.PathEscape(batchID)+"/results.csv")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		var env envelope
		json.NewDecoder(resp.Body).Decode(&env)
		return fmt.Errorf("download failed (%d): %s", resp.StatusCode, env.Error)
	}

	_, err = io.Copy(w, resp.Body)
	return err
}
