package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"CorpusHarvester/internal/identity"
)

// Client wraps an HTTP client with identity rotation. Every page fetch
// goes out under a freshly rotated identity.
type Client struct {
	http    *http.Client
	rotator *identity.Rotator
}

func NewClient(timeout time.Duration, rotator *identity.Rotator) *Client {
	if rotator == nil {
		rotator = identity.NewRotator()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		rotator: rotator,
	}
}

// GetDocument fetches and parses an HTML page, decoding the body through
// its declared charset. Journal issues from the 1950s are not reliably
// UTF-8.
func (c *Client) GetDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.rotator.Rotate().Apply(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", pageURL, resp.Status)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Do executes a prepared request through the underlying client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Rotate advances the client identity and returns it.
func (c *Client) Rotate() identity.Identity {
	return c.rotator.Rotate()
}
