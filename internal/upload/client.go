package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"

	"github.com/zodakzach/youtube-history-metrics/internal/models"
)

const (
	// DefaultEndpoint is the ingestion backend's load route.
	DefaultEndpoint = "http://localhost:8000/loadData"
	// FormField is the multipart field the backend reads the file from.
	FormField = "file_input"

	maxReceiptBytes = 1 << 20
)

// Uploader sends a selected file to the ingestion backend.
type Uploader interface {
	Upload(ctx context.Context, file *SelectedFile) (*models.Receipt, error)
}

// Client posts files as multipart/form-data. Cookies set by the backend are
// kept in the client's jar and sent with every later request, so the backend
// session survives across uploads.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client with its own cookie jar.
func NewClient(endpoint string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return NewClientWithHTTP(endpoint, &http.Client{Jar: jar})
}

// NewClientWithHTTP uses the given http.Client as is.
func NewClientWithHTTP(endpoint string, httpClient *http.Client) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing upload endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upload endpoint must be http or https: %s", endpoint)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   u.String(),
		httpClient: httpClient,
	}, nil
}

// Endpoint returns the configured target URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Cookies returns the cookies the jar would send to the endpoint.
func (c *Client) Cookies() []*http.Cookie {
	if c.httpClient.Jar == nil {
		return nil
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(u)
}

// SetCookies seeds the jar, for example with cookies relayed from a browser.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if c.httpClient.Jar == nil || len(cookies) == 0 {
		return
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return
	}
	c.httpClient.Jar.SetCookies(u, cookies)
}

// Upload streams the file to the endpoint in a single attempt.
// A non-2xx answer yields *RejectedError; transport failures are returned unwrapped.
func (c *Client) Upload(ctx context.Context, file *SelectedFile) (*models.Receipt, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer src.Close()

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
			"name":     FormField,
			"filename": file.Name(),
		}))
		header.Set("Content-Type", file.ContentType())

		part, err := mw.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json, text/html;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxReceiptBytes))
		return nil, &RejectedError{StatusCode: resp.StatusCode}
	}

	return readReceipt(resp), nil
}

// readReceipt decodes the JSON body of a successful load. The HTML flavour of
// the backend answers with a fragment instead, which yields nil.
func readReceipt(resp *http.Response) *models.Receipt {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxReceiptBytes))
		return nil
	}

	var receipt models.Receipt
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReceiptBytes)).Decode(&receipt); err != nil {
		return nil
	}
	return &receipt
}
