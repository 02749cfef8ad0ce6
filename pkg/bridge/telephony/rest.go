package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultAPIBaseURL = "https://api.twilio.com"

// RestClient originates outbound calls through the carrier's REST API.
type RestClient struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// NewRestClient builds a call-origination client. baseURL and httpClient may
// be zero values; the production endpoint and http.DefaultClient are used.
func NewRestClient(accountSID, authToken, fromNumber, baseURL string, httpClient *http.Client) *RestClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultAPIBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RestClient{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		fromNumber: strings.TrimSpace(fromNumber),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *RestClient) Configured() bool {
	return c != nil && c.accountSID != "" && c.authToken != "" && c.fromNumber != ""
}

// CreateCall places an outbound call to the given number and points it at the
// TwiML URL. Returns the carrier-assigned call SID.
func (c *RestClient) CreateCall(ctx context.Context, toNumber, twimlURL string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("telephony credentials are not configured")
	}
	if strings.TrimSpace(toNumber) == "" {
		return "", fmt.Errorf("destination number is required")
	}
	if strings.TrimSpace(twimlURL) == "" {
		return "", fmt.Errorf("twiml url is required")
	}

	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", c.fromNumber)
	form.Set("Url", twimlURL)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("call origination error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(decoded.SID) == "" {
		return "", fmt.Errorf("response missing call sid")
	}
	return decoded.SID, nil
}
