package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/logger"
	"github.com/cryptograss/railbot/internal/wikitext"
)

// userAgent identifies the bot to the MediaWiki API.
const userAgent = "railbot (https://github.com/cryptograss/railbot)"

// APIClient talks to a MediaWiki action API with a logged-in bot session.
type APIClient struct {
	endpoint string
	http     *http.Client
	csrf     string

	fileExistsCache map[string]bool
}

// NewAPIClient connects and logs in to the wiki at siteURL.
func NewAPIClient(ctx context.Context, siteURL, username, password string) (*APIClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &APIClient{
		endpoint: strings.TrimRight(normalizeSiteURL(siteURL), "/") + "/api.php",
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		fileExistsCache: make(map[string]bool),
	}

	if err := c.login(ctx, username, password); err != nil {
		return nil, err
	}

	return c, nil
}

// NewReadOnlyClient connects to the wiki at siteURL without logging in.
// Page reads work anonymously; write operations will be rejected by the
// wiki, so this is only useful behind a dry-run recorder.
func NewReadOnlyClient(siteURL string) (*APIClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &APIClient{
		endpoint: strings.TrimRight(normalizeSiteURL(siteURL), "/") + "/api.php",
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		fileExistsCache: make(map[string]bool),
	}, nil
}

func normalizeSiteURL(siteURL string) string {
	if strings.HasPrefix(siteURL, "http://") || strings.HasPrefix(siteURL, "https://") {
		return siteURL
	}
	return "https://" + siteURL
}

func (c *APIClient) login(ctx context.Context, username, password string) error {
	var tokenResp struct {
		Query struct {
			Tokens struct {
				LoginToken string `json:"logintoken"`
				CSRFToken  string `json:"csrftoken"`
			} `json:"tokens"`
		} `json:"query"`
	}

	if err := c.call(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"login"},
	}, &tokenResp); err != nil {
		return fmt.Errorf("failed to fetch login token: %w", err)
	}

	var loginResp struct {
		Login struct {
			Result string `json:"result"`
			Reason string `json:"reason"`
		} `json:"login"`
	}

	if err := c.call(ctx, url.Values{
		"action":     {"login"},
		"lgname":     {username},
		"lgpassword": {password},
		"lgtoken":    {tokenResp.Query.Tokens.LoginToken},
	}, &loginResp); err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	if loginResp.Login.Result != "Success" {
		return fmt.Errorf("wiki login failed: %s %s", loginResp.Login.Result, loginResp.Login.Reason)
	}

	if err := c.call(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
	}, &tokenResp); err != nil {
		return fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	c.csrf = tokenResp.Query.Tokens.CSRFToken

	logger.Info("logged in to wiki", zap.String("endpoint", c.endpoint), zap.String("user", username))
	return nil
}

// call performs one API request as a form POST with backoff retry on
// rate limiting and transient network failures.
func (c *APIClient) call(ctx context.Context, params url.Values, result interface{}) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	var respBody []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
			strings.NewReader(params.Encode()))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to perform request: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logger.Warn("failed to close response body", zap.Error(err))
			}
		}()

		if resp.StatusCode == http.StatusTooManyRequests {
			logger.Warn("rate limited by wiki, retrying with backoff")
			return fmt.Errorf("rate limited (429), retrying")
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body)))
		}

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to read response body: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 1 * time.Minute

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("request failed after retries: %w", err)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type pageQueryResponse struct {
	Query struct {
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Revisions []struct {
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// GetPage returns the current text of a page, or domain.ErrPageNotFound.
func (c *APIClient) GetPage(ctx context.Context, title string) (string, error) {
	var resp pageQueryResponse
	if err := c.call(ctx, url.Values{
		"action":  {"query"},
		"prop":    {"revisions"},
		"rvprop":  {"content"},
		"rvslots": {"main"},
		"titles":  {title},
	}, &resp); err != nil {
		return "", err
	}

	if len(resp.Query.Pages) == 0 || resp.Query.Pages[0].Missing {
		return "", fmt.Errorf("%w: %s", domain.ErrPageNotFound, title)
	}
	if len(resp.Query.Pages[0].Revisions) == 0 {
		return "", fmt.Errorf("%w: %s has no revisions", domain.ErrPageNotFound, title)
	}
	return resp.Query.Pages[0].Revisions[0].Slots.Main.Content, nil
}

// SavePage writes page text. The current text is fetched first so that
// identical content produces no edit at all and the result can report
// which template fields changed.
func (c *APIClient) SavePage(ctx context.Context, title, content, summary string) SaveResult {
	current, err := c.GetPage(ctx, title)
	existed := err == nil
	if err != nil && !isNotFound(err) {
		return ErrorResult(title, err.Error())
	}

	if existed && current == content {
		return UnchangedResult(title, "content identical")
	}

	var changedFields []string
	if existed {
		changedFields = wikitext.DiffFields(current, content)
	}

	var resp struct {
		Edit struct {
			Result string `json:"result"`
		} `json:"edit"`
		Error struct {
			Code string `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
	}
	if err := c.call(ctx, url.Values{
		"action":  {"edit"},
		"title":   {title},
		"text":    {content},
		"summary": {summary},
		"bot":     {"1"},
		"token":   {c.csrf},
	}, &resp); err != nil {
		return ErrorResult(title, err.Error())
	}
	if resp.Edit.Result != "Success" {
		return ErrorResult(title, fmt.Sprintf("edit rejected: %s %s", resp.Error.Code, resp.Error.Info))
	}

	action := ActionCreated
	if existed {
		action = ActionUpdated
	}
	return SaveResult{PageTitle: title, Action: action, ChangedFields: changedFields}
}

// PageExists checks whether a page exists.
func (c *APIClient) PageExists(ctx context.Context, title string) (bool, error) {
	_, err := c.GetPage(ctx, title)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// FileExists checks whether an uploaded file exists. Results are cached
// for the lifetime of the client; a run only ever adds files.
func (c *APIClient) FileExists(ctx context.Context, name string) (bool, error) {
	if exists, ok := c.fileExistsCache[name]; ok {
		return exists, nil
	}
	exists, err := c.PageExists(ctx, "File:"+name)
	if err == nil {
		c.fileExistsCache[name] = exists
	}
	return exists, err
}

// UploadFile uploads a local file under the given wiki filename.
func (c *APIClient) UploadFile(ctx context.Context, path, filename, description, comment string) bool {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"action":         "upload",
		"filename":       filename,
		"comment":        comment,
		"text":           description,
		"ignorewarnings": "1",
		"token":          c.csrf,
		"format":         "json",
		"formatversion":  "2",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			logger.Error(err, zap.String("filename", filename))
			return false
		}
	}

	data, err := readFile(path)
	if err != nil {
		logger.Error(err, zap.String("path", path))
		return false
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		logger.Error(err, zap.String("filename", filename))
		return false
	}
	if _, err := part.Write(data); err != nil {
		logger.Error(err, zap.String("filename", filename))
		return false
	}
	if err := writer.Close(); err != nil {
		logger.Error(err, zap.String("filename", filename))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		logger.Error(err, zap.String("filename", filename))
		return false
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error(err, zap.String("filename", filename))
		return false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error(err, zap.String("filename", filename))
		return false
	}

	var uploadResp struct {
		Upload struct {
			Result string `json:"result"`
		} `json:"upload"`
	}
	if err := json.Unmarshal(body, &uploadResp); err != nil {
		logger.Error(err, zap.String("filename", filename))
		return false
	}
	if uploadResp.Upload.Result != "Success" {
		logger.Warn("upload rejected",
			zap.String("filename", filename),
			zap.String("result", uploadResp.Upload.Result),
		)
		return false
	}

	c.fileExistsCache[filename] = true
	return true
}

// TokensByContentID queries the semantic-wiki ask endpoint for token
// pages recording the given content id. Wikis without the extension
// answer with an API error; that degrades to zero rows.
func (c *APIClient) TokensByContentID(ctx context.Context, contentID string) ([]TokenInfo, error) {
	ask := fmt.Sprintf("[[Ipfs cid::%s]]|?Token id|?Owner address|?Owner display", contentID)

	var resp struct {
		Query struct {
			Results map[string]struct {
				Printouts map[string][]json.RawMessage `json:"printouts"`
			} `json:"results"`
		} `json:"query"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := c.call(ctx, url.Values{
		"action": {"ask"},
		"query":  {ask},
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Error.Code != "" {
		logger.Warn("content-id lookup unsupported by wiki", zap.String("code", resp.Error.Code))
		return nil, nil
	}

	var infos []TokenInfo
	for _, result := range resp.Query.Results {
		infos = append(infos, TokenInfo{
			TokenID:      firstPrintout(result.Printouts, "Token id"),
			OwnerAddress: firstPrintout(result.Printouts, "Owner address"),
			OwnerDisplay: firstPrintout(result.Printouts, "Owner display"),
		})
	}
	return infos, nil
}

// firstPrintout extracts the first value of an ask printout, tolerating
// both string and numeric encodings.
func firstPrintout(printouts map[string][]json.RawMessage, name string) string {
	values := printouts[name]
	if len(values) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(values[0], &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(values[0], &n); err == nil {
		return n.String()
	}
	return ""
}
