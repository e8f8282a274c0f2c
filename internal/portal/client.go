package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
)

// Config points the client at the groupware portal.
type Config struct {
	LoginURL      string
	ReportURL     string
	Username      string
	Password      string
	UsernameField string
	PasswordField string
	UserAgent     string
	Timeout       time.Duration
}

// Client logs into the portal with a form POST and pulls the attendance
// workbook over the resulting session. Cookies live in the client's jar, so
// one Login call covers any number of FetchReport calls.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// loginFailureMarkers are scanned (lower-cased) in the login response body.
// The portal answers a bad password with 200 and an error page, never 401.
var loginFailureMarkers = []string{
	"로그인 실패", "로그인실패", "비밀번호가 일치하지", "login failed", "invalid password",
}

// errorPageMarkers flag a small download body as an error or login page
// rather than a workbook.
var errorPageMarkers = []string{
	"error", "오류", "로그인", "권한", "세션 만료", "session expired", "<html",
}

// workbookContentTypes are the content types the portal serves workbooks
// under, depending on the export path.
var workbookContentTypes = []string{
	"excel", "spreadsheetml", "vnd.ms-excel", "octet-stream", "application/zip",
}

// Downloads smaller than this get their content sniffed; genuine exports are
// always larger, error pages rarely are.
const suspiciousBodySize = 1024

// NewClient builds a portal client with a fresh cookie jar. Logger may be nil.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.LoginURL == "" || cfg.ReportURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "portal login and report URLs are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.UsernameField == "" {
		cfg.UsernameField = "userEmail"
	}
	if cfg.PasswordField == "" {
		cfg.PasswordField = "userPw"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		logger: logger,
	}, nil
}

// Login posts the credential form and keeps the session cookies in the jar.
// The portal redirects to the mail page on success; failures come back as a
// 200 with an error page, so the body is checked as well as the status.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set(c.cfg.UsernameField, c.cfg.Username)
	form.Set(c.cfg.PasswordField, c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LoginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrAuthFailed.Code, appErrors.ErrAuthFailed.Status, "build login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setBrowserHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrAuthFailed.Code, appErrors.ErrAuthFailed.Status, "portal login request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return appErrors.Clone(appErrors.ErrAuthFailed, fmt.Sprintf("portal login returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrAuthFailed.Code, appErrors.ErrAuthFailed.Status, "read login response")
	}
	if marker := findMarker(body, loginFailureMarkers); marker != "" {
		return appErrors.Clone(appErrors.ErrAuthFailed, fmt.Sprintf("portal rejected credentials (%q found in response)", marker))
	}

	c.logger.Sugar().Infow("portal login ok",
		"url", c.cfg.LoginURL,
		"cookies", len(c.http.Jar.Cookies(req.URL)),
	)
	return nil
}

// FetchReport downloads the workbook for the given date. A "{date}"
// placeholder in the report URL is replaced with YYYY-MM-DD; without one the
// URL is fetched as configured (the portal defaults to today).
func (c *Client) FetchReport(ctx context.Context, date time.Time) ([]byte, error) {
	reportURL := strings.ReplaceAll(c.cfg.ReportURL, "{date}", date.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reportURL, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDownloadFailed.Code, appErrors.ErrDownloadFailed.Status, "build report request")
	}
	c.setBrowserHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDownloadFailed.Code, appErrors.ErrDownloadFailed.Status, "report download failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.Clone(appErrors.ErrDownloadFailed, fmt.Sprintf("report download returned status %d", resp.StatusCode))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !isWorkbookContentType(contentType) {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		c.logger.Sugar().Errorw("unexpected report content type",
			"content_type", contentType,
			"preview", string(preview),
		)
		return nil, appErrors.Clone(appErrors.ErrDownloadFailed,
			fmt.Sprintf("report content type %q is not a workbook", contentType))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDownloadFailed.Code, appErrors.ErrDownloadFailed.Status, "read report body")
	}

	if len(data) < suspiciousBodySize {
		if marker := findMarker(previewOf(data), errorPageMarkers); marker != "" {
			c.logger.Sugar().Errorw("small report body looks like an error page",
				"bytes", len(data),
				"marker", marker,
			)
			return nil, appErrors.Clone(appErrors.ErrDownloadFailed,
				fmt.Sprintf("report body is %d bytes and resembles an error page", len(data)))
		}
		c.logger.Sugar().Warnw("report body suspiciously small", "bytes", len(data))
	}

	c.logger.Sugar().Infow("report downloaded", "url", reportURL, "bytes", len(data))
	return data, nil
}

// setBrowserHeaders mimics the browser the portal expects; it rejects bare
// library user agents. Referer is the portal origin derived from the login URL.
func (c *Client) setBrowserHeaders(req *http.Request) {
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if origin := originOf(c.cfg.LoginURL); origin != "" {
		req.Header.Set("Referer", origin)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ko;q=0.8")
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isWorkbookContentType(contentType string) bool {
	for _, t := range workbookContentTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func findMarker(body []byte, markers []string) string {
	haystack := strings.ToLower(string(body))
	for _, marker := range markers {
		if strings.Contains(haystack, marker) {
			return marker
		}
	}
	return ""
}

func previewOf(data []byte) []byte {
	if len(data) > 500 {
		return data[:500]
	}
	return data
}
