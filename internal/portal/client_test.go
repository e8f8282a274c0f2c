package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/dgmosdaegu/work-day-bot/pkg/errors"
)

// fakeWorkbook is comfortably above the suspicious-size threshold and starts
// with the xlsx zip signature.
func fakeWorkbook() []byte {
	data := make([]byte, 2048)
	copy(data, []byte("PK\x03\x04"))
	return data
}

func newTestClient(t *testing.T, loginURL, reportURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		LoginURL:      loginURL,
		ReportURL:     reportURL,
		Username:      "bot@example.com",
		Password:      "secret",
		UsernameField: "userEmail",
		PasswordField: "userPw",
		UserAgent:     "test-agent",
		Timeout:       5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestLoginStoresSessionCookie(t *testing.T) {
	var gotUser, gotPass string
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotUser = r.PostFormValue("userEmail")
		gotPass = r.PostFormValue("userPw")
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc123"})
		w.Write([]byte("<html>mail home</html>")) //nolint:errcheck
	})
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("JSESSIONID")
		if err != nil || cookie.Value != "abc123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.ms-excel")
		w.Write(fakeWorkbook()) //nolint:errcheck
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL+"/login", server.URL+"/report")

	require.NoError(t, client.Login(context.Background()))
	require.Equal(t, "bot@example.com", gotUser)
	require.Equal(t, "secret", gotPass)

	data, err := client.FetchReport(context.Background(), time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, fakeWorkbook(), data)
}

func TestLoginRejectedByErrorPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Portal answers bad credentials with 200 and an error page.
		w.Write([]byte("<html>로그인 실패: 비밀번호가 일치하지 않습니다</html>")) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/login", server.URL+"/report")

	err := client.Login(context.Background())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrAuthFailed))
}

func TestLoginNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/login", server.URL+"/report")

	err := client.Login(context.Background())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrAuthFailed))
}

func TestFetchReportSubstitutesDatePlaceholder(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(fakeWorkbook()) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/login", server.URL+"/report?date={date}")

	_, err := client.FetchReport(context.Background(), time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "/report", gotPath)
	require.Equal(t, "date=2025-07-14", gotQuery)
}

func TestFetchReportRejectsHTMLContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>세션 만료</html>")) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/login", server.URL+"/report")

	_, err := client.FetchReport(context.Background(), time.Now())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrDownloadFailed))
}

func TestFetchReportRejectsSmallErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Error page mislabeled with a workbook content type.
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("<html>로그인이 필요합니다</html>")) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/login", server.URL+"/report")

	_, err := client.FetchReport(context.Background(), time.Now())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrDownloadFailed))
}

func TestFetchReportRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/login", server.URL+"/report")

	_, err := client.FetchReport(context.Background(), time.Now())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrDownloadFailed))
}

func TestFetchReportAcceptsSmallCleanBody(t *testing.T) {
	small := []byte("PK\x03\x04 tiny but real workbook stub")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Write(small) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/login", server.URL+"/report")

	data, err := client.FetchReport(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, small, data)
}

func TestNewClientRequiresURLs(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
