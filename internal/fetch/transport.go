package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
)

// Transport opens a download. Size is -1 when unknown.
type Transport interface {
	Open(ctx context.Context, url string) (body io.ReadCloser, size int64, err error)
}

// HTTPTransport downloads http(s) URLs and reads file:// URLs from disk.
type HTTPTransport struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPTransport returns a transport using a client without its own
// timeout; deadlines come from the request context.
func NewHTTPTransport(userAgent string) *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{}, UserAgent: userAgent}
}

// Open starts the download of rawURL. A "#/name" rename fragment is ignored.
func (t *HTTPTransport) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	target := manifest.StripRename(rawURL)
	u, err := url.Parse(target)
	if err != nil {
		return nil, 0, fmt.Errorf(messages.FetchURLParseFmt, target, err)
	}
	if strings.EqualFold(u.Scheme, "file") {
		return openFile(u)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf(messages.FetchURLParseFmt, target, err)
	}
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, classify(target, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		kind := KindStatus
		if resp.StatusCode >= 500 && resp.StatusCode <= 599 || resp.StatusCode == http.StatusTooManyRequests {
			kind = KindUnreachable
		}
		return nil, 0, &Error{Kind: kind, URL: target, Status: resp.Status, Err: errors.New(resp.Status)}
	}
	return resp.Body, resp.ContentLength, nil
}

func openFile(u *url.URL) (io.ReadCloser, int64, error) {
	path := u.Path
	if u.Host != "" && u.Host != "localhost" {
		path = "//" + u.Host + u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &Error{Kind: KindStatus, URL: u.String(), Status: err.Error(), Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf(messages.FetchOpenFileFmt, path, err)
	}
	return f, info.Size(), nil
}
