// Package transport is the HTTP(S) executor underneath the asuslink
// client. It owns the connection pool and the TLS verification policy
// and classifies network failures so the layers above can map them onto
// the public error taxonomy without inspecting net internals.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/asuslink/internal/logging"
)

const (
	// DefaultTimeout is the per-request timeout when none is configured.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxConns bounds the concurrent connections to the device.
	// Router httpd implementations drop connections when too many are
	// open at once.
	DefaultMaxConns = 4

	// DefaultPortHTTP is the stock firmware web UI port.
	DefaultPortHTTP = 80

	// DefaultPortHTTPS is the stock firmware HTTPS port.
	DefaultPortHTTPS = 8443
)

// Classified failure sentinels. Callers match with errors.Is.
var (
	// ErrConnectivity marks transport-level failures: refused, unreachable,
	// DNS, resets.
	ErrConnectivity = errors.New("device unreachable")

	// ErrCertificate marks TLS trust failures under strict verification.
	ErrCertificate = errors.New("certificate verification failed")

	// ErrTimeout marks deadline and timeout failures.
	ErrTimeout = errors.New("request timed out")
)

// Options configures a Transport.
type Options struct {
	Host               string
	Port               int
	UseTLS             bool
	InsecureSkipVerify bool
	Timeout            time.Duration
	MaxConns           int
	UserAgent          string
}

// Response is a completed device exchange. The body is fully read and
// the underlying connection returned to the pool before Do returns.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport executes requests against a single device.
type Transport struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// New builds a Transport for the given device. A zero Port selects the
// scheme default.
func New(opts Options) *Transport {
	port := opts.Port
	scheme := "http"
	if opts.UseTLS {
		scheme = "https"
		if port == 0 {
			port = DefaultPortHTTPS
		}
	} else if port == 0 {
		port = DefaultPortHTTP
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxConns := opts.MaxConns
	if maxConns == 0 {
		maxConns = DefaultMaxConns
	}

	httpTransport := &http.Transport{
		MaxConnsPerHost:     maxConns,
		MaxIdleConnsPerHost: maxConns,
		IdleConnTimeout:     30 * time.Second,
	}
	if opts.UseTLS {
		httpTransport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}
	}

	return &Transport{
		baseURL:   fmt.Sprintf("%s://%s:%d", scheme, opts.Host, port),
		userAgent: opts.UserAgent,
		client: &http.Client{
			Timeout:   timeout,
			Transport: httpTransport,
		},
	}
}

// BaseURL returns the device base URL, scheme and port included.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// Do executes a single request. The path must not have a leading slash;
// body may be empty. Classified sentinel errors wrap the original cause.
func (t *Transport) Do(ctx context.Context, method, path string, headers map[string]string, body string) (*Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+"/"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	logging.LogRequest(method, path, resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
	}, nil
}

// CloseIdleConnections drops pooled connections. Called on disconnect.
func (t *Transport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

// classify maps a raw transport failure onto one of the sentinel errors.
func classify(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Unwrap so the checks below see the transport cause.
		return classifyCause(urlErr, urlErr.Err)
	}
	return classifyCause(err, err)
}

func classifyCause(full error, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) || os.IsTimeout(cause) {
		return fmt.Errorf("%w: %w", ErrTimeout, full)
	}
	if errors.Is(cause, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, full)
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(cause, &certErr) || errors.As(cause, &unknownAuthority) || errors.As(cause, &hostnameErr) {
		logging.Warn("TLS verification failed", zap.Error(cause))
		return fmt.Errorf("%w: %w", ErrCertificate, full)
	}

	var netErr net.Error
	if errors.As(cause, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, full)
	}

	var dnsErr *net.DNSError
	if errors.As(cause, &dnsErr) {
		return fmt.Errorf("%w: %w", ErrConnectivity, full)
	}
	var opErr *net.OpError
	if errors.As(cause, &opErr) {
		return fmt.Errorf("%w: %w", ErrConnectivity, full)
	}

	return fmt.Errorf("%w: %w", ErrConnectivity, full)
}
