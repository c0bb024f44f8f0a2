package asuslink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/asuslink/internal/logging"
	"github.com/muurk/asuslink/internal/security"
	"github.com/muurk/asuslink/internal/transport"
)

const (
	// userAgent is required by the firmware: login replies miss the
	// identity headers without the DUTUtil marker.
	userAgent = "asusrouter--DUTUtil-"

	loginPath  = "login.cgi"
	logoutPath = "Logout.asp"

	// DefaultTokenValidity is how long a session token is trusted before
	// a proactive renewal. The firmware keeps tokens alive until httpd
	// restarts, so this only bounds how stale our view may get.
	DefaultTokenValidity = 10 * time.Minute

	// DefaultRenewalMargin renews a token proactively when its remaining
	// validity falls under this margin.
	DefaultRenewalMargin = 30 * time.Second

	// DefaultLoginRetries is the bounded retry count for transient login
	// failures.
	DefaultLoginRetries = 3

	// DefaultLoginRetryDelay is the initial backoff delay between login
	// attempts.
	DefaultLoginRetryDelay = 1 * time.Second

	// DefaultMaxLoginRetryDelay caps the exponential backoff.
	DefaultMaxLoginRetryDelay = 30 * time.Second
)

// Firmware error_status codes on the JSON error channel.
const (
	errStatusUnauthorized = 2
	errStatusCredentials  = 3
	errStatusLoginBlocked = 7
	errStatusLoggedOut    = 8
)

// sessionState is the session lifecycle position.
type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticating
	stateAuthenticated
	stateDisconnected
)

// String returns the state name
func (s sessionState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticating:
		return "authenticating"
	case stateAuthenticated:
		return "authenticated"
	case stateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("sessionState(%d)", int(s))
	}
}

// session owns the authentication token and its lifecycle. All device
// communication goes through session.request so that token renewal stays
// in one place.
type session struct {
	tr       *transport.Transport
	username string
	password string

	validity      time.Duration
	renewalMargin time.Duration
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration

	// loginMu serializes login attempts: at most one login request is in
	// flight, concurrent callers block here and observe its outcome.
	loginMu sync.Mutex

	// mu guards the token fields and state below.
	mu      sync.Mutex
	state   sessionState
	token   string
	issued  time.Time
	apiInfo map[string]string
}

func newSession(tr *transport.Transport, username, password string) *session {
	return &session{
		tr:            tr,
		username:      username,
		password:      password,
		validity:      DefaultTokenValidity,
		renewalMargin: DefaultRenewalMargin,
		maxRetries:    DefaultLoginRetries,
		retryDelay:    DefaultLoginRetryDelay,
		maxRetryDelay: DefaultMaxLoginRetryDelay,
		apiInfo:       make(map[string]string),
	}
}

// currentState returns the lifecycle state for introspection.
func (s *session) currentState() sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// tokenValid reports whether the stored token is inside its validity
// window with the renewal margin subtracted. Caller holds s.mu.
func (s *session) tokenValid() bool {
	if s.token == "" {
		return false
	}
	remaining := s.validity - time.Since(s.issued)
	return remaining > s.renewalMargin
}

// authHeaders returns the per-request authentication headers. Caller
// holds s.mu.
func (s *session) authHeaders() map[string]string {
	return map[string]string{
		"Cookie": "asus_token=" + s.token,
	}
}

// ensure makes sure a valid session exists, logging in if needed. It is
// idempotent and safe for concurrent use: the login mutex guarantees a
// single login request whose token all waiters share.
func (s *session) ensure(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateDisconnected {
		s.mu.Unlock()
		return newError(KindAuthentication, "session is disconnected, call Connect first", nil)
	}
	if s.tokenValid() {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	// Another caller may have completed the login while we waited.
	s.mu.Lock()
	if s.tokenValid() {
		s.mu.Unlock()
		return nil
	}
	s.state = stateAuthenticating
	s.mu.Unlock()

	err := s.loginWithRetry(ctx)

	s.mu.Lock()
	if err != nil {
		if s.token == "" {
			s.state = stateUnauthenticated
		} else {
			s.state = stateAuthenticated
		}
	} else {
		s.state = stateAuthenticated
	}
	s.mu.Unlock()

	return err
}

// loginWithRetry retries transient login failures with exponential
// backoff. Credential rejections and login blocks are surfaced at once.
func (s *session) loginWithRetry(ctx context.Context) error {
	var lastErr error
	delay := s.retryDelay

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug("Retrying login",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return &Error{Kind: KindTimeout, Message: "login aborted by caller", Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
			if delay > s.maxRetryDelay {
				delay = s.maxRetryDelay
			}
		}

		err := s.login(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
	}

	return &Error{
		Kind:    KindAuthentication,
		Message: fmt.Sprintf("login failed after %d retries", s.maxRetries),
		Err:     lastErr,
	}
}

// login performs a single login exchange against login.cgi.
func (s *session) login(ctx context.Context) error {
	payload := security.LoginPayload(s.username, s.password)

	resp, err := s.tr.Do(ctx, http.MethodPost, loginPath, nil, payload)
	if err != nil {
		return classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return &Error{
			Kind:      KindConnectivity,
			Message:   fmt.Sprintf("login returned HTTP %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
		}
	}

	body := map[string]any{}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return newError(KindAuthentication, "unexpected login response from device", err)
	}

	if err := deviceError(body); err != nil {
		return err
	}

	token, _ := body["asus_token"].(string)
	if token == "" {
		return newError(KindAuthentication, "device did not return a session token", nil)
	}

	s.mu.Lock()
	s.token = token
	s.issued = time.Now()
	for _, header := range []string{"Model_Name", "AiHOMEAPILevel", "Httpd_AiHome_Ver"} {
		if value := resp.Header.Get(header); value != "" {
			s.apiInfo[header] = value
		}
	}
	s.mu.Unlock()

	logging.Info("Login successful",
		zap.String("token", security.MaskToken(token)),
		zap.String("model", resp.Header.Get("Model_Name")),
	)
	return nil
}

// invalidate drops the stored token so the next ensure re-authenticates.
func (s *session) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateDisconnected {
		return
	}
	s.token = ""
	s.state = stateUnauthenticated
}

// disconnect invalidates the token with a best-effort logout call and
// marks the session terminally disconnected. Safe to call repeatedly.
func (s *session) disconnect(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	headers := s.authHeaders()
	alreadyDone := s.state == stateDisconnected
	s.token = ""
	s.state = stateDisconnected
	s.mu.Unlock()

	if alreadyDone || token == "" {
		return
	}

	if _, err := s.tr.Do(ctx, http.MethodPost, logoutPath, headers, ""); err != nil {
		logging.Debug("Logout request failed", zap.Error(err))
	}
	s.tr.CloseIdleConnections()
}

// request executes an authenticated exchange. On an authorization-expired
// signal from the device it renews the session once and repeats the
// request; other failures propagate.
func (s *session) request(ctx context.Context, method, path, payload string) ([]byte, error) {
	return s.requestRetry(ctx, method, path, payload, false)
}

func (s *session) requestRetry(ctx context.Context, method, path, payload string, retried bool) ([]byte, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	headers := s.authHeaders()
	s.mu.Unlock()

	resp, err := s.tr.Do(ctx, method, path, headers, payload)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, newError(KindUnsupportedData, fmt.Sprintf("endpoint %s not found on this firmware", path), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind:      KindConnectivity,
			Message:   fmt.Sprintf("endpoint %s returned HTTP %d", path, resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
		}
	}

	// Some firmware builds return 200 with a 404 page body.
	if len(resp.Body) < 512 && containsNotFound(resp.Body) {
		return nil, newError(KindUnsupportedData, fmt.Sprintf("endpoint %s not found on this firmware", path), nil)
	}

	if errStatus := jsonErrorStatus(resp.Body); errStatus != 0 {
		body := map[string]any{}
		_ = json.Unmarshal(resp.Body, &body)
		err := deviceError(body)
		if err != nil {
			if IsAuthenticationError(err) && errStatus == errStatusUnauthorized && !retried {
				logging.Debug("Session expired, renewing", zap.String("path", path))
				s.invalidate()
				return s.requestRetry(ctx, method, path, payload, true)
			}
			return nil, err
		}
	}

	return resp.Body, nil
}

// deviceError converts the firmware's error_status channel into a client
// error. A logout confirmation (code 8) is not an error.
func deviceError(body map[string]any) error {
	raw, ok := body["error_status"]
	if !ok {
		return nil
	}

	code := 0
	switch v := raw.(type) {
	case string:
		code, _ = strconv.Atoi(v)
	case float64:
		code = int(v)
	}

	switch code {
	case 0:
		return nil
	case errStatusUnauthorized:
		return newError(KindAuthentication, "session is not authorized", nil)
	case errStatusCredentials:
		return newError(KindAuthentication, "wrong credentials", nil)
	case errStatusLoginBlocked:
		lockTime := time.Duration(0)
		if remaining, ok := body["remaining_lock_time"]; ok {
			switch v := remaining.(type) {
			case string:
				if n, err := strconv.Atoi(v); err == nil {
					lockTime = time.Duration(n) * time.Second
				}
			case float64:
				lockTime = time.Duration(v) * time.Second
			}
		}
		return &Error{
			Kind:     KindAuthentication,
			Message:  "login blocked by device after too many attempts",
			LockTime: lockTime,
		}
	case errStatusLoggedOut:
		return nil
	default:
		return newError(KindConnectivity, fmt.Sprintf("device reported unknown error status %d", code), nil)
	}
}

// jsonErrorStatus peeks at a response body for the error_status channel
// without committing to a full JSON parse of non-JSON pages.
func jsonErrorStatus(body []byte) int {
	trimmed := string(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return 0
	}
	var probe struct {
		ErrorStatus any `json:"error_status"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.ErrorStatus == nil {
		return 0
	}
	switch v := probe.ErrorStatus.(type) {
	case string:
		n, _ := strconv.Atoi(v)
		return n
	case float64:
		return int(v)
	}
	return 0
}

func containsNotFound(body []byte) bool {
	return strings.Contains(string(body), "404 Not Found")
}
