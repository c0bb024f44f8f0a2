package asuslink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestSessionLogin(t *testing.T) {
	router := newFakeRouter(t)
	sess := router.session()

	if err := sess.ensure(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	if sess.currentState() != stateAuthenticated {
		t.Errorf("state = %v, want authenticated", sess.currentState())
	}
	sess.mu.Lock()
	token := sess.token
	model := sess.apiInfo["Model_Name"]
	sess.mu.Unlock()
	if token != router.token {
		t.Errorf("token = %q, want %q", token, router.token)
	}
	if model != "RT-AX88U" {
		t.Errorf("Model_Name = %q, want RT-AX88U", model)
	}
}

func TestSessionEnsureIsIdempotent(t *testing.T) {
	router := newFakeRouter(t)
	sess := router.session()

	for i := 0; i < 5; i++ {
		if err := sess.ensure(context.Background()); err != nil {
			t.Fatalf("ensure %d failed: %v", i, err)
		}
	}
	if got := router.logins(); got != 1 {
		t.Errorf("login count = %d, want 1", got)
	}
}

func TestSessionConcurrentEnsureSingleLogin(t *testing.T) {
	router := newFakeRouter(t)
	sess := router.session()

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sess.ensure(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("goroutine %d: ensure failed: %v", i, err)
		}
	}
	if got := router.logins(); got != 1 {
		t.Errorf("login count = %d, want 1 shared login", got)
	}
}

func TestSessionLoginRetriesTransientFailures(t *testing.T) {
	router := newFakeRouter(t)
	router.failLogins = 2
	sess := router.session()

	if err := sess.ensure(context.Background()); err != nil {
		t.Fatalf("ensure failed after transient errors: %v", err)
	}
	if got := router.logins(); got != 3 {
		t.Errorf("login count = %d, want 3 (two failures, one success)", got)
	}
}

func TestSessionLoginRetriesExhausted(t *testing.T) {
	router := newFakeRouter(t)
	router.failLogins = 100
	sess := router.session()
	sess.maxRetries = 2

	err := sess.ensure(context.Background())
	if !IsAuthenticationError(err) {
		t.Fatalf("err = %v, want authentication error after retry exhaustion", err)
	}
	if got := router.logins(); got != 3 {
		t.Errorf("login count = %d, want 3 (initial + 2 retries)", got)
	}
}

func TestSessionWrongCredentialsNotRetried(t *testing.T) {
	router := newFakeRouter(t)
	router.wrongCreds = true
	sess := router.session()

	err := sess.ensure(context.Background())
	if !IsAuthenticationError(err) {
		t.Fatalf("err = %v, want authentication error", err)
	}
	if got := router.logins(); got != 1 {
		t.Errorf("login count = %d, want 1 (credential rejection must not retry)", got)
	}
}

func TestSessionLoginBlocked(t *testing.T) {
	router := newFakeRouter(t)
	router.lockLogin = true
	sess := router.session()

	err := sess.ensure(context.Background())
	if !IsAuthenticationError(err) {
		t.Fatalf("err = %v, want authentication error", err)
	}
	var clientErr *Error
	if !errors.As(err, &clientErr) {
		t.Fatalf("err %v does not unwrap to *Error", err)
	}
	if clientErr.LockTime != 60*time.Second {
		t.Errorf("LockTime = %v, want 60s", clientErr.LockTime)
	}
	if got := router.logins(); got != 1 {
		t.Errorf("login count = %d, want 1 (login block must not retry)", got)
	}
}

func TestSessionRequestRenewsOnUnauthorized(t *testing.T) {
	router := newFakeRouter(t)

	var mu sync.Mutex
	calls := 0
	router.handle("appGet.cgi", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			fmt.Fprint(w, `{"error_status":"2"}`)
			return
		}
		fmt.Fprint(w, `{"uptime":"1234"}`)
	})

	sess := router.session()
	body, err := sess.request(context.Background(), http.MethodPost, "appGet.cgi", "hook=uptime()")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if string(body) != `{"uptime":"1234"}` {
		t.Errorf("body = %q, want renewed response", body)
	}
	if got := router.logins(); got != 2 {
		t.Errorf("login count = %d, want 2 (initial + renewal)", got)
	}
}

func TestSessionRequestUnauthorizedOnlyRetriedOnce(t *testing.T) {
	router := newFakeRouter(t)
	router.handle("appGet.cgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error_status":"2"}`)
	})

	sess := router.session()
	_, err := sess.request(context.Background(), http.MethodPost, "appGet.cgi", "hook=uptime()")
	if !IsAuthenticationError(err) {
		t.Fatalf("err = %v, want authentication error", err)
	}
	if got := router.requestCount("appGet.cgi"); got != 2 {
		t.Errorf("endpoint requests = %d, want 2 (original + single renewal retry)", got)
	}
}

func TestSessionRequestNotFound(t *testing.T) {
	router := newFakeRouter(t)
	sess := router.session()

	_, err := sess.request(context.Background(), http.MethodPost, "ajax_sysinfo.asp", "")
	if !IsUnsupportedDataError(err) {
		t.Fatalf("err = %v, want unsupported data for 404 endpoint", err)
	}
}

func TestSessionRequestNotFoundBody(t *testing.T) {
	router := newFakeRouter(t)
	// Some builds answer 200 with an embedded 404 page.
	router.handle("ajax_sysinfo.asp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>404 Not Found</body></html>")
	})
	sess := router.session()

	_, err := sess.request(context.Background(), http.MethodPost, "ajax_sysinfo.asp", "")
	if !IsUnsupportedDataError(err) {
		t.Fatalf("err = %v, want unsupported data for soft 404", err)
	}
}

func TestSessionDisconnect(t *testing.T) {
	router := newFakeRouter(t)
	sess := router.session()

	if err := sess.ensure(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	sess.disconnect(context.Background())
	sess.disconnect(context.Background()) // repeat-safe

	if got := router.requestCount("Logout.asp"); got != 1 {
		t.Errorf("logout requests = %d, want 1", got)
	}
	if sess.currentState() != stateDisconnected {
		t.Errorf("state = %v, want disconnected", sess.currentState())
	}

	err := sess.ensure(context.Background())
	if !IsAuthenticationError(err) {
		t.Errorf("ensure after disconnect = %v, want authentication error", err)
	}
}

func TestSessionProactiveRenewal(t *testing.T) {
	router := newFakeRouter(t)
	sess := router.session()
	sess.validity = 50 * time.Millisecond
	sess.renewalMargin = 10 * time.Millisecond

	if err := sess.ensure(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if err := sess.ensure(context.Background()); err != nil {
		t.Fatalf("ensure after expiry failed: %v", err)
	}
	if got := router.logins(); got != 2 {
		t.Errorf("login count = %d, want 2 (expired token renewed)", got)
	}
}

func TestDeviceError(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		wantErr bool
		auth    bool
	}{
		{name: "no error channel", body: map[string]any{"asus_token": "x"}},
		{name: "zero status", body: map[string]any{"error_status": "0"}},
		{name: "logout confirmation", body: map[string]any{"error_status": "8"}},
		{name: "unauthorized", body: map[string]any{"error_status": "2"}, wantErr: true, auth: true},
		{name: "wrong credentials", body: map[string]any{"error_status": float64(3)}, wantErr: true, auth: true},
		{name: "unknown code", body: map[string]any{"error_status": "99"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := deviceError(tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("deviceError = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.auth && !IsAuthenticationError(err) {
				t.Errorf("deviceError = %v, want authentication kind", err)
			}
		})
	}
}
