package asuslink

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/asuslink/internal/transport"
)

// fakeRouter emulates the firmware's web service for tests: the login
// exchange, the hook endpoint backed by an nvram map, and arbitrary
// per-path handlers.
type fakeRouter struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	loginCount int
	requests   map[string]int
	handlers   map[string]http.HandlerFunc
	nvram      map[string]string

	// Login behavior switches.
	failLogins int  // respond 500 to this many login attempts first
	wrongCreds bool // respond error_status 3
	lockLogin  bool // respond error_status 7 with remaining_lock_time

	token string
}

func newFakeRouter(t *testing.T) *fakeRouter {
	t.Helper()
	f := &fakeRouter{
		t:        t,
		requests: make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
		nvram:    make(map[string]string),
		token:    "ta1b2c3d4e5f6",
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

// hostPort splits the test server address.
func (f *fakeRouter) hostPort() (string, int) {
	f.t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(f.srv.URL, "http://"))
	if err != nil {
		f.t.Fatalf("failed to split server address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// transport builds a Transport aimed at the fake router.
func (f *fakeRouter) transport() *transport.Transport {
	host, port := f.hostPort()
	return transport.New(transport.Options{
		Host:      host,
		Port:      port,
		UserAgent: userAgent,
	})
}

// session builds a session with test-friendly retry timing.
func (f *fakeRouter) session() *session {
	s := newSession(f.transport(), "admin", "hunter2")
	s.retryDelay = time.Millisecond
	s.maxRetryDelay = 5 * time.Millisecond
	return s
}

// client builds a full Client against the fake router.
func (f *fakeRouter) client(t *testing.T) *Client {
	t.Helper()
	host, port := f.hostPort()
	c, err := NewClient(Config{
		Host:     host,
		Port:     port,
		Username: "admin",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.sess.retryDelay = time.Millisecond
	c.sess.maxRetryDelay = 5 * time.Millisecond
	return c
}

func (f *fakeRouter) handle(path string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = handler
}

func (f *fakeRouter) setNvram(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nvram[key] = value
}

func (f *fakeRouter) requestCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeRouter) logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCount
}

func (f *fakeRouter) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	f.mu.Lock()
	f.requests[path]++
	handler, hasHandler := f.handlers[path]
	f.mu.Unlock()

	if path == "login.cgi" {
		f.handleLogin(w, r)
		return
	}
	if path == "Logout.asp" {
		fmt.Fprint(w, `{"error_status":"8"}`)
		return
	}
	if hasHandler {
		handler(w, r)
		return
	}
	if path == "appGet.cgi" {
		f.handleHook(w, r)
		return
	}
	http.NotFound(w, r)
}

func (f *fakeRouter) handleLogin(w http.ResponseWriter, r *http.Request) {
	body := readBody(r)
	if !strings.HasPrefix(body, "login_authorization=") {
		http.Error(w, "bad login payload", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.loginCount++
	fail := f.failLogins > 0
	if fail {
		f.failLogins--
	}
	wrong := f.wrongCreds
	locked := f.lockLogin
	f.mu.Unlock()

	switch {
	case fail:
		http.Error(w, "busy", http.StatusInternalServerError)
	case locked:
		fmt.Fprint(w, `{"error_status":"7","remaining_lock_time":"60"}`)
	case wrong:
		fmt.Fprint(w, `{"error_status":"3"}`)
	default:
		w.Header().Set("Model_Name", "RT-AX88U")
		w.Header().Set("AiHOMEAPILevel", "2")
		w.Header().Set("Httpd_AiHome_Ver", "100")
		fmt.Fprintf(w, `{"asus_token":"%s"}`, f.token)
	}
}

var nvramGetPattern = regexp.MustCompile(`nvram_get\(([A-Za-z0-9_]+)\)`)

// handleHook answers nvram_get hook queries from the nvram map. Other
// hooks need an explicit handler.
func (f *fakeRouter) handleHook(w http.ResponseWriter, r *http.Request) {
	f.answerHook(w, r, readBody(r))
}

// answerHook is handleHook for callers that already consumed the
// request body.
func (f *fakeRouter) answerHook(w http.ResponseWriter, r *http.Request, body string) {
	matches := nvramGetPattern.FindAllStringSubmatch(body, -1)
	if matches == nil {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	values := make(map[string]string, len(matches))
	for _, match := range matches {
		values[match[1]] = f.nvram[match[1]]
	}
	f.mu.Unlock()

	payload, _ := json.Marshal(values)
	_, _ = w.Write(payload)
}

func readBody(r *http.Request) string {
	data, _ := io.ReadAll(r.Body)
	return string(data)
}
