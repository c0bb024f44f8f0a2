package asuslink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/asuslink/internal/logging"
	"github.com/muurk/asuslink/internal/security"
	"github.com/muurk/asuslink/internal/transport"
)

// Config describes how to reach and authenticate against a router.
type Config struct {
	// Host is the router hostname or IP address. Required.
	Host string

	// Port overrides the scheme default (80 plain, 8443 TLS).
	Port int

	// Username and Password are the web UI credentials. Required.
	Username string
	Password string

	// UseTLS selects HTTPS transport.
	UseTLS bool

	// InsecureSkipVerify disables certificate verification. Routers ship
	// self-signed certificates, so TLS connections typically need either
	// this or a pinned CA in the system trust store.
	InsecureSkipVerify bool

	// Timeout bounds each device request. Zero selects the default.
	Timeout time.Duration

	// MaxConns bounds concurrent connections to the device.
	MaxConns int

	// CacheFreshness is the window during which a fetched record is
	// served from cache. Zero selects the default.
	CacheFreshness time.Duration

	// TokenValidity and RenewalMargin tune proactive session renewal.
	// Zero selects the defaults.
	TokenValidity time.Duration
	RenewalMargin time.Duration

	// LoginRetries bounds retries of transient login failures. Zero
	// selects the default; negative disables retries.
	LoginRetries int
}

// DeviceIdentity is the device description collected at connect time.
type DeviceIdentity struct {
	Model          string
	ProductID      string
	MAC            string
	Firmware       Firmware
	AiHomeAPILevel string
	HTTPDVersion   string
}

// Client is the router client facade. It coordinates the session
// manager, the data pipeline and the command dispatcher behind the
// public operations. Safe for concurrent use.
type Client struct {
	cfg      Config
	tr       *transport.Transport
	sess     *session
	pipe     *pipeline
	dispatch *dispatcher

	mu       sync.Mutex
	identity DeviceIdentity
}

// NewClient builds a client for the given configuration. No device
// communication happens until Connect.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("config: host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("config: username and password are required")
	}

	tr := transport.New(transport.Options{
		Host:               cfg.Host,
		Port:               cfg.Port,
		UseTLS:             cfg.UseTLS,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Timeout:            cfg.Timeout,
		MaxConns:           cfg.MaxConns,
		UserAgent:          userAgent,
	})

	sess := newSession(tr, cfg.Username, cfg.Password)
	if cfg.TokenValidity > 0 {
		sess.validity = cfg.TokenValidity
	}
	if cfg.RenewalMargin > 0 {
		sess.renewalMargin = cfg.RenewalMargin
	}
	if cfg.LoginRetries != 0 {
		sess.maxRetries = max(cfg.LoginRetries, 0)
	}

	client := &Client{cfg: cfg, tr: tr, sess: sess}
	client.pipe = newPipeline(sess, cfg.CacheFreshness, client.firmware)
	client.dispatch = newDispatcher(sess, client.pipe)
	return client, nil
}

// Connect establishes a session and collects the device identity. It
// fails with an authentication error on rejected credentials, a
// connectivity error on an unreachable host and a certificate error on
// TLS validation failure.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.sess.ensure(ctx); err != nil {
		return err
	}
	if err := c.collectIdentity(ctx); err != nil {
		// Identity is best-effort beyond firmware: without it only
		// firmware-gated endpoints degrade.
		logging.Warn("Device identity collection incomplete", zap.Error(err))
	}
	return nil
}

// Disconnect invalidates the session with a best-effort logout and
// clears local state. Safe to call multiple times. The client is
// terminal afterwards; build a new one to reconnect.
func (c *Client) Disconnect(ctx context.Context) {
	c.sess.disconnect(ctx)
}

// Connected reports whether an authenticated session currently exists.
func (c *Client) Connected() bool {
	return c.sess.currentState() == stateAuthenticated
}

// Identity returns the collected device identity. Zero-valued until
// Connect succeeds.
func (c *Client) Identity() DeviceIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// firmware is the pipeline's view of the current firmware descriptor.
func (c *Client) firmware() Firmware {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity.Firmware
}

// identityHooks is the nvram query describing the device.
var identityHooks = []string{
	"productid", "lan_hwaddr", "firmver", "buildno", "extendno",
}

// collectIdentity queries the nvram identity keys and the login headers.
func (c *Client) collectIdentity(ctx context.Context) error {
	body, err := c.sess.request(ctx, http.MethodPost, endpointHook, hookPayload(nvramHooks(identityHooks...)...))
	if err != nil {
		return err
	}
	fields, err := parseNvramDump(body)
	if err != nil {
		return err
	}

	identity := DeviceIdentity{}
	if productID, ok := fields["productid"].(string); ok {
		identity.ProductID = strings.TrimSpace(productID)
	}
	if mac, ok := fields["lan_hwaddr"].(string); ok {
		if canonical, err := security.NormalizeMAC(mac); err == nil {
			identity.MAC = canonical
		}
	}

	firmver, _ := fields["firmver"].(string)
	buildno, _ := fields["buildno"].(string)
	extendno, _ := fields["extendno"].(string)
	if firmver != "" && buildno != "" {
		combined := firmver + "." + buildno
		if extendno != "" {
			combined += "_" + extendno
		}
		if fw, err := ParseFirmware(combined); err == nil {
			identity.Firmware = fw
		}
	}

	c.sess.mu.Lock()
	identity.Model = c.sess.apiInfo["Model_Name"]
	identity.AiHomeAPILevel = c.sess.apiInfo["AiHOMEAPILevel"]
	identity.HTTPDVersion = c.sess.apiInfo["Httpd_AiHome_Ver"]
	c.sess.mu.Unlock()
	if identity.Model == "" {
		identity.Model = identity.ProductID
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	logging.Info("Device identified",
		zap.String("model", identity.Model),
		zap.String("firmware", identity.Firmware.String()),
		zap.Stringer("firmware_type", identity.Firmware.Type),
	)
	return nil
}

// GetData returns the normalized record for a category. A fresh cached
// record is served without device communication unless forceRefresh is
// set. The result may be partial (some endpoints failed) or stale (all
// endpoints failed but a previous record exists); both are preferable to
// an error whenever some data is available.
func (c *Client) GetData(ctx context.Context, category Category, forceRefresh bool) (*Record, error) {
	return c.pipe.get(ctx, category, forceRefresh)
}

// RunCommand dispatches a control action. Commands are never retried
// automatically; a device rejection surfaces as a command error carrying
// the device-reported reason.
func (c *Client) RunCommand(ctx context.Context, name string, arguments map[string]string, mode CommandMode) (*CommandResult, error) {
	return c.dispatch.run(ctx, name, arguments, mode)
}

// GetClients is a typed shorthand for the CLIENTS category.
func (c *Client) GetClients(ctx context.Context) (*ClientList, error) {
	record, err := c.GetData(ctx, CategoryClients, false)
	if err != nil {
		return nil, err
	}
	list, _ := record.Data.(*ClientList)
	if list == nil {
		list = &ClientList{Clients: map[string]ClientInfo{}}
	}
	return list, nil
}

// GetWAN is a typed shorthand for the WAN category.
func (c *Client) GetWAN(ctx context.Context) (*WANStatus, error) {
	record, err := c.GetData(ctx, CategoryWAN, false)
	if err != nil {
		return nil, err
	}
	status, _ := record.Data.(*WANStatus)
	if status == nil {
		status = &WANStatus{}
	}
	return status, nil
}

// Reboot restarts the device. The session usually survives the reboot
// on the device side but requests will fail until httpd is back.
func (c *Client) Reboot(ctx context.Context) error {
	_, err := c.RunCommand(ctx, "reboot", nil, ModeApply)
	return err
}

// RestartService restarts a firmware service by its short name, e.g.
// "httpd" or "wireless".
func (c *Client) RestartService(ctx context.Context, service string) error {
	if service == "" {
		return newError(KindCommand, "service name must not be empty", nil)
	}
	_, err := c.RunCommand(ctx, "restart_"+service, nil, ModeApply)
	return err
}

// SetLED switches the device's front LEDs on or off.
func (c *Client) SetLED(ctx context.Context, on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	_, err := c.RunCommand(ctx, "start_ctrl_led", map[string]string{"led_val": value}, ModeApply)
	return err
}

// BlockClient adds a parental-control block rule for the MAC and applies
// the firewall, cutting the device's internet access.
func (c *Client) BlockClient(ctx context.Context, mac string) error {
	return c.setClientBlock(ctx, mac, true)
}

// UnblockClient removes the parental-control block rule for the MAC.
func (c *Client) UnblockClient(ctx context.Context, mac string) error {
	return c.setClientBlock(ctx, mac, false)
}

func (c *Client) setClientBlock(ctx context.Context, mac string, block bool) error {
	canonical, err := security.NormalizeMAC(mac)
	if err != nil {
		return newError(KindCommand, err.Error(), nil)
	}

	// Read the current rule set fresh: stale rules would be silently
	// overwritten on apply.
	record, err := c.GetData(ctx, CategoryParentalControl, true)
	if err != nil {
		return err
	}
	pc, _ := record.Data.(*ParentalControl)
	if pc == nil {
		pc = &ParentalControl{}
	}

	rules := make([]ParentalControlRule, 0, len(pc.Rules)+1)
	found := false
	for _, rule := range pc.Rules {
		if rule.MAC == canonical {
			found = true
			if !block {
				continue // drop the rule
			}
			rule.Type = "block"
		}
		rules = append(rules, rule)
	}
	if block && !found {
		name := canonical
		if list, err := c.GetClients(ctx); err == nil {
			if client, ok := list.Clients[canonical]; ok && client.Name != "" {
				name = client.Name
			}
		}
		rules = append(rules, ParentalControlRule{MAC: canonical, Name: name, Type: "block"})
	}

	macs := make([]string, 0, len(rules))
	names := make([]string, 0, len(rules))
	types := make([]string, 0, len(rules))
	for _, rule := range rules {
		macs = append(macs, rule.MAC)
		names = append(names, rule.Name)
		ruleType := "1"
		if rule.Type == "block" {
			ruleType = "2"
		}
		types = append(types, ruleType)
	}

	arguments := map[string]string{
		nvramPCState: "1",
		nvramPCType:  strings.Join(types, ">"),
		nvramPCMAC:   strings.Join(macs, ">"),
		nvramPCName:  strings.Join(names, ">"),
	}
	if len(rules) == 0 {
		arguments[nvramPCState] = "0"
	}

	_, err = c.RunCommand(ctx, "restart_firewall", arguments, ModeApply)
	return err
}
