package asuslink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

const updateClientsPage = `
<script>
var originData = {
  fromNetworkmapd: [{
    "AA:BB:CC:DD:EE:FF": {ip: "192.168.1.10", name: "laptop", vendor: "Apple", isOnline: "1", isWL: "2"},
    "11:22:33:44:55:66": {ip: "192.168.1.20", name: "printer", isOnline: "0", isWL: "0"},
  }],
}
var networkmap_fullscan = 0;
</script>
`

const clientlistHookResponse = `{"get_clientlist":{
  "AA:BB:CC:DD:EE:FF":{"nickName":"Laptop","rssi":"-40"},
  "maclist":["AA:BB:CC:DD:EE:FF"],
  "ClientAPILevel":"2"
}}`

// setupRouter configures a fake router with identity nvram, client pages
// and a parental-control table that updates on restart_firewall.
func setupRouter(t *testing.T) *fakeRouter {
	t.Helper()
	router := newFakeRouter(t)

	router.setNvram("productid", "RT-AX88U")
	router.setNvram("lan_hwaddr", "aa:bb:cc:00:11:22")
	router.setNvram("firmver", "3.0.0.4")
	router.setNvram("buildno", "388")
	router.setNvram("extendno", "24243")
	router.setNvram("MULTIFILTER_ALL", "0")

	router.handle("update_clients.asp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, updateClientsPage)
	})
	router.handle("appGet.cgi", func(w http.ResponseWriter, r *http.Request) {
		body := readBody(r)
		if strings.Contains(body, "get_clientlist()") {
			fmt.Fprint(w, clientlistHookResponse)
			return
		}
		router.answerHook(w, r, body)
	})
	router.handle("apply.cgi", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		service := r.PostForm.Get("rc_service")
		if service == "restart_firewall" {
			for _, key := range []string{"MULTIFILTER_ALL", "MULTIFILTER_ENABLE", "MULTIFILTER_MAC", "MULTIFILTER_DEVICENAME"} {
				router.setNvram(key, r.PostForm.Get(key))
			}
		}
		fmt.Fprintf(w, `{"run_service":%q,"modify":"1"}`, service)
	})

	return router
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing host", cfg: Config{Username: "admin", Password: "x"}},
		{name: "missing username", cfg: Config{Host: "192.168.1.1", Password: "x"}},
		{name: "missing password", cfg: Config{Host: "192.168.1.1", Username: "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.cfg); err == nil {
				t.Errorf("NewClient accepted invalid config")
			}
		})
	}
}

func TestClientConnectCollectsIdentity(t *testing.T) {
	router := setupRouter(t)
	client := router.client(t)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !client.Connected() {
		t.Errorf("Connected = false after successful Connect")
	}

	identity := client.Identity()
	if identity.Model != "RT-AX88U" {
		t.Errorf("Model = %q, want RT-AX88U", identity.Model)
	}
	if identity.MAC != "AA:BB:CC:00:11:22" {
		t.Errorf("MAC = %q, want canonical uppercase form", identity.MAC)
	}
	if identity.Firmware.Type != FirmwareStock {
		t.Errorf("firmware type = %v, want stock", identity.Firmware.Type)
	}
	if got := identity.Firmware.String(); got != "3.0.0.4.388.24243" {
		t.Errorf("firmware = %q, want 3.0.0.4.388.24243", got)
	}
	if identity.AiHomeAPILevel != "2" {
		t.Errorf("AiHomeAPILevel = %q, want 2", identity.AiHomeAPILevel)
	}
}

func TestClientConnectWrongCredentials(t *testing.T) {
	router := setupRouter(t)
	router.wrongCreds = true
	client := router.client(t)

	err := client.Connect(context.Background())
	if !IsAuthenticationError(err) {
		t.Fatalf("Connect = %v, want authentication error", err)
	}
}

func TestClientGetClients(t *testing.T) {
	router := setupRouter(t)
	client := router.client(t)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	list, err := client.GetClients(context.Background())
	if err != nil {
		t.Fatalf("GetClients failed: %v", err)
	}
	if len(list.Clients) != 2 {
		t.Fatalf("clients = %d, want 2", len(list.Clients))
	}

	laptop, ok := list.Clients["AA:BB:CC:DD:EE:FF"]
	if !ok {
		t.Fatalf("laptop missing from client list")
	}
	if laptop.Name != "Laptop" {
		t.Errorf("Name = %q, want clientlist nickName to refine networkmap name", laptop.Name)
	}
	if laptop.IP != "192.168.1.10" {
		t.Errorf("IP = %q, want 192.168.1.10", laptop.IP)
	}
	if !laptop.Online || laptop.Connection != ConnectionWLAN5G {
		t.Errorf("laptop = %+v, want online on 5ghz", laptop)
	}
	if laptop.RSSI == nil || *laptop.RSSI != -40 {
		t.Errorf("RSSI = %v, want -40", laptop.RSSI)
	}
	if laptop.Blocked {
		t.Errorf("Blocked = true before any rule exists")
	}

	printer := list.Clients["11:22:33:44:55:66"]
	if printer.Online || printer.Connection != ConnectionWired {
		t.Errorf("printer = %+v, want offline wired", printer)
	}
}

func TestClientBlockAndUnblock(t *testing.T) {
	router := setupRouter(t)
	client := router.client(t)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.BlockClient(context.Background(), "aa-bb-cc-dd-ee-ff"); err != nil {
		t.Fatalf("BlockClient failed: %v", err)
	}

	// The firewall restart invalidates the clients cache, so this re-reads
	// the updated parental-control table.
	list, err := client.GetClients(context.Background())
	if err != nil {
		t.Fatalf("GetClients failed: %v", err)
	}
	if !list.Clients["AA:BB:CC:DD:EE:FF"].Blocked {
		t.Errorf("laptop not blocked after BlockClient")
	}

	record, err := client.GetData(context.Background(), CategoryParentalControl, false)
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	pc := record.Data.(*ParentalControl)
	if !pc.Enabled || len(pc.Rules) != 1 {
		t.Fatalf("parental control = %+v, want one rule with table enabled", pc)
	}
	if pc.Rules[0].MAC != "AA:BB:CC:DD:EE:FF" || pc.Rules[0].Type != "block" {
		t.Errorf("rule = %+v, want block rule for laptop", pc.Rules[0])
	}
	if pc.Rules[0].Name != "Laptop" {
		t.Errorf("rule name = %q, want client name from list", pc.Rules[0].Name)
	}

	if err := client.UnblockClient(context.Background(), "AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("UnblockClient failed: %v", err)
	}
	list, err = client.GetClients(context.Background())
	if err != nil {
		t.Fatalf("GetClients failed: %v", err)
	}
	if list.Clients["AA:BB:CC:DD:EE:FF"].Blocked {
		t.Errorf("laptop still blocked after UnblockClient")
	}
}

func TestClientBlockInvalidMAC(t *testing.T) {
	router := setupRouter(t)
	client := router.client(t)

	err := client.BlockClient(context.Background(), "not-a-mac")
	if !IsCommandError(err) {
		t.Fatalf("BlockClient = %v, want command error for invalid MAC", err)
	}
	if got := router.logins(); got != 0 {
		t.Errorf("login count = %d, invalid MAC must not touch the device", got)
	}
}

func TestClientReboot(t *testing.T) {
	router := setupRouter(t)
	client := router.client(t)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Warm a cache entry that the reboot must drop.
	if _, err := client.GetData(context.Background(), CategoryWAN, false); err == nil {
		// WAN endpoints are not configured on this fake; ignore either way.
		t.Log("unexpected WAN success, continuing")
	}

	if err := client.Reboot(context.Background()); err != nil {
		t.Fatalf("Reboot failed: %v", err)
	}
	if got := router.requestCount("apply.cgi"); got != 1 {
		t.Errorf("apply.cgi requests = %d, want 1", got)
	}
}

func TestClientSetLED(t *testing.T) {
	router := setupRouter(t)
	client := router.client(t)

	var gotService, gotValue string
	router.handle("apply.cgi", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotService = r.PostForm.Get("rc_service")
		gotValue = r.PostForm.Get("led_val")
		fmt.Fprintf(w, `{"run_service":%q}`, gotService)
	})

	if err := client.SetLED(context.Background(), false); err != nil {
		t.Fatalf("SetLED failed: %v", err)
	}
	if gotService != "start_ctrl_led" || gotValue != "0" {
		t.Errorf("dispatched %q led_val=%q, want start_ctrl_led led_val=0", gotService, gotValue)
	}

	if err := client.SetLED(context.Background(), true); err != nil {
		t.Fatalf("SetLED failed: %v", err)
	}
	if gotValue != "1" {
		t.Errorf("led_val = %q, want 1", gotValue)
	}
}

func TestClientRestartService(t *testing.T) {
	router := setupRouter(t)
	client := router.client(t)

	if err := client.RestartService(context.Background(), "httpd"); err != nil {
		t.Fatalf("RestartService failed: %v", err)
	}
	if got := router.requestCount("apply.cgi"); got != 1 {
		t.Errorf("apply.cgi requests = %d, want 1", got)
	}

	err := client.RestartService(context.Background(), "")
	if !IsCommandError(err) {
		t.Errorf("empty service = %v, want command error", err)
	}
	if got := router.requestCount("apply.cgi"); got != 1 {
		t.Errorf("apply.cgi requests = %d after empty service, want still 1", got)
	}
}

func TestClientDisconnect(t *testing.T) {
	router := setupRouter(t)
	client := router.client(t)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	client.Disconnect(context.Background())
	if client.Connected() {
		t.Errorf("Connected = true after Disconnect")
	}
	_, err := client.GetClients(context.Background())
	if !IsAuthenticationError(err) {
		t.Errorf("GetClients after Disconnect = %v, want authentication error", err)
	}
}
