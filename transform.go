package asuslink

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/asuslink/internal/readers"
	"github.com/muurk/asuslink/internal/security"
)

// This file holds the clean and transform stages: one parse function per
// endpoint shape producing a flat field map, and one transform per
// category producing the typed record. Both are best-effort per field: a
// value that cannot be read into its target type is dropped, never fatal
// for the category.

// ---- endpoint parsers (clean stage) ----

// parseUpdateClients reads the networkmap dump embedded in
// update_clients.asp between the originData assignment and the
// networkmap_fullscan marker.
func parseUpdateClients(body []byte) (map[string]any, error) {
	content, ok := readers.ExtractBetween(string(body), "originData = ", "networkmap_fullscan")
	if !ok {
		return nil, fmt.Errorf("no originData object in update_clients page")
	}

	data, err := readers.PseudoJSON(content)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]any)
	switch origin := data["fromNetworkmapd"].(type) {
	case []any:
		for _, entry := range origin {
			entryMap, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			collectClientEntries(clients, entryMap)
		}
	case map[string]any:
		collectClientEntries(clients, origin)
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("networkmap dump contains no clients")
	}
	return map[string]any{"networkmap_clients": clients}, nil
}

// parseClientlistHook reads the get_clientlist() hook response.
func parseClientlistHook(body []byte) (map[string]any, error) {
	var outer map[string]any
	if err := json.Unmarshal([]byte(readers.CleanContent(string(body))), &outer); err != nil {
		return nil, fmt.Errorf("failed to parse clientlist hook: %w", err)
	}

	list, ok := outer["get_clientlist"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("clientlist hook response has no get_clientlist object")
	}

	clients := make(map[string]any)
	collectClientEntries(clients, list)
	return map[string]any{"clientlist_clients": clients}, nil
}

// collectClientEntries copies MAC-keyed entries out of a firmware map,
// skipping bookkeeping keys like maclist and ClientAPILevel.
func collectClientEntries(dst map[string]any, src map[string]any) {
	for key, value := range src {
		if !security.ValidMAC(key) {
			continue
		}
		if fields, ok := value.(map[string]any); ok {
			canonical, err := security.NormalizeMAC(key)
			if err != nil {
				continue
			}
			dst[canonical] = fields
		}
	}
}

// parseNvramDump reads a plain JSON hook response of nvram key/values.
func parseNvramDump(body []byte) (map[string]any, error) {
	data, err := readers.PseudoJSON(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nvram dump: %w", err)
	}
	return data, nil
}

// parseNetdevHook reads the netdev(appobj) traffic counter hook.
func parseNetdevHook(body []byte) (map[string]any, error) {
	data, err := readers.PseudoJSON(string(body))
	if err != nil {
		return nil, err
	}
	netdev, ok := data["netdev"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("netdev hook response has no netdev object")
	}
	return map[string]any{"netdev": netdev}, nil
}

// parseWanlinkHook reads wanlink_state(appobj) into the canonical wan_*
// field keys shared with the devicemap parser, so the pipeline's
// later-wins merge applies field by field.
func parseWanlinkHook(body []byte) (map[string]any, error) {
	data, err := readers.PseudoJSON(string(body))
	if err != nil {
		return nil, err
	}
	state, ok := data["wanlink_state"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("wanlink hook response has no wanlink_state object")
	}

	fields := make(map[string]any)
	for key, value := range state {
		if strings.HasPrefix(key, "wan") {
			fields[key] = value
			continue
		}
		fields["wan_"+key] = value
	}
	return fields, nil
}

// parseDeviceMap flattens the ajax_status.xml devicemap.
func parseDeviceMap(body []byte) (map[string]any, error) {
	flat, err := readers.DeviceMapXML(string(body))
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any, len(flat))
	for key, value := range flat {
		fields[key] = value
	}
	return fields, nil
}

// parseSysinfoPage reads the Merlin sysinfo JS dump. Array values stay
// as raw string slices for the transform stage.
func parseSysinfoPage(body []byte) (map[string]any, error) {
	vars := readers.JSVariables(string(body))
	if len(vars) == 0 {
		return nil, fmt.Errorf("sysinfo page contains no variables")
	}

	fields := make(map[string]any, len(vars))
	for key, value := range vars {
		if strings.HasPrefix(value, "[") {
			fields[key] = splitJSArray(value)
			continue
		}
		fields[key] = value
	}
	return fields, nil
}

// splitJSArray splits a raw JS array literal into its string elements.
func splitJSArray(value string) []string {
	value = strings.Trim(value, "[]")
	parts := strings.Split(value, ",")
	elements := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `"'`)
		if part != "" {
			elements = append(elements, part)
		}
	}
	return elements
}

// parseTemperaturePage reads the ajax_coretmp.asp JS variables.
func parseTemperaturePage(body []byte) (map[string]any, error) {
	vars := readers.JSVariables(string(body))
	if len(vars) == 0 {
		return nil, fmt.Errorf("temperature page contains no variables")
	}
	fields := make(map[string]any, len(vars))
	for key, value := range vars {
		fields[key] = value
	}
	return fields, nil
}

// parseFirmwareCheck reads the detect_firmware.asp state object.
func parseFirmwareCheck(body []byte) (map[string]any, error) {
	data, err := readers.PseudoJSON(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse firmware check: %w", err)
	}
	return data, nil
}

// ---- category transforms ----

// transformCategory turns the merged field map of a category into its
// typed record.
func transformCategory(category Category, fields map[string]any) any {
	switch category {
	case CategoryClients:
		return transformClients(fields)
	case CategoryNetwork:
		return transformNetwork(fields)
	case CategoryWAN:
		return transformWAN(fields)
	case CategorySysinfo:
		return transformSysinfo(fields)
	case CategoryFirmware:
		return transformFirmware(fields)
	case CategoryParentalControl:
		return transformParentalControl(fields)
	case CategoryTemperature:
		return transformTemperature(fields)
	default:
		return nil
	}
}

// isWL values reported by the firmware for the client connection type.
var connectionTypes = map[int]ConnectionType{
	0: ConnectionWired,
	1: ConnectionWLAN2G,
	2: ConnectionWLAN5G,
	3: ConnectionWLAN5G2,
	4: ConnectionWLAN6G,
}

func transformClients(fields map[string]any) *ClientList {
	merged := make(map[string]map[string]any)

	// The networkmap dump is the baseline; the clientlist hook refines
	// it field by field.
	for _, source := range []string{"networkmap_clients", "clientlist_clients"} {
		sourceMap, ok := fields[source].(map[string]any)
		if !ok {
			continue
		}
		for mac, value := range sourceMap {
			clientFields, ok := value.(map[string]any)
			if !ok {
				continue
			}
			merged[mac] = readers.MergeMaps(merged[mac], clientFields)
		}
	}

	blocked := blockedMACs(fields)

	list := &ClientList{Clients: make(map[string]ClientInfo, len(merged))}
	for mac, clientFields := range merged {
		client := ClientInfo{MAC: mac, Connection: ConnectionUnknown}

		if ip, ok := readers.String(clientFields["ip"]); ok && security.ValidIPv4(ip) {
			client.IP = ip
		}
		if name, ok := readers.String(clientFields["nickName"]); ok {
			client.Name = name
		} else if name, ok := readers.String(clientFields["name"]); ok {
			client.Name = name
		}
		if vendor, ok := readers.String(clientFields["vendor"]); ok {
			client.Vendor = vendor
		}
		if online, ok := readers.Bool(clientFields["isOnline"]); ok {
			client.Online = online
		}
		if wl, ok := readers.Int(clientFields["isWL"]); ok {
			if connection, known := connectionTypes[wl]; known {
				client.Connection = connection
			}
		}
		if rssi, ok := readers.Int(clientFields["rssi"]); ok && rssi != 0 {
			client.RSSI = &rssi
		}
		client.Blocked = blocked[mac]

		list.Clients[mac] = client
	}
	return list
}

// blockedMACs extracts the set of MACs blocked through parental control
// from the MULTIFILTER nvram values, when present in the field map.
func blockedMACs(fields map[string]any) map[string]bool {
	blocked := make(map[string]bool)

	enabled, ok := readers.Bool(fields[nvramPCState])
	if !ok || !enabled {
		return blocked
	}

	macs, _ := readers.String(fields[nvramPCMAC])
	types, _ := readers.String(fields[nvramPCType])
	macList := strings.Split(macs, ">")
	typeList := strings.Split(types, ">")

	for i, mac := range macList {
		canonical, err := security.NormalizeMAC(mac)
		if err != nil {
			continue
		}
		// Rule type 2 disables internet for the MAC.
		if i < len(typeList) && strings.TrimSpace(typeList[i]) == "2" {
			blocked[canonical] = true
		}
	}
	return blocked
}

// netdev counter groups as reported by the firmware.
var netdevGroups = map[string]string{
	"INTERNET":  "wan",
	"WIRED":     "wired",
	"BRIDGE":    "bridge",
	"WIRELESS0": "2ghz",
	"WIRELESS1": "5ghz",
	"WIRELESS2": "5ghz2",
	"WIRELESS3": "6ghz",
}

func transformNetwork(fields map[string]any) *NetworkStats {
	stats := &NetworkStats{Interfaces: make(map[string]TrafficCounters)}

	netdev, ok := fields["netdev"].(map[string]any)
	if !ok {
		return stats
	}

	for prefix, group := range netdevGroups {
		rx, rxOK := hexCounter(netdev[prefix+"_rx"])
		tx, txOK := hexCounter(netdev[prefix+"_tx"])
		if !rxOK && !txOK {
			continue
		}
		stats.Interfaces[group] = TrafficCounters{RxBytes: rx, TxBytes: tx}
	}
	return stats
}

// hexCounter reads the firmware's 0x-prefixed traffic counters.
func hexCounter(value any) (int64, bool) {
	raw, ok := readers.String(value)
	if !ok {
		return 0, false
	}
	raw = strings.TrimPrefix(strings.ToLower(raw), "0x")
	n, err := strconv.ParseInt(raw, 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func transformWAN(fields map[string]any) *WANStatus {
	status := &WANStatus{}

	if raw, ok := readers.String(fields["wan_status"]); ok {
		status.Status = raw
		status.Connected = strings.EqualFold(raw, "connected") || raw == "1"
	} else if n, ok := readers.Int(fields["wan_status"]); ok {
		status.Connected = n == 1
		if status.Connected {
			status.Status = "connected"
		} else {
			status.Status = "disconnected"
		}
	}

	if ip, ok := readers.String(fields["wan_ipaddr"]); ok && security.ValidIPv4(ip) {
		status.IPAddress = ip
	}
	if gateway, ok := readers.String(fields["wan_gateway"]); ok && security.ValidIPv4(gateway) {
		status.Gateway = gateway
	}
	if mask, ok := readers.String(fields["wan_netmask"]); ok && security.ValidIPv4(mask) {
		status.Mask = mask
	}
	if proto, ok := readers.String(fields["wan_proto"]); ok {
		status.Protocol = proto
	}
	if dns, ok := readers.String(fields["wan_dns"]); ok {
		for _, server := range strings.Fields(dns) {
			if security.ValidIPv4(server) {
				status.DNS = append(status.DNS, server)
			}
		}
	}
	return status
}

// sysinfo band order on the wlc_N_arr variables.
var sysinfoBands = map[int]string{
	0: "2ghz",
	1: "5ghz",
	2: "5ghz2",
	3: "6ghz",
}

func transformSysinfo(fields map[string]any) *Sysinfo {
	info := &Sysinfo{WLAN: make(map[string]WLANStats)}

	for index, band := range sysinfoBands {
		arr, ok := fields[fmt.Sprintf("wlc_%d_arr", index)].([]string)
		if !ok || len(arr) < 3 {
			continue
		}
		stats := WLANStats{}
		if n, ok := readers.Int(arr[0]); ok {
			stats.Associated = n
		}
		if n, ok := readers.Int(arr[1]); ok {
			stats.Authorized = n
		}
		if n, ok := readers.Int(arr[2]); ok {
			stats.Authenticated = n
		}
		info.WLAN[band] = stats
	}

	if arr, ok := fields["conn_stats_arr"].([]string); ok && len(arr) >= 2 {
		if n, ok := readers.Int(arr[0]); ok {
			info.ConnTotal = &n
		}
		if n, ok := readers.Int(arr[1]); ok {
			info.ConnActive = &n
		}
	}

	if arr, ok := fields["cpu_stats_arr"].([]string); ok {
		for _, raw := range arr {
			if f, ok := readers.Float(raw); ok {
				info.LoadAverage = append(info.LoadAverage, f)
			}
		}
	}
	return info
}

func transformFirmware(fields map[string]any) *FirmwareInfo {
	info := &FirmwareInfo{}

	firmver, _ := readers.String(fields["firmver"])
	buildno, _ := readers.String(fields["buildno"])
	extendno, _ := readers.String(fields["extendno"])
	if firmver != "" && buildno != "" {
		combined := firmver + "." + buildno
		if extendno != "" {
			combined += "_" + extendno
		}
		if fw, err := ParseFirmware(combined); err == nil {
			info.Current = fw
		}
	}

	if available, ok := readers.String(fields["webs_state_info"]); ok {
		if fw, err := ParseFirmware(available); err == nil {
			info.Available = &fw
			info.UpdateAvailable = info.Current.Less(fw)
		}
	}
	if flag, ok := readers.Bool(fields["webs_state_update"]); ok && !flag {
		// Device has not completed an update check; keep versions but do
		// not claim an update.
		info.UpdateAvailable = false
	}
	return info
}

func transformParentalControl(fields map[string]any) *ParentalControl {
	pc := &ParentalControl{}

	if enabled, ok := readers.Bool(fields[nvramPCState]); ok {
		pc.Enabled = enabled
	}
	if blockAll, ok := readers.Bool(fields[nvramPCBlockAll]); ok {
		pc.BlockAll = blockAll
	}

	macs, _ := readers.String(fields[nvramPCMAC])
	names, _ := readers.String(fields[nvramPCName])
	types, _ := readers.String(fields[nvramPCType])
	if macs == "" {
		return pc
	}

	macList := strings.Split(macs, ">")
	nameList := strings.Split(names, ">")
	typeList := strings.Split(types, ">")

	for i, mac := range macList {
		canonical, err := security.NormalizeMAC(mac)
		if err != nil {
			continue
		}
		rule := ParentalControlRule{MAC: canonical, Type: "disable"}
		if i < len(nameList) {
			rule.Name = strings.TrimSpace(nameList[i])
		}
		if i < len(typeList) {
			switch strings.TrimSpace(typeList[i]) {
			case "1":
				rule.Type = "time"
			case "2":
				rule.Type = "block"
			}
		}
		pc.Rules = append(pc.Rules, rule)
	}
	return pc
}

func transformTemperature(fields map[string]any) *Temperature {
	temperature := &Temperature{}

	temperature.CPU = readTemperature(fields, "curr_cpuTemp", "cpu_temperature")
	temperature.WLAN2G = readTemperature(fields, "curr_coreTmp_2_raw", "curr_coreTmp_wl0_raw")
	temperature.WLAN5G = readTemperature(fields, "curr_coreTmp_5_raw", "curr_coreTmp_wl1_raw")

	return temperature
}

// readTemperature tries the known variable spellings for a sensor and
// strips the &deg;C suffix some firmware builds append. A "disabled"
// sensor stays nil.
func readTemperature(fields map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := readers.String(fields[key])
		if !ok {
			continue
		}
		raw = strings.TrimSuffix(raw, "&deg;C")
		raw = strings.TrimSpace(raw)
		if f, ok := readers.Float(raw); ok {
			return &f
		}
	}
	return nil
}
