package asuslink

import (
	"fmt"
	"net/http"
	"strings"
)

// Device endpoint paths. Hook pages answer composed queries, the ajax
// pages serve fixed dumps in assorted formats.
const (
	endpointHook          = "appGet.cgi"
	endpointUpdateClients = "update_clients.asp"
	endpointDeviceMap     = "ajax_status.xml"
	endpointSysinfo       = "ajax_sysinfo.asp"
	endpointTemperature   = "ajax_coretmp.asp"
	endpointFirmware      = "detect_firmware.asp"
	endpointApply         = "apply.cgi"
	endpointApplyApp      = "applyapp.cgi"
)

// responseShape describes the raw format an endpoint serves. The parse
// functions in transform.go pick the matching reader.
type responseShape int

const (
	shapeJSON responseShape = iota
	shapePseudoJSON
	shapeJSVariables
	shapeXML
)

// parseFunc turns a single endpoint's raw response into a flat field map.
// A parse failure fails only that endpoint, not the category.
type parseFunc func(body []byte) (map[string]any, error)

// endpointDescriptor is one immutable entry of the endpoint table: how to
// fetch part of a category's data and the firmware it applies to.
type endpointDescriptor struct {
	path    string
	method  string
	payload string
	shape   responseShape

	// fork restricts the descriptor to one firmware line;
	// FirmwareUnknown means both.
	fork FirmwareType

	// minVersion, when set, is the oldest firmware known to serve the
	// endpoint.
	minVersion *Firmware

	parse parseFunc
}

// applicable reports whether the descriptor matches the given firmware.
// An unknown firmware (not yet identified) matches unrestricted
// descriptors only.
func (d endpointDescriptor) applicable(fw Firmware) bool {
	if d.fork != FirmwareUnknown && d.fork != fw.Type {
		return false
	}
	if d.minVersion != nil && !fw.AtLeast(*d.minVersion) {
		return false
	}
	return true
}

// hookPayload composes an appGet.cgi query from hook calls.
func hookPayload(hooks ...string) string {
	return "hook=" + strings.Join(hooks, ";")
}

// nvramHooks builds nvram_get hook calls for the given keys.
func nvramHooks(keys ...string) []string {
	hooks := make([]string, 0, len(keys))
	for _, key := range keys {
		hooks = append(hooks, fmt.Sprintf("nvram_get(%s)", key))
	}
	return hooks
}

// Parental control nvram keys (MULTIFILTER table).
const (
	nvramPCState    = "MULTIFILTER_ALL"
	nvramPCType     = "MULTIFILTER_ENABLE"
	nvramPCMAC      = "MULTIFILTER_MAC"
	nvramPCName     = "MULTIFILTER_DEVICENAME"
	nvramPCBlockAll = "MULTIFILTER_BLOCK_ALL"
)

// endpointTable is the static category → endpoints mapping. Order is
// significant: later descriptors win on field collisions when a category
// merges several endpoints. Registered once, never mutated.
var endpointTable = map[Category][]endpointDescriptor{
	CategoryClients: {
		{
			path:   endpointUpdateClients,
			method: http.MethodPost,
			shape:  shapePseudoJSON,
			parse:  parseUpdateClients,
		},
		{
			path:    endpointHook,
			method:  http.MethodPost,
			payload: hookPayload("get_clientlist()"),
			shape:   shapeJSON,
			parse:   parseClientlistHook,
		},
		{
			path:    endpointHook,
			method:  http.MethodPost,
			payload: hookPayload(nvramHooks(nvramPCState, nvramPCType, nvramPCMAC)...),
			shape:   shapeJSON,
			parse:   parseNvramDump,
		},
	},
	CategoryNetwork: {
		{
			path:    endpointHook,
			method:  http.MethodPost,
			payload: hookPayload("netdev(appobj)"),
			shape:   shapeJSON,
			parse:   parseNetdevHook,
		},
	},
	CategoryWAN: {
		{
			path:   endpointDeviceMap,
			method: http.MethodPost,
			shape:  shapeXML,
			parse:  parseDeviceMap,
		},
		{
			path:    endpointHook,
			method:  http.MethodPost,
			payload: hookPayload("wanlink_state(appobj)"),
			shape:   shapeJSON,
			parse:   parseWanlinkHook,
		},
	},
	CategorySysinfo: {
		{
			path:   endpointSysinfo,
			method: http.MethodPost,
			shape:  shapeJSVariables,
			fork:   FirmwareMerlin,
			parse:  parseSysinfoPage,
		},
	},
	CategoryFirmware: {
		{
			path:    endpointHook,
			method:  http.MethodPost,
			payload: hookPayload(nvramHooks("firmver", "buildno", "extendno")...),
			shape:   shapeJSON,
			parse:   parseNvramDump,
		},
		{
			path:   endpointFirmware,
			method: http.MethodPost,
			shape:  shapePseudoJSON,
			parse:  parseFirmwareCheck,
		},
	},
	CategoryParentalControl: {
		{
			path:   endpointHook,
			method: http.MethodPost,
			payload: hookPayload(nvramHooks(
				nvramPCState, nvramPCType, nvramPCMAC, nvramPCName, nvramPCBlockAll,
			)...),
			shape: shapeJSON,
			parse: parseNvramDump,
		},
	},
	CategoryTemperature: {
		{
			path:   endpointTemperature,
			method: http.MethodPost,
			shape:  shapeJSVariables,
			parse:  parseTemperaturePage,
		},
	},
}

// endpointsFor resolves the ordered descriptors applicable to a category
// on the given firmware. Pure: no I/O, deterministic for equal inputs.
// An unknown category is an error; a known category with no applicable
// endpoint returns an empty slice, which callers treat as "no data
// available on this firmware".
func endpointsFor(category Category, fw Firmware) ([]endpointDescriptor, error) {
	if !category.valid() {
		return nil, newError(KindUnsupportedData, fmt.Sprintf("unknown data category %q", category), nil)
	}

	descriptors := endpointTable[category]
	applicable := make([]endpointDescriptor, 0, len(descriptors))
	for _, descriptor := range descriptors {
		if descriptor.applicable(fw) {
			applicable = append(applicable, descriptor)
		}
	}
	return applicable, nil
}

// commandInvalidations maps a control action to the data categories its
// side effects make stale. Checked on every successful command dispatch.
var commandInvalidations = map[string][]Category{
	"restart_firewall":    {CategoryClients, CategoryParentalControl},
	"restart_wireless":    {CategoryClients, CategoryNetwork, CategorySysinfo},
	"restart_wan":         {CategoryWAN, CategoryNetwork},
	"restart_net_and_phy": {CategoryClients, CategoryNetwork, CategoryWAN},
	"reboot":              Categories(),
}
