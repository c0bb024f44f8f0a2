// Package readers implements the clean stage of the data pipeline: it
// turns the firmware's loosely formatted responses (JS variable dumps,
// pseudo-JSON, status XML) into plain Go maps that the transform stage
// can consume.
package readers

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// jsVarPattern matches `key = value` lines in JS variable dumps served by
// the ajax_*.asp pages.
var jsVarPattern = regexp.MustCompile(`(\w+)\s*=\s*(.*)`)

// unquotedKeyPattern matches bare object keys the firmware emits in
// pseudo-JSON pages (e.g. `fromNetworkmapd`).
var unquotedKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)

// CleanContent strips a UTF-8 BOM and the stray control characters some
// firmware builds prepend to responses.
func CleanContent(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, content)
}

// JSVariables parses a JS variable dump into a key/value map. Lines that
// do not look like assignments are skipped. Values keep their raw textual
// form with quotes and trailing semicolons removed.
func JSVariables(content string) map[string]string {
	vars := make(map[string]string)

	for _, line := range strings.Split(CleanContent(content), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSuffix(line, ";")
		line = strings.TrimPrefix(line, "var ")

		match := jsVarPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		value := strings.TrimSpace(match[2])
		value = strings.Trim(value, `"'`)
		vars[match[1]] = value
	}

	return vars
}

// PseudoJSON repairs the almost-JSON the firmware serves on hook and
// networkmap pages and decodes it into a generic map. Repairs applied:
// bare object keys are quoted, single-quoted strings are converted,
// trailing commas are dropped and anything outside the outermost braces
// is discarded.
func PseudoJSON(content string) (map[string]any, error) {
	content = CleanContent(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in content")
	}
	content = content[start : end+1]

	// Quote bare keys. Run twice so keys adjacent after the first pass
	// (`{a:1,b:2}`) are all covered.
	content = unquotedKeyPattern.ReplaceAllString(content, `$1"$2"$3`)
	content = unquotedKeyPattern.ReplaceAllString(content, `$1"$2"$3`)

	content = strings.ReplaceAll(content, "'", `"`)
	content = removeTrailingCommas(content)

	var result map[string]any
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse pseudo-JSON: %w", err)
	}
	return result, nil
}

// removeTrailingCommas drops commas that directly precede a closing
// bracket, which the firmware emits on several pages.
func removeTrailingCommas(content string) string {
	content = regexp.MustCompile(`,\s*}`).ReplaceAllString(content, "}")
	content = regexp.MustCompile(`,\s*]`).ReplaceAllString(content, "]")
	return content
}

// ExtractBetween returns the part of content between the first occurrence
// of start and the following occurrence of end. Used to cut the data
// object out of pages that embed it in scripts (e.g. update_clients.asp
// keeps it between `originData =` and `networkmap_fullscan`).
func ExtractBetween(content, start, end string) (string, bool) {
	content = strings.ReplaceAll(content, "\n", "")

	i := strings.Index(content, start)
	if i == -1 {
		return "", false
	}
	rest := content[i+len(start):]

	j := strings.Index(rest, end)
	if j == -1 {
		return "", false
	}
	return rest[:j], true
}

// xmlNode is a minimal recursive decoder target for the devicemap page.
type xmlNode struct {
	XMLName  xml.Name
	Content  string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

// DeviceMapXML flattens the ajax_status.xml devicemap into a map of
// section-qualified keys ("wan_status", "sys_uptimeStr", ...). Leaf
// elements repeated within a section keep the last value.
func DeviceMapXML(content string) (map[string]string, error) {
	var root xmlNode
	if err := xml.Unmarshal([]byte(CleanContent(content)), &root); err != nil {
		return nil, fmt.Errorf("failed to parse devicemap XML: %w", err)
	}

	flat := make(map[string]string)
	for _, section := range root.Children {
		if len(section.Children) == 0 {
			flat[section.XMLName.Local] = strings.TrimSpace(section.Content)
			continue
		}
		for _, leaf := range section.Children {
			key := section.XMLName.Local + "_" + leaf.XMLName.Local
			flat[key] = strings.TrimSpace(leaf.Content)
		}
	}
	return flat, nil
}

// MergeMaps copies src into dst, with src winning on key collisions
// unless its value is nil. dst may be nil; the merged map is returned.
func MergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for key, value := range src {
		if value == nil {
			if _, ok := dst[key]; ok {
				continue
			}
		}
		dst[key] = value
	}
	return dst
}
