package ui

import (
	"strings"
	"testing"
)

func TestHeaderRender(t *testing.T) {
	header := NewHeader("RT-AX88U", "asuslink status", map[string]string{
		"Host":     "192.168.1.1",
		"Firmware": "3.0.0.4.388.24243",
	}).SetWidth(80)

	out := header.Render()
	if !strings.Contains(out, "RT-AX88U") {
		t.Errorf("header missing uppercased title:\n%s", out)
	}
	if !strings.Contains(out, "asuslink status") {
		t.Errorf("header missing command:\n%s", out)
	}
	for _, want := range []string{"Host:", "192.168.1.1", "Firmware:", "3.0.0.4.388.24243"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q:\n%s", want, out)
		}
	}

	// Params render in sorted key order, Firmware before Host.
	if strings.Index(out, "Firmware:") > strings.Index(out, "Host:") {
		t.Errorf("params not in sorted order:\n%s", out)
	}
}

func TestHeaderRenderNoParams(t *testing.T) {
	out := NewHeader("ASUS Router", "asuslink watch", nil).SetWidth(80).Render()
	if !strings.Contains(out, "ASUS ROUTER") {
		t.Errorf("title not uppercased:\n%s", out)
	}
	// Border, title, command, border: no divider or param lines.
	if lines := strings.Split(out, "\n"); len(lines) != 4 {
		t.Errorf("render has %d lines, want 4:\n%s", len(lines), out)
	}
}

func TestHeaderMinimumWidth(t *testing.T) {
	out := NewHeader("X", "asuslink", nil).SetWidth(1).Render()
	lines := strings.Split(out, "\n")
	if len(lines) == 0 {
		t.Fatalf("empty render")
	}
	// Narrow terminals clamp to the minimum rather than collapsing.
	if w := len([]rune(lines[0])); w < MinTerminalWidth-2 {
		t.Errorf("top border width = %d, want at least %d", w, MinTerminalWidth-2)
	}
}
