package asuslink

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FirmwareType distinguishes stock firmware from the community Merlin
// fork. Some endpoints exist only on one of the two.
type FirmwareType int

const (
	FirmwareUnknown FirmwareType = iota
	FirmwareStock
	FirmwareMerlin
)

// String returns the firmware type name
func (t FirmwareType) String() string {
	switch t {
	case FirmwareStock:
		return "stock"
	case FirmwareMerlin:
		return "merlin"
	default:
		return "unknown"
	}
}

// Firmware is a parsed firmware version. The stock versioning scheme is
// major.minor.build_revision, e.g. "3.0.0.4.388_24243"; Merlin builds
// carry textual revisions ("388.4_0", "alpha1").
type Firmware struct {
	Type     FirmwareType
	Major    string
	Minor    int
	Build    int
	Revision string
}

// fwPattern matches the version strings reported by detect_firmware.asp
// and the firmver/buildno/extendno nvram values combined.
var fwPattern = regexp.MustCompile(
	`^(?P<major>[39]\.?0\.?0\.?[46])?[_.]?` +
		`(?P<minor>[0-9]{3})[_.]?` +
		`(?P<build>[0-9]+)[_.-]?` +
		`(?P<revision>[a-zA-Z0-9-_]+)?$`,
)

// ParseFirmware parses a firmware version string. The firmware type is
// inferred from the revision: stock revisions are plain numbers, Merlin
// revisions carry letters or separators.
func ParseFirmware(content string) (Firmware, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Firmware{}, fmt.Errorf("empty firmware string")
	}

	match := fwPattern.FindStringSubmatch(content)
	if match == nil {
		return Firmware{}, fmt.Errorf("unrecognized firmware string: %q", content)
	}

	groups := make(map[string]string)
	for i, name := range fwPattern.SubexpNames() {
		if name != "" {
			groups[name] = match[i]
		}
	}

	major := groups["major"]
	if major == "" {
		major = "3.0.0.4"
	}
	// Normalize "3004" to dotted form
	if !strings.Contains(major, ".") && len(major) == 4 {
		major = fmt.Sprintf("%c.%c.%c.%c", major[0], major[1], major[2], major[3])
	}

	minor, _ := strconv.Atoi(groups["minor"])
	build, _ := strconv.Atoi(groups["build"])
	revision := groups["revision"]

	fw := Firmware{
		Type:     FirmwareStock,
		Major:    major,
		Minor:    minor,
		Build:    build,
		Revision: revision,
	}
	if revision != "" {
		if _, err := strconv.Atoi(revision); err != nil {
			fw.Type = FirmwareMerlin
		}
	}
	// Merlin moved to the 3.0.0.6 / 102 major line keeping numeric
	// revisions, detected via the 4-digit build instead.
	if fw.Type == FirmwareStock && build >= 100000 {
		fw.Type = FirmwareMerlin
	}

	return fw, nil
}

// String returns the firmware version in the stock display format.
func (f Firmware) String() string {
	if f.Major == "" {
		return "unknown"
	}
	if f.Revision == "" {
		return fmt.Sprintf("%s.%d.%d", f.Major, f.Minor, f.Build)
	}
	return fmt.Sprintf("%s.%d.%d_%s", f.Major, f.Minor, f.Build, f.Revision)
}

// Less compares two firmware versions. Comparison is defined only within
// the same major line; across lines it reports false, matching the
// firmware's own refusal to compare stock against fork builds.
func (f Firmware) Less(other Firmware) bool {
	if f.Major == "" || other.Major == "" {
		return false
	}
	if f.Major[0] != other.Major[0] {
		return false
	}

	majorSelf := splitVersion(f.Major)
	majorOther := splitVersion(other.Major)
	for i := 0; i < len(majorSelf) && i < len(majorOther); i++ {
		if majorSelf[i] != majorOther[i] {
			return majorSelf[i] < majorOther[i]
		}
	}

	if f.Minor != other.Minor {
		return f.Minor < other.Minor
	}
	if f.Build != other.Build {
		return f.Build < other.Build
	}

	revSelf, errSelf := strconv.Atoi(f.Revision)
	revOther, errOther := strconv.Atoi(other.Revision)
	if errSelf == nil && errOther == nil {
		return revSelf < revOther
	}
	return false
}

// AtLeast reports whether f satisfies a minimum-version constraint.
func (f Firmware) AtLeast(minimum Firmware) bool {
	return !f.Less(minimum)
}

func splitVersion(version string) []int {
	parts := strings.Split(version, ".")
	numbers := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			n = 0
		}
		numbers = append(numbers, n)
	}
	return numbers
}
