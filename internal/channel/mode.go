// SPDX-License-Identifier: MIT
package channel

import (
	"fmt"
	"strings"
)

// Mode selects how tapped channels are turned into rendered channels.
// The set is closed; every switch over Mode handles all three values and
// treats anything else as ErrUnsupportedMode.
type Mode int

const (
	// Direct renders a single analyser fed by the down-mixed source.
	Direct Mode = iota
	// Stereo renders left and right independently.
	Stereo
	// MidSide renders mid (per-bin minimum) and side (per-bin difference).
	MidSide
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case Direct:
		return "Direct"
	case Stereo:
		return "Stereo"
	case MidSide:
		return "MidSide"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case Direct, Stereo, MidSide:
		return true
	default:
		return false
	}
}

// Taps returns how many analysis taps the mode needs.
func (m Mode) Taps() (int, error) {
	switch m {
	case Direct:
		return 1, nil
	case Stereo, MidSide:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedMode, m)
	}
}

// ParseMode converts a name (case-insensitive) to a Mode. "Regular" is
// accepted as an alias for Direct.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "direct", "regular", "mono":
		return Direct, nil
	case "stereo":
		return Stereo, nil
	case "midside", "mid-side", "ms":
		return MidSide, nil
	default:
		return Direct, fmt.Errorf("%w: %q", ErrUnsupportedMode, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so a Mode can be read
// straight from YAML or flags.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
