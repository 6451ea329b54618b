package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound means the search matched no device.
	ErrNotFound = errors.New("no matching device")
	// ErrNoAddress means the matched device has no usable management address.
	ErrNoAddress = errors.New("device has no IP address")
)

// AmbiguousError lists the matches when several devices fit and none is named exactly.
type AmbiguousError struct {
	Name    string
	Matches []Device // sorted by name
}

func (e *AmbiguousError) Error() string {
	names := make([]string, len(e.Matches))
	for i, d := range e.Matches {
		names[i] = d.Name
	}
	return fmt.Sprintf("multiple devices match %q: %s", e.Name, strings.Join(names, ", "))
}

// Select picks the device for name. An exact name match wins over any number
// of partial matches; a lone partial match is accepted; several partial
// matches without an exact one are an error.
func Select(devices Devices, name string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if d, ok := devices[name]; ok {
		return d, nil
	}
	if len(devices) > 1 {
		matches := make([]Device, 0, len(devices))
		for _, d := range devices {
			matches = append(matches, d)
		}
		sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
		return Device{}, &AmbiguousError{Name: name, Matches: matches}
	}
	for _, d := range devices {
		return d, nil
	}
	return Device{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}
