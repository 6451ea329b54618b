package inventory

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// Spectrum attribute ids requested for every device model.
const (
	AttrModelName      = "0x1006e"
	AttrNetworkAddress = "0x12d7f"
	AttrDeviceFamily   = "0x12bef"
)

// Device is one inventory match.
type Device struct {
	Name     string `json:"name"`
	Address  string `json:"ip_addr"`
	Platform string `json:"pfm"`
}

// Devices maps model name to device.
type Devices map[string]Device

type attribute struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type modelElement struct {
	Attributes []attribute `xml:"attribute"`
}

func (m modelElement) attr(id string) string {
	for _, a := range m.Attributes {
		if strings.EqualFold(a.ID, id) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// parseModels collects every <model> element at any depth, ignoring namespaces.
// Models without a name attribute are skipped.
func parseModels(r io.Reader) (Devices, error) {
	dec := xml.NewDecoder(r)
	devices := Devices{}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return devices, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "model" {
			continue
		}
		var m modelElement
		if err := dec.DecodeElement(&m, &se); err != nil {
			return nil, err
		}
		name := m.attr(AttrModelName)
		if name == "" {
			continue
		}
		devices[name] = Device{Name: name, Address: m.attr(AttrNetworkAddress), Platform: m.attr(AttrDeviceFamily)}
	}
}
