package inventory

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matst80/spectroconnect/internal/obs"
)

// Config holds the Spectrum OneClick REST credentials.
type Config struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Enabled reports whether name lookups are possible.
func (c Config) Enabled() bool {
	return c.URL != "" && c.Username != "" && c.Password != ""
}

// Searcher finds devices whose name contains a string.
type Searcher interface {
	Search(ctx context.Context, name string) (Devices, error)
}

// Client queries the Spectrum models endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client; hc may be nil.
func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: hc}
}

const searchTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rs:model-request
xmlns:rs="http://www.ca.com/spectrum/restful/schema/request"
xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
throttlesize="60000"
xsi:schemaLocation="http://www.ca.com/spectrum/restful/schema/request ../../../xsd/Request.xsd">
    <rs:target-models>
        <rs:models-search>
            <rs:search-criteria xmlns="http://www.ca.com/spectrum/restful/schema/filter">
                <devices-only-search>
                </devices-only-search>
                <filtered-models>
                    <has-substring-ignore-case>
                        <model-name>%s</model-name>
                    </has-substring-ignore-case>
                </filtered-models>
            </rs:search-criteria>
        </rs:models-search>
    </rs:target-models>
    <rs:requested-attribute id="%s" />
    <rs:requested-attribute id="%s" />
    <rs:requested-attribute id="%s" />
</rs:model-request>
`

func searchBody(name string) []byte {
	var escaped bytes.Buffer
	_ = xml.EscapeText(&escaped, []byte(name))
	return []byte(fmt.Sprintf(searchTemplate, escaped.String(), AttrModelName, AttrNetworkAddress, AttrDeviceFamily))
}

// Search returns every device model whose name contains name, case ignored.
func (c *Client) Search(ctx context.Context, name string) (Devices, error) {
	url := strings.TrimRight(c.cfg.URL, "/") + "/spectrum/restful/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(searchBody(name)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/xml")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		obs.InventoryLookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("spectrum search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		obs.InventoryLookupsTotal.WithLabelValues("error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("spectrum search: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	devices, err := parseModels(resp.Body)
	if err != nil {
		obs.InventoryLookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("spectrum search: decode response: %w", err)
	}
	obs.InventoryLookupsTotal.WithLabelValues("ok").Inc()
	obs.Debug("inventory.search", obs.Fields{"name": name, "matches": len(devices)})
	return devices, nil
}
