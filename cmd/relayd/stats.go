package main

import "time"

// Stats represents current gateway stats for dashboards & API.
type Stats struct {
	Active   int         `json:"active"`
	Total    int64       `json:"total_relays"`
	Rejected int64       `json:"rejected"`
	Relays   []relayView `json:"relays"`
	Now      string      `json:"now"`
}

func collectStats(s StateStore) Stats {
	active, total, rejected := s.getStats()
	return Stats{Active: active, Total: total, Rejected: rejected, Relays: s.relays(), Now: time.Now().UTC().Format(time.RFC3339)}
}

// ToTemplateMap returns a map suited for html/template rendering.
func (s Stats) ToTemplateMap() map[string]any {
	return map[string]any{
		"Title":    "relayd",
		"Active":   s.Active,
		"Total":    s.Total,
		"Rejected": s.Rejected,
		"Relays":   s.Relays,
	}
}
