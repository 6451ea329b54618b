package main

import (
	"net"
	"time"
)

// relayInfo tracks one spliced client/target pair.
// client is only valid on the instance that accepted it.
type relayInfo struct {
	id      string
	client  net.Conn
	remote  string
	target  string
	started time.Time
}

// relayView is the exported snapshot used by the API and dashboard.
type relayView struct {
	ID      string    `json:"id"`
	Client  string    `json:"client"`
	Target  string    `json:"target"`
	Started time.Time `json:"started"`
}

func (r *relayInfo) view() relayView {
	return relayView{ID: r.id, Client: r.remote, Target: r.target, Started: r.started}
}
