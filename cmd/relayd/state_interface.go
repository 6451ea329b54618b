package main

// StateStore abstracts the relay registry so several gateways can share totals.
type StateStore interface {
	addRelay(r *relayInfo) error
	removeRelay(id string)
	recordRejected()
	relays() []relayView
	// closeAll closes every local client connection and returns how many.
	closeAll() int
	setClosing(closing bool)
	setReady(ready bool)
	isClosing() bool
	isReady() bool
	getStats() (active int, total int64, rejected int64)
}
