package notify

import "time"

// Display is the desktop notification backend. Show presents a single
// notification with the given summary and body, requesting that it be
// dismissed automatically after expiration (zero meaning the backend's own
// default), and reports whether it was successfully presented.
//
// The reference implementation binds libnotify/D-Bus directly; this
// package has no GUI surface of its own, so Display is an interface with
// a stderr-writing default (see StderrDisplay) — swapping in a real
// backend (e.g. shelling out to notify-send, or a D-Bus binding) means
// implementing this one-method interface, nothing in NotificationCenter
// changes.
type Display interface {
	Show(summary, body string, expiration time.Duration) bool
}
