// Package subscription implements polling subscriptions to remote Things.
//
// A Thing subscribes either to a topic of another Thing (its append-only
// event log) or to a dynamic attribute. There is no push channel: a
// background loop re-reads the remote field on every tick and decides
// what to deliver using a per-subscription watermark.
//
// # Watermarks
//
// Topic subscriptions carry the timestamp of the last reported event.
// A new subscription starts at the current time so events published
// before it are never replayed. An event is eligible only if its
// timestamp is strictly greater than the watermark and it passes the
// filter. Events are delivered in ascending timestamp order.
//
// Attribute subscriptions carry the last reported value, initially "".
// An attribute is eligible when it exists, is dynamic, differs from the
// last reported value and passes the filter against the threshold.
//
// # Delivery
//
// The Notifier runs on the loop goroutine. The watermark is advanced
// after the Notifier returns and before the next item is examined, so a
// crash mid-delivery re-delivers on restart: delivery is at-least-once.
// A panicking Notifier is recovered and logged.
//
// # Handoff
//
// Subscribe calls run on the caller's goroutine. New subscriptions are
// appended to an unbounded queue that the loop drains at the start of
// every tick, so a subscription becomes active at the latest one tick
// after the call returns. Subscribing again to the same remote Thing, kind
// and name replaces the filter and keeps the watermark.
//
// The loop is the only writer of the persisted map. It saves the map to the
// local record best-effort whenever it changed, so Restore can pick it up
// after a restart.
package subscription
