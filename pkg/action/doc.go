// Package action implements asynchronous action requests between Things.
//
// A request lives in the target Thing's record under
// _safe_thing_action_req_<id> and carries a free-form state string. The
// framework defines two states, Requested (initial) and Done (terminal);
// handlers may introduce intermediate ones.
//
// The Sender writes a request and starts a monitor goroutine that polls the
// entry on its own store session. Every state change is reported to the
// caller's StateHandler exactly once. Monitoring stops when the handler
// returns false, the state reaches Done, the timeout elapses, or the Sender
// is closed.
//
// The Receiver polls the local record for Requested entries, hands each to
// the Handler and, once the Handler returns, marks the entry Done unless the
// Handler completed it with a state of its own.
package action
