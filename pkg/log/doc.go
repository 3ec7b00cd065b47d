// Package log captures protocol events of the Thing runtime.
//
// Protocol capture is separate from operational logging with slog. Every
// store read and write, every delivered notification and every request or
// status transition becomes an Event, tagged with the session of the
// polling loop that produced it. Captures answer questions such as "which
// loop wrote this request state, and when".
//
// Components take a Logger in their config; nil disables capture:
//
//	file, err := log.NewFileLogger("/var/lib/safething/garden-01.tlog")
//	...
//	cfg.ProtocolLogger = log.NewMultiLogger(file, log.NewSlogAdapter(slog.Default()))
//
// Events carry one payload according to their category:
//
//	Operation     OperationEvent     store GET, SET, LIST, PUT_RECORD
//	Notification  NotificationEvent  topic event or attribute change delivered
//	State         StateChangeEvent   request state, Thing status, loop start/stop
//	Error         ErrorEventData     failed operation with context
//
// Capture files (.tlog) are CBOR sequences; map keys are small integers to
// keep files compact. Reader streams them back with an optional Filter, and
// thingctl log views, filters, exports and summarizes them.
package log
