// Package model implements the SAFEthing data model.
//
// # Thing Record
//
// A Thing is identified by an opaque ThingID and publishes a single record
// into the store. The record holds whole-list snapshots of its identity:
//
//	Thing (garden-sensor-01)
//	├── Attributes  (name, value, dynamic flag)
//	├── Topics      (name, access)
//	├── Actions     (name, access, params)
//	├── Status      (Connected, Published, Disabled)
//	├── Events      (one append-only log per topic)
//	└── Requests    (one entry per received action request)
//
// # Attributes
//
// Only dynamic attributes are eligible for change subscriptions. Attributes
// are addressed by name and at most one entry exists per name; SetAttr
// performs insert-or-update.
//
// # Access Scope
//
// Topics and actions declare an escalating visibility scope:
//
//	Thing < Owner < Group < All
//
// The scope is informational. Enforcement belongs to the store layer.
//
// # Action Requests
//
// An ActionReq moves from Requested to Done. The state is a free-form
// string, so a Thing may report intermediate states such as "InProgress".
package model
