// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal queue models into transport-friendly DTOs
// so HTTP clients never couple to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, queue.Mode)
// are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds. Optional fields carry omitempty so idle jobs serialize
// compactly.
package api
