// Package api defines the request and response messages of the splitledger
// RPC services. Messages are plain structs encoded as JSON; amounts travel as
// decimal strings with two fractional digits ("300.00") and are never floats.
//
// Struct tags drive field validation (see internal/validation).
package api
