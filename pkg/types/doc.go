// Package types holds the records a node returns and the structured
// parameters some methods accept.
//
// Records decode the node's loose JSON: quantities may arrive as hex strings
// or numbers, and a few fields changed name between protocol versions. Use
// Validate after decoding to reject records that lack required fields.
package types
