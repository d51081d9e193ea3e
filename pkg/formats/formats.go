// Package formats encodes and decodes the world client's terrain files: the
// WDT grid descriptor and per-tile ADT payloads.
//
// Both are sequences of chunks. Each chunk starts with a byte-reversed
// four-character magic and a little-endian payload size. Encoders validate
// their whole input before producing a byte and are deterministic: equal
// input always yields identical output.
package formats
