// Package ply reads and writes ray-cloud records in the PLY format.
//
// Responsibilities: header parsing, the ASCII record reader, the packed
// binary_little_endian codec and random-access point lookup.
// Key types: Schema, Layout, Record, Cloud, Reader.
//
// Schemas are fixed at compile time (RaySampleA, RaySampleB, Uncertainty).
// Field names are resolved once when a schema is bound to a stream, so a
// typo surfaces as MissingFieldError or ErrUnknownField before any record
// is touched.
package ply
