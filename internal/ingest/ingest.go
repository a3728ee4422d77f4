// Package ingest provides the import engine for canvass.
// It parses contact logs in CSV, TSV and JSON form, maps their columns onto
// contact.Record, coerces every count at the boundary and writes the rows to
// the store under a fresh batch id.
package ingest
