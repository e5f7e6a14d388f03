// Package formats provides parsers for legacy model file formats.
package formats

// Note: MDL (alias model) is fully implemented in mdl.go and mdl_write.go
// Note: Normal and palette tables are in mdl_tables.go
