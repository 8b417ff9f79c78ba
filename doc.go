// Package planter resolves ORM classes for database tables.
//
// A schema loader introspects a live database once per target and produces
// descriptors: one Model per table and one Manager per table plural. The
// descriptors are published into a registry that answers three questions:
//
//   - which class serves a table, or the base name of a definition table
//   - which manager serves a plural ("orders")
//   - which registered names occur in a string (regular expression matchers)
//
// On top of the registry, the finder loads a single object by table and key
// values, trying the primary key first and then every alternate unique key.
//
// The sub-packages are:
//
//   - naming: pluralisation, definition suffixes and class names
//   - registry: the lookup mappings, matchers and nested relations
//   - finder: keyed object lookup
//   - bootstrap: the plant/bootstrap lifecycle of a target
//   - introspect: a SchemaLoader built on Atlas
//   - cache: on-disk descriptors and generated sources
//   - dialect/sql: database/sql drivers and the SQL Store
package planter
