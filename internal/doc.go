// Package internal contains the implementation packages of anchorplay.
//
// # Package Organization
//
//   - types: the Template aggregate and the store document types
//   - errors: the StoreError kind taxonomy and its HTTP status mapping
//   - validation: template identifier and file name checks
//   - store: read-only filesystem access to the template store
//   - schema: embedded JSON Schemas for every store document
//   - loader: LoadTemplate and ListTemplates over a store
//   - registry: time-bounded listing cache with change events
//   - watcher: debounced filesystem watching of the store root
//   - server: HTTP API and websocket change feed
//   - config: Viper-backed configuration
//   - logging: structured logging on zap
//   - version: build information
//
// # Data Flow
//
// A request for a template goes from the server to the loader, which reads
// the template directory through the store, checks each document with the
// schema validator and assembles a types.Template. Listings go through the
// registry catalog, which the watcher refreshes when the store changes; the
// catalog's events reach browsers over the server's websocket feed.
//
// Nothing in the read path mutates the store, so every package is safe for
// concurrent use without coordination beyond the catalog's cache lock.
package internal
