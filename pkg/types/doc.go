// Package types defines the core data model shared across the episodic
// client: episodes submitted for ingestion, the nodes and fact edges stored
// in the graph, and the configuration structs for search operations.
package types
