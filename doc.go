// Package episodic builds temporally-aware knowledge graphs from episodes
// of text or structured data. Each episode is stored in Neo4j, mined for
// entities and facts with a language model, and embedded for hybrid
// retrieval that combines keyword search, vector similarity, and graph
// distance.
package episodic
