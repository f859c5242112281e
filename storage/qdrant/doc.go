// Package qdrant implements storage.VectorIndex and storage.IndexWriter on a
// Qdrant collection. Points are keyed by core.PointID and carry the record
// fields as payload, so search results are hydrated without a second lookup.
package qdrant
