// Package pgvector implements storage.VectorIndex and storage.IndexWriter on
// PostgreSQL with the pgvector extension, using pgxpool for connections.
// Location and subtopic filters are array overlaps; the HNSW search breadth
// follows the query's candidate pool.
package pgvector
