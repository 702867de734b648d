// Package engine implements the Async Graph Engine (spec.md §4.E): it
// orchestrates the KV backend (internal/kvstore), the serializer
// (internal/serialize), the read-through cache (internal/cache), and the
// event bus (internal/eventbus) behind the typed CRUD/session/template/
// agent operations spec.md §4.E lists. The key layout in this file
// implements the Index Layer (spec.md §4.D): primary node/edge tables plus
// the secondary indexes (session→nodes, node→out-edges, node→in-edges,
// response→tool-invocations, template hierarchy).
package engine

import (
	"encoding/binary"

	"github.com/steveyegge/lineagegraph/internal/graph"
	"github.com/steveyegge/lineagegraph/internal/ids"
)

// Key prefixes, matching spec.md §4.D's layout table verbatim.
const (
	prefixNode           = "n/"
	prefixEdge           = "e/"
	prefixSessionNodes   = "sn/"
	prefixOutgoingEdges  = "eo/"
	prefixIncomingEdges  = "ei/"
	prefixResponseTools  = "rt/"
	prefixTemplateLookup = "tp/"
)

func nodeKey(id ids.NodeID) []byte {
	return append([]byte(prefixNode), id.Bytes()...)
}

func edgeKey(id ids.EdgeID) []byte {
	return append([]byte(prefixEdge), id.Bytes()...)
}

// beTime returns the big-endian encoding of a Unix-nanosecond timestamp, so
// that lexicographic byte ordering matches chronological ordering (spec.md
// §4.D: "created_at is big-endian encoded inside the sn key so prefix
// iteration yields session nodes in insertion order").
func beTime(unixNano int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(unixNano))
	return b
}

func sessionNodesPrefix(session ids.SessionID) []byte {
	return append([]byte(prefixSessionNodes), session.Bytes()...)
}

func sessionNodeKey(session ids.SessionID, createdAtUnixNano int64, node ids.NodeID) []byte {
	k := sessionNodesPrefix(session)
	k = append(k, '/')
	k = append(k, beTime(createdAtUnixNano)...)
	k = append(k, '/')
	k = append(k, node.Bytes()...)
	return k
}

func outgoingEdgesPrefix(from ids.NodeID) []byte {
	return append([]byte(prefixOutgoingEdges), from.Bytes()...)
}

func outgoingEdgeKey(from ids.NodeID, edge ids.EdgeID) []byte {
	k := outgoingEdgesPrefix(from)
	k = append(k, '/')
	k = append(k, edge.Bytes()...)
	return k
}

func incomingEdgesPrefix(to ids.NodeID) []byte {
	return append([]byte(prefixIncomingEdges), to.Bytes()...)
}

func incomingEdgeKey(to ids.NodeID, edge ids.EdgeID) []byte {
	k := incomingEdgesPrefix(to)
	k = append(k, '/')
	k = append(k, edge.Bytes()...)
	return k
}

func responseToolsPrefix(response ids.NodeID) []byte {
	return append([]byte(prefixResponseTools), response.Bytes()...)
}

func responseToolKey(response, tool ids.NodeID) []byte {
	k := responseToolsPrefix(response)
	k = append(k, '/')
	k = append(k, tool.Bytes()...)
	return k
}

func templateLookupKey(templateNode ids.NodeID) []byte {
	return append([]byte(prefixTemplateLookup), templateNode.Bytes()...)
}

// nodeCreatedAt extracts a node's CreatedAt as Unix nanoseconds, the value
// embedded in its sn/ secondary-index key.
func nodeCreatedAt(n graph.Node) int64 { return n.Created().UnixNano() }
