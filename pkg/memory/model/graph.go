package model

// EdgeType enumerates the graph relationships the indexer materializes.
type EdgeType string

const (
	// EdgeHasTopic links a Memory node to a Topic node.
	EdgeHasTopic EdgeType = "HAS_TOPIC"
	// EdgeMentions links a Memory node to an Entity node.
	EdgeMentions EdgeType = "MENTIONS"
	// EdgeRelatedTo links two memories sharing at least one topic.
	EdgeRelatedTo EdgeType = "RELATED_TO"
	// EdgeFollows links a memory to its immediate chronological predecessor.
	EdgeFollows EdgeType = "FOLLOWS"
)

// Entity is a typed named entity extracted from memory content.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Entity types produced by the extraction engine.
const (
	EntityTechnology = "TECHNOLOGY"
	EntityClass      = "CLASS"
	EntityFile       = "FILE"
	EntityConfig     = "CONFIG"
)
