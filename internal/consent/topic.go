package consent

// TopicID references a catalog-defined consent topic. An id may outlive its
// definition (topic removed from the catalog); such ids are kept as-is.
type TopicID string

// Fixed topic ids used for dominant/submissive resolution.
const (
	DominantTopic   TopicID = "ConsentDominant"
	SubmissiveTopic TopicID = "ConsentSubmissive"
)

const DefaultCategory = "Uncategorized"

// Topic is one consent topic definition.
type Topic struct {
	ID          TopicID `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string  `json:"category" yaml:"category"`
	Icon        string  `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Catalog enumerates the consent topics currently known to the process.
type Catalog interface {
	EnumerateTopics() []Topic
}

// StaticCatalog is a fixed in-memory catalog.
type StaticCatalog []Topic

func (c StaticCatalog) EnumerateTopics() []Topic {
	out := make([]Topic, len(c))
	copy(out, c)
	return out
}
