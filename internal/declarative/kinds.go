package declarative

import "encoding/json"

// ResourceKind identifies a type of managed resource.
type ResourceKind int

// Resource kinds, ordered by dependency layer for apply/delete sequencing.
// Macros expand inside dataset filters, so datasets come first on create and
// last on delete.
const (
	KindDataset ResourceKind = iota // layer 0
	KindMacro                       // layer 1
)

// String returns a human-readable name for the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case KindDataset:
		return "dataset"
	case KindMacro:
		return "macro"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the kind as its string name.
func (k ResourceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Layer returns the dependency layer for ordering.
func (k ResourceKind) Layer() int {
	switch k {
	case KindDataset:
		return 0
	case KindMacro:
		return 1
	default:
		return 99
	}
}

// Operation represents a planned change type.
type Operation int

const (
	// OpCreate indicates a resource should be created.
	OpCreate Operation = iota
	// OpUpdate indicates a resource should be updated.
	OpUpdate
	// OpDelete indicates a resource should be deleted.
	OpDelete
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Known Kind strings used in YAML documents.
const (
	KindNameDataset = "Dataset"
	KindNameMacro   = "Macro"
)

// SupportedAPIVersion is the current API version for YAML documents.
const SupportedAPIVersion = "quarry/v1"
