package interfaces

import "context"

// RepairStrategy names which escalating strategy ultimately produced a result.
type RepairStrategy string

const (
	RepairStrategyStrict RepairStrategy = "strict"
	RepairStrategyRepair RepairStrategy = "structural-repair"
	RepairStrategyLLM    RepairStrategy = "llm-assisted"
)

// RepairReport documents what a JSONReader had to do to parse an input.
type RepairReport struct {
	Strategy     RepairStrategy `json:"strategy"`
	RepairsLogged []string      `json:"repairs_logged,omitempty"`
	PartialOffset *int64        `json:"partial_offset,omitempty"` // set only in best-effort mode
}

// JSONReadOptions controls how Read behaves on malformed input.
type JSONReadOptions struct {
	BestEffort    bool // return a partial result instead of failing outright
	AllowLLMRepair bool
}

// JSONReader parses arbitrary JSON via three escalating strategies: strict
// streaming parse, structural repair, and (if enabled) bounded LLM-assisted
// repair. See internal/services/jsonreader.
type JSONReader interface {
	// ReadItems streams top-level array items (or a single materialised
	// value when the root is not an array) in bounded memory, invoking fn
	// for each. Returns the RepairReport once parsing is complete.
	ReadItems(ctx context.Context, raw []byte, opts JSONReadOptions, fn func(item interface{}) error) (*RepairReport, error)
}
