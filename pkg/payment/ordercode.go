package payment

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Order codes are snowflake IDs narrowed to 53 bits (41 time, 4 node,
// 8 sequence) so they survive gateways that decode JSON numbers as doubles.
const (
	orderCodeNodeBits = 4
	orderCodeStepBits = 8

	// MaxOrderCodeNode is the highest node ID a generator accepts.
	MaxOrderCodeNode = 1<<orderCodeNodeBits - 1
)

// orderCodeEpoch is 2024-01-01T00:00:00Z in milliseconds.
const orderCodeEpoch int64 = 1704067200000

var configureSnowflake sync.Once

// OrderCodeGenerator produces time-ordered order codes that are unique per
// node. Run each replica with a distinct node ID.
type OrderCodeGenerator struct {
	node *snowflake.Node
}

// NewOrderCodeGenerator creates a generator for the given node ID.
func NewOrderCodeGenerator(nodeID int64) (*OrderCodeGenerator, error) {
	if nodeID < 0 || nodeID > MaxOrderCodeNode {
		return nil, fmt.Errorf("order code node must be between 0 and %d, got %d", MaxOrderCodeNode, nodeID)
	}

	configureSnowflake.Do(func() {
		snowflake.Epoch = orderCodeEpoch
		snowflake.NodeBits = orderCodeNodeBits
		snowflake.StepBits = orderCodeStepBits
	})

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create order code node: %w", err)
	}
	return &OrderCodeGenerator{node: node}, nil
}

// Next returns a new order code.
func (g *OrderCodeGenerator) Next() int64 {
	return g.node.Generate().Int64()
}

// OrderCodeTime extracts the generation time from an order code.
func OrderCodeTime(code int64) time.Time {
	ms := code>>(orderCodeNodeBits+orderCodeStepBits) + orderCodeEpoch
	return time.UnixMilli(ms)
}
