package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const (
	// nodeBits and stepBits keep every id below 2^53 until ~2079 so ids stay
	// exact JSON numbers for browser clients.
	nodeBits = 4
	stepBits = 8

	// MaxNodeID is the largest node id accepted by Init.
	MaxNodeID = 1<<nodeBits - 1
)

var (
	node    *snowflake.Node
	initErr error
	once    sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// Only the first valid call has an effect; an out-of-range id is rejected
// every time and leaves the generator uninitialized.
func Init(nodeID int64) error {
	if nodeID < 0 || nodeID > MaxNodeID {
		return fmt.Errorf("node id %d out of range [0, %d]", nodeID, MaxNodeID)
	}
	once.Do(func() {
		snowflake.NodeBits = nodeBits
		snowflake.StepBits = stepBits
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a time-ordered int64 ID. Two calls in the same millisecond
// get distinct sequence numbers, so ids never collide on one node.
func New() int64 {
	if node == nil {
		panic("id: New called before Init")
	}
	return node.Generate().Int64()
}
