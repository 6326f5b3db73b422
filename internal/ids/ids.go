package ids

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init configures the generator node. Valid node IDs are 0..1023.
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// Next returns a new unique ID. Falls back to node 0 if Init was never called.
func Next() int64 {
	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		n, err := snowflake.NewNode(0)
		if err != nil {
			// NewNode(0) only fails if the epoch is misconfigured at build time.
			panic(err)
		}
		node = n
	}
	return node.Generate().Int64()
}
