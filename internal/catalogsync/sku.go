package catalogsync

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

// SKUGenerator hands out unique, time-ordered skus
type SKUGenerator interface {
	NextSKU() string
}

// SnowflakeSKU generates skus from snowflake ids of one node
type SnowflakeSKU struct {
	node *snowflake.Node
}

// NewSnowflakeSKU creates a generator for the node id (0-1023)
func NewSnowflakeSKU(nodeID int64) (*SnowflakeSKU, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrapf(err, "snowflake node %d", nodeID)
	}
	return &SnowflakeSKU{node: node}, nil
}

func (g *SnowflakeSKU) NextSKU() string {
	return g.node.Generate().String()
}
