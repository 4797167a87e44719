package gen

import (
	"fmt"

	"bulkprice/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("snowflake", fx.Provide(NewNode))

// NewNode returns the id generator for this process. NODE_ID must be unique
// per running api replica.
func NewNode(cfg *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
