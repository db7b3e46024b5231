package relay

import (
	"context"
	"fmt"
)

// Aggregator resolves the full set of messages forming one logical post.
type Aggregator struct {
	source Source
}

// NewAggregator creates an Aggregator pulling group members from source.
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source}
}

// Aggregate returns msg's media group, or msg alone when it has no group.
// Member order is the order the source reports; the first member is canonical.
func (a *Aggregator) Aggregate(ctx context.Context, msg Message) (Group, error) {
	if msg.GroupID == "" {
		return Group{msg}, nil
	}

	members, err := a.source.MediaGroup(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media group %s: %w", msg.GroupID, err)
	}
	if len(members) == 0 {
		return Group{msg}, nil
	}

	group := make(Group, 0, len(members))
	for _, m := range members {
		if m.ChatID != msg.ChatID {
			continue
		}
		group = append(group, m)
	}
	if len(group) == 0 {
		return Group{msg}, nil
	}
	return group, nil
}
