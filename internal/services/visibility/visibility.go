// Package visibility decides which ledger messages a viewer may read.
package visibility

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/samber/lo/mutable"

	"github.com/mcoot/presencechat/internal/model"
)

// Filter returns the messages visible to viewer.
// Without a limit the result keeps chronological order. With a limit it holds
// the most recent limit messages, newest first. An empty result is not an error.
func Filter(viewer string, messages []*model.Message, limit *int) ([]*model.Message, error) {
	if limit != nil && *limit <= 0 {
		return nil, model.NewLimitError(fmt.Sprintf("limit %d is not positive", *limit))
	}

	visible := lo.Filter(messages, func(m *model.Message, _ int) bool {
		return m.VisibleTo(viewer)
	})

	if limit == nil {
		return visible, nil
	}

	recent := lo.Subset(visible, -*limit, uint(*limit))
	mutable.Reverse(recent)
	return recent, nil
}
