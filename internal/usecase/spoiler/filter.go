package spoiler

import "errors"

var ErrIncludeAndExclude = errors.New("you can't specify both included and excluded channels - choose one")

type FilterMode int

const (
	FilterNone FilterMode = iota
	FilterInclude
	FilterExclude
)

// ChannelFilter decides which channels the bot acts in.
type ChannelFilter struct {
	mode FilterMode
	ids  map[string]struct{}
}

// NewChannelFilter builds a filter from an allowlist or a denylist. A nil
// slice means "not set"; an empty non-nil include list watches nothing.
func NewChannelFilter(include, exclude []string) (ChannelFilter, error) {
	switch {
	case include != nil && exclude != nil:
		return ChannelFilter{}, ErrIncludeAndExclude
	case include != nil:
		return ChannelFilter{mode: FilterInclude, ids: toSet(include)}, nil
	case exclude != nil:
		return ChannelFilter{mode: FilterExclude, ids: toSet(exclude)}, nil
	default:
		return ChannelFilter{mode: FilterNone}, nil
	}
}

func (f ChannelFilter) Mode() FilterMode {
	return f.mode
}

func (f ChannelFilter) Allows(channelID string) bool {
	_, listed := f.ids[channelID]
	switch f.mode {
	case FilterInclude:
		return listed
	case FilterExclude:
		return !listed
	default:
		return true
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
