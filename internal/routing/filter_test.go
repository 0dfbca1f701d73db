package routing_test

import (
	"testing"

	"github.com/avolkhin/image-moderation/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicateMatching(t *testing.T) {
	attrs := map[string]string{
		routing.AttrSuffix:       ".png",
		routing.AttrMetadataType: "Caption",
	}

	tests := []struct {
		name   string
		filter routing.Filter
		want   bool
	}{
		{
			name:   "exists matches present attribute",
			filter: routing.NewFilter(routing.Exists(routing.AttrSuffix)),
			want:   true,
		},
		{
			name:   "exists fails on missing attribute",
			filter: routing.NewFilter(routing.Exists(routing.AttrMessageType)),
			want:   false,
		},
		{
			name:   "absent matches missing attribute",
			filter: routing.NewFilter(routing.Absent(routing.AttrMessageType)),
			want:   true,
		},
		{
			name:   "absent fails on present attribute",
			filter: routing.NewFilter(routing.Absent(routing.AttrSuffix)),
			want:   false,
		},
		{
			name:   "anyOf matches listed value",
			filter: routing.NewFilter(routing.AnyOf(routing.AttrMetadataType, "Caption", "Date")),
			want:   true,
		},
		{
			name:   "anyOf fails on unlisted value",
			filter: routing.NewFilter(routing.AnyOf(routing.AttrMetadataType, "Date", "name")),
			want:   false,
		},
		{
			name:   "anyOf fails on missing attribute",
			filter: routing.NewFilter(routing.AnyOf(routing.AttrMessageType, "status_update")),
			want:   false,
		},
		{
			name: "conjunction needs every predicate",
			filter: routing.NewFilter(
				routing.Exists(routing.AttrSuffix),
				routing.AnyOf(routing.AttrMetadataType, "Date"),
			),
			want: false,
		},
		{
			name:   "empty filter matches everything",
			filter: routing.NewFilter(),
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(attrs))
		})
	}
}

func TestFilterValidate(t *testing.T) {
	require.NoError(t, routing.NewFilter(
		routing.Exists(routing.AttrSuffix),
		routing.AnyOf(routing.AttrMetadataType, "Caption"),
	).Validate())

	err := routing.NewFilter(routing.Exists("")).Validate()
	require.Error(t, err)

	err = routing.NewFilter(routing.Predicate{Attribute: routing.AttrSuffix, Absent: true, Exists: true}).Validate()
	require.Error(t, err)

	err = routing.NewFilter(routing.Predicate{Attribute: routing.AttrSuffix}).Validate()
	require.Error(t, err)

	err = routing.NewFilter(
		routing.Exists(routing.AttrSuffix),
		routing.Absent(routing.AttrSuffix),
	).Validate()
	require.Error(t, err)
}
