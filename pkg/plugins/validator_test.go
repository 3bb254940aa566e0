package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDescriptor(t *testing.T) {
	noop := func(ctx context.Context, args ...any) (any, error) { return nil, nil }

	tests := []struct {
		name   string
		desc   *Descriptor
		fields []string
	}{
		{
			name: "valid",
			desc: &Descriptor{
				ID:           "feed",
				Version:      "1.2.0",
				Components:   map[string]any{"FeedPage": struct{}{}},
				Hooks:        map[string]HookFunc{"search": noop},
				Dependencies: []string{"core"},
				Routes:       []Route{{Path: "/feed", Component: "FeedPage"}},
			},
		},
		{
			name:   "nil",
			desc:   nil,
			fields: []string{"descriptor"},
		},
		{
			name:   "blank id and version",
			desc:   &Descriptor{ID: "  ", Version: ""},
			fields: []string{"id", "version"},
		},
		{
			name: "empty component name",
			desc: &Descriptor{
				ID:         "feed",
				Version:    "1",
				Components: map[string]any{"": struct{}{}},
			},
			fields: []string{"components"},
		},
		{
			name: "bad hooks",
			desc: &Descriptor{
				ID:      "feed",
				Version: "1",
				Hooks:   map[string]HookFunc{"": noop},
			},
			fields: []string{"hooks"},
		},
		{
			name: "bad dependencies",
			desc: &Descriptor{
				ID:           "feed",
				Version:      "1",
				Dependencies: []string{"", "feed", "core", "core"},
			},
			fields: []string{"dependencies", "dependencies", "dependencies"},
		},
		{
			name: "route without path",
			desc: &Descriptor{
				ID:      "feed",
				Version: "1",
				Routes:  []Route{{Path: "/feed"}, {Component: "Orphan"}},
			},
			fields: []string{"routes[1].path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateDescriptor(tt.desc)

			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	errs := ValidateDescriptor(&Descriptor{ID: "feed"})
	require.Len(t, errs, 1)

	err := &errs[0]
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, `invalid plugin descriptor "feed": version: version is required`, err.Error())
}
