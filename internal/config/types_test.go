package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "5s", want: 5 * time.Second},
		{input: "1m30s", want: 90 * time.Second},
		{input: "250", want: 250 * time.Millisecond},
		{input: "0", want: 0},
		{input: "-1", wantErr: true},
		{input: "-5s", wantErr: true},
		{input: "later", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}
}

func TestSecret_NeverPrintsValue(t *testing.T) {
	s := Secret("authorization=Bearer abc")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "abc")

	out, err := json.Marshal(struct{ H Secret }{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"H":"[REDACTED]"}`, string(out))

	assert.Equal(t, "authorization=Bearer abc", s.Value())
	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())
	assert.Equal(t, "", Secret("").String())
}
