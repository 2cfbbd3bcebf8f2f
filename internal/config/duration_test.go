package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "5s", want: 5 * time.Second},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "200ms", want: 200 * time.Millisecond},
		{in: "14days", want: 14 * 24 * time.Hour},
		{in: "14d", want: 14 * 24 * time.Hour},
		{in: "2weeks", want: 14 * 24 * time.Hour},
		{in: "1h 30min", want: 90 * time.Minute},
		{in: " 120000s ", want: 120_000 * time.Second},
		{in: "3 seconds", want: 3 * time.Second},
		{in: "", wantErr: true},
		{in: "days", wantErr: true},
		{in: "5 fortnights", wantErr: true},
		{in: "1.5days", wantErr: true},
		{in: "99999999999999weeks", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDurationHook(t *testing.T) {
	hook := durationHook()
	durationType := reflect.TypeOf(time.Duration(0))

	got, err := hook(reflect.TypeOf(""), durationType, "14days")
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, got)

	// non-duration targets pass through
	got, err = hook(reflect.TypeOf(""), reflect.TypeOf(""), "14days")
	require.NoError(t, err)
	assert.Equal(t, "14days", got)

	_, err = hook(reflect.TypeOf(""), durationType, "soon")
	require.Error(t, err)
}
