package dispatch

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentityPolicy(t *testing.T) {
	tests := []struct {
		value   string
		want    IdentityPolicy
		wantErr bool
	}{
		{value: "", want: PerRequest},
		{value: "per_request", want: PerRequest},
		{value: "per_target", want: PerTarget},
		{value: "strict", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseIdentityPolicy(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityPolicy_Identity(t *testing.T) {
	now := time.Unix(1700000000, 123)

	assert.Empty(t, Unbounded.Identity("sync-full-catalog", "", now))
	assert.Equal(t, "resync-product:MP-1", PerTarget.Identity("resync-product", "MP-1", now))
	assert.Equal(t, PerTarget.Identity("resync-product", "MP-1", now), PerTarget.Identity("resync-product", "MP-1", now.Add(time.Hour)))

	id := PerRequest.Identity("resync-product", "MP-1", now)
	assert.Regexp(t, regexp.MustCompile(`^resync-product:MP-1:1700000000000000123-[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, PerRequest.Identity("resync-product", "MP-1", now))
}

func TestIdentityPolicy_String(t *testing.T) {
	assert.Equal(t, "per_request", PerRequest.String())
	assert.Equal(t, "per_target", PerTarget.String())
	assert.Equal(t, "unbounded", Unbounded.String())
}
