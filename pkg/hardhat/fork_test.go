package hardhat

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForkConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  ForkConfig
		wantErr bool
	}{
		{
			name:   "https upstream",
			config: ForkConfig{UpstreamURL: "https://rpc.example.com"},
		},
		{
			name:   "ws upstream with block",
			config: ForkConfig{UpstreamURL: "ws://rpc.example.com", BlockNumber: 17000000},
		},
		{
			name:    "missing upstream",
			config:  ForkConfig{BlockNumber: 17000000},
			wantErr: true,
		},
		{
			name:    "bad scheme",
			config:  ForkConfig{UpstreamURL: "ipc:///tmp/geth.ipc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, IsRateLimited(nil))
	assert.False(t, IsRateLimited(errors.New("execution reverted")))
	assert.True(t, IsRateLimited(errors.New("429 Too Many Requests")))
	assert.True(t, IsRateLimited(errors.Wrap(errors.New("too many requests"), "eth_getBalance failed")))
}
