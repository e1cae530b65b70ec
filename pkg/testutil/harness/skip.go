package harness

import (
	"testing"

	"github.com/bout3fiddy/go-hardhat/pkg/hardhat"
)

// SkipIfRateLimited skips the test when the error is an upstream provider
// rate limit. Forked-node tests hit hosted RPC providers, and shedding in
// CI is environmental, not a regression.
func SkipIfRateLimited(t *testing.T, err error) {
	t.Helper()

	if hardhat.IsRateLimited(err) {
		t.Skipf("Upstream RPC provider rate limited (likely in CI): %v", err)
	}
}
