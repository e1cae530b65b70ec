// Package harness provides shared test utilities for running tests against
// a managed Hardhat node.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    code := m.Run()
//	    _ = harness.ForceCleanupNode(harness.DefaultNodeConfig().Name)
//	    os.Exit(code)
//	}
//
//	func TestTransfer(t *testing.T) {
//	    foundation, err := harness.GetNode(t, harness.DefaultNodeConfig())
//	    require.NoError(t, err)
//	    harness.Isolate(t, foundation.Chain)
//
//	    // state changes made here are rolled back after the test
//	}
//
// Nodes are reused across tests with the same config name and torn down by
// ForceCleanupNode in TestMain. Per-test isolation comes from Isolate,
// which snapshots the chain at fixture setup and restores it in cleanup.
package harness
