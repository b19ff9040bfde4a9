package testsupport

import (
	"testing"

	"courier/internal/config"
	"courier/internal/deliverylog"
)

// MustOpenDeliveryLog opens a deliverylog.Store for tests and registers cleanup.
func MustOpenDeliveryLog(t testing.TB, cfg *config.Config) *deliverylog.Store {
	t.Helper()

	store, err := deliverylog.Open(cfg)
	if err != nil {
		t.Fatalf("open delivery log: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
