// Package testing provides the conformance suite for store.IStore implementations.
//
//	func TestStore(t *testing.T) {
//		storetesting.RunIStoreTests(t, "MyStore", func(t *testing.T) store.IStore {
//			return NewMyStore(t.TempDir())
//		})
//	}
package testing
