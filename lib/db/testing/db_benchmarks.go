package testing

import (
	"bytes"
	"fmt"
	"testing"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			database := factory()
			defer database.Close()
			value := []byte(`{"home":{},"x":1}`)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				database.Set(fmt.Sprintf("key-%d", i%1024), value, uint64(i+1))
			}
		})

		b.Run("Get", func(b *testing.B) {
			database := factory()
			defer database.Close()
			for i := 0; i < 1024; i++ {
				database.Set(fmt.Sprintf("key-%d", i), []byte("value"), uint64(i+1))
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				database.Get(fmt.Sprintf("key-%d", i%1024))
			}
		})

		b.Run("SaveLoad", func(b *testing.B) {
			database := factory()
			defer database.Close()
			for i := 0; i < 1024; i++ {
				database.Set(fmt.Sprintf("key-%d", i), []byte("value"), uint64(i+1))
			}
			target := factory()
			defer target.Close()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var buf bytes.Buffer
				if err := database.Save(&buf); err != nil {
					b.Fatal(err)
				}
				if err := target.Load(&buf); err != nil {
					b.Fatal(err)
				}
			}
		})
	})
}
