package report

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYearCache(t *testing.T) {
	t.Run("should keep one entry per year", func(t *testing.T) {
		// given
		cache := NewYearCache[string]()

		// when
		cache.Set(2023, "a")
		cache.Set(2024, "b")
		cache.Set(2024, "c")

		// then
		value, ok := cache.Get(2024)
		assert.True(t, ok)
		assert.Equal(t, "c", value)
		assert.Equal(t, 2, cache.Size())
	})

	t.Run("should invalidate a single year", func(t *testing.T) {
		// given
		cache := NewYearCache[int]()
		cache.Set(2023, 1)
		cache.Set(2024, 2)

		// when
		cache.Invalidate(2023)

		// then
		assert.False(t, cache.Contains(2023))
		assert.True(t, cache.Contains(2024))
	})

	t.Run("should invalidate every year", func(t *testing.T) {
		// given
		cache := NewYearCache[int]()
		cache.Set(2023, 1)
		cache.Set(2024, 2)

		// when
		cache.InvalidateAll()

		// then
		assert.Equal(t, 0, cache.Size())
		_, ok := cache.Get(2024)
		assert.False(t, ok)
	})

	t.Run("should be safe for concurrent use", func(t *testing.T) {
		// given
		cache := NewYearCache[int]()
		var wg sync.WaitGroup

		// when
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(year int) {
				defer wg.Done()
				cache.Set(year, year)
				cache.Contains(year)
				if year%5 == 0 {
					cache.Invalidate(year)
				}
			}(2000 + i)
		}
		wg.Wait()

		// then
		assert.Equal(t, 40, cache.Size())
	})
}
