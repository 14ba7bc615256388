package ttlcache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/schubergphilis/azureenergylabelerlib/pkg/ttlcache"
)

func TestTTLCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TTL cache test suite")
}

var _ = Describe("Testing the TTL cache", func() {
	var clock clockwork.FakeClock
	var cache *ttlcache.Cache[string, []string]

	BeforeEach(func() {
		clock = clockwork.NewFakeClock()
		cache = ttlcache.New[string, []string](clock)
	})

	When("the key was never stored", func() {
		It("should be absent", func() {
			_, found := cache.Get("unknown")
			Expect(found).To(BeFalse())
			Expect(cache.Stats().Misses).To(BeEquivalentTo(1))
		})
	})

	When("a value is stored with a 1 minute ttl", func() {
		BeforeEach(func() {
			cache.Put("key", []string{"a", "b"}, time.Minute)
		})

		It("should be returned before expiry", func() {
			clock.Advance(30 * time.Second)

			value, found := cache.Get("key")
			Expect(found).To(BeTrue())
			Expect(value).To(Equal([]string{"a", "b"}))
			Expect(cache.Stats().Hits).To(BeEquivalentTo(1))
		})

		It("should still be returned exactly at insertedAt + ttl", func() {
			clock.Advance(time.Minute)

			_, found := cache.Get("key")
			Expect(found).To(BeTrue())
		})

		It("should be absent and purged after expiry", func() {
			clock.Advance(time.Minute + time.Nanosecond)

			_, found := cache.Get("key")
			Expect(found).To(BeFalse())
			Expect(cache.Len()).To(Equal(0), "expired entry is purged on lookup")
			Expect(cache.Stats().Evictions).To(BeEquivalentTo(1))
		})

		It("should be overwritten by a new Put", func() {
			clock.Advance(50 * time.Second)
			cache.Put("key", []string{"c"}, time.Minute)
			clock.Advance(50 * time.Second)

			value, found := cache.Get("key")
			Expect(found).To(BeTrue())
			Expect(value).To(Equal([]string{"c"}))
		})

		It("should be removed by Delete", func() {
			cache.Delete("key")

			_, found := cache.Get("key")
			Expect(found).To(BeFalse())
		})

		It("should be removed by Clear", func() {
			cache.Clear()
			Expect(cache.Len()).To(Equal(0))
		})
	})

	When("a value is stored with a non positive ttl", func() {
		It("should not be stored", func() {
			cache.Put("key", []string{"a"}, 0)

			_, found := cache.Get("key")
			Expect(found).To(BeFalse())
			Expect(cache.Len()).To(Equal(0))
		})
	})

	When("several entries have different ttl", func() {
		BeforeEach(func() {
			cache.Put("short", nil, time.Second)
			cache.Put("medium", nil, time.Minute)
			cache.Put("long", nil, time.Hour)
		})

		It("should purge only the expired ones on Sweep", func() {
			clock.Advance(2 * time.Minute)

			removed := cache.Sweep()
			Expect(removed).To(Equal(2))
			Expect(cache.Len()).To(Equal(1))

			_, found := cache.Get("long")
			Expect(found).To(BeTrue())
		})

		It("should purge them periodically once the sweeper is started", func(ctx SpecContext) {
			sweepCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			cache.StartSweeper(sweepCtx, 10*time.Minute)

			clock.Advance(10 * time.Minute)

			Eventually(cache.Len).Should(Equal(1))
		})
	})

	When("many goroutines read and write concurrently", func() {
		It("should stay consistent", func() {
			var wg sync.WaitGroup

			for i := 0; i < 20; i++ {
				wg.Add(1)

				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()

					key := fmt.Sprintf("key-%d", i%5)

					for j := 0; j < 100; j++ {
						cache.Put(key, []string{key}, time.Minute)

						value, found := cache.Get(key)
						Expect(found).To(BeTrue())
						Expect(value).To(Equal([]string{key}))
					}
				}(i)
			}

			wg.Wait()

			Expect(cache.Len()).To(Equal(5))
		})
	})
})
