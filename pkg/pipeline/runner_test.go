package pipeline_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

var _ = Describe("Testing Runner", func() {
	var clock clockwork.FakeClock
	var calls atomic.Int32
	var runner pipeline.Runner

	BeforeEach(func() {
		clock = clockwork.NewFakeClock()
		calls.Store(0)

		proc := pipeline.ProcessingFunc[time.Time](func(context.Context, time.Time) error {
			calls.Add(1)

			return errOneError
		})

		runner = pipeline.NewRunner(time.Minute, proc).WithClock(clock).WithLogger(logr.Discard())
	})

	It("should process right away then on every tick until the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() {
			done <- runner.Start(ctx)
		}()

		Eventually(calls.Load).Should(BeEquivalentTo(1))

		clock.Advance(time.Minute)
		Eventually(calls.Load).Should(BeEquivalentTo(2))

		clock.Advance(time.Minute)
		Eventually(calls.Load).Should(BeEquivalentTo(3))

		cancel()

		Eventually(done).Should(Receive(MatchError(context.Canceled)))
		Consistently(calls.Load).Should(BeEquivalentTo(3))
	})
})
