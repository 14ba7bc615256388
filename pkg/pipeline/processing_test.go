package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"go.uber.org/mock/gomock"

	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline/mock"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/retry"
)

// Helper

// sinkReport stands for the report handed to a sink.
type sinkReport struct {
	RunID string
}

var (
	report = sinkReport{RunID: "run-1"}

	errOneError = errors.New("error for testing purpose")
	oneCategory = "category1"
	oneTarget   = "s3://bucket/prefix"

	errRetryableErrProcessingError = pipeline.NewRetryableErrProcessingError(errOneError, oneCategory, oneTarget)

	panicReason = "my specific reason"
)

type PanicProcessing struct{}

func (p PanicProcessing) Process(ctx context.Context, report sinkReport) error {
	panic(panicReason)
}

type SlowProcessor struct {
	Sleep time.Duration
	Err   error

	clock clockwork.FakeClock
}

func NewSlowProcessor(clock clockwork.FakeClock) *SlowProcessor {
	return &SlowProcessor{clock: clock}
}

func (s *SlowProcessor) Process(ctx context.Context, report sinkReport) error {
	s.clock.Advance(s.Sleep)

	return s.Err
}

// immediateTimer skips backoff waits.
type immediateTimer struct{}

func (immediateTimer) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()

	return ch
}

func pointer[T any](obj T) *T {
	return &obj
}

func filterMetricByLabel(metrics []*promdto.Metric, labelName, labelValue string) *promdto.Metric {
	for _, metric := range metrics {
		if metric == nil {
			continue
		}

		if len(metric.Label) == 0 {
			continue
		}

		for _, label := range metric.Label {
			if label == nil || label.Name == nil || label.Value == nil {
				continue
			}

			if *label.Name == labelName && *label.Value == labelValue {
				return metric
			}
		}
	}

	return nil
}

// Test

func TestReportSinkDecorators(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report sink decorators test suite")
}

// Test Parallel

var _ = Describe("Fanning a report out to 2 sinks", func() {
	var ctrl *gomock.Controller

	var parallel pipeline.Processing[sinkReport]
	var proc1, proc2 *mock.MockProcessing[sinkReport]

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())

		proc1 = mock.NewMockProcessing[sinkReport](ctrl)
		proc2 = mock.NewMockProcessing[sinkReport](ctrl)

		parallel = pipeline.NewParallelProcessing(proc1, proc2)
	})

	When("both processing return nil", func() {
		BeforeEach(func() {
			proc1.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
			proc2.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
		})

		It("should succeed", func(ctx SpecContext) {
			By("calling Process")
			err := parallel.Process(ctx, report)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("only the first processing returns an error", func() {
		Context("and the error is a retryable ErrProcessingError", func() {
			BeforeEach(func() {
				proc1.EXPECT().Process(gomock.Any(), report).Return(errRetryableErrProcessingError).Times(1)
				proc2.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
			})

			It("should return a retryable ErrProcessingError", func(ctx SpecContext) {
				err := parallel.Process(ctx, report)

				Expect(err).To(HaveOccurred(), "non nil error")
				Expect(err).Should(MatchError(pipeline.ErrRetryableError), "error is retryable")

				processingError := pipeline.ErrProcessingError{}
				Expect(errors.As(err, &processingError)).To(BeTrue(), "error is a ErrProcessingError")
				Expect(processingError.Category).To(Equal(oneCategory), "ErrProcessingError category is preserved")
			})
		})

		Context("and the error is generic", func() {
			BeforeEach(func() {
				proc1.EXPECT().Process(gomock.Any(), report).Return(errOneError).Times(1)
				proc2.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
			})

			It("should fail", func(ctx SpecContext) {
				err := parallel.Process(ctx, report)
				Expect(err).To(HaveOccurred(), "non nil error")
				Expect(err).Should(MatchError(errOneError), "error is the original error")
			})
		})
	})

	When("only the second processing returns an error", func() {
		Context("and the error is a retryable ErrProcessingError", func() {
			BeforeEach(func() {
				proc1.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
				proc2.EXPECT().Process(gomock.Any(), report).Return(errRetryableErrProcessingError).Times(1)
			})

			It("should return a retryable ErrProcessingError", func(ctx SpecContext) {
				err := parallel.Process(ctx, report)

				Expect(err).To(HaveOccurred(), "nil error")

				Expect(err).Should(MatchError(pipeline.ErrRetryableError), "error is retryable")

				processingError := pipeline.ErrProcessingError{}
				Expect(errors.As(err, &processingError)).To(BeTrue(), "error is a ErrProcessingError")
				Expect(processingError.Category).To(Equal(oneCategory), "ErrProcessingError category is preserved")
			})
		})

		Context("and the error is generic", func() {
			BeforeEach(func() {
				proc1.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
				proc2.EXPECT().Process(gomock.Any(), report).Return(errOneError).Times(1)
			})

			It("should fail", func(ctx SpecContext) {
				err := parallel.Process(ctx, report)
				Expect(err).To(HaveOccurred(), "non nil error")
				Expect(err).Should(MatchError(errOneError), "error is the original error")
			})
		})
	})

	When("both processing return an error", func() {
		err1 := errors.New("error 1")
		err2 := errors.New("error 2")

		BeforeEach(func() {
			proc1.EXPECT().Process(gomock.Any(), report).Return(err1).Times(1)
			proc2.EXPECT().Process(gomock.Any(), report).Return(err2).Times(1)
		})

		It("should return both errors", func(ctx SpecContext) {
			err := parallel.Process(ctx, report)
			Expect(err).To(HaveOccurred(), "non nil error")
			Expect(err).Should(MatchError(err1), "err1 is kept")
			Expect(err).Should(MatchError(err2), "err2 is kept")
		})
	})
})

// Test Panic Processing

var _ = Describe("Recovering from a panicking sink", func() {
	var ctrl *gomock.Controller

	var panicHandler, proc pipeline.Processing[sinkReport]
	var mockProc *mock.MockProcessing[sinkReport]

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
	})

	When("the inner processing panic", func() {
		BeforeEach(func() {
			proc = PanicProcessing{}
			panicHandler = pipeline.NewPanicHandlerProcessing(proc)
		})

		It("should return an error and not panic", func(ctx SpecContext) {
			err := panicHandler.Process(ctx, report)
			Expect(err).To(HaveOccurred(), "non nil err")
			Expect(err.Error()).To(ContainSubstring(panicReason), "contain the panic reason")
		})
	})

	When("the inner processing doesn't panic", func() {
		BeforeEach(func() {
			mockProc = mock.NewMockProcessing[sinkReport](ctrl)
			panicHandler = pipeline.NewPanicHandlerProcessing(mockProc)
		})

		Context("and return an error", func() {
			BeforeEach(func() {
				mockProc.EXPECT().Process(gomock.Any(), report).Return(errOneError).Times(1)
			})

			It("should return the error", func(ctx SpecContext) {
				err := panicHandler.Process(ctx, report)
				Expect(err).To(HaveOccurred(), "non nil error")
				Expect(err).Should(MatchError(errOneError), "error is the original error")
			})
		})

		Context("and return nil", func() {
			BeforeEach(func() {
				mockProc.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
			})

			It("should return nil", func(ctx SpecContext) {
				err := panicHandler.Process(ctx, report)
				Expect(err).NotTo(HaveOccurred(), "nil err")
			})
		})
	})
})

// Test Retry

var _ = Describe("Retrying a sink", func() {
	var ctrl *gomock.Controller

	var retryProc pipeline.Processing[sinkReport]
	var proc *mock.MockProcessing[sinkReport]

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		proc = mock.NewMockProcessing[sinkReport](ctrl)
	})

	Context("using a retry processing with 3 max attempts and 100ms delay", func() {
		BeforeEach(func() {
			retryProc = pipeline.NewRetryProcessing(proc, pipeline.RetryConfig{MaxAttempt: 3, Delay: 100 * time.Millisecond, Timer: immediateTimer{}})
		})

		When("the inner processing never fail", func() {
			BeforeEach(func() {
				proc.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
			})

			It("should succeed", func(ctx SpecContext) {
				err := retryProc.Process(ctx, report)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		When("the inner processing only fails the first time with a retryable error", func() {
			BeforeEach(func() {
				gomock.InOrder(
					proc.EXPECT().Process(gomock.Any(), report).Return(errRetryableErrProcessingError).Times(1),
					proc.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1),
				)
			})
			It("should succeed", func(ctx SpecContext) {
				err := retryProc.Process(ctx, report)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		When("the inner processing only fails the first time with a wrapped retryable error", func() {
			BeforeEach(func() {
				gomock.InOrder(
					proc.EXPECT().Process(gomock.Any(), report).Return(fmt.Errorf("wrapping: %w", errRetryableErrProcessingError)).Times(1),
					proc.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1),
				)
			})
			It("should succeed", func(ctx SpecContext) {
				err := retryProc.Process(ctx, report)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		When("the inner processing continuously fails", func() {
			Context("With a generic error", func() {
				BeforeEach(func() {
					proc.EXPECT().Process(gomock.Any(), report).Return(errOneError).Times(1)
				})
				It("should fail after one attempt", func(ctx SpecContext) {
					err := retryProc.Process(ctx, report)
					Expect(err).To(HaveOccurred(), "non nil error")
					Expect(err).Should(MatchError(errOneError), "error is the original error")
				})
			})

			Context("With a retryable ErrProcessingError", func() {
				BeforeEach(func() {
					proc.EXPECT().Process(gomock.Any(), report).Return(errRetryableErrProcessingError).Times(3)
				})

				It("should return a retryable ErrProcessingError", func(ctx SpecContext) {
					err := retryProc.Process(ctx, report)

					Expect(err).To(HaveOccurred(), "nil error")

					Expect(err).Should(MatchError(pipeline.ErrRetryableError), "error is retryable")
					Expect(err).Should(MatchError(retry.ErrRetriesExhausted), "retries are exhausted")

					processingError := pipeline.ErrProcessingError{}
					Expect(errors.As(err, &processingError)).To(BeTrue(), "error is a ErrProcessingError")
					Expect(processingError.Category).To(Equal(oneCategory), "ErrProcessingError category is preserved")
					Expect(processingError.Target).To(Equal(oneTarget), "ErrProcessingError target is preserved")
				})
			})
		})
	})
})

// Test Fallback

var _ = Describe("Falling back to error processing", func() {
	var ctrl *gomock.Controller

	var fallback pipeline.Processing[sinkReport]
	var proc *mock.MockProcessing[sinkReport]
	var errProc *mock.MockErrorProcessing

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		proc = mock.NewMockProcessing[sinkReport](ctrl)
		errProc = mock.NewMockErrorProcessing(ctrl)

		fallback = pipeline.NewFallbackProcessing[sinkReport](proc, errProc).WithLogger(GinkgoLogr)
	})

	When("the inner processing succeeds", func() {
		BeforeEach(func() {
			proc.EXPECT().Process(gomock.Any(), report).Return(nil).Times(1)
			errProc.EXPECT().Process(gomock.Any(), gomock.Any()).Times(0)
		})

		It("should not call the error processing", func(ctx SpecContext) {
			Expect(fallback.Process(ctx, report)).To(Succeed())
		})
	})

	When("the inner processing returns an ErrProcessingError", func() {
		BeforeEach(func() {
			proc.EXPECT().Process(gomock.Any(), report).Return(errRetryableErrProcessingError).Times(1)
			errProc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, pErr pipeline.ErrProcessingError) error {
				Expect(pErr.Category).To(Equal(oneCategory))
				Expect(pErr.Target).To(Equal(oneTarget))

				return nil
			}).Times(1)
		})

		It("should forward it and return the original error", func(ctx SpecContext) {
			err := fallback.Process(ctx, report)
			Expect(err).To(MatchError(errOneError))
		})
	})

	When("the inner processing returns a generic error and error processing fails", func() {
		BeforeEach(func() {
			proc.EXPECT().Process(gomock.Any(), report).Return(errOneError).Times(1)
			errProc.EXPECT().Process(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, pErr pipeline.ErrProcessingError) error {
				Expect(pErr.Category).To(Equal(pipeline.UnknownCategory))

				return errors.New("dlq unavailable")
			}).Times(1)
		})

		It("should still return the original error", func(ctx SpecContext) {
			err := fallback.Process(ctx, report)
			Expect(err).To(MatchError(errOneError))
		})
	})
})

// Test Metric Duration

var _ = Describe("Measuring sink duration", func() {
	var registry *prometheus.Registry
	var metrics pipeline.Processing[sinkReport]
	var proc *SlowProcessor

	BeforeEach(func() {
		registry = prometheus.NewPedanticRegistry()
	})

	Context("using a processing that takes a custom time to process", func() {
		var err error

		BeforeEach(func() {
			fakeClock := clockwork.NewFakeClock()

			proc = NewSlowProcessor(fakeClock)
			metrics, err = pipeline.NewDurationMetricsDecoratorProcessing(proc, registry, fakeClock,
				pipeline.MetricsConfig{
					Namespace: "test",
					Buckets:   []float64{20, 200, 2000},
				},
			)

			Expect(err).NotTo(HaveOccurred())
		})

		When("several messages are successfully processed with different duration", func() {
			BeforeEach(func() {
				proc.Sleep = 5 * time.Millisecond

				for i := 0; i < 3; i++ {
					err = metrics.Process(context.TODO(), report)
					Expect(err).NotTo(HaveOccurred())
				}

				proc.Sleep = 50 * time.Millisecond

				for i := 0; i < 2; i++ {
					err = metrics.Process(context.TODO(), report)
					Expect(err).NotTo(HaveOccurred())
				}

				proc.Sleep = 500 * time.Millisecond

				err = metrics.Process(context.TODO(), report)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should record every call in the histogram", func() {
				metrics, err := registry.Gather()
				Expect(err).NotTo(HaveOccurred())
				Expect(metrics).To(HaveLen(1))
				Expect(metrics[0].Metric).To(HaveLen(1))

				metric := metrics[0].Metric[0]

				// label
				By("checking the label")
				Expect(metric.Label).To(HaveLen(1))
				label := metric.Label[0]
				Expect(*label.Name).To(Equal("failed"))
				Expect(*label.Value).To(Equal("false"))

				// Histogram
				By("checking if it's a histogram")
				Expect(metric.Histogram).NotTo(BeNil())

				// Total count
				By("checking the total number of sample in the metric")
				Expect(metric.Histogram.SampleCount).NotTo(BeNil())
				Expect(*metric.Histogram.SampleCount).To(BeEquivalentTo(6))

				// Buckets
				By("checking the different buckets")
				buckets := metric.Histogram.Bucket
				Expect(buckets).To(ConsistOf(
					&promdto.Bucket{UpperBound: pointer[float64](20), CumulativeCount: pointer[uint64](3)},
					&promdto.Bucket{UpperBound: pointer[float64](200), CumulativeCount: pointer[uint64](5)},
					&promdto.Bucket{UpperBound: pointer[float64](2000), CumulativeCount: pointer[uint64](6)},
				))
			})
		})

		When("some messages are successfully processed and some are not", func() {
			BeforeEach(func() {
				proc.Sleep = 2500 * time.Millisecond

				err = metrics.Process(context.TODO(), report)
				Expect(err).NotTo(HaveOccurred())

				proc.Sleep = 50 * time.Millisecond
				proc.Err = errors.New("failed")

				err = metrics.Process(context.TODO(), report)
				Expect(err).To(HaveOccurred())
			})

			It("should record every call in the histogram", func() {
				By("checking there are metrics for success and failure")
				metrics, err := registry.Gather()
				Expect(err).NotTo(HaveOccurred())
				Expect(metrics).To(HaveLen(1))
				Expect(metrics[0].Metric).To(HaveLen(2))

				// Success metric
				By("checking the success metric")
				successMetric := filterMetricByLabel(metrics[0].Metric, "failed", "false")
				Expect(successMetric).NotTo(BeNil())

				// Histogram
				Expect(successMetric.Histogram).NotTo(BeNil())

				// Total count
				Expect(successMetric.Histogram.SampleCount).NotTo(BeNil())
				Expect(*successMetric.Histogram.SampleCount).To(BeEquivalentTo(1))

				// Buckets
				successBuckets := successMetric.Histogram.Bucket
				Expect(successBuckets).To(ConsistOf(
					&promdto.Bucket{UpperBound: pointer[float64](20), CumulativeCount: pointer[uint64](0)},
					&promdto.Bucket{UpperBound: pointer[float64](200), CumulativeCount: pointer[uint64](0)},
					&promdto.Bucket{UpperBound: pointer[float64](2000), CumulativeCount: pointer[uint64](0)},
				))

				// Failure metric
				By("checking the success metric")
				failureMetric := filterMetricByLabel(metrics[0].Metric, "failed", "true")
				Expect(failureMetric).NotTo(BeNil())

				// Histogram
				Expect(failureMetric.Histogram).NotTo(BeNil())

				// Total count
				Expect(failureMetric.Histogram.SampleCount).NotTo(BeNil())
				Expect(*failureMetric.Histogram.SampleCount).To(BeEquivalentTo(1))

				// Buckets
				failureBuckets := failureMetric.Histogram.Bucket
				Expect(failureBuckets).To(ConsistOf(
					&promdto.Bucket{UpperBound: pointer[float64](20), CumulativeCount: pointer[uint64](0)},
					&promdto.Bucket{UpperBound: pointer[float64](200), CumulativeCount: pointer[uint64](1)},
					&promdto.Bucket{UpperBound: pointer[float64](2000), CumulativeCount: pointer[uint64](1)},
				))
			})
		})
	})
})

// Test Error Duration

var _ = Describe("Counting sink errors", func() {
	var registry *prometheus.Registry
	var metrics pipeline.Processing[pipeline.ErrProcessingError]
	var err error

	BeforeEach(func() {
		registry = prometheus.NewPedanticRegistry()

		metrics, err = pipeline.NewErrorCountProcessing(registry, pipeline.MetricsConfig{Namespace: "test"})
		Expect(err).NotTo(HaveOccurred())
	})

	When("processing a ErrProcessingError with an empty category", func() {
		BeforeEach(func() {
			err = metrics.Process(context.TODO(), pipeline.NewErrProcessingError(errOneError, "", ""))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return a metric with an empty category", func() {
			metrics, err := registry.Gather()
			Expect(err).NotTo(HaveOccurred())
			Expect(metrics).To(HaveLen(1))
			Expect(metrics[0].Metric).To(HaveLen(1))

			metric := metrics[0].Metric[0]

			// label
			By("checking the label")
			Expect(metric.Label).To(HaveLen(1))
			label := metric.Label[0]
			Expect(*label.Name).To(Equal("category"))
			Expect(*label.Value).To(Equal("empty_category"))

			// CounterVec
			By("checking if it's a counter")
			Expect(metric.Counter).NotTo(BeNil())

			// With 1 error
			Expect(*metric.Counter.Value).To(BeEquivalentTo(1))
		})
	})

	When("processing a bunch of errors with different category", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				err = metrics.Process(context.TODO(), pipeline.NewErrProcessingError(errOneError, "category1", ""))
				Expect(err).NotTo(HaveOccurred())
			}

			for i := 0; i < 2; i++ {
				err = metrics.Process(context.TODO(), pipeline.NewErrProcessingError(errOneError, "category2", ""))
				Expect(err).NotTo(HaveOccurred())
			}

			err = metrics.Process(context.TODO(), pipeline.NewErrProcessingError(errOneError, "category3", ""))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return metrics for all different categories", func() {
			metrics, err := registry.Gather()
			Expect(err).NotTo(HaveOccurred())
			Expect(metrics).To(HaveLen(1))
			Expect(metrics[0].Metric).To(HaveLen(3))

			for i, category := range []string{"category3", "category2", "category1"} {
				expectedNbError := i + 1

				metric := filterMetricByLabel(metrics[0].Metric, "category", category)

				// CounterVec
				By("checking if it's a counter")
				Expect(metric.Counter).NotTo(BeNil())

				// With 1 error
				Expect(*metric.Counter.Value).To(BeEquivalentTo(expectedNbError))
			}
		})
	})
})
