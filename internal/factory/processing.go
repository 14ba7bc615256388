package factory

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/schubergphilis/azureenergylabelerlib/internal/common"
	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/entity"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo"
	"github.com/schubergphilis/azureenergylabelerlib/internal/domain/repo/report"
	"github.com/schubergphilis/azureenergylabelerlib/pkg/pipeline"
)

// ReportSinkDeps are the clients a destination may need. Missing ones are
// created on demand.
type ReportSinkDeps struct {
	AzureCredential azcore.TokenCredential
	Registry        prometheus.Registerer
	Namespace       string
	Logger          logr.Logger
}

// CreateReportSink builds one writer per destination and decorates them.
func CreateReportSink(ctx context.Context, conf config.Output, deps ReportSinkDeps) (pipeline.Processing[entity.Report], common.CloseFunc, error) {
	writers := make(map[string]repo.ReportWriter, len(conf.Destinations))
	closers := make([]common.CloseFunc, 0)

	closeAll := func(ctx context.Context) error {
		return common.CloseAll(ctx, closers...)
	}

	for _, raw := range conf.Destinations {
		destination, err := report.ParseDestination(raw)
		if err != nil {
			_ = closeAll(ctx)

			return nil, nil, err
		}

		writer, closer, err := createReportWriter(ctx, destination, conf, deps)
		if err != nil {
			_ = closeAll(ctx)

			return nil, nil, fmt.Errorf("failed to create writer for %s: %w", destination, err)
		}

		if closer != nil {
			closers = append(closers, closer)
		}

		writers[destination.String()] = writer
	}

	ret, err := DecorateReportWriters(writers, conf.Retry, deps)
	if err != nil {
		_ = closeAll(ctx)

		return nil, nil, err
	}

	return ret, closeAll, nil
}

func createReportWriter(ctx context.Context, destination report.Destination, conf config.Output, deps ReportSinkDeps) (repo.ReportWriter, common.CloseFunc, error) {
	switch destination.Kind {
	case report.DestinationFile:
		return report.NewFileWriter(destination.Path), nil, nil
	case report.DestinationS3:
		client, err := CreateS3Client(ctx, conf.S3)
		if err != nil {
			return nil, nil, err
		}

		return report.NewS3Writer(client, destination.Container, destination.Prefix), nil, nil
	case report.DestinationBlob:
		if deps.AzureCredential == nil {
			return nil, nil, fmt.Errorf("blob destination %s needs an azure credential", destination)
		}

		client, err := CreateBlobClient(destination.ServiceURL, deps.AzureCredential)
		if err != nil {
			return nil, nil, err
		}

		return report.NewBlobWriter(client, destination.Container, destination.Prefix), nil, nil
	case report.DestinationKafka:
		producer, closer, err := CreateKafkaProducer(conf.Kafka)
		if err != nil {
			return nil, nil, err
		}

		return report.NewKafkaWriter(producer, destination.Topic), closer, nil
	default:
		return nil, nil, fmt.Errorf("unsupported destination kind %q", destination.Kind)
	}
}

/*
 * DecorateReportWriters decorates the writers as follow:
 *
 *	                               ---> fallback --> retry --> writer 1
 *	panic --> duration --> parallel ---|
 *	                               ---> fallback --> retry --> writer n
 *
 * Every fallback hands its errors to the error processing:
 *
 *	panic --> error count
 */
func DecorateReportWriters(writers map[string]repo.ReportWriter, retryConf config.OutputRetry, deps ReportSinkDeps) (pipeline.Processing[entity.Report], error) {
	errorProcessing, err := pipeline.NewErrorCountProcessing(deps.Registry, pipeline.MetricsConfig{Namespace: deps.Namespace, Subsystem: "report_error"})
	if err != nil {
		return nil, fmt.Errorf("failed to create error count processing: %w", err)
	}

	errorProcessing = pipeline.NewPanicHandlerProcessing(errorProcessing)

	branches := make([]pipeline.Processing[entity.Report], 0, len(writers))

	for _, writer := range writers {
		var branch pipeline.Processing[entity.Report] = pipeline.ProcessingFunc[entity.Report](writer.WriteReport)

		branch = pipeline.NewRetryProcessing(branch, pipeline.RetryConfig{
			MaxAttempt: retryConf.MaxAttempt,
			Delay:      retryConf.Delay,
			MaxDelay:   retryConf.MaxDelay,
		})

		branch = pipeline.NewFallbackProcessing(branch, errorProcessing).WithLogger(deps.Logger)

		branches = append(branches, branch)
	}

	ret := pipeline.NewParallelProcessing(branches...)

	ret, err = pipeline.NewDurationMetricsDecoratorProcessing(ret, deps.Registry, clockwork.NewRealClock(), pipeline.MetricsConfig{Namespace: deps.Namespace, Subsystem: "report"})
	if err != nil {
		return nil, fmt.Errorf("failed to create duration metrics processor: %w", err)
	}

	ret = pipeline.NewPanicHandlerProcessing(ret)

	return ret, nil
}
