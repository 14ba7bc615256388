package factory

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/logging"
	"github.com/go-logr/logr"

	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
	"github.com/schubergphilis/azureenergylabelerlib/internal/log"
)

// CreateS3Client uses static credentials when they are configured and the
// default AWS chain otherwise.
func CreateS3Client(ctx context.Context, conf config.S3) (*s3.Client, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Region),
		awsconfig.WithLogger(AWSLogger{log.Logger()}),
	}

	if conf.Creds.AccessKeyID != "" && conf.Creds.SecretAccessKey != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.Creds.AccessKeyID, conf.Creds.SecretAccessKey, ""),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	if conf.BaseEndpoint != "" {
		baseEndpoint := conf.BaseEndpoint

		if !strings.HasPrefix(baseEndpoint, "http://") && !strings.HasPrefix(baseEndpoint, "https://") {
			baseEndpoint = fmt.Sprintf("https://%s", baseEndpoint)
		}

		awsConfig.BaseEndpoint = &baseEndpoint
	}

	ret := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.UsePathStyle = conf.UsePathStyle
	})

	return ret, nil
}

// AWSLogger sends the SDK warnings to logr, debug messages at V(3).
type AWSLogger struct {
	logger logr.Logger
}

func NewAWSLogger(logger logr.Logger) AWSLogger {
	return AWSLogger{logger: logger}
}

func (a AWSLogger) Logf(classification logging.Classification, format string, v ...interface{}) {
	level := 0

	switch classification {
	case logging.Debug:
		level = 3
	case logging.Warn:
		level = 0
	default:
		return
	}

	msg := fmt.Sprintf(format, v...)

	a.logger.V(level).Info(msg, "source", "aws-sdk")
}
