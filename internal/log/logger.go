package log

import (
	"fmt"
	"io"
	"os"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"

	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
)

const maxVerbosity = int(logrus.TraceLevel - logrus.InfoLevel)

var logger = logr.Discard()

// Init configures the process logger. Verbosity 0 logs info and above, each
// extra level enables one more logr V level.
func Init(conf config.Logs) error {
	ret, err := New(conf, os.Stdout)
	if err != nil {
		return err
	}

	logger = ret

	return nil
}

func New(conf config.Logs, out io.Writer) (logr.Logger, error) {
	if conf.Level < 0 || conf.Level > maxVerbosity {
		return logr.Logger{}, fmt.Errorf("log level must be between 0 and %d, got %d", maxVerbosity, conf.Level)
	}

	loggerImpl := logrus.New()

	loggerImpl.SetLevel(logrus.Level(conf.Level + int(logrus.InfoLevel)))
	loggerImpl.SetOutput(out)

	switch conf.Encoder {
	case config.EncoderTypeConsole:
		loggerImpl.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
		})
	case config.EncoderTypeJson:
		loggerImpl.SetFormatter(&logrus.JSONFormatter{})
	default:
		return logr.Logger{}, fmt.Errorf("unexpected encoder value %v", conf.Encoder)
	}

	return logrusr.New(loggerImpl, logrusr.WithReportCaller()), nil
}

func Logger() logr.Logger {
	return logger
}
