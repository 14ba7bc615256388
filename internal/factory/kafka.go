package factory

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"

	"github.com/schubergphilis/azureenergylabelerlib/internal/common"
	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
)

const clientIDPrefix = "compliance-poller"

func CreateKafkaProducer(kafkaConfig config.Kafka) (sarama.SyncProducer, common.CloseFunc, error) {
	conf, err := createSaramaConfig(kafkaConfig)
	if err != nil {
		return nil, nil, err
	}

	urls := strings.Split(kafkaConfig.Broker.URLs, ",")

	ret, err := sarama.NewSyncProducer(urls, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	shutdown := func(context.Context) error {
		return ret.Close()
	}

	return ret, shutdown, nil
}

func createSaramaConfig(kafkaConfig config.Kafka) (*sarama.Config, error) {
	conf := sarama.NewConfig()

	// mandatory for a sync producer
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true

	// a report is only published once every replica has it
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Idempotent = true
	conf.Net.MaxOpenRequests = 1

	// retries are handled by the report pipeline
	conf.Producer.Retry.Max = 1

	conf.ClientID = computeClientID()

	version, err := sarama.ParseKafkaVersion(kafkaConfig.Broker.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kafka version: %w", err)
	}

	conf.Version = version

	creds := kafkaConfig.Broker.Creds
	if creds.User != "" {
		err := configureSASL(conf, creds)
		if err != nil {
			return nil, err
		}
	}

	if creds.TLS {
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	err = conf.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}

	return conf, nil
}

func configureSASL(conf *sarama.Config, creds config.KafkaCreds) error {
	conf.Net.SASL.Enable = true
	conf.Net.SASL.User = creds.User
	conf.Net.SASL.Password = creds.Password

	switch sarama.SASLMechanism(creds.Mechanism) {
	case sarama.SASLTypeSCRAMSHA512:
		conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: sha512.New}
		}
	case sarama.SASLTypeSCRAMSHA256:
		conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: sha256.New}
		}
	case sarama.SASLTypePlaintext:
		conf.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	default:
		return fmt.Errorf("unsupported sasl mechanism %q", creds.Mechanism)
	}

	return nil
}

func computeClientID() string {
	prefix, err := os.Hostname()
	if err != nil {
		prefix = clientIDPrefix
	}

	return fmt.Sprintf("%s-%x", prefix, rand.Int31())
}

// scramClient adapts xdg-go/scram to sarama.SCRAMClient.
type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return fmt.Errorf("failed to create scram client: %w", err)
	}

	c.Client = client
	c.ClientConversation = client.NewConversation()

	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.ClientConversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.ClientConversation.Done()
}
