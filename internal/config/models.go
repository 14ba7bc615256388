package config

import "time"

type Config struct {
	GracefulDuration time.Duration
	Metrics          Metrics
	Logs             Logs
	Engine           Engine
	Cache            Cache
	Azure            Azure
	Labeler          Labeler
	Output           Output
	Poll             Poll
}

type Metrics struct {
	Port      int
	Namespace string
}

type Logs struct {
	Level   int
	Encoder EncoderType
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

type Engine struct {
	MaxConcurrency   int
	CacheTTLSeconds  int
	RetryMaxAttempts uint
	RetryBaseDelayMs int
	RetryMaxDelayMs  int
	RunTimeoutMs     int
}

func (e Engine) CacheTTL() time.Duration {
	return time.Duration(e.CacheTTLSeconds) * time.Second
}

func (e Engine) RetryBaseDelay() time.Duration {
	return time.Duration(e.RetryBaseDelayMs) * time.Millisecond
}

func (e Engine) RetryMaxDelay() time.Duration {
	return time.Duration(e.RetryMaxDelayMs) * time.Millisecond
}

func (e Engine) RunTimeout() time.Duration {
	return time.Duration(e.RunTimeoutMs) * time.Millisecond
}

type Cache struct {
	// PersistAcrossCycles keeps the query cache between polling cycles.
	// Without it every cycle starts empty. A valkey store outlives cycles
	// on its own, so setting Valkey.URL requires it.
	PersistAcrossCycles bool
	SweepInterval       time.Duration
	Valkey              Valkey
}

type Valkey struct {
	URL   string
	Creds ValkeyCreds
}

type ValkeyCreds struct {
	Password string
}

func (c ValkeyCreds) String() string {
	if c.Password != "" {
		return "password set"
	}

	return "no password"
}

type Azure struct {
	TenantID string
	Creds    AzureCreds
}

type AzureCreds struct {
	ClientID     string
	ClientSecret string
}

func (c AzureCreds) String() string {
	if c.ClientID != "" && c.ClientSecret != "" {
		return "client secret set"
	}

	return "default credential chain"
}

type Labeler struct {
	Frameworks           []string
	AllowedSubscriptions []string
	DeniedSubscriptions  []string
}

type Output struct {
	Destinations []string
	Retry        OutputRetry
	S3           S3
	Kafka        Kafka
}

type OutputRetry struct {
	MaxAttempt uint
	Delay      time.Duration
	MaxDelay   time.Duration
}

type S3 struct {
	BaseEndpoint string
	Region       string
	UsePathStyle bool
	Creds        AWSCreds
}

type AWSCreds struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSCreds) String() string {
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		return "creds set"
	}

	return "no creds"
}

type Kafka struct {
	Broker KafkaBroker
}

type KafkaBroker struct {
	URLs    string
	Version string
	Creds   KafkaCreds
}

// KafkaCreds enables SASL/SCRAM when a user is set.
type KafkaCreds struct {
	User      string
	Password  string
	Mechanism string
	TLS       bool
}

func (c KafkaCreds) String() string {
	if c.User != "" {
		return "sasl " + c.Mechanism
	}

	return "no creds"
}

type Poll struct {
	Interval time.Duration
}
