package kafkabroker

import (
	"github.com/IBM/sarama"
	"github.com/code19m/errx"
)

const (
	newestOffset = "newest"
	oldestOffset = "oldest"
)

// Config holds the Kafka connection and consumer group settings.
type Config struct {
	Brokers      string `yaml:"brokers"       validate:"required"`
	SaslUsername string `yaml:"sasl_username"`
	SaslPassword string `yaml:"sasl_password"                     mask:"true"`

	// If not set defaults to the service name.
	GroupID string `yaml:"group_id"`

	KafkaVersion  string `yaml:"kafka_version"  default:"3.6.0"`
	InitialOffset string `yaml:"initial_offset" default:"oldest" validate:"oneof=newest oldest"`

	// DLQSuffix is appended to the queue name to form the dead letter topic.
	DLQSuffix string `yaml:"dlq_suffix" default:".dlq"`
}

func (c Config) saramaConfig(clientID string) (*sarama.Config, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = clientID

	version, err := sarama.ParseKafkaVersion(c.KafkaVersion)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	saramaCfg.Version = version

	// only SASL_PLAINTEXT is supported
	if c.SaslUsername != "" && c.SaslPassword != "" {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = c.SaslUsername
		saramaCfg.Net.SASL.Password = c.SaslPassword
		saramaCfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}

	switch c.InitialOffset {
	case newestOffset:
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	case oldestOffset, "":
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		return nil, errx.New("[kafkabroker]: unknown initial offset", errx.WithDetails(errx.D{
			"initial_offset": c.InitialOffset,
		}))
	}

	// sync producer needs both
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll

	return saramaCfg, nil
}
