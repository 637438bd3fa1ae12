package kafka

import (
	"time"

	"github.com/IBM/sarama"
)

// newProducerConfig builds the sarama config shared by chat producers.
func newProducerConfig(clientID string) *sarama.Config {
	c := sarama.NewConfig()
	if clientID != "" {
		c.ClientID = clientID
	}

	c.Producer.RequiredAcks = sarama.WaitForLocal
	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Flush.Frequency = 200 * time.Millisecond
	c.Producer.Retry.Max = 3
	c.Producer.Return.Successes = false
	c.Producer.Return.Errors = true

	return c
}
