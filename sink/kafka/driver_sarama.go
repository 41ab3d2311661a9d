package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"csvflow/internal/orchestration"
	"csvflow/sink"
)

type Config struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	FailureTopic string   `yaml:"failure_topic"` // Failed runs; empty → Topic
	Acks         int16    `yaml:"required_acks"` // 0,1,-1
	Version      string   `yaml:"version"`
}

type driver struct {
	cfg Config
	p   sarama.SyncProducer
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if cfg.Topic == "" {
		return fmt.Errorf("kafka-sink: topic is required")
	}
	d.cfg = cfg

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return err
		}
		sc.Version = ver
	}
	var err error
	d.p, err = sarama.NewSyncProducer(cfg.Brokers, sc)
	return err
}

// topicFor routes Failed runs to the failure topic when one is set.
func (d *driver) topicFor(run orchestration.Run) string {
	if run.State == orchestration.Failed && d.cfg.FailureTopic != "" {
		return d.cfg.FailureTopic
	}
	return d.cfg.Topic
}

func (d *driver) Push(run orchestration.Run) error {
	val, err := json.Marshal(run)
	if err != nil {
		return err
	}
	headers := []sarama.RecordHeader{{Key: []byte("state"), Value: []byte(run.State)}}
	if name := run.ErrorName(); name != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("error_name"), Value: []byte(name)})
	}
	_, _, err = d.p.SendMessage(&sarama.ProducerMessage{
		Topic:   d.topicFor(run),
		Key:     sarama.StringEncoder(run.ID),
		Value:   sarama.ByteEncoder(val),
		Headers: headers,
	})
	if err != nil {
		return fmt.Errorf("kafka-sink: run %s: %w", run.ID, err)
	}
	return nil
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	err := d.p.Close()
	d.p = nil
	return err
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
