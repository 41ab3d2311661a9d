package spec

import "time"

type StdoutSink struct {
	PrintCounter bool `yaml:"print_counter"`
	PrintInput   bool `yaml:"print_input"`
}

type KafkaSink struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	FailureTopic string   `yaml:"failure_topic"`
	RequiredAcks int16    `yaml:"required_acks"`
	Version      string   `yaml:"version"`
}

type sinkConfigs struct {
	Kafka  KafkaSink  `yaml:"kafka"`
	Stdout StdoutSink `yaml:"stdout"`
}

type WorkerSection struct {
	// Overrides the raw→processed bucket rule. PROCESSED_BUCKET wins over it.
	DestinationBucket string `yaml:"destination_bucket"`
}

type EncoderSection struct {
	ParallelWriters int64 `yaml:"parallel_writers"`
	RowGroupSize    int64 `yaml:"row_group_size"`
	PageSize        int64 `yaml:"page_size"`
}

type HistorySection struct {
	Kind string `yaml:"kind"` // memory|pebble|badger
	Dir  string `yaml:"dir"`
}

type OrchestrationSection struct {
	Timeout time.Duration  `yaml:"timeout"`
	History HistorySection `yaml:"history"`
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source struct {
		Kind   string `yaml:"kind"`
		Driver string `yaml:"driver"`
		Config string `yaml:"config"`
	} `yaml:"source"`

	Store struct {
		Config string `yaml:"config"`
	} `yaml:"store"`

	Worker        WorkerSection        `yaml:"worker"`
	Encoder       EncoderSection       `yaml:"encoder"`
	Orchestration OrchestrationSection `yaml:"orchestration"`

	Sinks       []string    `yaml:"sinks"`
	SinkConfigs sinkConfigs `yaml:"sink_configs"`

	Control struct {
		GRPCPort int `yaml:"grpc_port"`
	} `yaml:"control"`
	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`
}
