package config

import (
	"csvflow/internal/objectstore"
	kcfg "csvflow/source/kafka"
)

// LoadKafkaConfig delegates to the Kafka source loader while centralizing
// loader entrypoints under internal/config.
func LoadKafkaConfig(path string) (kcfg.Config, error) {
	return kcfg.LoadConfig(path)
}

// LoadStoreConfig does the same for the object store gateway.
func LoadStoreConfig(path string) (objectstore.Config, error) {
	return objectstore.LoadConfig(path)
}
