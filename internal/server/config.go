package server

import (
	"github.com/agrisight-io/agrisight/pkg/options"
)

// Config carries everything the backend needs to run. It is assembled by the
// command layer from validated options.
type Config struct {
	HTTP  *options.HttpOptions
	Mqtt  *options.MqttOptions
	S3    *options.S3Options
	LLM   *options.LLMOptions
	Store *options.StoreOptions
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		HTTP:  options.NewHttpOptions(),
		Mqtt:  options.NewMqttOptions(),
		S3:    options.NewS3Options(),
		LLM:   options.NewLLMOptions(),
		Store: options.NewStoreOptions(),
	}
}
