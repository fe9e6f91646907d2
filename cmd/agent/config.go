package main

import (
	"github.com/browsermob/agent/pkg/runner"
	"github.com/browsermob/agent/pkg/utils"
	"github.com/spf13/viper"
)

// Load the batch configuration from flags, environment and config file.
func LoadConfig(v *viper.Viper) (*runner.Config, error) {
	config := &runner.Config{}

	if err := utils.UnmarshalConfig(v, config); err != nil {
		return nil, err
	}

	config.SetDefaults()
	return config, nil
}
