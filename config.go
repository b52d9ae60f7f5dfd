package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 可选的服务配置文件，缺省时全部使用零值/命令行参数
type Config struct {
	Engine struct {
		UseHubLabels bool `yaml:"use-hub-labels"`
		Profile      bool `yaml:"profile"`
		PoolSize     int  `yaml:"pool-size"`
	} `yaml:"engine"`
}

func ReadConfig(file string) Config {
	var config Config
	if file == "" {
		return config
	}
	log.Info("Reading config file")
	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}
	return config
}
