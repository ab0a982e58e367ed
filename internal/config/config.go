package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Warehouse Warehouse `yaml:"warehouse"`
	Sources   Sources   `yaml:"sources"`
	Ingest    Ingest    `yaml:"ingest"`
	Pipeline  Pipeline  `yaml:"pipeline"`
}

// Warehouse points at the embedded analytical database file. An empty path
// opens an in-memory database.
type Warehouse struct {
	Path        string `yaml:"path"`
	MemoryLimit string `yaml:"memory_limit"`
	Threads     int    `yaml:"threads"`
}

// Sources holds the connection strings for the operational stores raw events
// can be pulled from. The MySQL DSN must include parseTime=true.
type Sources struct {
	File            string `yaml:"file"`
	Postgres        string `yaml:"postgres"`
	MySQL           string `yaml:"mysql"`
	Mongo           string `yaml:"mongo"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
	SourceTable     string `yaml:"source_table"`
}

type Ingest struct {
	BatchSize       int   `yaml:"batch_size"`
	SyntheticEvents int   `yaml:"synthetic_events"`
	SyntheticSeed   int64 `yaml:"synthetic_seed"`
}

type Pipeline struct {
	QuantileCount  int     `yaml:"quantile_count"`
	MinSupport     int     `yaml:"min_support"`
	LiftThreshold  float64 `yaml:"lift_threshold"`
	TrainingCutoff string  `yaml:"training_cutoff"`
}

func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()

	if config.Pipeline.MinSupport < 1 {
		return nil, fmt.Errorf("pipeline.min_support must be >= 1, got %d", config.Pipeline.MinSupport)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Warehouse.MemoryLimit == "" {
		c.Warehouse.MemoryLimit = "4GB"
	}
	if c.Warehouse.Threads == 0 {
		c.Warehouse.Threads = 4
	}
	if c.Sources.SourceTable == "" {
		c.Sources.SourceTable = "events"
	}
	if c.Sources.MongoCollection == "" {
		c.Sources.MongoCollection = "events"
	}
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = 5000
	}
	if c.Ingest.SyntheticEvents == 0 {
		c.Ingest.SyntheticEvents = 100000
	}
	if c.Pipeline.QuantileCount == 0 {
		c.Pipeline.QuantileCount = 5
	}
	if c.Pipeline.MinSupport == 0 {
		c.Pipeline.MinSupport = 3
	}
	if c.Pipeline.LiftThreshold == 0 {
		c.Pipeline.LiftThreshold = 1.2
	}
}
