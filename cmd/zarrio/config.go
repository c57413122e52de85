package main

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/zarrio/zarrio/api"
)

// fileConfig is the shape of an optional HCL config file (--config) that
// overrides api.DefaultOptions() for a CLI invocation.
type fileConfig struct {
	ParallelWorkers     *int  `hcl:"parallel_workers,optional"`
	ConsolidateMetadata *bool `hcl:"consolidate_metadata,optional"`
	Synchronizer        *bool `hcl:"synchronizer,optional"`
}

// loadOptions builds api.Options from the documented defaults, optionally
// overridden by an HCL config file.
func loadOptions(configPath string) (api.Options, error) {
	opts := api.DefaultOptions()
	if configPath == "" {
		return opts, nil
	}

	var cfg fileConfig
	if err := hclsimple.DecodeFile(configPath, nil, &cfg); err != nil {
		return opts, fmt.Errorf("zarrio: load config %s: %w", configPath, err)
	}
	if cfg.ParallelWorkers != nil {
		opts.ParallelWorkers = *cfg.ParallelWorkers
	}
	if cfg.ConsolidateMetadata != nil {
		opts.ConsolidateMetadata = *cfg.ConsolidateMetadata
	}
	if cfg.Synchronizer != nil {
		opts.Synchronizer = *cfg.Synchronizer
	}
	return opts, nil
}
