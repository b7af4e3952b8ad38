/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Options holds the effective settings for a run, after flags and an
// optional --config file have been reconciled.
type Options struct {
	Port          int
	Queries       int
	MaxOffset     time.Duration
	SlewThreshold time.Duration
	DryRun        bool
	RTTFilter     time.Duration
}

// fileConfig mirrors Options but with pointer fields, so that unset YAML
// keys can be told apart from explicit zero values when merging onto flags.
type fileConfig struct {
	Port          *int  `yaml:"port"`
	Queries       *int  `yaml:"queries"`
	MaxOffsetMS   *int  `yaml:"max_offset_ms"`
	SlewThreshMS  *int  `yaml:"slew_threshold_ms"`
	DryRun        *bool `yaml:"dry_run"`
	RTTFilterMS   *int  `yaml:"rtt_filter_ms"`
}

// ReadConfig loads a YAML config, following sptp/client/config.go's
// os.ReadFile + yaml.Unmarshal pattern.
func ReadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays any keys set in the config file onto the flag-derived
// Options, leaving flag values in place where the file is silent.
func (c *fileConfig) merge(base Options) Options {
	if c.Port != nil {
		base.Port = *c.Port
	}
	if c.Queries != nil {
		base.Queries = *c.Queries
	}
	if c.MaxOffsetMS != nil {
		base.MaxOffset = time.Duration(*c.MaxOffsetMS) * time.Millisecond
	}
	if c.SlewThreshMS != nil {
		base.SlewThreshold = time.Duration(*c.SlewThreshMS) * time.Millisecond
	}
	if c.DryRun != nil {
		base.DryRun = *c.DryRun
	}
	if c.RTTFilterMS != nil {
		base.RTTFilter = time.Duration(*c.RTTFilterMS) * time.Millisecond
	}
	return base
}
