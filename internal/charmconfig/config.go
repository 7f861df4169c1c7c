// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charmconfig turns the output of config-get into the typed
// configuration of the mongoconsumer charm.
package charmconfig

import (
	"encoding/json"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"github.com/mitchellh/mapstructure"
)

// Config option names, as declared in config.yaml.
const (
	RecordEventsKey  = "record_events"
	ConsumesKey      = "consumes"
	ThingKey         = "thing"
	DatabaseCountKey = "database-count"
)

// DefaultConsumes is the relation capability wanted when the
// consumes option is unset.
const DefaultConsumes = `{"mongodb": ">=4.0"}`

// Config is a read-only snapshot of the charm configuration,
// taken once per hook.
type Config struct {
	// RecordEvents enables appending handled events to the
	// unit's event log.
	RecordEvents bool `mapstructure:"record_events"`

	// Consumes is a JSON object mapping the provider capability
	// names to version constraints.
	Consumes string `mapstructure:"consumes"`

	// Thing is the value recorded by config-changed.
	Thing string `mapstructure:"thing"`

	// DatabaseCount overrides the number of databases wanted
	// from the provider when greater than zero.
	DatabaseCount int `mapstructure:"database-count"`
}

var fields = schema.Fields{
	RecordEventsKey:  schema.Bool(),
	ConsumesKey:      schema.String(),
	ThingKey:         schema.String(),
	DatabaseCountKey: schema.ForceInt(),
}

var defaults = schema.Defaults{
	RecordEventsKey:  false,
	ConsumesKey:      DefaultConsumes,
	ThingKey:         "",
	DatabaseCountKey: 0,
}

var checker = schema.FieldMap(fields, defaults)

// Parse coerces attrs, filling in defaults for missing options,
// and validates the result. Unknown options are ignored.
func Parse(attrs map[string]interface{}) (Config, error) {
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	// config-get reports unset options without a default as null.
	cleaned := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if v != nil {
			cleaned[k] = v
		}
	}
	coerced, err := checker.Coerce(cleaned, nil)
	if err != nil {
		return Config{}, errors.Annotate(err, "invalid charm config")
	}
	var cfg Config
	if err := mapstructure.Decode(coerced, &cfg); err != nil {
		return Config{}, errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate checks values the schema cannot express.
func (cfg Config) Validate() error {
	if cfg.DatabaseCount < 0 {
		return errors.NotValidf("negative %s %d", DatabaseCountKey, cfg.DatabaseCount)
	}
	if _, err := cfg.ConsumesMap(); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// ConsumesMap decodes the consumes option.
func (cfg Config) ConsumesMap() (map[string]string, error) {
	var consumes map[string]string
	if err := json.Unmarshal([]byte(cfg.Consumes), &consumes); err != nil {
		return nil, errors.NotValidf("%s %q", ConsumesKey, cfg.Consumes)
	}
	if len(consumes) == 0 {
		return nil, errors.NotValidf("empty %s", ConsumesKey)
	}
	return consumes, nil
}
