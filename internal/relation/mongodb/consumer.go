// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package mongodb implements the consumer side of the mongodb relation
// interface: asking the provider for databases and reading back the
// databases and credentials it grants.
package mongodb

import (
	"encoding/json"
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("mongoconsumer.relation.mongodb")

// Endpoint is the name of the relation endpoint in metadata.yaml.
const Endpoint = "database"

// Keys used in relation settings. Values are JSON encoded.
const (
	ConsumesKey           = "consumes"
	RequestedDatabasesKey = "requested_databases"
	ProvidesKey           = "provides"
	CredentialsKey        = "credentials"
	DatabasesKey          = "databases"
)

// Credentials are published by the provider for all databases
// granted on a relation.
type Credentials struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	ReplicaSetURI  string `json:"replica_set_uri"`
	ReplicaSetName string `json:"replica_set_name,omitempty"`
}

// ProviderState describes how far a provider is through the
// relation handshake.
type ProviderState string

const (
	// Pending means the provider has not published credentials yet.
	Pending ProviderState = "pending"

	// Available means credentials are published and the provider
	// satisfies every consumed capability.
	Available ProviderState = "available"

	// Invalid means the provider does not offer a compatible version
	// of a consumed capability.
	Invalid ProviderState = "invalid"
)

// HookTools is the subset of hook tools the consumer needs.
type HookTools interface {
	RelationIds(endpoint string) ([]string, error)
	RemoteApplication(relationID string) (string, error)
	RelationGet(relationID, member string, app bool) (map[string]string, error)
	RelationSet(relationID string, app bool, settings map[string]string) error
}

// Consumer is the mongodb relation client of a single unit.
type Consumer struct {
	tools    HookTools
	unitName string
	consumes map[string]Constraint
	raw      string
}

// NewConsumer returns a Consumer for unitName wanting the capabilities
// in consumes, a JSON object of name to version constraint.
func NewConsumer(tools HookTools, unitName, consumes string) (*Consumer, error) {
	var wanted map[string]string
	if err := json.Unmarshal([]byte(consumes), &wanted); err != nil {
		return nil, errors.NotValidf("consumes %q", consumes)
	}
	constraints := make(map[string]Constraint, len(wanted))
	for name, s := range wanted {
		constraint, err := ParseConstraint(s)
		if err != nil {
			return nil, errors.Annotatef(err, "capability %q", name)
		}
		constraints[name] = constraint
	}
	return &Consumer{
		tools:    tools,
		unitName: unitName,
		consumes: constraints,
		raw:      consumes,
	}, nil
}

// ProviderIDs returns the ids of every established database relation.
func (c *Consumer) ProviderIDs() ([]string, error) {
	ids, err := c.tools.RelationIds(Endpoint)
	return ids, errors.Trace(err)
}

// Publish writes the consumed capabilities to the unit's
// side of the relation.
func (c *Consumer) Publish(relationID string) error {
	return errors.Trace(c.tools.RelationSet(relationID, false, map[string]string{
		ConsumesKey: c.raw,
	}))
}

// NewDatabase asks the provider on the first database
// relation for one more database.
func (c *Consumer) NewDatabase() error {
	ids, err := c.ProviderIDs()
	if err != nil {
		return errors.Trace(err)
	}
	if len(ids) == 0 {
		return errors.NotFoundf("%q relation", Endpoint)
	}
	relationID := ids[0]
	settings, err := c.tools.RelationGet(relationID, c.unitName, false)
	if err != nil {
		return errors.Trace(err)
	}
	requested := 0
	if value := settings[RequestedDatabasesKey]; value != "" {
		if requested, err = strconv.Atoi(value); err != nil {
			return errors.NotValidf("%s %q", RequestedDatabasesKey, value)
		}
	}
	logger.Debugf("requesting database %d on %s", requested+1, relationID)
	return errors.Trace(c.tools.RelationSet(relationID, false, map[string]string{
		RequestedDatabasesKey: strconv.Itoa(requested + 1),
	}))
}

func (c *Consumer) providerSettings(relationID string) (map[string]string, error) {
	app, err := c.tools.RemoteApplication(relationID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	settings, err := c.tools.RelationGet(relationID, app, true)
	return settings, errors.Trace(err)
}

// Databases returns the names of the databases granted on the relation.
func (c *Consumer) Databases(relationID string) ([]string, error) {
	settings, err := c.providerSettings(relationID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	value := settings[DatabasesKey]
	if value == "" {
		return []string{}, nil
	}
	var databases []string
	if err := json.Unmarshal([]byte(value), &databases); err != nil {
		return nil, errors.NotValidf("%s %q on relation %s", DatabasesKey, value, relationID)
	}
	return databases, nil
}

// Credentials returns the credentials granted on the relation.
func (c *Consumer) Credentials(relationID string) (Credentials, error) {
	settings, err := c.providerSettings(relationID)
	if err != nil {
		return Credentials{}, errors.Trace(err)
	}
	value := settings[CredentialsKey]
	if value == "" {
		return Credentials{}, errors.NotFoundf("credentials on relation %s", relationID)
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return Credentials{}, errors.NotValidf("%s on relation %s", CredentialsKey, relationID)
	}
	if creds.ReplicaSetURI == "" {
		return Credentials{}, errors.NotValidf("credentials without replica_set_uri on relation %s", relationID)
	}
	return creds, nil
}

// Classify inspects the provider's settings on the relation.
func (c *Consumer) Classify(relationID string) (ProviderState, error) {
	settings, err := c.providerSettings(relationID)
	if err != nil {
		return "", errors.Trace(err)
	}
	if provides := settings[ProvidesKey]; provides != "" {
		if err := c.checkProvides(provides); err != nil {
			logger.Warningf("provider on relation %s is not compatible: %v", relationID, err)
			return Invalid, nil
		}
	}
	if settings[CredentialsKey] == "" {
		return Pending, nil
	}
	return Available, nil
}

func (c *Consumer) checkProvides(provides string) error {
	var offered map[string]string
	if err := json.Unmarshal([]byte(provides), &offered); err != nil {
		return errors.NotValidf("%s %q", ProvidesKey, provides)
	}
	for name, constraint := range c.consumes {
		raw, ok := offered[name]
		if !ok {
			return errors.NotFoundf("capability %q", name)
		}
		v, err := parseVersion(raw)
		if err != nil {
			return errors.Annotatef(err, "capability %q", name)
		}
		if !constraint.Allows(v) {
			return errors.NotSupportedf("%s %s, want %s", name, v, constraint)
		}
	}
	return nil
}
