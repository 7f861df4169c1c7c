// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"github.com/juju/mongoconsumer/internal/relation/mongodb"
)

// Kind identifies an event the charm reacts to.
type Kind string

const (
	Unknown         Kind = ""
	ConfigChanged   Kind = "config-changed"
	Stop            Kind = "stop"
	LeaderChanged   Kind = "leader-changed"
	DatabaseJoined  Kind = "database-joined"
	DatabaseChanged Kind = "database-changed"
	DatabaseBroken  Kind = "database-broken"
)

// IsRelation reports whether events of this kind belong to a relation.
func (kind Kind) IsRelation() bool {
	switch kind {
	case DatabaseJoined, DatabaseChanged, DatabaseBroken:
		return true
	}
	return false
}

// hookKinds maps hook names to the event kind they deliver.
var hookKinds = map[string]Kind{
	"config-changed":                       ConfigChanged,
	"stop":                                 Stop,
	"upgrade-charm":                        LeaderChanged,
	"leader-elected":                       LeaderChanged,
	mongodb.Endpoint + "-relation-joined":  DatabaseJoined,
	mongodb.Endpoint + "-relation-changed": DatabaseChanged,
	mongodb.Endpoint + "-relation-broken":  DatabaseBroken,
}

// Event is a single hook delivered to the charm.
type Event struct {
	Kind       Kind
	Hook       string
	RelationID string
}

// ParseHook returns the event delivered by the named hook. Hooks the
// charm does not handle have kind Unknown.
func ParseHook(hook, relationID string) Event {
	return Event{
		Kind:       hookKinds[hook],
		Hook:       hook,
		RelationID: relationID,
	}
}

// String returns the hook name, with the relation id for relation hooks.
func (e Event) String() string {
	if e.RelationID == "" {
		return e.Hook
	}
	return e.Hook + " (" + e.RelationID + ")"
}

type handlerFunc func(c *Charm, event Event) error

// handlers is the dispatch table of the charm.
var handlers = map[Kind]handlerFunc{
	ConfigChanged: func(c *Charm, _ Event) error {
		return c.OnConfigChanged()
	},
	Stop: func(c *Charm, _ Event) error {
		return c.OnStop()
	},
	LeaderChanged: func(c *Charm, _ Event) error {
		return c.OnLeaderChanged()
	},
	DatabaseJoined: func(c *Charm, event Event) error {
		return c.OnDatabaseJoined(event.RelationID)
	},
	DatabaseChanged: func(c *Charm, event Event) error {
		return c.onDatabaseChanged(event.RelationID)
	},
	DatabaseBroken: func(c *Charm, event Event) error {
		return c.OnProviderBroken(event.RelationID)
	},
}
