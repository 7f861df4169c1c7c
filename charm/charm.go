// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package charm implements the mongoconsumer charm: it reacts to hooks
// by recording events, configuring the application pod and requesting
// databases from a mongodb provider.
package charm

import (
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/mongoconsumer/core/resources"
	"github.com/juju/mongoconsumer/core/status"
	"github.com/juju/mongoconsumer/internal/charmconfig"
	"github.com/juju/mongoconsumer/internal/oci"
	"github.com/juju/mongoconsumer/internal/relation/mongodb"
	"github.com/juju/mongoconsumer/internal/storedstate"
)

var logger = loggo.GetLogger("mongoconsumer.charm")

// Tags appended to the event log when record_events is set.
const (
	// EventConfigChanged is recorded by config-changed and stop.
	EventConfigChanged = "config_chagned"
	EventDBAvailable   = "db_available"
	EventInvalid       = "provider_invalid"
)

// Status messages.
const (
	MessageFetchingImage  = "Fetching image information"
	MessageImageError     = "Error fetching image information"
	MessageAssemblingSpec = "Assembling pod spec"
	MessageTerminating    = "Pod is terminating."
)

// HookContext is the part of the unit agent the charm writes to.
type HookContext interface {
	status.StatusSetter
	PodSpecSet(spec string) error
}

// ImageResolver returns the image the workload runs.
type ImageResolver interface {
	Fetch() (resources.DockerImageDetails, error)
}

// DatabaseClient is the consumer end of the mongodb relation.
type DatabaseClient interface {
	ProviderIDs() ([]string, error)
	Publish(relationID string) error
	NewDatabase() error
	Databases(relationID string) ([]string, error)
	Credentials(relationID string) (mongodb.Credentials, error)
	Classify(relationID string) (mongodb.ProviderState, error)
}

// SmokeTester checks granted databases can be used.
type SmokeTester interface {
	SmokeTest(uri string, databases []string) error
}

// Params holds everything a Charm needs to handle one hook.
type Params struct {
	AppName  string
	Leader   bool
	Config   charmconfig.Config
	State    *storedstate.State
	Context  HookContext
	Image    ImageResolver
	Database DatabaseClient
	Mongo    SmokeTester
	Clock    clock.Clock
}

// Validate returns an error if the params cannot be used.
func (p Params) Validate() error {
	if p.AppName == "" {
		return errors.NotValidf("empty AppName")
	}
	if p.State == nil {
		return errors.NotValidf("nil State")
	}
	if p.Context == nil {
		return errors.NotValidf("nil Context")
	}
	if p.Image == nil {
		return errors.NotValidf("nil Image")
	}
	if p.Database == nil {
		return errors.NotValidf("nil Database")
	}
	if p.Mongo == nil {
		return errors.NotValidf("nil Mongo")
	}
	return nil
}

// Charm handles hooks for a single unit.
type Charm struct {
	params Params
	status status.StatusInfo
}

// New returns a Charm for the given params.
func New(params Params) (*Charm, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if params.Clock == nil {
		params.Clock = clock.WallClock
	}
	return &Charm{params: params}, nil
}

// Status returns the last workload status set by the charm.
func (c *Charm) Status() status.StatusInfo {
	return c.status
}

// State returns the unit state, including changes made by handlers.
func (c *Charm) State() *storedstate.State {
	return c.params.State
}

// Dispatch runs the handler for event. Events without a handler
// are ignored.
func (c *Charm) Dispatch(event Event) error {
	handler, ok := handlers[event.Kind]
	if !ok {
		logger.Debugf("ignoring hook %q", event.Hook)
		return nil
	}
	if event.Kind.IsRelation() && event.RelationID == "" {
		return errors.NotValidf("%s hook without relation id", event.Hook)
	}
	start := c.params.Clock.Now()
	err := handler(c, event)
	logger.Debugf("%s handled in %v", event, c.params.Clock.Now().Sub(start))
	return errors.Annotatef(err, "running %s hook", event.Hook)
}

func (c *Charm) setStatus(info status.StatusInfo) error {
	if err := c.params.Context.SetStatus(info); err != nil {
		return errors.Annotatef(err, "setting status %q", info)
	}
	c.status = info
	return nil
}

func (c *Charm) recordEvent(tag string) {
	if c.params.Config.RecordEvents {
		c.params.State.RecordEvent(tag)
	}
}

// OnConfigChanged records the configured thing and event, then
// configures the pod if the unit is the leader.
func (c *Charm) OnConfigChanged() error {
	cfg := c.params.Config
	if c.params.State.AddThing(cfg.Thing) {
		logger.Debugf("found a new thing: %q", cfg.Thing)
	}
	if cfg.DatabaseCount > 0 {
		c.params.State.DesiredDatabases = cfg.DatabaseCount
	}
	c.recordEvent(EventConfigChanged)
	if !c.params.Leader {
		return errors.Trace(c.setStatus(status.NewActive()))
	}
	return errors.Trace(c.ConfigurePod())
}

// OnStop marks the workload as terminating.
func (c *Charm) OnStop() error {
	c.recordEvent(EventConfigChanged)
	return errors.Trace(c.setStatus(status.NewMaintenance(MessageTerminating)))
}

// OnLeaderChanged reconfigures the pod when the unit becomes
// leader or the charm is upgraded.
func (c *Charm) OnLeaderChanged() error {
	if !c.params.Leader {
		return errors.Trace(c.setStatus(status.NewActive()))
	}
	return errors.Trace(c.ConfigurePod())
}

// OnDatabaseJoined tells a new provider what the charm consumes.
func (c *Charm) OnDatabaseJoined(relationID string) error {
	return errors.Trace(c.params.Database.Publish(relationID))
}

func (c *Charm) onDatabaseChanged(relationID string) error {
	state, err := c.params.Database.Classify(relationID)
	if err != nil {
		return errors.Trace(err)
	}
	switch state {
	case mongodb.Available:
		return errors.Trace(c.OnDatabaseAvailable(relationID))
	case mongodb.Invalid:
		return errors.Trace(c.OnProviderInvalid(relationID))
	}
	logger.Debugf("provider on %s has not published credentials", relationID)
	return nil
}

// OnDatabaseAvailable requests databases until the desired number
// has been requested, then smoke tests the databases granted so far.
func (c *Charm) OnDatabaseAvailable(relationID string) error {
	c.recordEvent(EventDBAvailable)
	st := c.params.State
	if deficit := st.DatabaseDeficit(); deficit > 0 {
		logger.Infof("requesting %d database(s) on %s", deficit, relationID)
		for i := 0; i < deficit; i++ {
			if err := c.params.Database.NewDatabase(); err != nil {
				return errors.Annotatef(err, "requesting database %d of %d", st.RequestedDatabases+1, st.DesiredDatabases)
			}
			st.RequestedDatabases++
		}
		return nil
	}
	return errors.Trace(c.SmokeTestDatabases())
}

// OnProviderInvalid reports a provider offering an incompatible version.
func (c *Charm) OnProviderInvalid(relationID string) error {
	c.recordEvent(EventInvalid)
	logger.Errorf("provider on %s does not satisfy %s", relationID, c.params.Config.Consumes)
	return nil
}

// OnProviderBroken logs the departure of a provider.
func (c *Charm) OnProviderBroken(relationID string) error {
	logger.Warningf("database relation %s broken", relationID)
	return nil
}

// ConfigurePod fetches the workload image and, on the leader, sets
// the pod spec. A failure to fetch the image blocks the unit.
func (c *Charm) ConfigurePod() error {
	if err := c.setStatus(status.NewWaiting(MessageFetchingImage)); err != nil {
		return errors.Trace(err)
	}
	image, err := c.params.Image.Fetch()
	var fetchErr *oci.ImageFetchError
	if errors.As(err, &fetchErr) {
		logger.Errorf("%v", err)
		return errors.Trace(c.setStatus(status.NewBlocked(MessageImageError)))
	} else if err != nil {
		return errors.Trace(err)
	}

	if err := c.setStatus(status.NewWaiting(MessageAssemblingSpec)); err != nil {
		return errors.Trace(err)
	}
	spec, err := BuildPodSpec(c.params.AppName, image)
	if err != nil {
		return errors.Trace(err)
	}
	if c.params.Leader {
		out, err := spec.YAML()
		if err != nil {
			return errors.Trace(err)
		}
		if err := c.params.Context.PodSpecSet(out); err != nil {
			return errors.Annotate(err, "setting pod spec")
		}
		logger.Infof("pod spec set for %q", c.params.AppName)
	}
	return errors.Trace(c.setStatus(status.NewActive()))
}

// SmokeTestDatabases writes to and reads from every database granted
// on every database relation.
func (c *Charm) SmokeTestDatabases() error {
	ids, err := c.params.Database.ProviderIDs()
	if err != nil {
		return errors.Trace(err)
	}
	for _, id := range ids {
		creds, err := c.params.Database.Credentials(id)
		if errors.Is(err, errors.NotFound) {
			logger.Debugf("no credentials on %s yet", id)
			continue
		} else if err != nil {
			return errors.Trace(err)
		}
		databases, err := c.params.Database.Databases(id)
		if err != nil {
			return errors.Trace(err)
		}
		if err := c.params.Mongo.SmokeTest(creds.ReplicaSetURI, databases); err != nil {
			return errors.Annotatef(err, "smoke testing databases on %s", id)
		}
	}
	return nil
}
