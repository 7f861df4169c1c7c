// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package storedstate implements persistent local storage of the charm's
// state between hook invocations.
package storedstate

import (
	"fmt"
	"os"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// DefaultDesiredDatabases is the number of databases a fresh
// unit asks its provider for.
const DefaultDesiredDatabases = 1

// State defines the local persistent state of the charm.
type State struct {
	// Events holds the tags of recorded events, oldest first.
	Events []string `yaml:"events"`

	// Things holds every distinct thing seen in config, in the
	// order first seen.
	Things []string `yaml:"things"`

	// DesiredDatabases is the number of databases the unit wants.
	DesiredDatabases int `yaml:"desired-databases"`

	// RequestedDatabases is the number of databases requested
	// from the provider so far.
	RequestedDatabases int `yaml:"requested-databases"`
}

// NewState returns the state of a unit that has not run any hooks.
func NewState() *State {
	return &State{
		Events:           []string{},
		Things:           []string{},
		DesiredDatabases: DefaultDesiredDatabases,
	}
}

// RecordEvent appends tag to the event log.
func (st *State) RecordEvent(tag string) {
	st.Events = append(st.Events, tag)
}

// AddThing records thing if it has not been seen before, and reports
// whether it was added. The empty thing is never recorded.
func (st *State) AddThing(thing string) bool {
	if thing == "" || set.NewStrings(st.Things...).Contains(thing) {
		return false
	}
	st.Things = append(st.Things, thing)
	return true
}

// DatabaseDeficit returns how many more databases must be
// requested to reach the desired count.
func (st *State) DatabaseDeficit() int {
	if st.RequestedDatabases >= st.DesiredDatabases {
		return 0
	}
	return st.DesiredDatabases - st.RequestedDatabases
}

// validate returns an error if the state violates expectations.
func (st State) validate() (err error) {
	defer errors.DeferredAnnotatef(&err, "invalid charm state")
	if st.DesiredDatabases < 0 {
		return fmt.Errorf("negative desired databases %d", st.DesiredDatabases)
	}
	if st.RequestedDatabases < 0 {
		return fmt.Errorf("negative requested databases %d", st.RequestedDatabases)
	}
	if len(st.Things) != set.NewStrings(st.Things...).Size() {
		return fmt.Errorf("duplicate things in %q", st.Things)
	}
	return nil
}

// StateFile holds the disk state for a charm.
type StateFile struct {
	path string
}

// NewStateFile returns a new StateFile using path.
func NewStateFile(path string) *StateFile {
	return &StateFile{path}
}

// ErrNoStateFile is returned by Read when the unit has no saved state.
const ErrNoStateFile = errors.ConstError("charm state file does not exist")

// Read reads a State from the file. If the file does not exist it returns
// ErrNoStateFile.
func (f *StateFile) Read() (*State, error) {
	var st State
	if err := utils.ReadYaml(f.path, &st); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, ErrNoStateFile
		}
		return nil, errors.Annotatef(err, "cannot read charm state at %q", f.path)
	}
	if err := st.validate(); err != nil {
		return nil, errors.Annotatef(err, "cannot read charm state at %q", f.path)
	}
	if st.Events == nil {
		st.Events = []string{}
	}
	if st.Things == nil {
		st.Things = []string{}
	}
	return &st, nil
}

// Load reads the State from the file, returning the initial state of
// a fresh unit if there is no file yet.
func (f *StateFile) Load() (*State, error) {
	st, err := f.Read()
	if errors.Is(err, ErrNoStateFile) {
		return NewState(), nil
	}
	return st, errors.Trace(err)
}

// Write stores the supplied state to the file.
func (f *StateFile) Write(st *State) error {
	if err := st.validate(); err != nil {
		return errors.Trace(err)
	}
	return utils.WriteYaml(f.path, st)
}
