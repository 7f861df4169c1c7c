// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv

import (
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/names/v5"
)

// Names of the environment variables the unit agent sets
// when running a hook.
const (
	EnvUnitName     = "JUJU_UNIT_NAME"
	EnvCharmDir     = "JUJU_CHARM_DIR"
	EnvHookName     = "JUJU_HOOK_NAME"
	EnvDispatchPath = "JUJU_DISPATCH_PATH"
	EnvRelationID   = "JUJU_RELATION_ID"
	EnvRemoteApp    = "JUJU_REMOTE_APP"
)

// Environment describes the hook being run, as reported by the agent.
type Environment struct {
	UnitName        string
	ApplicationName string
	CharmDir        string
	HookName        string
	DispatchPath    string
	RelationID      string
	RemoteApp       string
}

// NewEnvironment reads the hook environment using getenv, which is
// usually os.Getenv.
func NewEnvironment(getenv func(string) string) (Environment, error) {
	env := Environment{
		UnitName:     getenv(EnvUnitName),
		CharmDir:     getenv(EnvCharmDir),
		HookName:     getenv(EnvHookName),
		DispatchPath: getenv(EnvDispatchPath),
		RelationID:   getenv(EnvRelationID),
		RemoteApp:    getenv(EnvRemoteApp),
	}
	if env.UnitName == "" {
		return Environment{}, errors.NotFoundf("%s", EnvUnitName)
	}
	if !names.IsValidUnit(env.UnitName) {
		return Environment{}, errors.NotValidf("unit name %q", env.UnitName)
	}
	appName, err := names.UnitApplication(env.UnitName)
	if err != nil {
		return Environment{}, errors.Trace(err)
	}
	env.ApplicationName = appName
	if env.CharmDir == "" {
		return Environment{}, errors.NotFoundf("%s", EnvCharmDir)
	}
	return env, nil
}

// Hook returns the name of the hook being run. The dispatch path takes
// precedence over the hook name, which is only set by older agents.
func (env Environment) Hook() string {
	if env.DispatchPath != "" {
		return filepath.Base(env.DispatchPath)
	}
	return env.HookName
}
