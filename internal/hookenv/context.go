// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"

	"github.com/juju/mongoconsumer/core/status"
)

var logger = loggo.GetLogger("mongoconsumer.hookenv")

// CommandRunner allows to run commands on the underlying system
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

func (defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// DefaultRunner runs hook tools as child processes of the charm.
var DefaultRunner CommandRunner = defaultRunner{}

// Context gives a charm typed access to the hook tools
// provided by the unit agent.
type Context struct {
	env    Environment
	runner CommandRunner
}

// NewContext returns a Context running hook tools with runner.
func NewContext(env Environment, runner CommandRunner) *Context {
	return &Context{env: env, runner: runner}
}

// Environment returns the environment the hook runs in.
func (ctx *Context) Environment() Environment {
	return ctx.env
}

func (ctx *Context) run(tool string, args ...string) ([]byte, error) {
	command := shellquote.Join(append([]string{tool}, args...)...)
	result, err := ctx.runner.RunCommands(exec.RunParams{
		Commands:   command,
		WorkingDir: ctx.env.CharmDir,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "running %s", tool)
	}
	if result.Code != 0 {
		return nil, errors.Errorf("%s failed with exit code %d: %s",
			tool, result.Code, strings.TrimSpace(string(result.Stderr)))
	}
	return result.Stdout, nil
}

func (ctx *Context) runJSON(out interface{}, tool string, args ...string) error {
	stdout, err := ctx.run(tool, append([]string{"--format=json"}, args...)...)
	if err != nil {
		return errors.Trace(err)
	}
	// Tools print nothing at all for empty data.
	if len(bytes.TrimSpace(stdout)) == 0 {
		return nil
	}
	if err := json.Unmarshal(stdout, out); err != nil {
		return errors.Annotatef(err, "parsing %s output", tool)
	}
	return nil
}

// IsLeader reports whether the unit is the application leader.
func (ctx *Context) IsLeader() (bool, error) {
	var leader bool
	if err := ctx.runJSON(&leader, "is-leader"); err != nil {
		return false, errors.Annotate(err, "leadership status unknown")
	}
	return leader, nil
}

// ConfigGet returns every charm config value, defaults included.
func (ctx *Context) ConfigGet() (map[string]interface{}, error) {
	var attrs map[string]interface{}
	if err := ctx.runJSON(&attrs, "config-get", "--all"); err != nil {
		return nil, errors.Trace(err)
	}
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	return attrs, nil
}

// SetStatus sets the workload status of the unit.
func (ctx *Context) SetStatus(info status.StatusInfo) error {
	if err := info.Validate(); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("setting status %s", info)
	_, err := ctx.run("status-set", info.Status.String(), info.Message)
	return errors.Trace(err)
}

// PodSpecSet hands the YAML pod spec to the agent. Only
// the leader may set the pod spec.
func (ctx *Context) PodSpecSet(spec string) (err error) {
	f, err := os.CreateTemp("", "podspec-*.yaml")
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err := f.WriteString(spec); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	if err := f.Close(); err != nil {
		return errors.Trace(err)
	}
	_, err = ctx.run("pod-spec-set", "--file", f.Name())
	return errors.Trace(err)
}

// ResourceGet fetches the named resource and returns the
// path of the downloaded file.
func (ctx *Context) ResourceGet(name string) (string, error) {
	out, err := ctx.run("resource-get", name)
	if err != nil {
		return "", errors.Trace(err)
	}
	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", errors.NotFoundf("resource %q", name)
	}
	return path, nil
}

// RelationIds returns the ids of the relations established on endpoint.
func (ctx *Context) RelationIds(endpoint string) ([]string, error) {
	var ids []string
	if err := ctx.runJSON(&ids, "relation-ids", endpoint); err != nil {
		return nil, errors.Trace(err)
	}
	return ids, nil
}

// RemoteApplication returns the name of the application
// at the other end of the relation.
func (ctx *Context) RemoteApplication(relationID string) (string, error) {
	var app string
	if err := ctx.runJSON(&app, "relation-list", "-r", relationID, "--app"); err != nil {
		return "", errors.Trace(err)
	}
	if app == "" {
		return "", errors.NotFoundf("remote application for relation %s", relationID)
	}
	return app, nil
}

// RelationGet returns the settings of member in the relation. When app is
// true member names an application and its application settings are read.
func (ctx *Context) RelationGet(relationID, member string, app bool) (map[string]string, error) {
	args := []string{"-r", relationID}
	if app {
		args = append(args, "--app")
	}
	args = append(args, "-", member)
	var settings map[string]string
	if err := ctx.runJSON(&settings, "relation-get", args...); err != nil {
		return nil, errors.Trace(err)
	}
	if settings == nil {
		settings = map[string]string{}
	}
	return settings, nil
}

// RelationSet writes settings to the unit's (or, when app is true and the
// unit leads, the application's) side of the relation.
func (ctx *Context) RelationSet(relationID string, app bool, settings map[string]string) error {
	if len(settings) == 0 {
		return nil
	}
	args := []string{"-r", relationID}
	if app {
		args = append(args, "--app")
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k+"="+settings[k])
	}
	_, err := ctx.run("relation-set", args...)
	return errors.Trace(err)
}

// JujuLog writes message to the unit's log in the controller.
func (ctx *Context) JujuLog(level loggo.Level, message string) error {
	_, err := ctx.run("juju-log", "--log-level", level.String(), message)
	return errors.Trace(err)
}
