// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package hookenv_test

import (
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/utils/v4/exec"
	gc "gopkg.in/check.v1"

	"github.com/juju/mongoconsumer/core/status"
	"github.com/juju/mongoconsumer/internal/hookenv"
)

type contextSuite struct {
	testing.IsolationSuite

	runner *stubRunner
	ctx    *hookenv.Context
}

var _ = gc.Suite(&contextSuite{})

func (s *contextSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.runner = newStubRunner()
	s.ctx = hookenv.NewContext(hookenv.Environment{
		UnitName:        "mongoconsumer/0",
		ApplicationName: "mongoconsumer",
		CharmDir:        c.MkDir(),
	}, s.runner)
}

func (s *contextSuite) TestIsLeader(c *gc.C) {
	s.runner.respond("is-leader", "true\n")
	leader, err := s.ctx.IsLeader()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(leader, jc.IsTrue)
	c.Assert(s.runner.commands(), jc.DeepEquals, []string{"is-leader --format=json"})
}

func (s *contextSuite) TestIsLeaderFailure(c *gc.C) {
	s.runner.responses["is-leader"] = &exec.ExecResponse{Code: 1, Stderr: []byte("boom\n")}
	_, err := s.ctx.IsLeader()
	c.Assert(err, gc.ErrorMatches, "leadership status unknown: is-leader failed with exit code 1: boom")
}

func (s *contextSuite) TestRunnerError(c *gc.C) {
	s.runner.SetErrors(errors.New("no such file"))
	_, err := s.ctx.IsLeader()
	c.Assert(err, gc.ErrorMatches, "leadership status unknown: running is-leader: no such file")
}

func (s *contextSuite) TestConfigGet(c *gc.C) {
	s.runner.respond("config-get", `{"record_events": true, "thing": "foo"}`)
	attrs, err := s.ctx.ConfigGet()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(attrs, jc.DeepEquals, map[string]interface{}{
		"record_events": true,
		"thing":         "foo",
	})
	c.Assert(s.runner.commands(), jc.DeepEquals, []string{"config-get --format=json --all"})
}

func (s *contextSuite) TestConfigGetEmpty(c *gc.C) {
	s.runner.respond("config-get", `null`)
	attrs, err := s.ctx.ConfigGet()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(attrs, gc.HasLen, 0)
}

func (s *contextSuite) TestConfigGetBadOutput(c *gc.C) {
	s.runner.respond("config-get", `{`)
	_, err := s.ctx.ConfigGet()
	c.Assert(err, gc.ErrorMatches, "parsing config-get output: .*")
}

func (s *contextSuite) TestSetStatus(c *gc.C) {
	err := s.ctx.SetStatus(status.NewMaintenance("Pod is terminating."))
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCall(c, 0, "RunCommands", []string{"status-set", "maintenance", "Pod is terminating."})
}

func (s *contextSuite) TestSetStatusInvalid(c *gc.C) {
	err := s.ctx.SetStatus(status.StatusInfo{Status: status.Unknown})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	s.runner.CheckNoCalls(c)
}

func (s *contextSuite) TestPodSpecSet(c *gc.C) {
	err := s.ctx.PodSpecSet("version: 3\n")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.runner.files["pod-spec-set"], gc.Equals, "version: 3\n")
	args := s.runner.Calls()[0].Args[0].([]string)
	c.Assert(args[:2], jc.DeepEquals, []string{"pod-spec-set", "--file"})
	c.Assert(args[2], jc.DoesNotExist)
}

func (s *contextSuite) TestResourceGet(c *gc.C) {
	s.runner.respond("resource-get", "/var/lib/juju/resources/mongoconsumer-image/content\n")
	path, err := s.ctx.ResourceGet("mongoconsumer-image")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(path, gc.Equals, "/var/lib/juju/resources/mongoconsumer-image/content")
}

func (s *contextSuite) TestResourceGetEmpty(c *gc.C) {
	_, err := s.ctx.ResourceGet("mongoconsumer-image")
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *contextSuite) TestRelationIds(c *gc.C) {
	s.runner.respond("relation-ids", `["database:3","database:5"]`)
	ids, err := s.ctx.RelationIds("database")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(ids, jc.DeepEquals, []string{"database:3", "database:5"})
	c.Assert(s.runner.commands(), jc.DeepEquals, []string{"relation-ids --format=json database"})
}

func (s *contextSuite) TestRemoteApplication(c *gc.C) {
	s.runner.respond("relation-list", `"mongodb"`)
	app, err := s.ctx.RemoteApplication("database:3")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(app, gc.Equals, "mongodb")
	c.Assert(s.runner.commands(), jc.DeepEquals, []string{"relation-list --format=json -r database:3 --app"})
}

func (s *contextSuite) TestRelationGetApp(c *gc.C) {
	s.runner.respond("relation-get", `{"databases": "[\"db1\"]"}`)
	settings, err := s.ctx.RelationGet("database:3", "mongodb", true)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(settings, jc.DeepEquals, map[string]string{"databases": `["db1"]`})
	c.Assert(s.runner.commands(), jc.DeepEquals, []string{"relation-get --format=json -r database:3 --app - mongodb"})
}

func (s *contextSuite) TestRelationGetUnit(c *gc.C) {
	settings, err := s.ctx.RelationGet("database:3", "mongoconsumer/0", false)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(settings, gc.HasLen, 0)
	c.Assert(s.runner.commands(), jc.DeepEquals, []string{"relation-get --format=json -r database:3 - mongoconsumer/0"})
}

func (s *contextSuite) TestConfigGetEmptyOutput(c *gc.C) {
	s.runner.respond("config-get", "\n")
	attrs, err := s.ctx.ConfigGet()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(attrs, gc.HasLen, 0)
}

func (s *contextSuite) TestIsLeaderEmptyOutput(c *gc.C) {
	leader, err := s.ctx.IsLeader()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(leader, jc.IsFalse)
}

func (s *contextSuite) TestRelationSet(c *gc.C) {
	err := s.ctx.RelationSet("database:3", false, map[string]string{
		"requested_databases": "2",
		"consumes":            `{"mongodb": ">=4.0"}`,
	})
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCall(c, 0, "RunCommands", []string{
		"relation-set", "-r", "database:3",
		`consumes={"mongodb": ">=4.0"}`,
		"requested_databases=2",
	})
}

func (s *contextSuite) TestRelationSetNothing(c *gc.C) {
	err := s.ctx.RelationSet("database:3", true, nil)
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckNoCalls(c)
}

func (s *contextSuite) TestJujuLog(c *gc.C) {
	err := s.ctx.JujuLog(loggo.WARNING, "hello there")
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCall(c, 0, "RunCommands", []string{"juju-log", "--log-level", "WARNING", "hello there"})
}
