// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package oci

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/mongoconsumer/core/resources"
)

type resourceSuite struct {
	testing.IsolationSuite

	getter *stubGetter
	dir    string
}

var _ = gc.Suite(&resourceSuite{})

type stubGetter struct {
	testing.Stub
	path string
}

func (g *stubGetter) ResourceGet(name string) (string, error) {
	g.MethodCall(g, "ResourceGet", name)
	return g.path, g.NextErr()
}

func (s *resourceSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.dir = c.MkDir()
	s.getter = &stubGetter{path: filepath.Join(s.dir, "content")}
}

func (s *resourceSuite) writeResource(c *gc.C, content string) {
	err := os.WriteFile(s.getter.path, []byte(content), 0600)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *resourceSuite) TestFetch(c *gc.C) {
	s.writeResource(c, `
registrypath: registry.jujucharms.com/mongoconsumer/image@sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855
username: docker-registry
password: fragglerock
`)
	r := NewResource("mongoconsumer-image", s.getter)
	details, err := r.Fetch()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(details, jc.DeepEquals, resources.DockerImageDetails{
		RegistryPath: "registry.jujucharms.com/mongoconsumer/image@sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Username:     "docker-registry",
		Password:     "fragglerock",
	})
	s.getter.CheckCall(c, 0, "ResourceGet", "mongoconsumer-image")
}

func (s *resourceSuite) logWriter(c *gc.C) *loggo.TestWriter {
	var tw loggo.TestWriter
	c.Assert(loggo.RegisterWriter("oci-tests", &tw), jc.ErrorIsNil)
	s.AddCleanup(func(*gc.C) { _, _ = loggo.RemoveWriter("oci-tests") })
	logger.SetLogLevel(loggo.INFO)
	return &tw
}

func (s *resourceSuite) TestFetchLogsRegistry(c *gc.C) {
	tw := s.logWriter(c)
	s.writeResource(c, `
registrypath: registry.jujucharms.com/mongoconsumer/image:1.0
username: docker-registry
password: fragglerock
`)
	_, err := NewResource("mongoconsumer-image", s.getter).Fetch()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tw.Log(), jc.LogMatches, jc.SimpleMessages{{
		Level:   loggo.INFO,
		Message: `resource "mongoconsumer-image" is image "mongoconsumer/image:1.0" from registry.jujucharms.com \(private: true\)`,
	}})
}

func (s *resourceSuite) TestFetchLogsDefaultRegistry(c *gc.C) {
	tw := s.logWriter(c)
	s.writeResource(c, "registrypath: mongo:4.4\n")
	_, err := NewResource("mongoconsumer-image", s.getter).Fetch()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tw.Log(), jc.LogMatches, jc.SimpleMessages{{
		Level:   loggo.INFO,
		Message: `resource "mongoconsumer-image" is image "mongo:4.4" from default registry \(private: false\)`,
	}})
}

func (s *resourceSuite) TestFetchPublicImage(c *gc.C) {
	s.writeResource(c, "registrypath: mongo:4.4\n")
	details, err := NewResource("mongoconsumer-image", s.getter).Fetch()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(details.IsPrivate(), jc.IsFalse)
}

func (s *resourceSuite) assertFetchError(c *gc.C, expect string) error {
	_, err := NewResource("mongoconsumer-image", s.getter).Fetch()
	var fetchErr *ImageFetchError
	c.Assert(errors.As(err, &fetchErr), jc.IsTrue)
	c.Assert(fetchErr.Resource, gc.Equals, "mongoconsumer-image")
	c.Assert(err, gc.ErrorMatches, `fetching image resource "mongoconsumer-image": `+expect)
	return fetchErr.Err
}

func (s *resourceSuite) TestResourceGetFails(c *gc.C) {
	s.getter.SetErrors(errors.New("resource-get failed with exit code 1: not found"))
	s.assertFetchError(c, "resource-get failed .*")
}

func (s *resourceSuite) TestMissingFile(c *gc.C) {
	cause := s.assertFetchError(c, "reading resource: .*")
	c.Assert(os.IsNotExist(errors.Cause(cause)), jc.IsTrue)
}

func (s *resourceSuite) TestBadYAML(c *gc.C) {
	s.writeResource(c, "registrypath: [\n")
	s.assertFetchError(c, "parsing resource: .*")
}

func (s *resourceSuite) TestInvalidPath(c *gc.C) {
	s.writeResource(c, "registrypath: \"@sha256:deedbeaf\"\n")
	cause := s.assertFetchError(c, `docker image path "@sha256:deedbeaf" not valid`)
	c.Assert(cause, jc.ErrorIs, errors.NotValid)
}

func (s *resourceSuite) TestEmptyResource(c *gc.C) {
	s.writeResource(c, "")
	s.assertFetchError(c, "empty docker image path not valid")
}

func (s *resourceSuite) TestReadFilePatched(c *gc.C) {
	r := NewResource("mongoconsumer-image", s.getter)
	r.readFile = func(path string) ([]byte, error) {
		c.Check(path, gc.Equals, s.getter.path)
		return []byte("registrypath: mongo\n"), nil
	}
	details, err := r.Fetch()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(details.RegistryPath, gc.Equals, "mongo")
}
