// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package oci resolves OCI image resources attached to the charm into
// the image details used by a pod spec.
package oci

import (
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/yaml.v3"

	"github.com/juju/mongoconsumer/core/resources"
)

var logger = loggo.GetLogger("mongoconsumer.oci")

// ImageFetchError is returned when an image resource cannot be fetched
// or does not describe a usable image.
type ImageFetchError struct {
	Resource string
	Err      error
}

// Error is part of the error interface.
func (e *ImageFetchError) Error() string {
	return fmt.Sprintf("fetching image resource %q: %v", e.Resource, e.Err)
}

// Unwrap returns the underlying failure.
func (e *ImageFetchError) Unwrap() error {
	return e.Err
}

// ResourceGetter downloads a charm resource and returns its local path.
type ResourceGetter interface {
	ResourceGet(name string) (string, error)
}

// Resource is an OCI image resource declared in metadata.yaml.
type Resource struct {
	name     string
	getter   ResourceGetter
	readFile func(string) ([]byte, error)
}

// NewResource returns the image resource called name.
func NewResource(name string, getter ResourceGetter) *Resource {
	return &Resource{
		name:     name,
		getter:   getter,
		readFile: os.ReadFile,
	}
}

// Fetch retrieves the image details. Every failure is an *ImageFetchError.
func (r *Resource) Fetch() (resources.DockerImageDetails, error) {
	details, err := r.fetch()
	if err != nil {
		logger.Debugf("cannot fetch %q: %v", r.name, err)
		return resources.DockerImageDetails{}, &ImageFetchError{Resource: r.name, Err: err}
	}
	return details, nil
}

func (r *Resource) fetch() (resources.DockerImageDetails, error) {
	path, err := r.getter.ResourceGet(r.name)
	if err != nil {
		return resources.DockerImageDetails{}, errors.Trace(err)
	}
	data, err := r.readFile(path)
	if err != nil {
		return resources.DockerImageDetails{}, errors.Annotate(err, "reading resource")
	}
	var details resources.DockerImageDetails
	if err := yaml.Unmarshal(data, &details); err != nil {
		return resources.DockerImageDetails{}, errors.Annotate(err, "parsing resource")
	}
	if err := details.Validate(); err != nil {
		return resources.DockerImageDetails{}, errors.Trace(err)
	}
	registry, image, err := resources.SplitRegistryPath(details.RegistryPath)
	if err != nil {
		return resources.DockerImageDetails{}, errors.Trace(err)
	}
	if registry == "" {
		registry = "default registry"
	}
	logger.Infof("resource %q is image %q from %s (private: %v)", r.name, image, registry, details.IsPrivate())
	return details, nil
}
