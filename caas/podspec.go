// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package caas

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// Version is the version of the pod spec format.
type Version int32

// Version3 is the pod spec format understood by pod-spec-set.
const Version3 Version = 3

// PodSpec defines the data values used to configure
// a pod on the CAAS substrate.
type PodSpec struct {
	Version    Version         `yaml:"version"`
	Containers []ContainerSpec `yaml:"containers"`
}

// Validate returns an error if the pod spec is not valid.
func (spec *PodSpec) Validate() error {
	if spec.Version != Version3 {
		return errors.NotSupportedf("pod spec version %d", spec.Version)
	}
	if len(spec.Containers) == 0 {
		return errors.New("require at least one container spec")
	}
	names := set.NewStrings()
	for i := range spec.Containers {
		container := &spec.Containers[i]
		if err := container.Validate(); err != nil {
			return errors.Trace(err)
		}
		if names.Contains(container.Name) {
			return errors.NotValidf("duplicate container name %q", container.Name)
		}
		names.Add(container.Name)
	}
	return nil
}

// YAML validates the pod spec and renders it in the form
// accepted by pod-spec-set.
func (spec *PodSpec) YAML() (string, error) {
	if err := spec.Validate(); err != nil {
		return "", errors.Trace(err)
	}
	out, err := yaml.Marshal(spec)
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(out), nil
}
