// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resources

import (
	"strings"

	"github.com/docker/distribution/reference"
	"github.com/juju/errors"
)

// DockerImageDetails holds the details for a Docker resource type.
type DockerImageDetails struct {
	// RegistryPath holds the path of the Docker image (including host and sha256) in a docker registry.
	RegistryPath string `json:"ImageName" yaml:"registrypath"`

	// Username holds the username used to gain access to a non-public image.
	Username string `json:"Username,omitempty" yaml:"username"`

	// Password holds the password used to gain access to a non-public image.
	Password string `json:"Password,omitempty" yaml:"password"`
}

// IsPrivate returns true if pulling the image needs credentials.
func (did DockerImageDetails) IsPrivate() bool {
	return did.Username != "" || did.Password != ""
}

// Validate checks the registry path and that credentials come in pairs.
func (did DockerImageDetails) Validate() error {
	if err := ValidateDockerRegistryPath(did.RegistryPath); err != nil {
		return errors.Trace(err)
	}
	if (did.Username == "") != (did.Password == "") {
		return errors.NotValidf("docker image credentials with only one of username and password")
	}
	return nil
}

// ValidateDockerRegistryPath ensures the registry path is valid (i.e. api.jujucharms.com@sha256:deadbeef)
func ValidateDockerRegistryPath(path string) error {
	if path == "" {
		return errors.NotValidf("empty docker image path")
	}
	if _, err := reference.ParseNormalizedNamed(path); err != nil {
		return errors.NotValidf("docker image path %q", path)
	}
	return nil
}

// SplitRegistryPath splits a registry path into the registry host and the
// image path within it. The registry is empty when the path relies on the
// default registry.
func SplitRegistryPath(path string) (registry string, image string, _ error) {
	if err := ValidateDockerRegistryPath(path); err != nil {
		return "", "", errors.Trace(err)
	}
	first, rest, found := strings.Cut(path, "/")
	if !found {
		return "", path, nil
	}
	// Same rule docker uses to tell a registry host from a repository component.
	if strings.ContainsAny(first, ".:") || first == "localhost" {
		return first, rest, nil
	}
	return "", path, nil
}
