// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package caas

import (
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	core "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/juju/mongoconsumer/core/resources"
)

// ContainerPort defines the attributes used to configure
// an open port for the container.
type ContainerPort struct {
	Name          string        `yaml:"name,omitempty"`
	ContainerPort int32         `yaml:"containerPort"`
	Protocol      core.Protocol `yaml:"protocol,omitempty"`
}

// Validate checks the port number, name and protocol.
func (p ContainerPort) Validate() error {
	if errs := validation.IsValidPortNum(int(p.ContainerPort)); len(errs) > 0 {
		return errors.NotValidf("container port %d: %s", p.ContainerPort, strings.Join(errs, "; "))
	}
	if p.Name != "" {
		if errs := validation.IsValidPortName(p.Name); len(errs) > 0 {
			return errors.NotValidf("port name %q: %s", p.Name, strings.Join(errs, "; "))
		}
	}
	switch p.Protocol {
	case "", core.ProtocolTCP, core.ProtocolUDP, core.ProtocolSCTP:
	default:
		return errors.NotValidf("protocol %q for port %d", p.Protocol, p.ContainerPort)
	}
	return nil
}

// ImageDetails defines the image to run and the
// credentials needed to pull it.
type ImageDetails struct {
	ImagePath string `yaml:"imagePath"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
}

// NewImageDetails converts a fetched OCI image resource into
// the image details of a container.
func NewImageDetails(image resources.DockerImageDetails) ImageDetails {
	return ImageDetails{
		ImagePath: image.RegistryPath,
		Username:  image.Username,
		Password:  image.Password,
	}
}

// ContainerSpec defines the data values used to configure
// a container on the CAAS substrate.
type ContainerSpec struct {
	Name            string          `yaml:"name"`
	ImageDetails    ImageDetails    `yaml:"imageDetails"`
	Command         []string        `yaml:"command,omitempty"`
	Args            []string        `yaml:"args,omitempty"`
	ImagePullPolicy core.PullPolicy `yaml:"imagePullPolicy,omitempty"`
	Ports           []ContainerPort `yaml:"ports,omitempty"`
}

// Validate returns an error if the container spec is not valid.
func (spec *ContainerSpec) Validate() error {
	if spec.Name == "" {
		return errors.New("spec name is missing")
	}
	if errs := validation.IsDNS1123Label(spec.Name); len(errs) > 0 {
		return errors.NotValidf("container name %q: %s", spec.Name, strings.Join(errs, "; "))
	}
	if spec.ImageDetails.ImagePath == "" {
		return errors.Errorf("spec image details is missing for container %q", spec.Name)
	}
	if err := resources.ValidateDockerRegistryPath(spec.ImageDetails.ImagePath); err != nil {
		return errors.Annotatef(err, "container %q", spec.Name)
	}
	switch spec.ImagePullPolicy {
	case "", core.PullAlways, core.PullIfNotPresent, core.PullNever:
	default:
		return errors.NotValidf("image pull policy %q for container %q", spec.ImagePullPolicy, spec.Name)
	}
	portNames := set.NewStrings()
	for _, port := range spec.Ports {
		if err := port.Validate(); err != nil {
			return errors.Annotatef(err, "container %q", spec.Name)
		}
		if port.Name == "" {
			continue
		}
		if portNames.Contains(port.Name) {
			return errors.NotValidf("duplicate port name %q in container %q", port.Name, spec.Name)
		}
		portNames.Add(port.Name)
	}
	return nil
}
