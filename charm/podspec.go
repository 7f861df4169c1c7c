// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"github.com/juju/errors"
	core "k8s.io/api/core/v1"

	"github.com/juju/mongoconsumer/caas"
	"github.com/juju/mongoconsumer/core/resources"
)

// Fixed workload of the charm.
var (
	workloadCommand = []string{"/bin/sh", "-c"}
	workloadArgs    = []string{"while true; do echo mongoconsumer is running; sleep 3600; done"}
	workloadPorts   = []caas.ContainerPort{{
		Name:          "http",
		ContainerPort: 80,
		Protocol:      core.ProtocolTCP,
	}}
)

// BuildPodSpec returns the pod spec running image as the single
// container of the application.
func BuildPodSpec(appName string, image resources.DockerImageDetails) (*caas.PodSpec, error) {
	spec := &caas.PodSpec{
		Version: caas.Version3,
		Containers: []caas.ContainerSpec{{
			Name:            appName,
			ImageDetails:    caas.NewImageDetails(image),
			Command:         append([]string(nil), workloadCommand...),
			Args:            append([]string(nil), workloadArgs...),
			ImagePullPolicy: core.PullAlways,
			Ports:           append([]caas.ContainerPort(nil), workloadPorts...),
		}},
	}
	if err := spec.Validate(); err != nil {
		return nil, errors.Annotatef(err, "pod spec for %q", appName)
	}
	return spec, nil
}
