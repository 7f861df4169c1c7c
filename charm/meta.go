// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"io"
	"sort"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"gopkg.in/yaml.v2"
)

const (
	ScopeGlobal    = "global"
	ScopeContainer = "container"
)

// ResourceTypeOCIImage is the resource type of container images.
const ResourceTypeOCIImage = "oci-image"

// Relation represents a single relation defined in the charm
// metadata.yaml file.
type Relation struct {
	Interface string
	Optional  bool
	Limit     int
	Scope     string
}

// Resource describes a resource declared in metadata.yaml.
type Resource struct {
	Type        string
	Description string
}

// Meta represents the content of a charm's metadata.yaml
// file that the charm itself cares about.
type Meta struct {
	Name        string
	Summary     string
	Description string
	Requires    map[string]Relation
	Provides    map[string]Relation
	Resources   map[string]Resource
}

// ReadMeta reads the content of a metadata.yaml file and returns
// its representation.
func ReadMeta(r io.Reader) (*Meta, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	raw := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	v, err := charmSchema.Coerce(raw, nil)
	if err != nil {
		return nil, errors.Annotate(err, "metadata")
	}
	m := v.(map[string]interface{})
	meta := &Meta{
		Name:        m["name"].(string),
		Summary:     m["summary"].(string),
		Description: m["description"].(string),
		Requires:    parseRelations(m["requires"]),
		Provides:    parseRelations(m["provides"]),
		Resources:   parseResources(m["resources"]),
	}
	return meta, nil
}

// ImageResource returns the name of the charm's single OCI image resource.
func (m *Meta) ImageResource() (string, error) {
	var names []string
	for name, res := range m.Resources {
		if res.Type == ResourceTypeOCIImage {
			names = append(names, name)
		}
	}
	switch len(names) {
	case 0:
		return "", errors.NotFoundf("%s resource in charm %q", ResourceTypeOCIImage, m.Name)
	case 1:
		return names[0], nil
	}
	sort.Strings(names)
	return "", errors.NotSupportedf("multiple %s resources %q", ResourceTypeOCIImage, names)
}

// CheckRequires returns an error unless the charm requires
// endpoint over the named interface.
func (m *Meta) CheckRequires(endpoint, iface string) error {
	rel, ok := m.Requires[endpoint]
	if !ok {
		return errors.NotFoundf("requires endpoint %q", endpoint)
	}
	if rel.Interface != iface {
		return errors.NotValidf("endpoint %q interface %q, expected %q", endpoint, rel.Interface, iface)
	}
	return nil
}

func parseRelations(relations interface{}) map[string]Relation {
	if relations == nil {
		return nil
	}
	result := make(map[string]Relation)
	for name, rel := range relations.(map[interface{}]interface{}) {
		relMap := rel.(map[string]interface{})
		relation := Relation{
			Interface: relMap["interface"].(string),
			Optional:  relMap["optional"].(bool),
		}
		if scope := relMap["scope"]; scope != nil {
			relation.Scope = scope.(string)
		}
		if relMap["limit"] != nil {
			// Schema defaults to int64, but we know
			// the int range should be more than enough.
			relation.Limit = int(relMap["limit"].(int64))
		}
		result[name.(string)] = relation
	}
	return result
}

func parseResources(resources interface{}) map[string]Resource {
	if resources == nil {
		return nil
	}
	result := make(map[string]Resource)
	for name, res := range resources.(map[interface{}]interface{}) {
		resMap := res.(map[string]interface{})
		resource := Resource{Type: resMap["type"].(string)}
		if description := resMap["description"]; description != nil {
			resource.Description = description.(string)
		}
		result[name.(string)] = resource
	}
	return result
}

// Schema coercer that expands the interface shorthand notation.
//
// Supports the following variants::
//
//	requires:
//	  database: mongodb
//	  foobar:
//	    interface: blah
//	    limit: 1
//
// In all input cases, the output is the fully specified interface
// representation.
func ifaceExpander(limit interface{}) schema.Checker {
	return ifaceExpC{limit}
}

type ifaceExpC struct {
	limit interface{}
}

var (
	stringC = schema.String()
	mapC    = schema.StringMap(schema.Any())
)

func (c ifaceExpC) Coerce(v interface{}, path []string) (interface{}, error) {
	s, err := stringC.Coerce(v, path)
	if err == nil {
		return ifaceSchema.Coerce(map[string]interface{}{
			"interface": s,
			"limit":     c.limit,
			"optional":  false,
			"scope":     ScopeGlobal,
		}, path)
	}

	// Optional values are context-sensitive and/or have
	// defaults, which is different than what KeyDict can
	// readily support. So just do it here first, then
	// coerce to the real schema.
	v, err = mapC.Coerce(v, path)
	if err != nil {
		return nil, err
	}
	m := v.(map[string]interface{})
	if _, ok := m["limit"]; !ok {
		m["limit"] = c.limit
	}
	if _, ok := m["optional"]; !ok {
		m["optional"] = false
	}
	if _, ok := m["scope"]; !ok {
		m["scope"] = ScopeGlobal
	}
	return ifaceSchema.Coerce(m, path)
}

var ifaceSchema = schema.FieldMap(
	schema.Fields{
		"interface": schema.String(),
		"limit":     schema.OneOf(schema.Const(nil), schema.Int()),
		"scope":     schema.OneOf(schema.Const(ScopeGlobal), schema.Const(ScopeContainer)),
		"optional":  schema.Bool(),
	},
	schema.Defaults{"scope": schema.Omit},
)

var resourceSchema = schema.FieldMap(
	schema.Fields{
		"type":            schema.String(),
		"description":     schema.String(),
		"upstream-source": schema.String(),
	},
	schema.Defaults{"description": schema.Omit, "upstream-source": schema.Omit},
)

var charmSchema = schema.FieldMap(
	schema.Fields{
		"name":        schema.String(),
		"summary":     schema.String(),
		"description": schema.String(),
		"provides":    schema.Map(schema.String(), ifaceExpander(nil)),
		"requires":    schema.Map(schema.String(), ifaceExpander(1)),
		"resources":   schema.Map(schema.String(), resourceSchema),
	},
	schema.Defaults{
		"provides":  schema.Omit,
		"requires":  schema.Omit,
		"resources": schema.Omit,
	},
)
