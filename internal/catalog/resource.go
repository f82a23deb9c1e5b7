package catalog

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/identity"
	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/model"
)

// Resource is one compiled catalog entry.
type Resource struct {
	Info             model.ResourceInfo
	IdentityElements []string
	Abstract         bool
	Superclass       *Superclass
}

// Superclass names the parent of a subclass resource and the identity
// element renamed when a subclass identity is viewed as its parent.
type Superclass struct {
	ProjectName  string
	ResourceName string
	RenameFrom   string
	RenameTo     string
}

func compileResource(name string, v cue.Value) (*Resource, error) {
	r := &Resource{Info: model.ResourceInfo{ResourceName: name}}

	var err error
	if r.Info.ProjectName, err = stringField(v, "project"); err != nil {
		return nil, resourceError(name, v, err)
	}
	if r.Info.ResourceVersion, err = stringField(v, "version"); err != nil {
		return nil, resourceError(name, v, err)
	}
	if r.Info.IsDescriptor, err = boolField(v, "isDescriptor"); err != nil {
		return nil, resourceError(name, v, err)
	}
	if r.Info.AllowIdentityUpdates, err = boolField(v, "allowIdentityUpdates"); err != nil {
		return nil, resourceError(name, v, err)
	}
	if r.Abstract, err = boolField(v, "abstract"); err != nil {
		return nil, resourceError(name, v, err)
	}

	if err := v.LookupPath(cue.ParsePath("identity")).Decode(&r.IdentityElements); err != nil {
		return nil, resourceError(name, v, err)
	}
	if len(r.IdentityElements) == 0 {
		return nil, resourceError(name, v, fmt.Errorf("identity must have at least one element"))
	}

	superVal := v.LookupPath(cue.ParsePath("superclass"))
	if superVal.Exists() {
		sc := &Superclass{}
		if sc.ResourceName, err = stringField(superVal, "resource"); err != nil {
			return nil, resourceError(name, v, err)
		}
		if sc.ProjectName, err = stringField(superVal, "project"); err != nil {
			return nil, resourceError(name, v, err)
		}
		if rename := superVal.LookupPath(cue.ParsePath("rename")); rename.Exists() {
			if sc.RenameFrom, err = stringField(rename, "from"); err != nil {
				return nil, resourceError(name, v, err)
			}
			if sc.RenameTo, err = stringField(rename, "to"); err != nil {
				return nil, resourceError(name, v, err)
			}
			if !contains(r.IdentityElements, sc.RenameFrom) {
				return nil, resourceError(name, v, fmt.Errorf("rename source %s is not an identity element", sc.RenameFrom))
			}
		}
		r.Superclass = sc
	}

	return r, nil
}

func stringField(v cue.Value, path string) (string, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if d, ok := field.Default(); ok {
		field = d
	}
	s, err := field.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func boolField(v cue.Value, path string) (bool, error) {
	field := v.LookupPath(cue.ParsePath(path))
	if d, ok := field.Default(); ok {
		field = d
	}
	b, err := field.Bool()
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func resourceError(name string, v cue.Value, err error) *LoadError {
	return &LoadError{
		Code:    ErrCodeInvalid,
		Message: fmt.Sprintf("resource %s: %v", name, err),
		Pos:     v.Pos(),
	}
}

// Identity builds a canonical document identity from values. Every identity
// element must be present and no others may appear.
func (r *Resource) Identity(values map[string]string) (model.DocumentIdentity, error) {
	var missing []string
	for _, el := range r.IdentityElements {
		if _, ok := values[el]; !ok {
			missing = append(missing, el)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s identity is missing %v", r.Info.ResourceName, missing)
	}
	if len(values) != len(r.IdentityElements) {
		var extra []string
		for k := range values {
			if !contains(r.IdentityElements, k) {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return nil, fmt.Errorf("%s identity has unknown elements %v", r.Info.ResourceName, extra)
	}
	return model.IdentityFromMap(values), nil
}

// MeadowlarkId computes the id of a document of this resource.
func (r *Resource) MeadowlarkId(values map[string]string) (model.MeadowlarkId, error) {
	id, err := r.Identity(values)
	if err != nil {
		return "", err
	}
	return identity.ForDocument(r.Info, id), nil
}

// Reference builds a reference to a document of this resource.
func (r *Resource) Reference(values map[string]string) (model.DocumentReference, error) {
	id, err := r.Identity(values)
	if err != nil {
		return model.DocumentReference{}, err
	}
	return model.DocumentReference{
		ProjectName:      r.Info.ProjectName,
		ResourceName:     r.Info.ResourceName,
		DocumentIdentity: id,
		IsDescriptor:     r.Info.IsDescriptor,
	}, nil
}

// DocumentInfo assembles the DocumentInfo of a document of this resource,
// filling SuperclassInfo when the resource is a subclass.
func (r *Resource) DocumentInfo(values map[string]string, refs, descriptorRefs []model.DocumentReference, requestTimestamp int64) (model.DocumentInfo, error) {
	if r.Abstract {
		return model.DocumentInfo{}, fmt.Errorf("%s is abstract and has no documents of its own", r.Info.ResourceName)
	}
	id, err := r.Identity(values)
	if err != nil {
		return model.DocumentInfo{}, err
	}
	info := model.DocumentInfo{
		DocumentIdentity:     id,
		DocumentReferences:   refs,
		DescriptorReferences: descriptorRefs,
		RequestTimestamp:     requestTimestamp,
	}
	if r.Superclass != nil {
		sc := identity.SuperclassForm(r.Superclass.ProjectName, r.Superclass.ResourceName, id, r.Superclass.RenameFrom, r.Superclass.RenameTo)
		info.SuperclassInfo = &sc
	}
	return info, nil
}

// Reference builds a reference to a document of the named resource.
func (c *Catalog) Reference(resourceName string, values map[string]string) (model.DocumentReference, error) {
	r, ok := c.Lookup(resourceName)
	if !ok {
		return model.DocumentReference{}, fmt.Errorf("unknown resource %s", resourceName)
	}
	return r.Reference(values)
}
