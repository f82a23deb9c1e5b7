// Package catalog describes the resources the engine knows about: their
// project, version, identity elements, descriptor-ness, whether identity
// updates are allowed, and their superclass with any identity rename.
//
// Catalogs are written in CUE. The embedded Ed-Fi catalog is used unless a
// directory of .cue files is supplied. Every catalog is unified with the
// #Resource schema, which also fills defaults.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

//go:embed edfi.cue
var edfiCUE string

// Error codes for catalog loading.
const (
	ErrCodeNotFound    = "C001" // Directory missing
	ErrCodeNoFiles     = "C002" // No .cue files
	ErrCodeLoadFailed  = "C003" // CUE load failed
	ErrCodeBuildFailed = "C004" // CUE build or schema unification failed
	ErrCodeInvalid     = "C005" // A resource is malformed
)

// LoadError reports a problem loading a catalog.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Catalog is an immutable set of resources keyed by resource name.
type Catalog struct {
	resources map[string]*Resource
}

// Default returns the embedded Ed-Fi catalog.
func Default() (*Catalog, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(edfiCUE, cue.Filename("edfi.cue"))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
	}
	return fromValue(ctx, value)
}

// MustDefault is Default for callers that cannot recover from a broken
// embedded catalog.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads every .cue file in dir as one CUE instance.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil || len(matches) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return fromValue(ctx, value)
}

// fromValue unifies value with the schema and compiles each resource.
func fromValue(ctx *cue.Context, value cue.Value) (*Catalog, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("schema: %v", err)}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error(), Pos: unified.Pos()}
	}

	resourcesVal := unified.LookupPath(cue.ParsePath("resource"))
	if !resourcesVal.Exists() {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: "no resource definitions found"}
	}

	iter, err := resourcesVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("iterating resources: %v", err)}
	}

	c := &Catalog{resources: make(map[string]*Resource)}
	for iter.Next() {
		r, err := compileResource(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		c.resources[r.Info.ResourceName] = r
	}

	if err := c.checkSuperclasses(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkSuperclasses verifies each superclass exists and that a rename
// target is one of the superclass identity elements.
func (c *Catalog) checkSuperclasses() error {
	for _, name := range c.Names() {
		r := c.resources[name]
		if r.Superclass == nil {
			continue
		}
		super, ok := c.resources[r.Superclass.ResourceName]
		if !ok {
			return &LoadError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("resource %s: unknown superclass %s", name, r.Superclass.ResourceName),
			}
		}
		if r.Superclass.RenameTo != "" && !contains(super.IdentityElements, r.Superclass.RenameTo) {
			return &LoadError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("resource %s: rename target %s is not an identity element of %s", name, r.Superclass.RenameTo, super.Info.ResourceName),
			}
		}
	}
	return nil
}

// Lookup returns the resource with the given name.
func (c *Catalog) Lookup(name string) (*Resource, bool) {
	r, ok := c.resources[name]
	return r, ok
}

// Names returns all resource names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.resources))
	for name := range c.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
