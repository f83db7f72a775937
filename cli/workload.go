package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/syssam/uow"
)

// Workload is a set of new objects to add to a session, read from YAML:
//
//	objects:
//	  - ref: alice
//	    entity: User
//	    set: {name: alice, email: alice@example.com}
//	  - ref: hello
//	    entity: Post
//	    set: {title: hello}
//	    link: {author: alice}
//	  - ref: admins
//	    entity: Group
//	    set: {name: admins}
//	    link: {users: [alice]}
//
// A link names a relationship of the object: a single ref for a
// many-to-one or one-to-one relationship, a list for a collection.
type Workload struct {
	Objects []Object `yaml:"objects"`
}

// Object is one new instance of a workload.
type Object struct {
	Ref    string         `yaml:"ref"`
	Entity string         `yaml:"entity"`
	Set    map[string]any `yaml:"set"`
	Link   map[string]any `yaml:"link"`
}

// ReadWorkload decodes a YAML workload. Unknown keys are rejected.
func ReadWorkload(r io.Reader) (*Workload, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	w := &Workload{}
	if err := dec.Decode(w); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode workload: %w", err)
	}
	return w, nil
}

// LoadWorkload reads the workload file at path from AppFs.
func LoadWorkload(path string) (*Workload, error) {
	f, err := AppFs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workload: %w", err)
	}
	defer f.Close()
	return ReadWorkload(f)
}

// Instances is the result of building a workload: the instances in file
// order and the ref of each one.
type Instances struct {
	List []*uow.Instance
	Refs map[*uow.Instance]string
}

// Name returns the ref of inst, or its string form if it has none.
func (is *Instances) Name(inst *uow.Instance) string {
	if ref, ok := is.Refs[inst]; ok {
		return ref
	}
	return inst.String()
}

// Build creates the instances of the workload in reg, sets their fields
// and links them.
func (w *Workload) Build(reg *uow.Registry) (*Instances, error) {
	var (
		out   = &Instances{Refs: make(map[*uow.Instance]string, len(w.Objects))}
		byRef = make(map[string]*uow.Instance, len(w.Objects))
	)
	for i, o := range w.Objects {
		if o.Ref == "" {
			o.Ref = fmt.Sprintf("#%d", i+1)
		}
		if _, ok := byRef[o.Ref]; ok {
			return nil, fmt.Errorf("object %s: duplicate ref", o.Ref)
		}
		e, ok := reg.Entity(o.Entity)
		if !ok {
			return nil, fmt.Errorf("object %s: unknown entity %q", o.Ref, o.Entity)
		}
		inst := e.New()
		for _, name := range sortedKeys(o.Set) {
			if err := inst.Set(name, o.Set[name]); err != nil {
				return nil, fmt.Errorf("object %s: %w", o.Ref, err)
			}
		}
		byRef[o.Ref] = inst
		out.Refs[inst] = o.Ref
		out.List = append(out.List, inst)
	}
	for i, o := range w.Objects {
		inst := out.List[i]
		for _, name := range sortedKeys(o.Link) {
			if err := link(inst, name, o.Link[name], byRef); err != nil {
				return nil, fmt.Errorf("object %s: %w", out.Refs[inst], err)
			}
		}
	}
	return out, nil
}

func link(inst *uow.Instance, name string, v any, byRef map[string]*uow.Instance) error {
	r, ok := inst.Entity().Relationship(name)
	if !ok {
		return fmt.Errorf("%s has no relationship %q", inst.Entity().Name, name)
	}
	lookup := func(v any) (*uow.Instance, error) {
		ref, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: ref must be a string, got %T", name, v)
		}
		target, ok := byRef[ref]
		if !ok {
			return nil, fmt.Errorf("%s: unknown ref %q", name, ref)
		}
		return target, nil
	}
	if !r.Collection() {
		target, err := lookup(v)
		if err != nil {
			return err
		}
		return inst.SetRef(name, target)
	}
	refs, ok := v.([]any)
	if !ok {
		refs = []any{v}
	}
	targets := make([]*uow.Instance, 0, len(refs))
	for _, ref := range refs {
		target, err := lookup(ref)
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}
	return inst.Append(name, targets...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
