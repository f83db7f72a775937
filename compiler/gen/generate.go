package gen

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/syssam/uow"
	"github.com/syssam/uow/schema/field"
)

const uowPkg = "github.com/syssam/uow"

// Generate writes the typed accessors of every entity of reg and returns
// the written paths.
//
//	paths, err := gen.Generate(ctx, reg, gen.WithTarget("./model"), gen.WithPackage("model"))
func Generate(ctx context.Context, reg *uow.Registry, opts ...Option) ([]string, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return cfg.Generate(ctx, reg)
}

// Generate writes the typed accessors of every entity of reg.
func (c *Config) Generate(ctx context.Context, reg *uow.Registry) ([]string, error) {
	if reg == nil {
		return nil, NewConfigError("Registry", nil, "registry cannot be nil")
	}
	entities := reg.Entities()
	files := []fileTask{{
		name:  "uow.go",
		build: func() (*jen.File, error) { return c.genPackage(entities), nil },
	}}
	for _, e := range entities {
		files = append(files, fileTask{
			name:   inflect.Underscore(e.Name) + ".go",
			entity: e.Name,
			build:  func() (*jen.File, error) { return c.genEntity(e) },
		})
	}
	return NewWriter(c).WriteAll(ctx, files)
}

// genPackage generates the entity names and the helpers shared by the
// entity files.
func (c *Config) genPackage(entities []*uow.Entity) *jen.File {
	f := jen.NewFile(c.Package)
	f.Comment("Entity names.")
	f.Const().DefsFunc(func(g *jen.Group) {
		for _, e := range entities {
			g.Id(entityConst(e)).Op("=").Lit(e.Name)
		}
	})
	f.Comment("wrapper is implemented by the entity types of the package.")
	f.Type().Id("wrapper").Interface(jen.Id("unwrap").Params().Op("*").Qual(uowPkg, "Instance"))
	f.Comment("unwrap returns the instances wrapped by vs.")
	f.Func().Id("unwrap").Types(jen.Id("T").Id("wrapper")).Params(jen.Id("vs").Index().Id("T")).Index().Op("*").Qual(uowPkg, "Instance").Block(
		jen.Id("out").Op(":=").Make(jen.Index().Op("*").Qual(uowPkg, "Instance"), jen.Len(jen.Id("vs"))),
		jen.For(jen.List(jen.Id("i"), jen.Id("v")).Op(":=").Range().Id("vs")).Block(
			jen.Id("out").Index(jen.Id("i")).Op("=").Id("v").Dot("unwrap").Call(),
		),
		jen.Return(jen.Id("out")),
	)
	return f
}

// genEntity generates the wrapper type and the accessors of one entity.
func (c *Config) genEntity(e *uow.Entity) (*jen.File, error) {
	var (
		f    = jen.NewFile(c.Package)
		name = pascal(e.Name)
		recv = receiver(e.Name)
		seen = map[string]string{"Instance": "the embedded instance", "unwrap": "the package"}
	)
	claim := func(method, owner string) error {
		if prev, ok := seen[method]; ok {
			return fmt.Errorf("method %s of %s and %s conflict", method, prev, owner)
		}
		seen[method] = owner
		return nil
	}
	rels := make([]*uow.Relationship, 0, len(e.Relationships))
	for _, r := range e.Relationships {
		if !r.Hidden {
			rels = append(rels, r)
		}
	}

	f.Commentf("%s wraps an instance of the %s entity.", name, e.Name)
	f.Type().Id(name).Struct(jen.Op("*").Qual(uowPkg, "Instance"))

	f.Commentf("Accessors of the %s fields and relationships.", e.Name)
	f.Var().DefsFunc(func(g *jen.Group) {
		for _, fd := range e.Fields {
			g.Id(name+pascal(fd.Name)).Op("=").Qual(uowPkg, "NewField").Types(goType(fd)).Call(jen.Lit(fd.Name))
		}
		for _, r := range rels {
			ctor := "NewRef"
			if r.Collection() {
				ctor = "NewCollection"
			}
			g.Id(name+pascal(r.Name)).Op("=").Qual(uowPkg, ctor).Call(jen.Lit(r.Name))
		}
	})
	for _, fd := range e.Fields {
		if fd.Info.Type != field.TypeEnum || len(fd.Enums) == 0 {
			continue
		}
		f.Commentf("Values of the %s field.", fd.Name)
		f.Const().DefsFunc(func(g *jen.Group) {
			for _, v := range fd.Enums {
				g.Id(name + pascal(fd.Name) + pascal(v)).Op("=").Lit(v)
			}
		})
	}

	f.Commentf("New%s returns a new transient %s of the registry.", name, e.Name)
	f.Func().Id("New"+name).Params(jen.Id("reg").Op("*").Qual(uowPkg, "Registry")).Op("*").Id(name).Block(
		jen.List(jen.Id("e"), jen.Id("ok")).Op(":=").Id("reg").Dot("Entity").Call(jen.Id(entityConst(e))),
		jen.If(jen.Op("!").Id("ok")).Block(
			jen.Panic(jen.Lit(fmt.Sprintf("%s: entity %s is not registered", c.Package, e.Name))),
		),
		jen.Return(jen.Op("&").Id(name).Values(jen.Dict{jen.Id("Instance"): jen.Id("e").Dot("New").Call()})),
	)
	f.Commentf("As%s wraps i. It returns nil if i is nil or not a %s.", name, e.Name)
	f.Func().Id("As"+name).Params(jen.Id("i").Op("*").Qual(uowPkg, "Instance")).Op("*").Id(name).Block(
		jen.If(jen.Id("i").Op("==").Nil().Op("||").Id("i").Dot("Entity").Call().Dot("Name").Op("!=").Id(entityConst(e))).Block(
			jen.Return(jen.Nil()),
		),
		jen.Return(jen.Op("&").Id(name).Values(jen.Dict{jen.Id("Instance"): jen.Id("i")})),
	)
	f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id("unwrap").Params().Op("*").Qual(uowPkg, "Instance").Block(
		jen.If(jen.Id(recv).Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Return(jen.Id(recv).Dot("Instance")),
	)

	for _, fd := range e.Fields {
		acc, method := name+pascal(fd.Name), pascal(fd.Name)
		if err := claim(method, "field "+fd.Name); err != nil {
			return nil, err
		}
		f.Commentf("%s returns the value of the %q field.", method, fd.Name)
		f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id(method).Params().Add(goType(fd)).Block(
			jen.Return(jen.Id(acc).Dot("Get").Call(jen.Id(recv).Dot("Instance"))),
		)
		if err := claim("Set"+method, "field "+fd.Name); err != nil {
			return nil, err
		}
		f.Commentf("Set%s sets the %q field.", method, fd.Name)
		f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id("Set"+method).Params(jen.Id("v").Add(goType(fd))).Op("*").Id(name).Block(
			jen.Id(acc).Dot("Set").Call(jen.Id(recv).Dot("Instance"), jen.Id("v")),
			jen.Return(jen.Id(recv)),
		)
		if !fd.Nillable {
			continue
		}
		if err := claim("Clear"+method, "field "+fd.Name); err != nil {
			return nil, err
		}
		f.Commentf("Clear%s sets the %q field to NULL.", method, fd.Name)
		f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id("Clear"+method).Params().Error().Block(
			jen.Return(jen.Id(acc).Dot("Clear").Call(jen.Id(recv).Dot("Instance"))),
		)
	}

	for _, r := range rels {
		var (
			acc, method = name + pascal(r.Name), pascal(r.Name)
			target      = pascal(r.Target.Name)
		)
		if !r.Collection() {
			if err := claim(method, "edge "+r.Name); err != nil {
				return nil, err
			}
			if err := claim("Set"+method, "edge "+r.Name); err != nil {
				return nil, err
			}
			f.Commentf("%s returns the %s referenced by the %q edge, or nil.", method, r.Target.Name, r.Name)
			f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id(method).Params().Op("*").Id(target).Block(
				jen.Return(jen.Id("As" + target).Call(jen.Id(acc).Dot("Get").Call(jen.Id(recv).Dot("Instance")))),
			)
			f.Commentf("Set%s points the %q edge at v. A nil v clears it.", method, r.Name)
			f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id("Set"+method).Params(jen.Id("v").Op("*").Id(target)).Error().Block(
				jen.Return(jen.Id(acc).Dot("Set").Call(jen.Id(recv).Dot("Instance"), jen.Id("v").Dot("unwrap").Call())),
			)
			continue
		}
		for _, m := range []string{method, "Add" + method, "Remove" + method} {
			if err := claim(m, "edge "+r.Name); err != nil {
				return nil, err
			}
		}
		f.Commentf("%s returns the members of the %q edge.", method, r.Name)
		f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id(method).Params().Index().Op("*").Id(target).Block(
			jen.Id("members").Op(":=").Id(acc).Dot("All").Call(jen.Id(recv).Dot("Instance")),
			jen.Id("out").Op(":=").Make(jen.Index().Op("*").Id(target), jen.Len(jen.Id("members"))),
			jen.For(jen.List(jen.Id("i"), jen.Id("m")).Op(":=").Range().Id("members")).Block(
				jen.Id("out").Index(jen.Id("i")).Op("=").Id("As"+target).Call(jen.Id("m")),
			),
			jen.Return(jen.Id("out")),
		)
		f.Commentf("Add%s adds vs to the %q edge.", method, r.Name)
		f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id("Add"+method).Params(jen.Id("vs").Op("...").Op("*").Id(target)).Error().Block(
			jen.Return(jen.Id(acc).Dot("Add").Call(jen.Id(recv).Dot("Instance"), jen.Id("unwrap").Call(jen.Id("vs")).Op("..."))),
		)
		f.Commentf("Remove%s removes vs from the %q edge.", method, r.Name)
		f.Func().Params(jen.Id(recv).Op("*").Id(name)).Id("Remove"+method).Params(jen.Id("vs").Op("...").Op("*").Id(target)).Error().Block(
			jen.Return(jen.Id(acc).Dot("Remove").Call(jen.Id(recv).Dot("Instance"), jen.Id("unwrap").Call(jen.Id("vs")).Op("..."))),
		)
	}
	return f, nil
}

func entityConst(e *uow.Entity) string { return "Entity" + pascal(e.Name) }

// receiver returns the receiver name of the type. Letters used by the
// generated parameters and locals are doubled.
func receiver(name string) string {
	r := strings.ToLower(name[:1])
	switch r {
	case "e", "i", "m", "o", "v":
		return r + r
	}
	return r
}

// goType returns the Go type of the values held by the field.
func goType(fd *field.Descriptor) jen.Code {
	switch fd.Info.Type {
	case field.TypeBool:
		return jen.Bool()
	case field.TypeTime:
		return jen.Qual("time", "Time")
	case field.TypeUUID:
		return jen.Qual("github.com/google/uuid", "UUID")
	case field.TypeBytes:
		return jen.Index().Byte()
	case field.TypeEnum, field.TypeString:
		return jen.String()
	case field.TypeInt:
		return jen.Int()
	case field.TypeInt64:
		return jen.Int64()
	case field.TypeFloat64:
		return jen.Float64()
	case field.TypeJSON:
		if fd.Info.RType != nil {
			return rtype(fd.Info.RType)
		}
	}
	return jen.Id("any")
}

// rtype returns the Go type of a JSON prototype. Types that cannot be
// named from another package fall back to any.
func rtype(t reflect.Type) jen.Code {
	if name := t.Name(); name != "" {
		switch {
		case strings.Contains(name, "["), t.PkgPath() != "" && !exported(name):
			return jen.Id("any")
		case t.PkgPath() != "":
			return jen.Qual(t.PkgPath(), name)
		default:
			return jen.Id(name)
		}
	}
	switch t.Kind() {
	case reflect.Slice:
		return jen.Index().Add(rtype(t.Elem()))
	case reflect.Array:
		return jen.Index(jen.Lit(t.Len())).Add(rtype(t.Elem()))
	case reflect.Map:
		return jen.Map(rtype(t.Key())).Add(rtype(t.Elem()))
	case reflect.Pointer:
		return jen.Op("*").Add(rtype(t.Elem()))
	default:
		return jen.Id("any")
	}
}

// exported reports if the type name is exported.
func exported(name string) bool {
	return unicode.IsUpper([]rune(name)[0])
}

// acronyms are kept upper case by pascal.
var acronyms = map[string]bool{
	"API": true, "HTML": true, "HTTP": true, "ID": true, "IP": true, "JSON": true,
	"SQL": true, "URL": true, "URI": true, "UUID": true, "XML": true,
}

// pascal converts a snake or camel case name to PascalCase, upper
// casing the known acronyms, e.g. parent_id to ParentID.
func pascal(s string) string {
	words := strings.FieldsFunc(inflect.Underscore(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, w := range words {
		if u := strings.ToUpper(w); acronyms[u] {
			b.WriteString(u)
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	if b.Len() == 0 || !unicode.IsLetter([]rune(b.String())[0]) {
		return "X" + b.String()
	}
	return b.String()
}
