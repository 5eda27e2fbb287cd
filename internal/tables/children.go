package tables

import (
	"github.com/jward/symsql/internal/repo"
	"github.com/jward/symsql/internal/vtab"
)

type childDef = vtab.Def[Child]

// childTable defines a "child of every parent" table. The full scan, the
// parent id plan and the parent name plan all run the same composition
// and differ only in which parents feed it.
func childTable(r repo.Repository, tableName string, parentTag, childTag repo.Tag, keep func(*repo.Symbol) bool) *childDef {
	src := source{r}
	return vtab.Define[Child](tableName).
		Estimate(fixed(100000)).
		Scan(func() (vtab.Generator[Child], error) {
			parents, err := src.scan(parentTag)
			if err != nil {
				return nil, err
			}
			return src.children(parents, childTag, keep), nil
		})
}

func filterParentID(d *childDef, r repo.Repository, column string, parentTag, childTag repo.Tag, keep func(*repo.Symbol) bool) *childDef {
	src := source{r}
	return d.FilterInt(column, costByParent, rowsByParent, func(v int64) (vtab.Generator[Child], error) {
		parents, err := src.byID(parentTag, nil, v)
		if err != nil {
			return nil, err
		}
		return src.children(parents, childTag, keep), nil
	})
}

// filterParentName returns the children of every parent with the name,
// flattened in parent order.
func filterParentName(d *childDef, r repo.Repository, column string, parentTag, childTag repo.Tag, keep func(*repo.Symbol) bool) *childDef {
	src := source{r}
	return d.FilterText(column, costByParent, rowsByParent, func(v string) (vtab.Generator[Child], error) {
		parents, err := src.byName(parentTag, v)
		if err != nil {
			return nil, err
		}
		return src.children(parents, childTag, keep), nil
	})
}

func parentID(c Child) int64    { return int64(c.ParentID) }
func parentName(c Child) string { return c.ParentName }
func childID(c Child) int64     { return int64(c.Entry.ID) }
func childName(c Child) string  { return c.Entry.Name }
func childType(c Child) string  { return c.Entry.TypeName }
func childAccess(c Child) int   { return int(c.Entry.Access) }
func childOffset(c Child) int   { return int(c.Entry.Offset) }
func childVirtual(c Child) bool { return c.Entry.Virtual }
func childLength(c Child) int64 { return int64(c.Entry.Length) }

// UDTMembers lists the data members of every user-defined type.
func UDTMembers(r repo.Repository) *childDef {
	d := childTable(r, "udt_members", repo.TagUDT, repo.TagData, nil).
		Int64("udt_id", parentID).
		Text("udt_name", parentName).
		Int64("id", childID).
		Text("name", childName).
		Text("type", childType).
		Int("offset", childOffset).
		Int64("length", childLength).
		Int("access", childAccess).
		Bool("is_static", func(c Child) bool {
			return c.Entry.Location == repo.LocStatic || c.Entry.DataKind == repo.DataStaticMember
		}).
		Bool("is_virtual", childVirtual)
	d = filterParentID(d, r, "udt_id", repo.TagUDT, repo.TagData, nil)
	return filterParentName(d, r, "udt_name", repo.TagUDT, repo.TagData, nil)
}

// EnumValues lists the enumerators of every enum.
func EnumValues(r repo.Repository) *childDef {
	d := childTable(r, "enum_values", repo.TagEnum, repo.TagData, nil).
		Int64("enum_id", parentID).
		Text("enum_name", parentName).
		Int64("id", childID).
		Text("name", childName).
		Int64("value", func(c Child) int64 { return c.Entry.Value })
	d = filterParentID(d, r, "enum_id", repo.TagEnum, repo.TagData, nil)
	return filterParentName(d, r, "enum_name", repo.TagEnum, repo.TagData, nil)
}

// BaseClasses lists the direct bases of every user-defined type.
func BaseClasses(r repo.Repository) *childDef {
	d := childTable(r, "base_classes", repo.TagUDT, repo.TagBaseClass, nil).
		Int64("derived_id", parentID).
		Text("derived_name", parentName).
		Int64("base_id", func(c Child) int64 { return int64(c.Entry.TypeID) }).
		Text("base_name", childName).
		Int("offset", childOffset).
		Bool("is_virtual", func(c Child) bool { return c.Entry.VirtualBase || c.Entry.Virtual }).
		Int("access", childAccess)
	return filterParentID(d, r, "derived_id", repo.TagUDT, repo.TagBaseClass, nil)
}

func dataKind(k repo.DataKind) func(*repo.Symbol) bool {
	return func(s *repo.Symbol) bool { return s.DataKind == k }
}

// frameTable lists one kind of function-scoped data.
func frameTable(r repo.Repository, tableName string, kind repo.DataKind) *childDef {
	keep := dataKind(kind)
	d := childTable(r, tableName, repo.TagFunction, repo.TagData, keep).
		Int64("func_id", parentID).
		Text("func_name", parentName).
		Int64("id", childID).
		Text("name", childName).
		Text("type", childType).
		Int("location_type", func(c Child) int { return int(c.Entry.Location) }).
		Int64("offset_or_register", func(c Child) int64 {
			if c.Entry.Location == repo.LocRegRel {
				return int64(c.Entry.Offset)
			}
			return int64(c.Entry.Register)
		})
	return filterParentID(d, r, "func_id", repo.TagFunction, repo.TagData, keep)
}

// Locals lists the local variables of every function.
func Locals(r repo.Repository) *childDef {
	return frameTable(r, "locals", repo.DataLocal)
}

// Parameters lists the parameters of every function.
func Parameters(r repo.Repository) *childDef {
	return frameTable(r, "parameters", repo.DataParam)
}
