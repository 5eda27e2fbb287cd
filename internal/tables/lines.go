package tables

import (
	"cmp"
	"slices"

	"github.com/jward/symsql/internal/repo"
	"github.com/jward/symsql/internal/vtab"
)

// Compilands lists compilation units.
func Compilands(r repo.Repository) *symbolDef {
	src := source{r}
	d := symbolTable(src, "compilands", repo.TagCompiland).
		Int64("id", colID).
		Text("name", colName).
		Text("library", func(s repo.Symbol) string { return s.Library }).
		Int("language", func(s repo.Symbol) int { return s.Language })
	return withLookups(d, src, repo.TagCompiland, nil)
}

func fileSnapshot(f *repo.SourceFile) (repo.SourceFile, bool) {
	if f == nil {
		return repo.SourceFile{}, false
	}
	return *f, true
}

// SourceFiles lists every source file referenced by line information.
func SourceFiles(r repo.Repository) *vtab.Def[repo.SourceFile] {
	src := source{r}
	return vtab.Define[repo.SourceFile]("source_files").
		Int64("id", func(f repo.SourceFile) int64 { return int64(f.ID) }).
		Text("filename", func(f repo.SourceFile) string { return f.Name }).
		Int("checksum_type", func(f repo.SourceFile) int { return f.ChecksumType }).
		Estimate(fixed(1000)).
		Scan(func() (vtab.Generator[repo.SourceFile], error) {
			if err := src.check(); err != nil {
				return nil, err
			}
			return vtab.Scan(func() (repo.Enumerator[*repo.SourceFile], error) {
				return r.SourceFiles(nil)
			}, fileSnapshot), nil
		}).
		FilterInt("id", costByID, rowsByID, func(v int64) (vtab.Generator[repo.SourceFile], error) {
			if err := src.check(); err != nil {
				return nil, err
			}
			if !validID(v) {
				return vtab.Empty[repo.SourceFile](), nil
			}
			return vtab.Point(func() (repo.SourceFile, bool, error) {
				f, err := r.SourceFileByID(uint32(v))
				if err != nil || f == nil {
					return repo.SourceFile{}, false, err
				}
				return *f, true, nil
			}), nil
		})
}

// compilandLines walks, for each compiland, each of its files and each
// line that compiland contributes to that file.
func compilandLines(r repo.Repository, compilands vtab.Generator[repo.Symbol]) vtab.Generator[repo.LineNumber] {
	return vtab.Nested(compilands, func(cu repo.Symbol) (vtab.Generator[repo.LineNumber], error) {
		files := vtab.Scan(func() (repo.Enumerator[*repo.SourceFile], error) {
			return r.SourceFiles(&cu)
		}, fileSnapshot)
		return vtab.Nested(files, func(f repo.SourceFile) (vtab.Generator[repo.LineNumber], error) {
			return vtab.Scan(func() (repo.Enumerator[*repo.LineNumber], error) {
				return r.Lines(&cu, &f)
			}, func(ln *repo.LineNumber) (repo.LineNumber, bool) {
				if ln == nil {
					return repo.LineNumber{}, false
				}
				return *ln, true
			}), nil
		}, func(_ repo.SourceFile, ln repo.LineNumber) repo.LineNumber { return ln }), nil
	}, func(_ repo.Symbol, ln repo.LineNumber) repo.LineNumber { return ln })
}

// LineNumbers lists every line record of every compiland.
func LineNumbers(r repo.Repository) *vtab.Def[repo.LineNumber] {
	src := source{r}
	return vtab.Define[repo.LineNumber]("line_numbers").
		Int64("file_id", func(l repo.LineNumber) int64 { return int64(l.FileID) }).
		Int64("line", func(l repo.LineNumber) int64 { return int64(l.Line) }).
		Int64("column", func(l repo.LineNumber) int64 { return int64(l.Column) }).
		Int64("rva", func(l repo.LineNumber) int64 { return int64(l.RVA) }).
		Int64("length", func(l repo.LineNumber) int64 { return int64(l.Length) }).
		Int64("compiland_id", func(l repo.LineNumber) int64 { return int64(l.CompilandID) }).
		Estimate(fixed(100000)).
		Scan(func() (vtab.Generator[repo.LineNumber], error) {
			cus, err := src.scan(repo.TagCompiland)
			if err != nil {
				return nil, err
			}
			return compilandLines(r, cus), nil
		}).
		FilterInt("compiland_id", costByCompiland, rowsByCompiland, func(v int64) (vtab.Generator[repo.LineNumber], error) {
			cu, err := src.byID(repo.TagCompiland, nil, v)
			if err != nil {
				return nil, err
			}
			return compilandLines(r, cu), nil
		})
}

// Section is one image section, aggregated from section contributions.
type Section struct {
	Number          uint32
	Name            string
	RVA             uint32
	Length          uint64
	Characteristics uint32
	Read            bool
	Write           bool
	Execute         bool
	Code            bool
}

// aggregateSections merges contributions by section number. The first
// contribution of a section supplies its start and flags; later ones
// extend its length.
func aggregateSections(r repo.Repository) ([]Section, error) {
	it, err := r.SectionContribs()
	if err != nil {
		return nil, err
	}
	contribs, err := repo.Collect(it)
	if err != nil {
		return nil, err
	}

	byNumber := make(map[uint32]*Section)
	for _, c := range contribs {
		if c == nil {
			continue
		}
		sec, ok := byNumber[c.Section]
		if !ok {
			byNumber[c.Section] = &Section{
				Number:          c.Section,
				Name:            c.Name,
				RVA:             c.RVA,
				Length:          uint64(c.Length),
				Characteristics: c.Characteristics,
				Read:            c.Read,
				Write:           c.Write,
				Execute:         c.Execute,
				Code:            c.Code,
			}
			continue
		}
		end := uint64(c.RVA) + uint64(c.Length)
		if end > uint64(sec.RVA)+sec.Length {
			sec.Length = end - uint64(sec.RVA)
		}
		if sec.Name == "" {
			sec.Name = c.Name
		}
	}

	out := make([]Section, 0, len(byNumber))
	for _, s := range byNumber {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Section) int { return cmp.Compare(a.Number, b.Number) })
	return out, nil
}

// Sections lists image sections.
func Sections(r repo.Repository) *vtab.Def[Section] {
	src := source{r}
	return vtab.Define[Section]("sections").
		Int64("number", func(s Section) int64 { return int64(s.Number) }).
		Text("name", func(s Section) string { return s.Name }).
		Int64("rva", func(s Section) int64 { return int64(s.RVA) }).
		Int64("length", func(s Section) int64 { return int64(s.Length) }).
		Int64("characteristics", func(s Section) int64 { return int64(s.Characteristics) }).
		Bool("readable", func(s Section) bool { return s.Read }).
		Bool("writable", func(s Section) bool { return s.Write }).
		Bool("executable", func(s Section) bool { return s.Execute }).
		Bool("code", func(s Section) bool { return s.Code }).
		Estimate(fixed(128)).
		Scan(func() (vtab.Generator[Section], error) {
			if err := src.check(); err != nil {
				return nil, err
			}
			return vtab.Slice(func() ([]Section, error) { return aggregateSections(r) }), nil
		})
}
