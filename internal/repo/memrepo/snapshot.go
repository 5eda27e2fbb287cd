package memrepo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jward/symsql/internal/repo"
)

// Snapshot is the serialized form of a repository. JSON documents are
// accepted as well since they parse as YAML.
type Snapshot struct {
	Path            string                `yaml:"path,omitempty"`
	Symbols         []repo.Symbol         `yaml:"symbols"`
	SourceFiles     []SnapshotFile        `yaml:"source_files,omitempty"`
	Lines           []repo.LineNumber     `yaml:"lines,omitempty"`
	SectionContribs []repo.SectionContrib `yaml:"section_contribs,omitempty"`
}

// SnapshotFile is a source file plus the compilands that reference it
// without contributing line records.
type SnapshotFile struct {
	repo.SourceFile `yaml:",inline"`
	Compilands      []uint32 `yaml:"compilands,omitempty"`
}

// Load reads a snapshot file and builds a Repo from it.
func Load(path string) (*Repo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memrepo: read snapshot: %w", err)
	}
	r, err := Decode(bytes.NewReader(data), path)
	if err != nil {
		return nil, fmt.Errorf("memrepo: %s: %w", path, err)
	}
	return r, nil
}

// Decode parses a snapshot. path labels the resulting Repo when the
// snapshot does not name one.
func Decode(rd io.Reader, path string) (*Repo, error) {
	var snap Snapshot
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Path != "" {
		path = snap.Path
	}
	return FromSnapshot(&snap, path), nil
}

// FromSnapshot builds a Repo from an in-memory snapshot.
func FromSnapshot(snap *Snapshot, path string) *Repo {
	b := NewBuilder(path)
	for _, s := range snap.Symbols {
		b.AddSymbol(s)
	}
	for _, f := range snap.SourceFiles {
		id := b.AddSourceFile(f.SourceFile)
		for _, c := range f.Compilands {
			b.LinkFile(c, id)
		}
	}
	for _, ln := range snap.Lines {
		b.AddLine(ln)
	}
	for _, c := range snap.SectionContribs {
		b.AddSectionContrib(c)
	}
	return b.Build()
}

// Snapshot captures the repository contents.
func (r *Repo) Snapshot() *Snapshot {
	snap := &Snapshot{Path: r.path}
	for _, s := range r.symbols {
		snap.Symbols = append(snap.Symbols, *s)
	}
	owners := make(map[uint32][]uint32)
	for c, files := range r.compilandFiles {
		for _, f := range files {
			if len(r.lines[lineKey{c, f.ID}]) == 0 {
				owners[f.ID] = append(owners[f.ID], c)
			}
		}
	}
	for _, f := range r.files {
		snap.SourceFiles = append(snap.SourceFiles, SnapshotFile{
			SourceFile: *f,
			Compilands: sorted(owners[f.ID]),
		})
	}
	// Lines are emitted compiland by compiland, in file order.
	compilands := make([]uint32, 0, len(r.compilandFiles))
	for c := range r.compilandFiles {
		compilands = append(compilands, c)
	}
	for _, c := range sorted(compilands) {
		for _, f := range r.compilandFiles[c] {
			for _, ln := range r.lines[lineKey{c, f.ID}] {
				snap.Lines = append(snap.Lines, *ln)
			}
		}
	}
	for _, c := range r.contribs {
		snap.SectionContribs = append(snap.SectionContribs, *c)
	}
	return snap
}

// WriteSnapshot serializes the repository as YAML.
func (r *Repo) WriteSnapshot(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Snapshot()); err != nil {
		return fmt.Errorf("memrepo: encode snapshot: %w", err)
	}
	return enc.Close()
}

// Save writes the snapshot to path.
func (r *Repo) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("memrepo: create snapshot: %w", err)
	}
	if err := r.WriteSnapshot(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func sorted(ids []uint32) []uint32 {
	slices.Sort(ids)
	return ids
}
