// Package snippet implements the schema registry and content validation
// pipeline: snippet definitions loaded from CSV, field-level validation
// (structural, constraints, format, custom, content firewall,
// sanitisation), and a ucg.SchemaValidator adapter for the graph.
package snippet

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/reedcms/reed/reederr"
)

// FieldType names the primitive type a field's value must match.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "bool"
	FieldEmail  FieldType = "email"
	FieldURL    FieldType = "url"
	FieldPhone  FieldType = "phone"
	FieldSlug   FieldType = "slug"
	FieldDate   FieldType = "date"
)

// FieldDef is one field of a snippet schema.
type FieldDef struct {
	Name         string
	Type         FieldType
	Required     bool
	DefaultValue string

	// Constraints, set by callers that load schemas from a richer source
	// than the flat CSV format (CSV only carries the five base columns).
	MinLength *int
	MaxLength *int
	Pattern   string
	Min       *float64
	Max       *float64
	Enum      []string
	Sanitize  bool
}

// SchemaDef is a named snippet type: an ordered set of field definitions.
type SchemaDef struct {
	Name   string
	Fields []FieldDef
}

func (s SchemaDef) field(name string) (FieldDef, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Registry holds the published set of snippet schemas, keyed by name. Reads
// take a lock-free atomic snapshot; writers build a new map and publish it
// with a single pointer swap, never holding readers up during a reload.
type Registry struct {
	snapshot atomic.Pointer[map[string]SchemaDef]
}

// NewRegistry returns an empty registry. Call Load or Register before use.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := map[string]SchemaDef{}
	r.snapshot.Store(&empty)
	return r
}

// Schemas returns the currently published snapshot. Callers must not mutate
// the returned map.
func (r *Registry) Schemas() map[string]SchemaDef {
	return *r.snapshot.Load()
}

// Get returns the schema for name, if registered.
func (r *Registry) Get(name string) (SchemaDef, bool) {
	s, ok := (*r.snapshot.Load())[name]
	return s, ok
}

// Register publishes a new schema, replacing any existing one of the same
// name, via copy-on-write: the old snapshot is read, a new map is built,
// and the pointer is swapped atomically.
func (r *Registry) Register(def SchemaDef) {
	old := *r.snapshot.Load()
	next := make(map[string]SchemaDef, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[def.Name] = def
	r.snapshot.Store(&next)
}

// ReplaceAll atomically swaps the entire registry, discarding every
// previously registered schema. Used by a CSV rebuild, which replaces the
// full snippet set in one pass rather than registering incrementally.
func (r *Registry) ReplaceAll(defs []SchemaDef) {
	next := make(map[string]SchemaDef, len(defs))
	for _, def := range defs {
		next[def.Name] = def
	}
	r.snapshot.Store(&next)
}

// Load reads snippets.csv (snippet_name, field_name, field_type, required,
// default_value) and publishes one schema per distinct snippet_name,
// replacing the entire registry in a single atomic swap.
func (r *Registry) Load(fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if err != nil {
		return reederr.IOError("open %s: %v", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return reederr.IOError("read header of %s: %v", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, want := range []string{"snippet_name", "field_name", "field_type", "required", "default_value"} {
		if _, ok := col[want]; !ok {
			return reederr.IOError("%s missing column %q", path, want)
		}
	}

	order := []string{}
	defs := map[string]*SchemaDef{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return reederr.IOError("read row of %s: %v", path, err)
		}

		name := row[col["snippet_name"]]
		def, ok := defs[name]
		if !ok {
			def = &SchemaDef{Name: name}
			defs[name] = def
			order = append(order, name)
		}

		required, _ := strconv.ParseBool(row[col["required"]])
		def.Fields = append(def.Fields, FieldDef{
			Name:         row[col["field_name"]],
			Type:         FieldType(row[col["field_type"]]),
			Required:     required,
			DefaultValue: row[col["default_value"]],
		})
	}

	next := make(map[string]SchemaDef, len(order))
	for _, name := range order {
		next[name] = *defs[name]
	}
	r.snapshot.Store(&next)
	return nil
}

// Validator adapts a Registry to ucg.SchemaValidator: Validate runs the full
// pipeline (structural, constraints, format, firewall) and reports the
// first structural failure or firewall denial as an error; an unknown tag
// is accepted unconditionally (not every entity tag is a validated snippet
// type — themes, associations' endpoints, and root are not).
type Validator struct {
	registry *Registry
}

// NewValidator wraps registry as a ucg.SchemaValidator.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

func (v *Validator) Validate(tag string, payload map[string]interface{}) error {
	schema, ok := v.registry.Get(tag)
	if !ok {
		return nil
	}
	result := ValidateFields(schema, payload)
	if !result.OK() {
		return result.FirstError()
	}
	return nil
}
