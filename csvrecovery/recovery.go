// Package csvrecovery implements disaster rebuild from the CSV files that
// are the system's source of truth: themes.csv, snippets.csv, entities.csv,
// associations.csv, translations.<locale>.csv. It also exports the live
// state back to the same formats.
package csvrecovery

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/reedcms/reed/durable"
	"github.com/reedcms/reed/epc"
	"github.com/reedcms/reed/hotstore"
	"github.com/reedcms/reed/ids"
	"github.com/reedcms/reed/logging"
	"github.com/reedcms/reed/reederr"
	"github.com/reedcms/reed/snippet"
	"github.com/reedcms/reed/templates"
	"github.com/reedcms/reed/ucg"
)

const (
	fileThemes   = "themes.csv"
	fileSnippets = "snippets.csv"
	fileEntities = "entities.csv"
	fileAssocs   = "associations.csv"
)

// Recoverer owns the exclusive rebuild lock and the component registries a
// rebuild repopulates. A single Recoverer is shared process-wide; it never
// queues concurrent rebuilds (Open Question (b)).
type Recoverer struct {
	durable  *durable.Store
	hot      *hotstore.Store
	graph    *ucg.Graph
	themes   *epc.ThemeRegistry
	snippets *snippet.Registry
	catalog  *templates.Catalog
	logger   *logging.ContextLogger

	mu sync.Mutex
}

// Config wires a Recoverer to the live components it rebuilds into.
type Config struct {
	Durable  *durable.Store
	Hot      *hotstore.Store
	Graph    *ucg.Graph
	Themes   *epc.ThemeRegistry
	Snippets *snippet.Registry
	Catalog  *templates.Catalog
	Logger   *logging.ContextLogger
}

// New returns a Recoverer wired to cfg's components.
func New(cfg Config) *Recoverer {
	return &Recoverer{
		durable:  cfg.Durable,
		hot:      cfg.Hot,
		graph:    cfg.Graph,
		themes:   cfg.Themes,
		snippets: cfg.Snippets,
		catalog:  cfg.Catalog,
		logger:   cfg.Logger,
	}
}

// parsedRebuild accumulates every file's parsed rows before anything is
// applied, so a malformed row anywhere aborts with the durable store and hot
// store untouched.
type parsedRebuild struct {
	themes       []epc.Theme
	snippetDefs  []snippet.SchemaDef
	entities     []entityRow
	associations []associationRow
	translations map[string]translationRows // locale -> rows
}

type entityRow struct {
	id           string
	tag          string
	semanticName *string
	payload      json.RawMessage
	createdBy    *string
	createdAt    time.Time
}

type associationRow struct {
	parentID string
	childID  string
	kind     string
	weight   int
}

type translationRow struct {
	key   string
	value string
}

type translationRows []translationRow

// RebuildFromCSV replays dir's CSV files in the fixed order (themes,
// snippet definitions, entities, associations, translations, search index)
// and republishes every in-memory registry. A rebuild already in progress
// fails fast rather than queuing (Open Question (b)).
func (r *Recoverer) RebuildFromCSV(ctx context.Context, fs afero.Fs, dir string) error {
	if !r.mu.TryLock() {
		return reederr.RebuildInProgress()
	}
	defer r.mu.Unlock()

	log := r.logger
	if log != nil {
		log = log.WithField("dir", dir)
		log.Info("csv rebuild starting")
	}

	parsed, err := parseAll(fs, dir)
	if err != nil {
		if log != nil {
			log.WithError(err).Error("csv rebuild aborted: parse failed")
		}
		return err
	}

	if r.hot != nil {
		if err := r.hot.Flush(ctx); err != nil && log != nil {
			log.WithError(err).Warn("hot store flush failed, continuing")
		}
	}

	if err := r.durable.TruncateGraph(ctx); err != nil {
		return err
	}

	if r.themes != nil {
		r.themes.ReplaceAll(parsed.themes)
	}

	if r.snippets != nil {
		r.snippets.ReplaceAll(parsed.snippetDefs)
	} else {
		r.snippets = snippet.NewRegistry()
		r.snippets.ReplaceAll(parsed.snippetDefs)
	}

	validator := snippet.NewValidator(r.snippets)
	for _, row := range parsed.entities {
		var payload map[string]interface{}
		if len(row.payload) > 0 {
			if err := json.Unmarshal(row.payload, &payload); err != nil {
				return reederr.IOError("%s: entity %s: invalid data_json: %v", fileEntities, row.id, err)
			}
		}
		if err := validator.Validate(row.tag, payload); err != nil {
			return err
		}
		if err := r.durable.InsertEntityRaw(ctx, row.id, row.tag, row.semanticName, row.payload, row.createdBy, row.createdAt); err != nil {
			return err
		}
	}

	for _, row := range parsed.associations {
		id := ids.New()
		if err := r.durable.InsertAssociationRaw(ctx, id, row.parentID, row.childID, row.kind, row.weight, time.Now()); err != nil {
			return err
		}
	}

	if r.catalog != nil {
		for locale, rows := range parsed.translations {
			layer := map[string]string{}
			for _, row := range rows {
				layer[row.key] = row.value
			}
			r.catalog.PublishGlobal(locale, layer)
		}
	}

	if err := r.rebuildSearchIndex(ctx, parsed.entities); err != nil && log != nil {
		log.WithError(err).Warn("search index rebuild incomplete")
	}

	if log != nil {
		log.WithFields(map[string]interface{}{
			"entities":     len(parsed.entities),
			"associations": len(parsed.associations),
			"themes":       len(parsed.themes),
		}).Info("csv rebuild complete")
	}
	return nil
}

func parseAll(fs afero.Fs, dir string) (*parsedRebuild, error) {
	out := &parsedRebuild{translations: map[string]translationRows{}}

	themes, err := parseThemes(fs, join(dir, fileThemes))
	if err != nil {
		return nil, err
	}
	out.themes = themes

	defs, err := parseSnippets(fs, join(dir, fileSnippets))
	if err != nil {
		return nil, err
	}
	out.snippetDefs = defs

	entities, err := parseEntities(fs, join(dir, fileEntities))
	if err != nil {
		return nil, err
	}
	out.entities = entities

	assocs, err := parseAssociations(fs, join(dir, fileAssocs))
	if err != nil {
		return nil, err
	}
	out.associations = assocs

	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, reederr.IOError("list %s: %v", dir, err)
	}
	for _, info := range infos {
		name := info.Name()
		if !strings.HasPrefix(name, "translations.") || !strings.HasSuffix(name, ".csv") {
			continue
		}
		locale := strings.TrimSuffix(strings.TrimPrefix(name, "translations."), ".csv")
		rows, err := parseTranslations(fs, join(dir, name))
		if err != nil {
			return nil, err
		}
		out.translations[locale] = rows
	}

	return out, nil
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

func openCSV(fs afero.Fs, path string, wantCols []string) (*csv.Reader, afero.File, map[string]int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, nil, reederr.IOError("open %s: %v", path, err)
	}
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		f.Close()
		return nil, nil, nil, reederr.IOError("read header of %s: %v", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, want := range wantCols {
		if _, ok := col[want]; !ok {
			f.Close()
			return nil, nil, nil, reederr.IOError("%s missing column %q", path, want)
		}
	}
	return reader, f, col, nil
}

func parseThemes(fs afero.Fs, path string) ([]epc.Theme, error) {
	reader, f, col, err := openCSV(fs, path, []string{"name", "parent", "context_type", "context_value", "active"})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []epc.Theme
	row := 1
	for {
		rec, err := reader.Read()
		row++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, reederr.IOError("%s row %d: %v", path, row, err)
		}
		active, _ := strconv.ParseBool(rec[col["active"]])
		out = append(out, epc.Theme{
			Name:         rec[col["name"]],
			Parent:       rec[col["parent"]],
			ContextType:  rec[col["context_type"]],
			ContextValue: rec[col["context_value"]],
			Active:       active,
		})
	}
	return out, nil
}

func parseSnippets(fs afero.Fs, path string) ([]snippet.SchemaDef, error) {
	reader, f, col, err := openCSV(fs, path, []string{"snippet_name", "field_name", "field_type", "required", "default_value"})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	order := []string{}
	defs := map[string]*snippet.SchemaDef{}
	row := 1
	for {
		rec, err := reader.Read()
		row++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, reederr.IOError("%s row %d: %v", path, row, err)
		}
		name := rec[col["snippet_name"]]
		def, ok := defs[name]
		if !ok {
			def = &snippet.SchemaDef{Name: name}
			defs[name] = def
			order = append(order, name)
		}
		required, _ := strconv.ParseBool(rec[col["required"]])
		def.Fields = append(def.Fields, snippet.FieldDef{
			Name:         rec[col["field_name"]],
			Type:         snippet.FieldType(rec[col["field_type"]]),
			Required:     required,
			DefaultValue: rec[col["default_value"]],
		})
	}

	out := make([]snippet.SchemaDef, 0, len(order))
	for _, name := range order {
		out = append(out, *defs[name])
	}
	return out, nil
}

func parseEntities(fs afero.Fs, path string) ([]entityRow, error) {
	reader, f, col, err := openCSV(fs, path, []string{"id", "tag", "semantic_name", "data_json", "created_by", "created_at"})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []entityRow
	row := 1
	for {
		rec, err := reader.Read()
		row++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, reederr.IOError("%s row %d: %v", path, row, err)
		}
		createdAt, err := time.Parse(time.RFC3339, rec[col["created_at"]])
		if err != nil {
			return nil, reederr.IOError("%s row %d: invalid created_at %q: %v", path, row, rec[col["created_at"]], err)
		}
		e := entityRow{
			id:        rec[col["id"]],
			tag:       rec[col["tag"]],
			payload:   json.RawMessage(rec[col["data_json"]]),
			createdAt: createdAt,
		}
		if v := rec[col["semantic_name"]]; v != "" {
			e.semanticName = &v
		}
		if v := rec[col["created_by"]]; v != "" {
			e.createdBy = &v
		}
		out = append(out, e)
	}
	return out, nil
}

func parseAssociations(fs afero.Fs, path string) ([]associationRow, error) {
	reader, f, col, err := openCSV(fs, path, []string{"parent_id", "child_id", "path", "kind", "weight"})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []associationRow
	row := 1
	for {
		rec, err := reader.Read()
		row++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, reederr.IOError("%s row %d: %v", path, row, err)
		}
		weight, err := strconv.Atoi(rec[col["weight"]])
		if err != nil {
			return nil, reederr.IOError("%s row %d: invalid weight %q: %v", path, row, rec[col["weight"]], err)
		}
		out = append(out, associationRow{
			parentID: rec[col["parent_id"]],
			childID:  rec[col["child_id"]],
			kind:     rec[col["kind"]],
			weight:   weight,
		})
	}
	return out, nil
}

func parseTranslations(fs afero.Fs, path string) (translationRows, error) {
	reader, f, col, err := openCSV(fs, path, []string{"key", "value"})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out translationRows
	row := 1
	for {
		rec, err := reader.Read()
		row++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, reederr.IOError("%s row %d: %v", path, row, err)
		}
		out = append(out, translationRow{key: rec[col["key"]], value: rec[col["value"]]})
	}
	return out, nil
}

// Export dumps the live component state to dir in the CSV formats
// RebuildFromCSV consumes.
func (r *Recoverer) Export(ctx context.Context, fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return reederr.IOError("mkdir %s: %v", dir, err)
	}

	if err := r.exportThemes(fs, join(dir, fileThemes)); err != nil {
		return err
	}
	if err := r.exportSnippets(fs, join(dir, fileSnippets)); err != nil {
		return err
	}
	entities, err := r.durable.AllEntities(ctx)
	if err != nil {
		return err
	}
	if err := exportEntities(fs, join(dir, fileEntities), entities); err != nil {
		return err
	}
	associations, err := r.durable.AllAssociations(ctx)
	if err != nil {
		return err
	}
	if err := r.exportAssociations(ctx, fs, join(dir, fileAssocs), associations); err != nil {
		return err
	}
	return nil
}

func (r *Recoverer) exportThemes(fs afero.Fs, path string) error {
	w, f, err := createCSV(fs, path, []string{"name", "parent", "context_type", "context_value", "active"})
	if err != nil {
		return err
	}
	defer f.Close()
	defer w.Flush()

	if r.themes == nil {
		return nil
	}
	names := make([]string, 0)
	themes := r.themes.Themes()
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := themes[name]
		if err := w.Write([]string{t.Name, t.Parent, t.ContextType, t.ContextValue, strconv.FormatBool(t.Active)}); err != nil {
			return reederr.IOError("write %s: %v", path, err)
		}
	}
	return w.Error()
}

func (r *Recoverer) exportSnippets(fs afero.Fs, path string) error {
	w, f, err := createCSV(fs, path, []string{"snippet_name", "field_name", "field_type", "required", "default_value"})
	if err != nil {
		return err
	}
	defer f.Close()
	defer w.Flush()

	if r.snippets == nil {
		return nil
	}
	names := make([]string, 0)
	schemas := r.snippets.Schemas()
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, field := range schemas[name].Fields {
			if err := w.Write([]string{name, field.Name, string(field.Type), strconv.FormatBool(field.Required), field.DefaultValue}); err != nil {
				return reederr.IOError("write %s: %v", path, err)
			}
		}
	}
	return w.Error()
}

func exportEntities(fs afero.Fs, path string, entities []durable.EntityRecord) error {
	w, f, err := createCSV(fs, path, []string{"id", "tag", "semantic_name", "data_json", "created_by", "created_at"})
	if err != nil {
		return err
	}
	defer f.Close()
	defer w.Flush()

	for _, e := range entities {
		semanticName := ""
		if e.SemanticName != nil {
			semanticName = *e.SemanticName
		}
		createdBy := ""
		if e.CreatedBy != nil {
			createdBy = *e.CreatedBy
		}
		if err := w.Write([]string{
			e.ID, e.Tag, semanticName, string(e.Payload), createdBy, e.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			return reederr.IOError("write %s: %v", path, err)
		}
	}
	return w.Error()
}

// exportAssociations writes associations.csv, recomputing each containment
// edge's dotted path via the live graph for diagnostic purposes; path is
// derived, never authoritative (§3), so a lookup failure degrades to an
// empty path rather than aborting the export.
func (r *Recoverer) exportAssociations(ctx context.Context, fs afero.Fs, path string, associations []durable.AssociationRecord) error {
	w, f, err := createCSV(fs, path, []string{"parent_id", "child_id", "path", "kind", "weight"})
	if err != nil {
		return err
	}
	defer f.Close()
	defer w.Flush()

	for _, a := range associations {
		childPath := ""
		if r.graph != nil && a.Kind == string(ucg.KindContains) {
			if p, err := r.graph.Path(ctx, a.ChildID); err == nil {
				childPath = p
			}
		}
		if err := w.Write([]string{a.ParentID, a.ChildID, childPath, a.Kind, strconv.Itoa(a.Weight)}); err != nil {
			return reederr.IOError("write %s: %v", path, err)
		}
	}
	return w.Error()
}

func createCSV(fs afero.Fs, path string, header []string) (*csv.Writer, afero.File, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, nil, reederr.IOError("create %s: %v", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, nil, reederr.IOError("write header of %s: %v", path, err)
	}
	return w, f, nil
}
