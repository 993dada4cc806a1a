package durable

import (
	"time"

	"gorm.io/gorm/clause"
)

// UpsertPluginRegistry records (or updates) a discovered plugin's metadata
// and persists it across restarts, so an operator's enable/disable decision
// survives even though runtime lifecycle state itself stays in-process. A
// plugin seen for the first time defaults to enabled; re-discovery never
// touches the enabled flag, since that is the operator's decision to make.
func (g *GormDB) UpsertPluginRegistry(rec PluginRegistryRecord) error {
	if _, known := g.GetPluginRegistry(rec.ID); !known {
		rec.Enabled = true
		rec.InstalledAt = time.Now()
		return g.DB.Create(&rec).Error
	}
	return g.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "author", "priority"}),
	}).Create(&rec).Error
}

// UpsertPlugin is the pluginhost.PersistentStore-facing entry point: it
// discards the caller-unknown enabled/installed-at bookkeeping and delegates
// to UpsertPluginRegistry.
func (g *GormDB) UpsertPlugin(id, version, author string, priority int) error {
	return g.UpsertPluginRegistry(PluginRegistryRecord{ID: id, Version: version, Author: author, Priority: priority})
}

// IsEnabled implements pluginhost.PersistentStore.
func (g *GormDB) IsEnabled(id string) (enabled bool, known bool) {
	rec, ok := g.GetPluginRegistry(id)
	if !ok {
		return false, false
	}
	return rec.Enabled, true
}

// GetPluginRegistry returns the persisted record for id, or (zero, false) if
// the plugin has never been discovered before.
func (g *GormDB) GetPluginRegistry(id string) (PluginRegistryRecord, bool) {
	var rec PluginRegistryRecord
	if err := g.DB.First(&rec, "id = ?", id).Error; err != nil {
		return PluginRegistryRecord{}, false
	}
	return rec, true
}

// ListPluginRegistry returns every persisted plugin record.
func (g *GormDB) ListPluginRegistry() ([]PluginRegistryRecord, error) {
	var recs []PluginRegistryRecord
	if err := g.DB.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// SetPluginEnabled updates a persisted plugin's enabled flag. The plugin
// host consults this on discovery: a plugin found on disk but marked
// disabled here is loaded into the registry but never initialized.
func (g *GormDB) SetPluginEnabled(id string, enabled bool) error {
	return g.DB.Model(&PluginRegistryRecord{}).Where("id = ?", id).Update("enabled", enabled).Error
}
