package models

import (
	"encoding/json"
	"time"
)

// CacheEntry maps a cache key (block instance, parameter snapshot, ordered
// input UUIDs) to the derived image it produced.
//
// The key is scoped by instance id, not type id: two identically configured
// instances of the same block type do not share rows. An entry whose file
// has vanished is an orphan; the evaluator deletes it on discovery and
// re-executes.
type CacheEntry struct {
	UUID              string    `gorm:"primaryKey;size:36;column:uuid" json:"uuid"`
	IDBlock           uint      `gorm:"index:idx_image_cache_key;not null;column:idblock" json:"idblock"`
	ParametersJSON    string    `gorm:"index:idx_image_cache_key;column:parameters_json" json:"parameters_json"`
	InputUUIDsJSON    string    `gorm:"index:idx_image_cache_key;column:input_uuids_json" json:"input_uuids_json"`
	CreationTimestamp time.Time `gorm:"autoCreateTime;column:creation_timestamp" json:"creation_timestamp"`
}

// TableName returns the table name for CacheEntry.
func (CacheEntry) TableName() string {
	return "image_cache"
}

// EncodeInputUUIDs serializes an ordered input UUID list for the cache key.
func EncodeInputUUIDs(uuids []string) string {
	if uuids == nil {
		uuids = []string{}
	}
	data, _ := json.Marshal(uuids)
	return string(data)
}

// AllModels returns every model for gorm AutoMigrate.
func AllModels() []any {
	return []any{
		&InputImage{},
		&BlockType{},
		&BlockInstance{},
		&CacheEntry{},
	}
}
