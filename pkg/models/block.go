package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Block type names with special evaluator behavior. Every other catalogue
// entry is a general block executed as an external command.
const (
	BlockNameInput        = "Input"
	BlockNameLoadImage    = "Load Image"
	BlockNameImagePreview = "Image Preview"
)

// BlockType is a catalogue entry describing a kind of processing block.
//
// ParameterTemplate is a printf-style string whose %s/%d placeholders are
// filled from the instance settings; it may also contain literal flag
// tokens. ParameterMappings and GUIFields are stored as JSON text, the way
// the frontend supplies them.
type BlockType struct {
	ID                uint    `gorm:"primaryKey;column:id" json:"id"`
	Name              string  `gorm:"uniqueIndex;not null;size:255;column:name" json:"name"`
	Command           string  `gorm:"size:1024;column:command" json:"command"`
	ParameterTemplate string  `gorm:"size:1024;column:parameter_template" json:"parameter_template"`
	ParameterMappings string  `gorm:"column:parameter_mappings" json:"parameter_mappings"`
	GUIFields         string  `gorm:"column:gui_fields" json:"gui_fields"`
	Outputs           *string `gorm:"column:outputs" json:"outputs,omitempty"`
}

// TableName returns the table name for BlockType.
func (BlockType) TableName() string {
	return "blocks_catalogue"
}

// IsTerminal reports whether this block type terminates a pipeline.
// The terminal block of a project is the one whose catalogue row declares
// no outputs.
func (t *BlockType) IsTerminal() bool {
	return t.Outputs == nil
}

// ParsedGUIFields returns the ordered list of user-exposed setting names.
// An empty column yields an empty list.
func (t *BlockType) ParsedGUIFields() ([]string, error) {
	if t.GUIFields == "" {
		return nil, nil
	}
	var fields []string
	if err := json.Unmarshal([]byte(t.GUIFields), &fields); err != nil {
		return nil, fmt.Errorf("block type %q: invalid gui_fields: %w", t.Name, err)
	}
	return fields, nil
}

// ParsedMappings returns the nested field → raw value → substituted value
// mapping. An empty column yields an empty map.
func (t *BlockType) ParsedMappings() (map[string]map[string]string, error) {
	if t.ParameterMappings == "" {
		return nil, nil
	}
	var mappings map[string]map[string]string
	if err := json.Unmarshal([]byte(t.ParameterMappings), &mappings); err != nil {
		return nil, fmt.Errorf("block type %q: invalid parameter_mappings: %w", t.Name, err)
	}
	return mappings, nil
}

// BlockInstance is a node placed in a project's pipeline graph.
//
// Connections maps input-port names to upstream instance ids; the edges it
// defines must form a DAG within the project. OutputValue holds the
// per-instance settings object as JSON text exactly as supplied by the
// frontend. Enabled is tri-valued: a NULL column means enabled.
type BlockInstance struct {
	ID          uint   `gorm:"primaryKey;column:id" json:"id"`
	IDProject   uint   `gorm:"index;not null;column:idproject" json:"idproject"`
	IDBlock     uint   `gorm:"not null;column:idblock" json:"idblock"`
	Connections string `gorm:"column:connections" json:"connections"`
	OutputValue string `gorm:"column:output_value" json:"output_value"`
	Enabled     *bool  `gorm:"column:enabled" json:"enabled,omitempty"`
}

// TableName returns the table name for BlockInstance.
func (BlockInstance) TableName() string {
	return "blocks"
}

// IsEnabled reports whether the instance participates in evaluation.
// Absent means enabled.
func (b *BlockInstance) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// ParsedConnections returns the input-port → upstream instance id mapping.
// An empty column yields an empty map.
func (b *BlockInstance) ParsedConnections() (map[string]uint, error) {
	if b.Connections == "" {
		return map[string]uint{}, nil
	}
	var conns map[string]uint
	if err := json.Unmarshal([]byte(b.Connections), &conns); err != nil {
		return nil, fmt.Errorf("block %d: invalid connections: %w", b.ID, err)
	}
	return conns, nil
}

// OrderedPorts returns the connection port names in lexicographic order.
// This ordering decides both the evaluation order of upstream blocks and
// the order of input UUIDs in the cache key.
func (b *BlockInstance) OrderedPorts() ([]string, error) {
	conns, err := b.ParsedConnections()
	if err != nil {
		return nil, err
	}
	ports := make([]string, 0, len(conns))
	for port := range conns {
		ports = append(ports, port)
	}
	sort.Strings(ports)
	return ports, nil
}

// Settings returns the decoded settings object. An empty column yields an
// empty map.
func (b *BlockInstance) Settings() (map[string]any, error) {
	if b.OutputValue == "" {
		return map[string]any{}, nil
	}
	var settings map[string]any
	if err := json.Unmarshal([]byte(b.OutputValue), &settings); err != nil {
		return nil, fmt.Errorf("block %d: invalid output_value: %w", b.ID, err)
	}
	return settings, nil
}

// ParametersJSON returns the canonical settings serialization used in the
// cache key: the stored JSON text verbatim, or "{}" when absent. Reusing
// the stored text keeps the key stable across evaluations without
// re-marshaling through an unordered map.
func (b *BlockInstance) ParametersJSON() string {
	if b.OutputValue == "" {
		return "{}"
	}
	return b.OutputValue
}
