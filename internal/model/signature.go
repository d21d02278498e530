package model

import "time"

// MaxSignaturesPerUser is the size of the retention window: storing a new
// signature for a user who already has this many evicts the oldest ones.
const MaxSignaturesPerUser = 2

// GCodeMetadata holds descriptive statistics derived from generated G-code.
// Nothing depends on the exact values; they are shown to users and admins.
type GCodeMetadata struct {
	Lines             int    `json:"gcode_lines"`
	Size              int    `json:"gcode_size"`
	MovementCommands  int    `json:"movement_commands"`
	SetupCommands     int    `json:"setup_commands"`
	EstimatedDuration string `json:"estimated_duration"`
}

// Conversion is the output of one SVG → G-code run.
type Conversion struct {
	GCode    string
	Metadata GCodeMetadata
}

// SignatureArtifact is one stored signature: the raw SVG the user drew,
// the G-code generated from it and the metadata of that G-code.
// Artifacts are immutable once written; retention only ever deletes them.
type SignatureArtifact struct {
	ID        string        `json:"id"`
	UserID    string        `json:"-"`
	SVGData   string        `json:"svg_data"`
	GCodeData string        `json:"gcode_data"`
	Metadata  GCodeMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}
