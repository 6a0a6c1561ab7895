package versioning

import "time"

// CompatibilityMode is a descriptive label stored with each version. It is not enforced.
type CompatibilityMode string

const (
	CompatibilityBackward           CompatibilityMode = "BACKWARD"
	CompatibilityBackwardTransitive CompatibilityMode = "BACKWARD_TRANSITIVE"
	CompatibilityForward            CompatibilityMode = "FORWARD"
	CompatibilityForwardTransitive  CompatibilityMode = "FORWARD_TRANSITIVE"
	CompatibilityFull               CompatibilityMode = "FULL"
	CompatibilityFullTransitive     CompatibilityMode = "FULL_TRANSITIVE"
	CompatibilityNone               CompatibilityMode = "NONE"
)

// Valid reports whether m is a known label.
func (m CompatibilityMode) Valid() bool {
	switch m {
	case CompatibilityBackward, CompatibilityBackwardTransitive,
		CompatibilityForward, CompatibilityForwardTransitive,
		CompatibilityFull, CompatibilityFullTransitive, CompatibilityNone:
		return true
	}
	return false
}

// SchemaVersion is one registered definition of a subject.
type SchemaVersion struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	Subject           string            `gorm:"size:255;not null;uniqueIndex:idx_subject_version,priority:1" json:"subject"`
	Version           int               `gorm:"not null;uniqueIndex:idx_subject_version,priority:2" json:"version"`
	SchemaID          *int              `gorm:"index" json:"schemaId,omitempty"`
	Definition        string            `gorm:"column:schema_definition;type:text;not null" json:"schemaDefinition"`
	CompatibilityMode CompatibilityMode `gorm:"size:50;not null" json:"compatibilityMode"`
	IsActive          bool              `gorm:"index;not null" json:"isActive"`
	RegisteredAt      time.Time         `gorm:"not null" json:"registeredAt"`
	RegisteredBy      string            `gorm:"size:255" json:"registeredBy"`
}

func (SchemaVersion) TableName() string {
	return "schema_versions"
}

// Latest returns the element with the highest Version.
func Latest(versions []SchemaVersion) (SchemaVersion, bool) {
	if len(versions) == 0 {
		return SchemaVersion{}, false
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if v.Version > latest.Version {
			latest = v
		}
	}
	return latest, true
}
