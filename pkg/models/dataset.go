package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Dataset is a curated reference dataset of named entities.
// Only entities belonging to an active dataset participate in matching.
type Dataset struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	EntryCount  int        `json:"entry_count" db:"entry_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// ReferenceEntity is one canonical organization record in a reference dataset.
// The normalized columns are precomputed at import time so lookups never
// normalize at query time.
type ReferenceEntity struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	DatasetID         uuid.UUID      `json:"dataset_id" db:"dataset_id"`
	DatasetName       string         `json:"dataset_name" db:"dataset_name"`
	OrganizationName  string         `json:"organization_name" db:"organization_name"`
	NameNormalized    string         `json:"-" db:"name_normalized"`
	CoreNormalized    string         `json:"-" db:"core_normalized"`
	Aliases           pq.StringArray `json:"aliases" db:"aliases"`
	AliasesNormalized pq.StringArray `json:"-" db:"aliases_normalized"`
	Category          *string        `json:"category,omitempty" db:"category"`
	Countries         pq.StringArray `json:"countries,omitempty" db:"countries"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}
