// Package domain contains the core entities of the DICOM viewer service:
// schema descriptions of externally-owned data sources, study listings and
// metadata results, and the error taxonomy shared by the query and
// identifier-resolution layers.
//
// The report table and the columnar metadata files are bulk-loaded and owned
// outside this service; their column sets are discovered at runtime, never
// assumed at compile time.
package domain

import "fmt"

// Record is a single row of an externally-owned data source. Column names
// are only known at runtime, so values are keyed by the source's own names.
type Record map[string]interface{}

// Text returns the string form of the value under key, or "" when the key is
// absent or the value is null.
func (r Record) Text(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// StudySummary is one entry of the study listing: a study identifier and the
// deterministic representative report text for that study. The representative
// is the minimum non-null text among all report rows sharing the identifier,
// so repeated listings of an unchanged store return identical results.
type StudySummary struct {
	StudyID            string  `json:"studyId"`
	RepresentativeText *string `json:"cleanReportText"`
}

// StudyMetadata is the metadata-resolution result for one study: the
// caller's identifier, the de-identified identifier when a mapping applied,
// and the matching metadata rows. An identifier with no matching rows yields
// an empty Rows slice, not an error.
type StudyMetadata struct {
	StudyID       string   `json:"studyId"`
	MappedStudyID string   `json:"mappedStudyId,omitempty"`
	Rows          []Record `json:"rows"`
}

// StudyUIDList is a distinct study-identifier listing together with the
// column name the identifiers were read from, since that name varies across
// metadata sources and must be detected per source.
type StudyUIDList struct {
	UIDColumn string   `json:"uidColumnName"`
	Items     []string `json:"items"`
}

// DemoStudy is the single write-path entity: a demonstration row in the
// studies table. The write path exists to exercise the store's insert
// semantics and carries no clinical meaning.
type DemoStudy struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
