package domain

import (
	"reflect"
	"testing"
)

func TestFindingColumns(t *testing.T) {
	tests := []struct {
		name     string
		columns  []string
		exclude  []string
		expected []string
	}{
		{
			name:     "excludes fixed metadata and sorts",
			columns:  []string{"studyID", "pneumonia", "clean_report_text", "atelectasis", "edema"},
			exclude:  []string{"studyID", "clean_report_text"},
			expected: []string{"atelectasis", "edema", "pneumonia"},
		},
		{
			name:     "input order irrelevant",
			columns:  []string{"edema", "atelectasis", "pneumonia"},
			exclude:  nil,
			expected: []string{"atelectasis", "edema", "pneumonia"},
		},
		{
			name:     "duplicates removed",
			columns:  []string{"edema", "edema", "atelectasis"},
			exclude:  nil,
			expected: []string{"atelectasis", "edema"},
		},
		{
			name:     "excluded names absent from schema are ignored",
			columns:  []string{"edema"},
			exclude:  []string{"studyID", "age", "views"},
			expected: []string{"edema"},
		},
		{
			name:     "all excluded",
			columns:  []string{"studyID", "age"},
			exclude:  []string{"studyID", "age"},
			expected: []string{},
		},
		{
			name:     "empty schema",
			columns:  nil,
			exclude:  []string{"studyID"},
			expected: []string{},
		},
		{
			name:     "exclusion is case sensitive",
			columns:  []string{"StudyID", "edema"},
			exclude:  []string{"studyID"},
			expected: []string{"StudyID", "edema"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindingColumns(schemaFromNames(tt.columns), tt.exclude)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestSchemaFirstMatch(t *testing.T) {
	candidates := []string{"StudyInstanceUID", "studyID", "study_id", "anon_study_uid", "StudyUID"}

	tests := []struct {
		name     string
		columns  []string
		expected string
		found    bool
	}{
		{"second priority wins when first absent", []string{"studyID", "SOPInstanceUID"}, "studyID", true},
		{"top priority wins when several present", []string{"study_id", "StudyInstanceUID", "studyID"}, "StudyInstanceUID", true},
		{"empty schema", nil, "", false},
		{"no candidate present", []string{"PatientID", "SeriesInstanceUID"}, "", false},
		{"match is case sensitive", []string{"studyinstanceuid"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := schemaFromNames(tt.columns).FirstMatch(candidates)
			if found != tt.found {
				t.Fatalf("Expected found=%v, got %v", tt.found, found)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSchemaFirstMatchFold(t *testing.T) {
	tests := []struct {
		name       string
		columns    []string
		candidates []string
		expected   string
		found      bool
	}{
		{
			name:       "case insensitive match returns source name",
			columns:    []string{"PHI", "ANON"},
			candidates: []string{"real_study_uid", "phi"},
			expected:   "PHI",
			found:      true,
		},
		{
			name:       "priority order respected",
			columns:    []string{"path", "file_path"},
			candidates: []string{"file_path", "dicom_path", "path"},
			expected:   "file_path",
			found:      true,
		},
		{
			name:       "no candidate present",
			columns:    []string{"SOPInstanceUID"},
			candidates: []string{"file_path", "dicom_path", "path"},
			expected:   "",
			found:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := schemaFromNames(tt.columns).FirstMatchFold(tt.candidates)
			if found != tt.found {
				t.Fatalf("Expected found=%v, got %v", tt.found, found)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSchemaLookups(t *testing.T) {
	schema := NewSchema([]Column{
		{Name: "StudyInstanceUID", Type: "VARCHAR"},
		{Name: "age", Type: "BIGINT"},
		{Name: "AGE", Type: "VARCHAR"},
	})

	if schema.Len() != 3 {
		t.Errorf("Expected 3 columns, got %d", schema.Len())
	}
	if schema.IsEmpty() {
		t.Error("Expected schema not to be empty")
	}
	if !schema.Has("age") {
		t.Error("Expected Has(age) to be true")
	}
	if schema.Has("Age") {
		t.Error("Has must be case sensitive")
	}

	col, ok := schema.Lookup("age")
	if !ok || col.Type != "BIGINT" {
		t.Errorf("Expected BIGINT age column, got %+v (ok=%v)", col, ok)
	}

	// The first fold match wins when names collide case-insensitively.
	col, ok = schema.LookupFold("Age")
	if !ok || col.Name != "age" {
		t.Errorf("Expected fold lookup to return first column 'age', got %+v (ok=%v)", col, ok)
	}

	names := schema.Names()
	expected := []string{"StudyInstanceUID", "age", "AGE"}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("Expected %v, got %v", expected, names)
	}

	if !NewSchema(nil).IsEmpty() {
		t.Error("Expected empty schema to report IsEmpty")
	}
}

func schemaFromNames(names []string) Schema {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Type: "VARCHAR"}
	}
	return NewSchema(cols)
}
