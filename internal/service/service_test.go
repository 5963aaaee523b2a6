package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dicom-viewer-api/internal/domain"
	"github.com/dicom-viewer-api/internal/identity"
	"github.com/dicom-viewer-api/internal/repository"
	"github.com/dicom-viewer-api/internal/resolve"
	"github.com/dicom-viewer-api/internal/source"
)

func testServiceConfig(dir string) *domain.Config {
	return &domain.Config{
		Reports: domain.ReportsConfig{
			Table:         "reports",
			StudyIDColumn: "studyID",
			TextColumn:    "clean_report_text",
			MetadataColumns: []string{
				"clean_report_text", "studyID", "age", "views", "study_date",
				"regex_labels", "report_text", "report_path", "llm_labels",
			},
		},
		Metadata: domain.MetadataConfig{
			StudyUIDCandidates: []string{"StudyInstanceUID", "studyID", "study_id", "anon_study_uid", "StudyUID"},
		},
		Identity: domain.IdentityConfig{
			RealCandidates: []string{"real_study_uid", "original_study_uid", "phi_study_uid", "real_uid", "phi"},
			AnonCandidates: []string{"anon_study_uid", "anonymized_study_uid", "anon_uid", "anon"},
		},
		Resolve: domain.ResolveConfig{
			Roots:                 []string{filepath.Join(dir, "dicoms")},
			PathCandidates:        []string{"file_path", "dicom_path", "path"},
			InstanceUIDCandidates: []string{"SOPInstanceUID", "sop_instance_uid", "instance_uid", "objectID"},
		},
		Pagination: domain.PaginationConfig{DefaultPageSize: 50, MaxPageSize: 500},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func openTestSource(t *testing.T, path string) source.Source {
	t.Helper()
	src, err := source.Open(path)
	require.NoError(t, err)
	return src
}

// newSQLiteService builds a fully wired service over a seeded temp SQLite
// store, one metadata CSV, and one identity-mapping CSV.
func newSQLiteService(t *testing.T) (*Service, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := sql.Open("sqlite", filepath.Join(dir, "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE reports (
			studyID TEXT,
			clean_report_text TEXT,
			age INTEGER,
			edema TEXT,
			pneumonia TEXT
		);
		CREATE TABLE studies (id INTEGER PRIMARY KEY, name TEXT);`)
	require.NoError(t, err)

	seed := []struct {
		id, text, edema, pneumonia string
	}{
		{"R1", "clear lung fields", "Certainly False", "Certainly False"},
		{"R2", "bilateral opacities", "Certainly True", "Certainly True"},
		{"R2", "apical consolidation", "Certainly True", "Uncertain"},
		{"S3", "mild cardiomegaly", "Certainly True", "Certainly False"},
	}
	for _, r := range seed {
		_, err = db.Exec(
			"INSERT INTO reports (studyID, clean_report_text, age, edema, pneumonia) VALUES (?, ?, 60, ?, ?)",
			r.id, r.text, r.edema, r.pneumonia,
		)
		require.NoError(t, err)
	}

	metadataCSV := filepath.Join(dir, "metadata.csv")
	writeTestFile(t, metadataCSV, "StudyInstanceUID,SOPInstanceUID,file_path,description\n"+
		"A1,I1,"+filepath.Join(dir, "archive", "i1.dcm")+",frontal\n"+
		"A1,I2,"+filepath.Join(dir, "archive", "i2.dcm")+",lateral\n"+
		"R2,I3,"+filepath.Join(dir, "archive", "i3.dcm")+",frontal\n")
	writeTestFile(t, filepath.Join(dir, "archive", "i3.dcm"), "dicom bytes")

	mappingCSV := filepath.Join(dir, "mapping.csv")
	writeTestFile(t, mappingCSV, "real_study_uid,anon_study_uid\nR1,A1\nR2,A9\n")

	cfg := testServiceConfig(dir)
	logger := quietLogger()

	names := repository.Names{Table: cfg.Reports.Table, StudyID: cfg.Reports.StudyIDColumn, Text: cfg.Reports.TextColumn}
	store := repository.NewSQLiteStore(db, names, logger)

	sources := []source.Source{openTestSource(t, metadataCSV)}
	mapper := identity.NewMapper(openTestSource(t, mappingCSV), cfg.Identity, logger)
	resolver := resolve.NewResolver(cfg.Resolve, sources, logger)

	return NewService(logger, store, sources, mapper, resolver, cfg), dir
}

func TestListFindingColumns(t *testing.T) {
	svc, _ := newSQLiteService(t)

	findings, err := svc.ListFindingColumns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"edema", "pneumonia"}, findings)
}

func TestListStudiesUnfiltered(t *testing.T) {
	svc, _ := newSQLiteService(t)

	studies, err := svc.ListStudies(context.Background(), "", "", 1, 50)
	require.NoError(t, err)

	require.Len(t, studies, 3)
	assert.Equal(t, "R1", studies[0].StudyID)
	assert.Equal(t, "R2", studies[1].StudyID)
	assert.Equal(t, "S3", studies[2].StudyID)

	// R2 has two reports; the representative is the minimum text.
	require.NotNil(t, studies[1].RepresentativeText)
	assert.Equal(t, "apical consolidation", *studies[1].RepresentativeText)
}

func TestListStudiesFiltered(t *testing.T) {
	svc, _ := newSQLiteService(t)

	studies, err := svc.ListStudies(context.Background(), "pneumonia", "Certainly True", 1, 50)
	require.NoError(t, err)

	require.Len(t, studies, 1)
	assert.Equal(t, "R2", studies[0].StudyID)
}

func TestListStudiesLoneFilterParamIgnored(t *testing.T) {
	svc, _ := newSQLiteService(t)

	byColumn, err := svc.ListStudies(context.Background(), "edema", "", 1, 50)
	require.NoError(t, err)
	byValue, err := svc.ListStudies(context.Background(), "", "Certainly True", 1, 50)
	require.NoError(t, err)

	assert.Len(t, byColumn, 3)
	assert.Len(t, byValue, 3)
}

func TestListStudiesRejectsMetadataColumnAsFilter(t *testing.T) {
	svc, _ := newSQLiteService(t)

	// age is a real column but sits in the exclusion set, so it is not a
	// valid finding filter.
	_, err := svc.ListStudies(context.Background(), "age", "60", 1, 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidColumn)
}

func TestListStudiesPageClamping(t *testing.T) {
	svc, _ := newSQLiteService(t)

	all, err := svc.ListStudies(context.Background(), "", "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page2, err := svc.ListStudies(context.Background(), "", "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "S3", page2[0].StudyID)

	beyond, err := svc.ListStudies(context.Background(), "", "", 9, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestCountStudiesMatchesListing(t *testing.T) {
	svc, _ := newSQLiteService(t)

	cases := [][2]string{
		{"", ""},
		{"edema", "Certainly True"},
		{"pneumonia", "Certainly True"},
		{"pneumonia", "no such value"},
	}
	for _, c := range cases {
		studies, err := svc.ListStudies(context.Background(), c[0], c[1], 1, 0)
		require.NoError(t, err)

		count, err := svc.CountStudies(context.Background(), c[0], c[1])
		require.NoError(t, err)

		assert.Equal(t, int64(len(studies)), count, "filter %v", c)
	}
}

// An invalid filter column must be rejected after schema discovery alone,
// before any data query is issued.
func TestInvalidColumnIssuesNoDataQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectQuery("SELECT column_name, data_type FROM information_schema.columns").
		WithArgs("reports").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("studyID", "text").
			AddRow("clean_report_text", "text").
			AddRow("edema", "text"))

	cfg := testServiceConfig("")
	logger := quietLogger()
	names := repository.Names{Table: "reports", StudyID: "studyID", Text: "clean_report_text"}
	store := repository.NewPostgresStore(db, names, logger)
	svc := NewService(logger, store, nil, identity.NewMapper(nil, cfg.Identity, logger),
		resolve.NewResolver(cfg.Resolve, nil, logger), cfg)

	_, err = svc.ListStudies(context.Background(), "edema; DROP TABLE reports", "x", 1, 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidColumn)

	// The describe query was the only statement the store saw.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveStudyMetadataMapped(t *testing.T) {
	svc, _ := newSQLiteService(t)

	meta, err := svc.ResolveStudyMetadata(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, "R1", meta.StudyID)
	assert.Equal(t, "A1", meta.MappedStudyID)
	require.Len(t, meta.Rows, 2)
	assert.Equal(t, "A1", meta.Rows[0].Text("StudyInstanceUID"))
	assert.Equal(t, "I1", meta.Rows[0].Text("SOPInstanceUID"))
}

func TestResolveStudyMetadataFallsBackToOriginalID(t *testing.T) {
	svc, _ := newSQLiteService(t)

	// R2 maps to A9, which matches no metadata rows; the rows keyed by the
	// caller's own identifier must still be found.
	meta, err := svc.ResolveStudyMetadata(context.Background(), "R2")
	require.NoError(t, err)

	assert.Equal(t, "A9", meta.MappedStudyID)
	require.Len(t, meta.Rows, 1)
	assert.Equal(t, "I3", meta.Rows[0].Text("SOPInstanceUID"))
}

func TestResolveStudyMetadataUnknownID(t *testing.T) {
	svc, _ := newSQLiteService(t)

	meta, err := svc.ResolveStudyMetadata(context.Background(), "ZZ")
	require.NoError(t, err)

	assert.Empty(t, meta.MappedStudyID)
	assert.NotNil(t, meta.Rows)
	assert.Empty(t, meta.Rows)
}

func TestResolveStudyMetadataIdempotent(t *testing.T) {
	svc, _ := newSQLiteService(t)

	first, err := svc.ResolveStudyMetadata(context.Background(), "R1")
	require.NoError(t, err)
	second, err := svc.ResolveStudyMetadata(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMetadataSourceSelection(t *testing.T) {
	svc, dir := newSQLiteService(t)

	noUID := filepath.Join(dir, "no-uid.csv")
	writeTestFile(t, noUID, "SeriesInstanceUID,description\nS1,axial\n")

	t.Run("skips unreachable source", func(t *testing.T) {
		svc.sources = []source.Source{
			openTestSource(t, filepath.Join(dir, "absent.csv")),
			openTestSource(t, filepath.Join(dir, "metadata.csv")),
		}
		meta, err := svc.ResolveStudyMetadata(context.Background(), "R1")
		require.NoError(t, err)
		assert.Len(t, meta.Rows, 2)
	})

	t.Run("all unreachable", func(t *testing.T) {
		svc.sources = []source.Source{openTestSource(t, filepath.Join(dir, "absent.csv"))}
		_, err := svc.ResolveStudyMetadata(context.Background(), "R1")
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})

	t.Run("none configured", func(t *testing.T) {
		svc.sources = nil
		_, err := svc.ResolveStudyMetadata(context.Background(), "R1")
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})

	t.Run("reachable but no identifier column", func(t *testing.T) {
		svc.sources = []source.Source{openTestSource(t, noUID)}
		_, err := svc.ResolveStudyMetadata(context.Background(), "R1")
		assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
	})
}

func TestListDistinctStudyIDs(t *testing.T) {
	svc, _ := newSQLiteService(t)

	uids, err := svc.ListDistinctStudyIDs(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "StudyInstanceUID", uids.UIDColumn)
	assert.Equal(t, []string{"A1", "R2"}, uids.Items)

	limited, err := svc.ListDistinctStudyIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, limited.Items)
}

func TestResolveInstanceFile(t *testing.T) {
	svc, dir := newSQLiteService(t)

	writeTestFile(t, filepath.Join(dir, "dicoms", "I9.dcm"), "dicom bytes")

	byProbe, err := svc.ResolveInstanceFile(context.Background(), "I9")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dicoms", "I9.dcm"), byProbe)

	byMetadata, err := svc.ResolveInstanceFile(context.Background(), "I3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "archive", "i3.dcm"), byMetadata)

	_, err = svc.ResolveInstanceFile(context.Background(), "I404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAddStudy(t *testing.T) {
	svc, _ := newSQLiteService(t)

	require.NoError(t, svc.AddStudy(context.Background(), &domain.DemoStudy{ID: 1, Name: "pilot"}))

	err := svc.AddStudy(context.Background(), &domain.DemoStudy{ID: 1, Name: "again"})
	require.Error(t, err)
	assert.Equal(t, domain.CodeSourceUnavailable, domain.CodeFor(err))
}

func TestServiceHealth(t *testing.T) {
	svc, _ := newSQLiteService(t)
	assert.NoError(t, svc.Health(context.Background()))
}
