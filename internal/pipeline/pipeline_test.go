package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleveniq/sfexport/pkg/config"
	"github.com/eleveniq/sfexport/pkg/drive"
	"github.com/eleveniq/sfexport/pkg/errors"
	"github.com/eleveniq/sfexport/pkg/extract"
	"github.com/eleveniq/sfexport/pkg/logger"
	"github.com/eleveniq/sfexport/pkg/retry"
	"github.com/eleveniq/sfexport/pkg/salesforce"
	"github.com/eleveniq/sfexport/pkg/stats"
	"github.com/eleveniq/sfexport/pkg/testutil"
)

// objectBehavior scripts one object's responses.
type objectBehavior struct {
	defs    []salesforce.FieldDefinition
	records []map[string]interface{}
	err     error
}

// contextTags are the log-scope values a query observed on its context.
type contextTags struct {
	runID  string
	object string
	stage  string
}

// scriptedSession serves canned responses per object.
type scriptedSession struct {
	objects map[string]objectBehavior

	mu   sync.Mutex
	tags []contextTags
}

func (s *scriptedSession) DescribeFields(_ context.Context, object string) ([]salesforce.FieldDefinition, error) {
	return s.objects[object].defs, nil
}

func (s *scriptedSession) Query(ctx context.Context, soql string) ([]map[string]interface{}, error) {
	runID, _ := ctx.Value(logger.RunIDKey).(string)
	object, _ := ctx.Value(logger.ObjectKey).(string)
	stage, _ := ctx.Value(logger.StageKey).(string)
	s.mu.Lock()
	s.tags = append(s.tags, contextTags{runID: runID, object: object, stage: stage})
	s.mu.Unlock()

	for name, b := range s.objects {
		if strings.HasSuffix(soql, " FROM "+name) {
			if b.err != nil {
				return nil, b.err
			}
			return b.records, nil
		}
	}
	return nil, nil
}

// recordingSyncer captures the synced path and returns a scripted result.
type recordingSyncer struct {
	paths  []string
	result *drive.Result
	err    error
}

func (s *recordingSyncer) Sync(_ context.Context, localPath string) (*drive.Result, error) {
	s.paths = append(s.paths, localPath)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testConfig(t *testing.T, objects ...string) *config.Config {
	t.Helper()

	creds := filepath.Join(t.TempDir(), "google.json")
	require.NoError(t, os.WriteFile(creds, []byte("{}"), 0o600))

	cfg := config.Default()
	cfg.Objects = objects
	cfg.StandardFields = []string{"Id", "Name"}
	cfg.Salesforce.Username = "pipeline@example.com"
	cfg.Salesforce.Password = "secret"
	cfg.Drive.CredentialsFile = creds
	cfg.Output.Dir = filepath.Join(t.TempDir(), "files")
	// Force the flat-text writer so assertions can read the output back.
	cfg.Output.RowLimit = 1
	cfg.Reliability.Concurrency = 1
	return cfg
}

func testPipeline(t *testing.T, cfg *config.Config, session salesforce.Session, syncer Syncer, opts Options) *Pipeline {
	t.Helper()

	policy := &retry.Policy{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	logger := testutil.TestLogger(t)
	extractor := extract.New(session, cfg.StandardFields, policy, logger)
	collector := stats.NewCollector(time.Now())
	return New(cfg, extractor, syncer, collector, logger, opts)
}

func twoObjectSession() *scriptedSession {
	return &scriptedSession{objects: map[string]objectBehavior{
		"Account": {
			defs: []salesforce.FieldDefinition{
				{QualifiedAPIName: "Id", Label: "Record ID"},
				{QualifiedAPIName: "Name", Label: "Account Name"},
			},
			records: []map[string]interface{}{
				{"Id": "a1", "Name": "ACME"},
				{"Id": "a2", "Name": "Globex"},
			},
		},
		"Contact": {
			defs: []salesforce.FieldDefinition{
				{QualifiedAPIName: "Id", Label: "Record ID"},
				{QualifiedAPIName: "Email__c", Label: "Email Address"},
			},
			records: []map[string]interface{}{
				{"Id": "c1", "Email__c": "a@example.com"},
			},
		},
	}}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunHappyPath(t *testing.T) {
	cfg := testConfig(t, "Account", "Contact")
	syncer := &recordingSyncer{result: &drive.Result{FileID: "f1", FolderID: "d1", Created: true}}

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	p := testPipeline(t, cfg, twoObjectSession(), syncer, Options{})
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, StateDone, p.State())
	assert.Empty(t, p.FailedStage())

	dataPath := filepath.Join(cfg.Output.Dir, "all_data.csv")
	require.Equal(t, []string{dataPath}, syncer.paths)

	rows := readCSV(t, dataPath)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"source_object", "Record ID", "Account Name", "Email Address"}, rows[0])

	// Rows follow the configured object order, not completion order.
	assert.Equal(t, []string{"Account", "a1", "ACME", ""}, rows[1])
	assert.Equal(t, []string{"Account", "a2", "Globex", ""}, rows[2])
	assert.Equal(t, []string{"Contact", "c1", "", "a@example.com"}, rows[3])
}

// Extraction queries must observe the run id, the object and the stage
// on their context so log lines and downstream calls share the scope.
func TestRunScopesExtractionContext(t *testing.T) {
	cfg := testConfig(t, "Account", "Contact")
	session := twoObjectSession()
	syncer := &recordingSyncer{result: &drive.Result{FileID: "f1", Created: true}}

	p := testPipeline(t, cfg, session, syncer, Options{})
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, session.tags, 2)
	assert.ElementsMatch(t, []string{"Account", "Contact"},
		[]string{session.tags[0].object, session.tags[1].object})
	for _, tags := range session.tags {
		assert.NotEmpty(t, tags.runID)
		assert.Equal(t, string(StateExtracting), tags.stage)
	}
	// One run, one id.
	assert.Equal(t, session.tags[0].runID, session.tags[1].runID)
}

func TestRunWritesStatisticsLog(t *testing.T) {
	cfg := testConfig(t, "Account", "Contact")
	syncer := &recordingSyncer{result: &drive.Result{FileID: "f1", Created: false}}

	p := testPipeline(t, cfg, twoObjectSession(), syncer, Options{})
	require.NoError(t, p.Run(context.Background()))

	rows := readCSV(t, filepath.Join(cfg.Output.Dir, cfg.Output.LogFileName))
	// Header, two extraction entries, one sync entry.
	require.Len(t, rows, 4)
	assert.Equal(t, "Account", rows[1][1])
	assert.Equal(t, "EXTRACTING", rows[1][2])
	assert.Equal(t, "success", rows[1][6])
	assert.Equal(t, "all_data.csv", rows[3][1])
	assert.Equal(t, "SYNCING", rows[3][2])
	assert.Equal(t, "updated f1", rows[3][7])
}

func TestRunSyncFailureKeepsLocalFile(t *testing.T) {
	cfg := testConfig(t, "Account")
	syncer := &recordingSyncer{err: errors.NewSyncError("ELEVENIQ/all_data.csv", errors.New(errors.ErrorTypeConnection, "upload refused"))}

	p := testPipeline(t, cfg, twoObjectSession(), syncer, Options{})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, StateSyncing, p.FailedStage())

	// The persisted file survives the failed upload.
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "all_data.csv"))

	rows := readCSV(t, filepath.Join(cfg.Output.Dir, cfg.Output.LogFileName))
	var foundSyncFailure bool
	for _, row := range rows[1:] {
		if row[2] == "SYNCING" && row[6] == "failed" {
			foundSyncFailure = true
		}
	}
	assert.True(t, foundSyncFailure)
}

func TestRunContinuesDegradedWhenOneObjectFails(t *testing.T) {
	cfg := testConfig(t, "Account", "Contact")

	session := twoObjectSession()
	broken := session.objects["Contact"]
	broken.err = errors.New(errors.ErrorTypeQuery, "malformed query")
	session.objects["Contact"] = broken

	syncer := &recordingSyncer{result: &drive.Result{FileID: "f1", Created: true}}
	p := testPipeline(t, cfg, session, syncer, Options{})

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, StateDone, p.State())

	rows := readCSV(t, filepath.Join(cfg.Output.Dir, "all_data.csv"))
	require.Len(t, rows, 3)
	assert.NotContains(t, rows[0], "Email Address")
	for _, row := range rows[1:] {
		assert.Equal(t, "Account", row[0])
	}
}

func TestRunFailFastAbortsOnFirstExhaustedObject(t *testing.T) {
	cfg := testConfig(t, "Account", "Contact")
	cfg.Reliability.FailFast = true

	session := twoObjectSession()
	broken := session.objects["Account"]
	broken.err = errors.New(errors.ErrorTypeQuery, "malformed query")
	session.objects["Account"] = broken

	p := testPipeline(t, cfg, session, &recordingSyncer{}, Options{})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, StateExtracting, p.FailedStage())
}

func TestRunAuthFailureAbortsWithoutFailFast(t *testing.T) {
	cfg := testConfig(t, "Account", "Contact")

	session := twoObjectSession()
	broken := session.objects["Account"]
	broken.err = errors.New(errors.ErrorTypeAuthentication, "session expired")
	session.objects["Account"] = broken

	p := testPipeline(t, cfg, session, &recordingSyncer{}, Options{})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateExtracting, p.FailedStage())
	assert.True(t, errors.HasType(err, errors.ErrorTypeAuthentication))
}

func TestRunFailsWhenNothingExtracted(t *testing.T) {
	cfg := testConfig(t, "Account", "Contact")

	session := twoObjectSession()
	for name, b := range session.objects {
		b.err = errors.New(errors.ErrorTypeQuery, "malformed query")
		session.objects[name] = b
	}

	p := testPipeline(t, cfg, session, &recordingSyncer{}, Options{})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, p.State())
	assert.Contains(t, err.Error(), "no object extracted successfully")
}

func TestRunDryRunSkipsSync(t *testing.T) {
	cfg := testConfig(t, "Account")
	syncer := &recordingSyncer{}

	p := testPipeline(t, cfg, twoObjectSession(), syncer, Options{DryRun: true})
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, StateDone, p.State())
	assert.Empty(t, syncer.paths)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "all_data.csv"))
}

func TestRunDryRunNeedsNoDriveCredentials(t *testing.T) {
	cfg := testConfig(t, "Account")
	cfg.Drive.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	p := testPipeline(t, cfg, twoObjectSession(), &recordingSyncer{}, Options{DryRun: true})
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, StateDone, p.State())
}

func TestRunInvalidConfigFailsInInit(t *testing.T) {
	cfg := testConfig(t, "Account")
	cfg.Salesforce.Username = ""

	p := testPipeline(t, cfg, twoObjectSession(), &recordingSyncer{}, Options{})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateInit, p.FailedStage())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
