package sessionlog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fortify/core/apperr"
	"fortify/events"
	"fortify/model"
	"fortify/repository"
	"fortify/testsupport"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type fakeInvalidator struct {
	mu    sync.Mutex
	users []int64
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return f.err
}

type fakePublisher struct {
	mu   sync.Mutex
	evts []events.SessionLogged
	err  error
}

func (f *fakePublisher) PublishSessionLogged(_ context.Context, evt events.SessionLogged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evts = append(f.evts, evt)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type fakeArchive struct {
	key         string
	contentType string
	body        []byte
}

func (f *fakeArchive) Upload(_ context.Context, key, contentType string, body []byte) (string, time.Time, error) {
	f.key, f.contentType, f.body = key, contentType, body
	return "https://objects.example.com/" + key, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), nil
}

type fixture struct {
	svc       *Service
	gdb       *gorm.DB
	stats     *fakeInvalidator
	publisher *fakePublisher
	archive   *fakeArchive
	user      *model.User
	rudiment  *model.Rudiment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testsupport.NewDB(t)
	f := &fixture{
		gdb:       gdb,
		stats:     &fakeInvalidator{},
		publisher: &fakePublisher{},
		archive:   &fakeArchive{},
		user:      testsupport.CreateUser(t, gdb, "u@example.com"),
		rudiment:  testsupport.CreateStandardRudiment(t, gdb, "Flam Accent"),
	}
	f.svc = NewService(
		repository.NewGormSessionRepository(gdb),
		repository.NewGormRudimentRepository(gdb),
		f.stats, f.publisher, f.archive,
	)
	return f
}

func (f *fixture) at(ts time.Time) {
	f.svc.now = func() time.Time { return ts }
}

func TestLogSessionStampsDateAndNotifies(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 2, 14, 18, 30, 0, 0, time.FixedZone("CET", 3600))
	f.at(now)

	s, err := f.svc.LogSession(context.Background(), f.user.ID, LogSessionInput{RudimentID: f.rudiment.ID, Duration: 15, Tempo: 100, Quality: 4})
	require.NoError(t, err)
	require.NotZero(t, s.ID)
	require.True(t, s.Date.Equal(now))
	require.Equal(t, time.UTC, s.Date.Location())
	require.Equal(t, "Flam Accent", s.RudimentName())

	require.Equal(t, []int64{f.user.ID}, f.stats.users)
	require.Len(t, f.publisher.evts, 1)
	require.Equal(t, s.ID, f.publisher.evts[0].SessionID)
}

func TestLogSessionSideEffectFailuresAreIgnored(t *testing.T) {
	f := newFixture(t)
	f.stats.err = errors.New("redis down")
	f.publisher.err = errors.New("kafka down")

	_, err := f.svc.LogSession(context.Background(), f.user.ID, LogSessionInput{RudimentID: f.rudiment.ID, Duration: 5, Tempo: 60, Quality: 2})
	require.NoError(t, err)
}

func TestLogSessionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.LogSession(ctx, f.user.ID, LogSessionInput{RudimentID: f.rudiment.ID, Duration: 0, Tempo: 301, Quality: 5})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperr.KindValidation, appErr.Kind)
	fields := map[string]bool{}
	for _, fe := range appErr.Fields {
		fields[fe.Field] = true
	}
	require.Equal(t, map[string]bool{"duration": true, "tempo": true, "quality": true}, fields)

	_, err = f.svc.LogSession(ctx, f.user.ID, LogSessionInput{RudimentID: f.rudiment.ID, Duration: 1441, Tempo: 29, Quality: 0})
	require.ErrorIs(t, err, apperr.ErrValidation)

	for _, ok := range []LogSessionInput{
		{RudimentID: f.rudiment.ID, Duration: 1, Tempo: 30, Quality: 1},
		{RudimentID: f.rudiment.ID, Duration: 1440, Tempo: 300, Quality: 4},
	} {
		_, err = f.svc.LogSession(ctx, f.user.ID, ok)
		require.NoError(t, err)
	}

	_, err = f.svc.LogSession(ctx, f.user.ID, LogSessionInput{RudimentID: 999, Duration: 10, Tempo: 100, Quality: 3})
	require.ErrorIs(t, err, apperr.ErrInvalidReference)
	require.Len(t, f.publisher.evts, 2)
}

func TestLogSessionRejectsOtherUsersRudiment(t *testing.T) {
	f := newFixture(t)
	other := testsupport.CreateUser(t, f.gdb, "other@example.com")
	theirs := testsupport.CreateCustomRudiment(t, f.gdb, other.ID, "Private")

	_, err := f.svc.LogSession(context.Background(), f.user.ID, LogSessionInput{RudimentID: theirs.ID, Duration: 10, Tempo: 100, Quality: 3})
	require.ErrorIs(t, err, apperr.ErrInvalidReference)
}

func TestNormalizePage(t *testing.T) {
	page, size := NormalizePage(0, 0)
	require.Equal(t, 1, page)
	require.Equal(t, DefaultPageSize, size)

	page, size = NormalizePage(3, 1000)
	require.Equal(t, 3, page)
	require.Equal(t, MaxPageSize, size)
}

func TestListPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		f.at(base.Add(time.Duration(i) * time.Hour))
		_, err := f.svc.LogSession(ctx, f.user.ID, LogSessionInput{RudimentID: f.rudiment.ID, Duration: 10, Tempo: 60 + i, Quality: 3})
		require.NoError(t, err)
	}

	first, err := f.svc.List(ctx, f.user.ID, repository.SessionFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, first.Sessions, 20)
	require.Equal(t, Pagination{Page: 1, Limit: 20, Total: 25, TotalPages: 2}, first.Pagination)
	require.Equal(t, 84, first.Sessions[0].Tempo)

	second, err := f.svc.List(ctx, f.user.ID, repository.SessionFilter{}, 2, 20)
	require.NoError(t, err)
	require.Len(t, second.Sessions, 5)
	require.Equal(t, 60, second.Sessions[4].Tempo)

	empty, err := f.svc.List(ctx, f.user.ID+100, repository.SessionFilter{}, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, empty.Sessions)
	require.Zero(t, empty.Pagination.TotalPages)
}

func logAt(t *testing.T, f *fixture, ts time.Time, duration, tempo, quality int) {
	t.Helper()
	f.at(ts)
	_, err := f.svc.LogSession(context.Background(), f.user.ID, LogSessionInput{RudimentID: f.rudiment.ID, Duration: duration, Tempo: tempo, Quality: quality})
	require.NoError(t, err)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t)
	logAt(t, f, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 10, 90, 2)
	logAt(t, f, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), 20, 95, 4)

	file, err := f.svc.Export(context.Background(), f.user.ID, FormatCSV, repository.SessionFilter{})
	require.NoError(t, err)
	require.Equal(t, "text/csv", file.ContentType)
	require.True(t, strings.HasSuffix(file.Filename, ".csv"))

	rows, err := csv.NewReader(strings.NewReader(string(file.Body))).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		CSVHeader,
		{"2026-03-02T09:00:00Z", "Flam Accent", "20", "95", "4"},
		{"2026-03-01T09:00:00Z", "Flam Accent", "10", "90", "2"},
	}, rows)
}

func TestExportJSONAndYAML(t *testing.T) {
	f := newFixture(t)
	logAt(t, f, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 10, 90, 2)

	file, err := f.svc.Export(context.Background(), f.user.ID, FormatJSON, repository.SessionFilter{})
	require.NoError(t, err)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(file.Body, &records))
	require.Len(t, records, 1)
	require.Equal(t, "Flam Accent", records[0]["rudiment"])
	require.EqualValues(t, 90, records[0]["tempo"])
	require.Equal(t, "Okay", records[0]["rating"])

	file, err = f.svc.Export(context.Background(), f.user.ID, FormatYAML, repository.SessionFilter{})
	require.NoError(t, err)
	require.Equal(t, "application/yaml", file.ContentType)
	var yamlRecords []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(file.Body, &yamlRecords))
	require.Len(t, yamlRecords, 1)
	require.Equal(t, 10, yamlRecords[0]["duration"])
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, "json": FormatJSON, "yml": FormatYAML, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestArchiveExport(t *testing.T) {
	f := newFixture(t)
	logAt(t, f, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 10, 90, 2)

	archive, err := f.svc.ArchiveExport(context.Background(), f.user.ID, FormatJSON, repository.SessionFilter{})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(archive.Key, "exports/"))
	require.True(t, strings.HasSuffix(archive.Key, ".json"))
	require.Equal(t, f.archive.key, archive.Key)
	require.Equal(t, "application/json", f.archive.contentType)
	require.Contains(t, archive.URL, archive.Key)

	f.svc.archive = nil
	_, err = f.svc.ArchiveExport(context.Background(), f.user.ID, FormatCSV, repository.SessionFilter{})
	require.ErrorIs(t, err, ErrArchiveUnavailable)
}

func TestConsistencyHistory(t *testing.T) {
	f := newFixture(t)
	logAt(t, f, time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC), 20, 90, 3)
	logAt(t, f, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), 10, 90, 3)
	logAt(t, f, time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC), 15, 90, 3)
	// 00:30 on the 3rd in UTC, though still the 2nd in New York.
	logAt(t, f, time.Date(2026, 3, 2, 19, 30, 0, 0, time.FixedZone("EST", -5*3600)), 5, 90, 3)

	history, err := f.svc.ConsistencyHistory(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Equal(t, []model.DailyPractice{
		{Date: "2026-03-01", Count: 25},
		{Date: "2026-03-02", Count: 20},
		{Date: "2026-03-03", Count: 5},
	}, history)

	empty, err := f.svc.ConsistencyHistory(context.Background(), f.user.ID+1)
	require.NoError(t, err)
	require.Empty(t, empty)
}
