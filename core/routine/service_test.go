package routine

import (
	"context"
	"encoding/json"
	"testing"

	"fortify/core/apperr"
	"fortify/core/sessionlog"
	"fortify/core/tempo"
	"fortify/model"
	"fortify/repository"
	"fortify/testsupport"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	gdb      *gorm.DB
	svc      *Service
	engine   *tempo.Engine
	sessions *sessionlog.Service
	alice    *model.User
	bob      *model.User
	flam     *model.Rudiment
	roll     *model.Rudiment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testsupport.NewDB(t)
	rudiments := repository.NewGormRudimentRepository(gdb)
	sessionRepo := repository.NewGormSessionRepository(gdb)
	engine := tempo.NewEngine(rudiments, sessionRepo, 0)
	return &fixture{
		gdb:      gdb,
		svc:      NewService(repository.NewGormRoutineRepository(gdb), rudiments, engine),
		engine:   engine,
		sessions: sessionlog.NewService(sessionRepo, rudiments, nil, nil, nil),
		alice:    testsupport.CreateUser(t, gdb, "alice@example.com"),
		bob:      testsupport.CreateUser(t, gdb, "bob@example.com"),
		flam:     testsupport.CreateStandardRudiment(t, gdb, "Flam"),
		roll:     testsupport.CreateStandardRudiment(t, gdb, "Double Stroke Open Roll"),
	}
}

func decodeInput(t *testing.T, body string) RoutineInput {
	t.Helper()
	var in RoutineInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func TestCreateAppliesDefaultsAndOrder(t *testing.T) {
	f := newFixture(t)
	in := decodeInput(t, `{
		"name": " Warmup ",
		"items": [
			{"rudimentId": `+itoa(f.flam.ID)+`, "duration": "5"},
			{"rudimentId": "`+itoa(f.roll.ID)+`", "duration": 3, "tempoMode": "smart", "targetTempo": "80", "restDuration": 0},
			{"rudimentId": `+itoa(f.flam.ID)+`, "duration": 2, "restDuration": "30"}
		]
	}`)

	routine, err := f.svc.Create(context.Background(), f.alice.ID, in)
	require.NoError(t, err)
	require.Equal(t, "Warmup", routine.Name)
	require.Nil(t, routine.Description)
	require.Len(t, routine.Items, 3)

	first := routine.Items[0]
	require.Equal(t, 0, first.Position)
	require.Equal(t, 5, first.Duration)
	require.Equal(t, model.TempoModeManual, first.TempoMode)
	require.Equal(t, 60, first.TargetTempo)
	require.Equal(t, 0, first.RestDuration)
	require.Equal(t, "Flam", first.Rudiment.Name)

	require.Equal(t, model.TempoModeSmart, routine.Items[1].TempoMode)
	require.Equal(t, 80, routine.Items[1].TargetTempo)
	require.Equal(t, 0, routine.Items[1].RestDuration)
	require.Equal(t, 2, routine.Items[2].Position)
	require.Equal(t, 30, routine.Items[2].RestDuration)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.alice.ID, RoutineInput{Name: "Empty"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	long := make([]byte, model.MaxRoutineNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	in := decodeInput(t, `{"items":[{"rudimentId":"x","duration":"ten","targetTempo":0,"restDuration":-1,"tempoMode":"fast"}]}`)
	in.Name = string(long)
	_, err = f.svc.Create(ctx, f.alice.ID, in)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	got := map[string]bool{}
	for _, fe := range appErr.Fields {
		got[fe.Field] = true
	}
	require.Equal(t, map[string]bool{
		"name":                  true,
		"items[0].rudimentId":   true,
		"items[0].duration":     true,
		"items[0].targetTempo":  true,
		"items[0].restDuration": true,
		"items[0].tempoMode":    true,
	}, got)
}

func TestCreateRejectsInvisibleRudiments(t *testing.T) {
	f := newFixture(t)
	private := testsupport.CreateCustomRudiment(t, f.gdb, f.bob.ID, "Bob's lick")

	for _, id := range []int64{private.ID, 424242} {
		_, err := f.svc.Create(context.Background(), f.alice.ID, RoutineInput{
			Name:  "Borrowed",
			Items: []ItemInput{{RudimentID: Int(int(id)), Duration: Int(5)}},
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
	}

	var count int64
	require.NoError(t, f.gdb.Model(&model.Routine{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestOwnershipChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	routine, err := f.svc.Create(ctx, f.alice.ID, RoutineInput{Name: "Mine", Items: []ItemInput{{RudimentID: Int(int(f.flam.ID)), Duration: Int(5)}}})
	require.NoError(t, err)

	_, err = f.svc.GetByID(ctx, routine.ID, f.bob.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	_, err = f.svc.GetByID(ctx, routine.ID+100, f.alice.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	name := "Stolen"
	_, err = f.svc.Update(ctx, routine.ID, RoutinePatch{Name: &name}, f.bob.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	_, err = f.svc.ResolveSmartTempos(ctx, routine.ID, f.bob.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	require.ErrorIs(t, f.svc.Delete(ctx, routine.ID, f.bob.ID), apperr.ErrAuthorization)
	require.ErrorIs(t, f.svc.Delete(ctx, routine.ID+100, f.alice.ID), apperr.ErrNotFound)

	list, err := f.svc.GetAll(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, f.svc.Delete(ctx, routine.ID, f.alice.ID))
	_, err = f.svc.GetByID(ctx, routine.ID, f.alice.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateReplacesItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	desc := "before"
	routine, err := f.svc.Create(ctx, f.alice.ID, RoutineInput{
		Name:        "Long",
		Description: &desc,
		Items: []ItemInput{
			{RudimentID: Int(int(f.flam.ID)), Duration: Int(5)},
			{RudimentID: Int(int(f.roll.ID)), Duration: Int(5)},
			{RudimentID: Int(int(f.flam.ID)), Duration: Int(5)},
		},
	})
	require.NoError(t, err)

	replacement := []ItemInput{{RudimentID: Int(int(f.roll.ID)), Duration: Int(7), TempoMode: "SMART"}}
	empty := ""
	updated, err := f.svc.Update(ctx, routine.ID, RoutinePatch{Description: &empty, Items: &replacement}, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, "Long", updated.Name)
	require.Nil(t, updated.Description)
	require.Len(t, updated.Items, 1)
	require.Equal(t, 0, updated.Items[0].Position)
	require.Equal(t, 7, updated.Items[0].Duration)

	var count int64
	require.NoError(t, f.gdb.Model(&model.RoutineItem{}).Where("routine_id = ?", routine.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	name := "Renamed"
	updated, err = f.svc.Update(ctx, routine.ID, RoutinePatch{Name: &name}, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Len(t, updated.Items, 1, "omitting items keeps them")

	none := []ItemInput{}
	_, err = f.svc.Update(ctx, routine.ID, RoutinePatch{Items: &none}, f.alice.ID)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResolveSmartTemposEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.LogSession(ctx, f.alice.ID, sessionlog.LogSessionInput{RudimentID: f.flam.ID, Duration: 10, Tempo: 100, Quality: 4})
	require.NoError(t, err)

	suggested, err := f.engine.SuggestTempo(ctx, f.flam.ID, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 105, suggested)

	routine, err := f.svc.Create(ctx, f.alice.ID, RoutineInput{
		Name: "Smart",
		Items: []ItemInput{
			{RudimentID: Int(int(f.flam.ID)), Duration: Int(5), TempoMode: "SMART"},
			{RudimentID: Int(int(f.roll.ID)), Duration: Int(5), TempoMode: "SMART"},
			{RudimentID: Int(int(f.flam.ID)), Duration: Int(5), TargetTempo: Int(70)},
		},
	})
	require.NoError(t, err)

	resolved, err := f.svc.ResolveSmartTempos(ctx, routine.ID, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 105, resolved.Items[0].TargetTempo)
	require.Equal(t, 60, resolved.Items[1].TargetTempo, "no history means cold start")
	require.Equal(t, 70, resolved.Items[2].TargetTempo, "manual items are untouched")

	stored, err := f.svc.GetByID(ctx, routine.ID, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 60, stored.Items[0].TargetTempo)
}

func itoa(id int64) string {
	out, _ := json.Marshal(id)
	return string(out)
}
