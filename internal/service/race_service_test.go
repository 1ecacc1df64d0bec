package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/metrics"
	"github.com/yourusername/race-escrow/internal/models"
)

// MockEscrowProgram mocks the race escrow program
type MockEscrowProgram struct {
	mock.Mock
}

func (m *MockEscrowProgram) ID() solana.PublicKey {
	return m.Called().Get(0).(solana.PublicKey)
}

func (m *MockEscrowProgram) Address(key escrow.RaceKey) (solana.PublicKey, error) {
	args := m.Called(key)
	return args.Get(0).(solana.PublicKey), args.Error(1)
}

func (m *MockEscrowProgram) CreateRace(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) (solana.PublicKey, error) {
	args := m.Called(ctx, key, player)
	return args.Get(0).(solana.PublicKey), args.Error(1)
}

func (m *MockEscrowProgram) JoinRace(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) error {
	return m.Called(ctx, key, player).Error(0)
}

func (m *MockEscrowProgram) SubmitResult(ctx context.Context, key escrow.RaceKey, player solana.PublicKey, result models.RaceResult) error {
	return m.Called(ctx, key, player, result).Error(0)
}

func (m *MockEscrowProgram) SettleRace(ctx context.Context, key escrow.RaceKey) (solana.PublicKey, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(solana.PublicKey), args.Error(1)
}

func (m *MockEscrowProgram) ClaimPrize(ctx context.Context, key escrow.RaceKey, player solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, key, player)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockEscrowProgram) RaceAt(ctx context.Context, address solana.PublicKey) (*models.Race, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Race), args.Error(1)
}

func pubkey(b byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{b}, 32))
}

var (
	raceAddr = pubkey(0xcc)
	player1  = pubkey(1)
	player2  = pubkey(2)
	testKey  = escrow.RaceKey{RaceID: "race-001", TokenMint: pubkey(0xbb), EntryFee: 1000}
)

func newMockedService(t *testing.T) (*RaceService, *MockEscrowProgram, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	program := new(MockEscrowProgram)
	program.On("Address", testKey).Return(raceAddr, nil).Maybe()

	svc := NewRaceService(program, nil, NewRaceCache(time.Minute, 10), log, time.Hour)
	return svc, program, hook
}

func auditEntries(hook *test.Hook, msg string) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == msg && e.Data["component"] == "audit" {
			out = append(out, e)
		}
	}
	return out
}

func TestRaceServiceCreateRace(t *testing.T) {
	metrics.InitRegistry()
	svc, program, hook := newMockedService(t)
	ctx := context.Background()
	program.On("CreateRace", ctx, testKey, player1).Return(raceAddr, nil)

	before := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(OpCreate, "ok"))
	addr, err := svc.CreateRace(ctx, testKey, player1)

	require.NoError(t, err)
	assert.Equal(t, raceAddr, addr)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(OpCreate, "ok")))

	entries := auditEntries(hook, "Race created")
	require.Len(t, entries, 1)
	assert.Equal(t, raceAddr.String(), entries[0].Data["race_address"])
	assert.NotEmpty(t, entries[0].Data["op_id"])
	program.AssertExpectations(t)
}

func TestRaceServiceRejectedOperation(t *testing.T) {
	metrics.InitRegistry()
	svc, program, hook := newMockedService(t)
	ctx := context.Background()
	rejection := fmt.Errorf("join race %q: %w", testKey.RaceID, escrow.ErrAlreadyJoined)
	program.On("JoinRace", ctx, testKey, player2).Return(rejection)

	before := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(OpJoin, "AlreadyJoined"))
	err := svc.JoinRace(ctx, testKey, player2)

	require.ErrorIs(t, err, escrow.ErrAlreadyJoined)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(OpJoin, "AlreadyJoined")))

	entries := auditEntries(hook, "Operation rejected")
	require.Len(t, entries, 1)
	assert.Equal(t, "AlreadyJoined", entries[0].Data["error_code"])
	assert.Equal(t, OpJoin, entries[0].Data["op"])
	assert.Empty(t, auditEntries(hook, "Player joined race"))
}

func TestRaceServiceInternalErrorLogged(t *testing.T) {
	svc, program, hook := newMockedService(t)
	ctx := context.Background()
	program.On("SettleRace", ctx, testKey).Return(solana.PublicKey{}, errors.New("disk on fire"))

	_, err := svc.SettleRace(ctx, testKey, player1)
	require.Error(t, err)

	var sawError bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "Escrow operation failed" {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestRaceServiceClaimRecordsPrize(t *testing.T) {
	metrics.InitRegistry()
	svc, program, hook := newMockedService(t)
	ctx := context.Background()
	program.On("ClaimPrize", ctx, testKey, player1).Return(uint64(2000), nil).Once()
	program.On("ClaimPrize", ctx, testKey, player1).Return(uint64(0), nil).Once()

	before := testutil.ToFloat64(metrics.PrizesPaidLamportsTotal)

	paid, err := svc.ClaimPrize(ctx, testKey, player1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), paid)

	paid, err = svc.ClaimPrize(ctx, testKey, player1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), paid)

	assert.Equal(t, before+2000, testutil.ToFloat64(metrics.PrizesPaidLamportsTotal))
	assert.Len(t, auditEntries(hook, "Prize claimed"), 1)
	assert.Len(t, auditEntries(hook, "Prize already claimed, nothing paid"), 1)
}

func TestRaceServiceCachesReadsAndInvalidatesOnWrite(t *testing.T) {
	svc, program, _ := newMockedService(t)
	ctx := context.Background()

	waiting := &models.Race{RaceID: testKey.RaceID, ParticipantOne: player1, Status: models.RaceStatusWaiting}
	active := waiting.Clone()
	active.ParticipantTwo = &player2
	active.Status = models.RaceStatusActive

	program.On("RaceAt", ctx, raceAddr).Return(waiting, nil).Once()
	program.On("RaceAt", ctx, raceAddr).Return(active, nil).Once()
	program.On("JoinRace", ctx, testKey, player2).Return(nil)

	first, err := svc.GetRace(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, models.RaceStatusWaiting, first.Status)

	// Mutating a returned record does not leak into the cache
	first.Status = models.RaceStatusSettled
	cached, err := svc.GetRace(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, models.RaceStatusWaiting, cached.Status)

	require.NoError(t, svc.JoinRace(ctx, testKey, player2))

	fresh, err := svc.GetRace(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, models.RaceStatusActive, fresh.Status)

	program.AssertNumberOfCalls(t, "RaceAt", 2)
	hits, misses, _ := svc.cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestRaceServiceDoesNotCacheLoadOverlappingWrite(t *testing.T) {
	svc, program, _ := newMockedService(t)
	ctx := context.Background()

	waiting := &models.Race{RaceID: testKey.RaceID, ParticipantOne: player1, Status: models.RaceStatusWaiting}
	active := waiting.Clone()
	active.ParticipantTwo = &player2
	active.Status = models.RaceStatusActive

	program.On("JoinRace", ctx, testKey, player2).Return(nil)
	// The join commits while the first load is in flight; that load still
	// returns the record as it was before the join.
	program.On("RaceAt", ctx, raceAddr).Run(func(mock.Arguments) {
		require.NoError(t, svc.JoinRace(ctx, testKey, player2))
	}).Return(waiting, nil).Once()
	program.On("RaceAt", ctx, raceAddr).Return(active, nil).Once()

	first, err := svc.GetRace(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, models.RaceStatusWaiting, first.Status)
	assert.Equal(t, 0, svc.cache.ItemCount())

	second, err := svc.GetRace(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, models.RaceStatusActive, second.Status)
	program.AssertNumberOfCalls(t, "RaceAt", 2)
}

func TestRaceServiceSettleWithoutCaller(t *testing.T) {
	svc, program, hook := newMockedService(t)
	ctx := context.Background()
	program.On("SettleRace", ctx, testKey).Return(player1, nil)

	winner, err := svc.SettleRace(ctx, testKey, solana.PublicKey{})
	require.NoError(t, err)
	assert.Equal(t, player1, winner)

	entries := auditEntries(hook, "Race settled")
	require.Len(t, entries, 1)
	assert.Equal(t, "", entries[0].Data["caller"])
	assert.Equal(t, player1.String(), entries[0].Data["winner"])
}

func TestRaceCacheSetIfUnchanged(t *testing.T) {
	rc := NewRaceCache(time.Minute, 10)
	addr := pubkey(7)
	race := &models.Race{RaceID: "r"}

	gen := rc.Generation(addr)
	rc.Invalidate(addr)
	assert.False(t, rc.SetIfUnchanged(addr, gen, race))
	assert.Nil(t, rc.Get(addr))

	gen = rc.Generation(addr)
	assert.True(t, rc.SetIfUnchanged(addr, gen, race))
	require.NotNil(t, rc.Get(addr))
}

func TestRaceCacheDecoded(t *testing.T) {
	rc := NewRaceCache(time.Minute, 10)
	addr := pubkey(8)
	data := []byte{1, 2, 3}

	assert.Nil(t, rc.Decoded(addr, data))
	rc.SetDecoded(addr, data, &models.Race{RaceID: "r"})

	got := rc.Decoded(addr, data)
	require.NotNil(t, got)
	assert.Equal(t, "r", got.RaceID)

	// Writes do not evict decodes; changed data does
	rc.Invalidate(addr)
	assert.NotNil(t, rc.Decoded(addr, data))
	assert.Nil(t, rc.Decoded(addr, []byte{1, 2, 4}))

	hits, misses, _ := rc.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestRaceServiceGetRaceNotFound(t *testing.T) {
	svc, program, _ := newMockedService(t)
	ctx := context.Background()
	program.On("RaceAt", ctx, raceAddr).Return(nil, escrow.ErrAccountNotFound)

	_, err := svc.GetRace(ctx, testKey)
	assert.ErrorIs(t, err, escrow.ErrAccountNotFound)
	assert.Equal(t, 0, svc.cache.ItemCount())
}

func TestRaceCacheMaxSize(t *testing.T) {
	rc := NewRaceCache(time.Minute, 2)
	for i := byte(0); i < 3; i++ {
		rc.Set(pubkey(i), &models.Race{RaceID: "r"})
	}
	assert.Equal(t, 2, rc.ItemCount())
	assert.Nil(t, rc.Get(pubkey(2)))

	rc.Clear()
	hits, misses, ratio := rc.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
	assert.Zero(t, ratio)
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
