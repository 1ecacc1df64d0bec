package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/ledger"
	"github.com/yourusername/race-escrow/internal/models"
	"github.com/yourusername/race-escrow/internal/service"
)

var (
	simFee      string
	simFinishP1 uint64
	simFinishP2 uint64
	simCoinsP1  uint64
	simCoinsP2  uint64
)

func init() {
	simulateCmd.Flags().StringVar(&simFee, "fee", "0.000001", "Entry fee per participant in SOL")
	simulateCmd.Flags().Uint64Var(&simFinishP1, "p1-finish-ms", 45000, "Participant one finish time")
	simulateCmd.Flags().Uint64Var(&simFinishP2, "p2-finish-ms", 50000, "Participant two finish time")
	simulateCmd.Flags().Uint64Var(&simCoinsP1, "p1-coins", 10, "Participant one coins")
	simulateCmd.Flags().Uint64Var(&simCoinsP2, "p2-coins", 20, "Participant two coins")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one full race on a throwaway in-memory ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		fee, err := parseSOL("fee", simFee)
		if err != nil {
			return err
		}
		return simulate(cmd.Context(), fee)
	},
}

func simulate(ctx context.Context, fee uint64) error {
	l := ledger.NewMemoryLedger()
	programID, err := cfg.ProgramID()
	if err != nil {
		return err
	}
	svc := service.NewRaceService(
		escrow.NewProgram(programID, l, escrow.WithSelfJoinGuard(cfg.Program.RejectSelfJoin)),
		l,
		service.NewRaceCache(cfg.CacheTTL(), cfg.Cache.MaxSize),
		appLog,
		cfg.StallAfter(),
	)

	p1 := solana.NewWallet().PublicKey()
	p2 := solana.NewWallet().PublicKey()
	for _, p := range []solana.PublicKey{p1, p2} {
		if err := l.Deposit(ctx, p, 10*fee); err != nil {
			return err
		}
	}

	key := escrow.RaceKey{
		RaceID:    fmt.Sprintf("sim-%d", time.Now().UnixNano()),
		TokenMint: solana.MustPublicKeyFromBase58(nativeMint),
		EntryFee:  fee,
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"create", func() error { _, err := svc.CreateRace(ctx, key, p1); return err }},
		{"join", func() error { return svc.JoinRace(ctx, key, p2) }},
		{"submit p1", func() error {
			return svc.SubmitResult(ctx, key, p1, models.RaceResult{FinishTimeMs: simFinishP1, CoinsCollected: simCoinsP1})
		}},
		{"submit p2", func() error {
			return svc.SubmitResult(ctx, key, p2, models.RaceResult{FinishTimeMs: simFinishP2, CoinsCollected: simCoinsP2})
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	winner, err := svc.SettleRace(ctx, key, p1)
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	paid, err := svc.ClaimPrize(ctx, key, winner)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}

	fmt.Printf("Participant one: %s\nParticipant two: %s\n", p1, p2)
	fmt.Printf("Winner: %s, paid %s SOL\n", winner, models.LamportsToSOL(paid))
	for _, p := range []solana.PublicKey{p1, p2} {
		balance, err := l.Balance(ctx, p)
		if err != nil {
			return err
		}
		net := models.LamportsToSOL(balance).Sub(models.LamportsToSOL(10 * fee))
		fmt.Printf("  %s net %s SOL\n", p, net)
	}
	return nil
}
