package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"
	"github.com/yourusername/race-escrow/internal/database"
	"github.com/yourusername/race-escrow/internal/escrow"
	"github.com/yourusername/race-escrow/internal/models"
)

var (
	createFlags, joinFlags, submitFlags, settleFlags, claimFlags, showFlags raceFlags

	playerFlag    string
	fundAddress   string
	fundAmount    string
	finishTimeMs  uint64
	coinsFlag     uint64
	inputHashFlag string
	inputFileFlag string
	rawFlag       bool
)

func init() {
	for _, c := range []struct {
		cmd   *cobra.Command
		flags *raceFlags
	}{
		{createCmd, &createFlags},
		{joinCmd, &joinFlags},
		{submitCmd, &submitFlags},
		{settleCmd, &settleFlags},
		{claimCmd, &claimFlags},
		{showCmd, &showFlags},
	} {
		c.flags.register(c.cmd)
	}

	for _, cmd := range []*cobra.Command{createCmd, joinCmd, submitCmd, claimCmd} {
		cmd.Flags().StringVar(&playerFlag, "player", "", "Calling wallet public key")
		_ = cmd.MarkFlagRequired("player")
	}
	// Anyone may settle, so the caller is optional and only recorded in the audit log.
	settleCmd.Flags().StringVar(&playerFlag, "player", "", "Calling wallet public key (optional)")

	submitCmd.Flags().Uint64Var(&finishTimeMs, "finish-ms", 0, "Finish time in milliseconds")
	submitCmd.Flags().Uint64Var(&coinsFlag, "coins", 0, "Coins collected")
	submitCmd.Flags().StringVar(&inputHashFlag, "input-hash", "", "Input commitment as 64 hex characters")
	submitCmd.Flags().StringVar(&inputFileFlag, "input-file", "", "File whose SHA-256 becomes the input commitment")
	_ = submitCmd.MarkFlagRequired("finish-ms")

	showCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print the raw account data as base58")

	fundCmd.Flags().StringVar(&fundAddress, "address", "", "Wallet public key to credit")
	fundCmd.Flags().StringVar(&fundAmount, "amount", "", "Amount in SOL")
	_ = fundCmd.MarkFlagRequired("address")
	_ = fundCmd.MarkFlagRequired("amount")
}

// withRuntime opens the ledger for the duration of fn
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the ledger schema to PostgreSQL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.UsesPostgres() {
			return fmt.Errorf("migrate requires ledger.backend=postgres")
		}
		db, err := database.NewDB(cmd.Context(), &cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := database.Migrate(cmd.Context(), db, appLog)
		if err != nil {
			return err
		}
		fmt.Printf("Applied %d migration(s)\n", len(applied))
		return nil
	},
}

var fundCmd = &cobra.Command{
	Use:   "fund",
	Short: "Credit SOL to a wallet (development ledgers only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IsProduction() {
			return fmt.Errorf("fund is disabled in production")
		}
		address, err := parsePublicKey("address", fundAddress)
		if err != nil {
			return err
		}
		lamports, err := parseSOL("amount", fundAmount)
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.backend.Deposit(ctx, address, lamports); err != nil {
				return err
			}
			balance, err := rt.backend.Balance(ctx, address)
			if err != nil {
				return err
			}
			fmt.Printf("%s balance: %s SOL\n", address, models.LamportsToSOL(balance))
			return nil
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a race and escrow the creator's entry fee",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, player, err := keyAndPlayer(&createFlags)
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			addr, err := rt.service.CreateRace(ctx, key, player)
			if err != nil {
				return err
			}
			fmt.Printf("Race %q created at %s\n", key.RaceID, addr)
			return nil
		})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a waiting race as the second participant",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, player, err := keyAndPlayer(&joinFlags)
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.service.JoinRace(ctx, key, player); err != nil {
				return err
			}
			fmt.Printf("%s joined race %q\n", player, key.RaceID)
			return nil
		})
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a participant's race result",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, player, err := keyAndPlayer(&submitFlags)
		if err != nil {
			return err
		}
		commitment, err := parseCommitment(inputHashFlag, inputFileFlag)
		if err != nil {
			return err
		}
		result := models.RaceResult{FinishTimeMs: finishTimeMs, CoinsCollected: coinsFlag, InputHash: commitment}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.service.SubmitResult(ctx, key, player, result); err != nil {
				return err
			}
			fmt.Printf("Result submitted for %s: %d ms, %d coins\n", player, result.FinishTimeMs, result.CoinsCollected)
			return nil
		})
	},
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Settle a race once both results are in",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := settleFlags.key()
		if err != nil {
			return err
		}
		var caller solana.PublicKey
		if playerFlag != "" {
			if caller, err = parsePublicKey("player", playerFlag); err != nil {
				return err
			}
		}
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			winner, err := rt.service.SettleRace(ctx, key, caller)
			if err != nil {
				return err
			}
			fmt.Printf("Race %q settled, winner: %s\n", key.RaceID, winner)
			return nil
		})
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Withdraw the prize as the race winner",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, player, err := keyAndPlayer(&claimFlags)
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			paid, err := rt.service.ClaimPrize(ctx, key, player)
			if err != nil {
				return err
			}
			if paid == 0 {
				fmt.Println("Prize already claimed, nothing paid")
				return nil
			}
			fmt.Printf("Paid %s SOL to %s\n", models.LamportsToSOL(paid), player)
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a race record",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := showFlags.key()
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			addr, err := rt.program.Address(key)
			if err != nil {
				return err
			}
			if !rawFlag {
				race, err := rt.service.GetRaceAt(ctx, addr)
				if err != nil {
					return err
				}
				return printJSON(struct {
					Address solana.PublicKey `json:"address"`
					*models.Race
				}{addr, race})
			}

			return rt.backend.Atomic(ctx, func(ctx context.Context, tx escrow.Tx) error {
				acct, err := tx.Load(ctx, addr)
				if err != nil {
					return err
				}
				fmt.Println(base58.Encode(acct.Data))
				return nil
			})
		})
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Summarize every race held by the program",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			ov, err := rt.service.Overview(ctx)
			if err != nil {
				return err
			}
			return printJSON(ov)
		})
	},
}

func keyAndPlayer(f *raceFlags) (escrow.RaceKey, solana.PublicKey, error) {
	key, err := f.key()
	if err != nil {
		return escrow.RaceKey{}, solana.PublicKey{}, err
	}
	player, err := parsePublicKey("player", playerFlag)
	if err != nil {
		return escrow.RaceKey{}, solana.PublicKey{}, err
	}
	return key, player, nil
}
