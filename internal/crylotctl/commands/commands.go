// Package commands implementa o crylotctl, cliente de linha de comando da API
// do crylot-service.
package commands

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/radieske/crylot/internal/shared/units"
)

// RootCmd monta a árvore de comandos
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crylotctl",
		Short:         "crylot contract client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("api", "http://localhost:8083", "crylot-service base url")
	cmd.PersistentFlags().String("from", "", "caller address (X-Caller-Address), for direct calls to crylot-service")
	cmd.PersistentFlags().String("key", "", "hex private key; signs requests for the api-gateway and implies --from")

	cmd.AddCommand(
		BoundsCmd(),
		BetCmd(),
		AdminCmd(),
		FundCmd(),
		BalanceCmd(),
		RetryPayoutCmd(),
	)
	return cmd
}

// amountBody aceita "0.01" (ether) ou "10000000000000000wei"
func amountBody(s string) (map[string]string, error) {
	if v, ok := strings.CutSuffix(s, "wei"); ok {
		if _, err := units.ParseWei(v); err != nil {
			return nil, err
		}
		return map[string]string{"value_wei": v}, nil
	}
	wei, err := units.ParseEther(s)
	if err != nil {
		return nil, err
	}
	return map[string]string{"value_wei": wei.String()}, nil
}

func requireFrom(cmd *cobra.Command) error {
	if k, _ := cmd.Flags().GetString("key"); k != "" {
		return nil
	}
	from, _ := cmd.Flags().GetString("from")
	if !common.IsHexAddress(from) {
		return errors.New("--from or --key is required")
	}
	return nil
}

// do monta o apiCtx e executa a chamada
func do(cmd *cobra.Command, method, path string, body any) error {
	a, err := newAPICtx(cmd)
	if err != nil {
		return err
	}
	return a.call(cmd, method, path, body)
}

func BoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bounds",
		Short: "Show min and max bet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(cmd, http.MethodGet, "/v1/bounds", nil)
		},
	}
	cmd.AddCommand(setBoundCmd("set-min", "/v1/bounds/min"), setBoundCmd("set-max", "/v1/bounds/max"))
	return cmd
}

func setBoundCmd(use, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <amount>",
		Short: "Change the bet bound (admin). Amount in ether, or with a wei suffix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFrom(cmd); err != nil {
				return err
			}
			body, err := amountBody(args[0])
			if err != nil {
				return err
			}
			return do(cmd, http.MethodPut, path, body)
		},
	}
}

func BetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bet <guess> <amount>",
		Short: "Bet on a number from 1 to 100",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFrom(cmd); err != nil {
				return err
			}
			guess, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.Wrap(err, "guess")
			}
			body, err := amountBody(args[1])
			if err != nil {
				return err
			}
			return do(cmd, http.MethodPost, "/v1/bets", map[string]any{
				"guess":     guess,
				"value_wei": body["value_wei"],
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status <request-id>",
		Short: "Show a pending or resolved bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(cmd, http.MethodGet, "/v1/bets/"+args[0], nil)
		},
	})
	return cmd
}

func AdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin role management",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "check <address>",
			Short: "Tell whether the address is an admin",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return do(cmd, http.MethodGet, "/v1/admins/"+args[0], nil)
			},
		},
		&cobra.Command{
			Use:   "grant <address>",
			Short: "Grant the admin role",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requireFrom(cmd); err != nil {
					return err
				}
				return do(cmd, http.MethodPost, "/v1/admins", map[string]string{"address": args[0]})
			},
		},
		&cobra.Command{
			Use:   "revoke <address>",
			Short: "Revoke the admin role",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requireFrom(cmd); err != nil {
					return err
				}
				return do(cmd, http.MethodDelete, "/v1/admins/"+args[0], nil)
			},
		},
	)
	return cmd
}

func FundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <amount>",
		Short: "Add funds to the house balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFrom(cmd); err != nil {
				return err
			}
			body, err := amountBody(args[0])
			if err != nil {
				return err
			}
			return do(cmd, http.MethodPost, "/v1/fund", body)
		},
	}
}

func BalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the house balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return do(cmd, http.MethodGet, "/v1/balance", nil)
		},
	}
}

func RetryPayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-payout <request-id>",
		Short: "Retry a failed payout (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFrom(cmd); err != nil {
				return err
			}
			return do(cmd, http.MethodPost, "/v1/payouts/"+args[0]+"/retry", nil)
		},
	}
}
