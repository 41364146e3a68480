package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"fairpay/backend/services/session-service/internal/clients"
)

func newConnectCmd(opts *options) *cobra.Command {
	var (
		tokenOnly  bool
		account    string
		signature  string
		privateKey string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect the wallet and obtain a session token",
		Long: "Connect the wallet. Servers running with auth need a signed sign-in challenge: pass --account and " +
			"--signature obtained through fairpayctl challenge, or --private-key to sign locally.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			var proof *clients.SignIn
			switch {
			case privateKey != "":
				key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
				if err != nil {
					return fmt.Errorf("parse private key: %w", err)
				}
				addr := crypto.PubkeyToAddress(key.PublicKey).Hex()
				ch, err := c.Challenge(cmd.Context(), addr)
				if err != nil {
					return err
				}
				sig, err := crypto.Sign(accounts.TextHash([]byte(ch.Message)), key)
				if err != nil {
					return fmt.Errorf("sign challenge: %w", err)
				}
				sig[crypto.RecoveryIDOffset] += 27
				proof = &clients.SignIn{Account: addr, Signature: hexutil.Encode(sig)}
			case signature != "":
				if account == "" {
					return errors.New("--account is required with --signature")
				}
				proof = &clients.SignIn{Account: account, Signature: signature}
			}

			res, err := c.ConnectWallet(cmd.Context(), proof)
			if err != nil {
				return err
			}
			if tokenOnly {
				fmt.Fprintln(cmd.OutOrStdout(), res.Token)
				return nil
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().BoolVar(&tokenOnly, "token-only", false, "Print only the issued token, for use in FAIRPAY_TOKEN")
	cmd.Flags().StringVar(&account, "account", "", "Account that signed the challenge")
	cmd.Flags().StringVar(&signature, "signature", "", "personal_sign signature over the challenge message")
	cmd.Flags().StringVar(&privateKey, "private-key", os.Getenv("FAIRPAY_PRIVATE_KEY"), "Hex private key used to request and sign a challenge")

	return cmd
}

func newChallengeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "challenge <account>",
		Short: "Request the sign-in message for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := opts.client().Challenge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, ch)
		},
	}
}

func newWalletCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show wallet connection state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.client().Wallet(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}
