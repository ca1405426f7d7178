package main

import (
	"fmt"
	"time"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/citahub/appchain-go/pkg/appchain"
	"github.com/citahub/appchain-go/pkg/journal"
	"github.com/citahub/appchain-go/pkg/sign"
	"github.com/citahub/appchain-go/pkg/types"
)

func blockNumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block-number",
		Short: "Print the height of the latest block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			height, err := s.client.BlockNumber(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), height)
			return nil
		},
	}
}

func metadataCmd() *cobra.Command {
	var block string
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Print the chain metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := types.ParseBlockTag(block)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			meta, err := s.client.GetMetaData(cmd.Context(), tag)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), meta)
		},
	}
	cmd.Flags().StringVar(&block, "block", string(types.Latest), "block tag or number")
	return cmd
}

func balanceCmd() *cobra.Command {
	var block string
	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Print the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := sign.ParseAddress(args[0])
			if err != nil {
				return err
			}
			tag, err := types.ParseBlockTag(block)
			if err != nil {
				return err
			}
			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			balance, err := s.client.GetBalance(cmd.Context(), addr, tag)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&block, "block", string(types.Latest), "block tag or number")
	return cmd
}

func sendCmd() *cobra.Command {
	var (
		flags txFlags
		force bool
	)
	cmd := &cobra.Command{
		Use:   "send [envelope]",
		Short: "Submit a signed envelope, or build, sign and submit one from flags",
		Long: `Submit a signed envelope to the node.

Without an envelope argument a transaction is built from the flags. The chain
id, version and valid-until block are read from the node when not given.

With APPCHAIN_JOURNAL_PATH set every submission is recorded, and an envelope
that was already sent is refused unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			var opts []appchain.SendOption
			if force {
				opts = append(opts, appchain.Force())
			}

			var res *types.TransactionSendingResult
			if len(args) == 1 {
				res, err = s.client.SendRawTransaction(cmd.Context(), args[0], opts...)
			} else {
				key, kerr := flags.privateKey()
				if kerr != nil {
					return kerr
				}
				t, terr := flags.transaction(false)
				if terr != nil {
					return terr
				}
				opts = append(opts, appchain.WithSignOptions(flags.signOptions()...))
				res, err = s.client.SendTransaction(cmd.Context(), t, key, opts...)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "submit even if the journal has already recorded the envelope")
	return cmd
}

func journalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal [status...]",
		Short: "List recorded submissions, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return fmt.Errorf("no journal configured: set APPCHAIN_JOURNAL_PATH")
			}
			j, err := journal.Open(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			states := make([]journal.Status, len(args))
			for i, arg := range args {
				states[i] = journal.Status(arg)
			}
			subs, err := j.List(cmd.Context(), states...)
			if err != nil {
				return err
			}

			tbl := table.New("Hash", "Status", "Attempts", "Updated", "Error").WithWriter(cmd.OutOrStdout())
			for _, sub := range subs {
				tbl.AddRow(sub.Hash, sub.Status, sub.Attempts, sub.UpdatedAt.Format(time.RFC3339), sub.LastError)
			}
			tbl.Print()
			return nil
		},
	}
}
