package main

import (
	"github.com/spf13/cobra"

	"tss-cli/internal/curves"
	"tss-cli/internal/logger"
	"tss-cli/internal/tss"
)

var (
	flagThreshold    uint16
	flagParties      uint16
	flagPaillierBits int
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Run distributed key generation with the other parties",
	Args:  cobra.NoArgs,
	RunE:  runKeygen,
}

func init() {
	addKeyFlags(keygenCmd)
	keygenCmd.Flags().Uint16VarP(&flagThreshold, "threshold", "t", 1, "threshold t, any t+1 parties can sign")
	keygenCmd.Flags().Uint16VarP(&flagParties, "parties", "n", 3, "number of parties")
	keygenCmd.Flags().IntVar(&flagPaillierBits, "paillier-bits", tss.DefaultPaillierBits, "Paillier modulus size for ECDSA")
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	curve, err := curves.ByName(flagCurve)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}

	opts := options()
	opts.PaillierBits = flagPaillierBits
	kg, err := tss.NewKeygen(newClient(), curve, flagThreshold, flagParties, store, opts)
	if err != nil {
		return err
	}
	bundle, err := kg.Run(cmd.Context())
	if err != nil {
		return err
	}

	rec, err := bundle.Record()
	if err != nil {
		return err
	}
	logger.Log.Infof("Party %d holds a share of key %s", bundle.PartyOrdinal, rec.KeyID)
	return printJSON(map[string]interface{}{
		"key_id":     rec.KeyID,
		"party":      bundle.PartyOrdinal,
		"curve":      curve.Name,
		"public_key": rec.PublicKey,
	})
}
