package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"tss-cli/internal/curves"
	"tss-cli/internal/hd"
)

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Print the group public key or a derived child key",
	Args:  cobra.NoArgs,
	RunE:  runPubkey,
}

func init() {
	addKeyFlags(pubkeyCmd)
	addDerivationFlags(pubkeyCmd)
}

func runPubkey(cmd *cobra.Command, _ []string) error {
	bundle, err := loadBundle(cmd.Context())
	if err != nil {
		return err
	}
	curve, err := curves.ByName(bundle.Curve)
	if err != nil {
		return err
	}
	group, err := bundle.GroupKey()
	if err != nil {
		return err
	}
	pub, _, err := hd.DeriveChild(curve, group, bundle.ChainCode, flagPath)
	if err != nil {
		return err
	}
	raw, err := curve.Bytes(pub)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"x":          pub.X().Text(16),
		"y":          pub.Y().Text(16),
		"public_key": hex.EncodeToString(raw),
		"path":       flagPath,
	})
}
