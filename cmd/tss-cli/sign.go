package main

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tss-cli/internal/curves"
	"tss-cli/internal/tss"
)

var (
	flagRoom    string
	flagMessage string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message together with t other signers",
	Args:  cobra.NoArgs,
	RunE:  runSign,
}

func init() {
	addKeyFlags(signCmd)
	addDerivationFlags(signCmd)
	signCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "signing room id shared by the signers")
	signCmd.Flags().StringVarP(&flagMessage, "message", "m", "", "message, hex or plain text")
	_ = signCmd.MarkFlagRequired("room")
	_ = signCmd.MarkFlagRequired("message")
}

// parseMessage decodes hex input and falls back to the raw text.
func parseMessage(s string) []byte {
	if raw, err := hex.DecodeString(s); err == nil {
		return raw
	}
	return []byte(s)
}

func runSign(cmd *cobra.Command, _ []string) error {
	bundle, err := loadBundle(cmd.Context())
	if err != nil {
		return err
	}
	curve, err := curves.ByName(bundle.Curve)
	if err != nil {
		return err
	}

	signer, err := tss.NewSigner(newClient(), bundle, flagRoom, flagPath, options())
	if err != nil {
		return err
	}
	message := parseMessage(flagMessage)
	sig, err := signer.Run(cmd.Context(), message)
	if err != nil {
		return err
	}

	out, err := signatureOutput(curve, sig, message)
	if err != nil {
		return err
	}
	return printJSON(out)
}

// signatureOutput is the printed form of a signature. On both curves the
// signature is a Schnorr (R, s) pair; r is the compressed encoding of R.
func signatureOutput(curve curves.Curve, sig *tss.Signature, message []byte) (map[string]interface{}, error) {
	raw, err := sig.Bytes(curve)
	if err != nil {
		return nil, errors.Wrap(err, "encode signature")
	}
	return map[string]interface{}{
		"status":    "signature_ready",
		"scheme":    "schnorr",
		"curve":     curve.Name,
		"r":         hex.EncodeToString(raw[:len(raw)-curves.ScalarLen]),
		"s":         sig.S.Text(16),
		"signature": hex.EncodeToString(raw),
		"x":         sig.PublicKey.X.Text(16),
		"y":         sig.PublicKey.Y.Text(16),
		"path":      sig.Path,
		"msg":       hex.EncodeToString(message),
	}, nil
}
