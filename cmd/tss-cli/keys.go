package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tss-cli/internal/network"
	"tss-cli/internal/storage"
	"tss-cli/internal/tss"
)

// Flags shared by the commands that use a key share.
var (
	flagCurve     string
	flagKeysFile  string
	flagDB        bool
	flagKeyID     string
	flagParty     uint16
	flagChainCode string
	flagPath      string
)

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagCurve, "curve", "ECDSA", "curve of the key: ECDSA (secp256k1) or EDDSA (edwards25519)")
	cmd.Flags().StringVarP(&flagKeysFile, "keys", "k", "keys.store", "keys file")
	cmd.Flags().BoolVar(&flagDB, "db", false, "use the configured database instead of a keys file")
	cmd.Flags().StringVar(&flagKeyID, "key-id", "", "key id, with --db")
	cmd.Flags().Uint16Var(&flagParty, "party", 0, "party ordinal of the share, with --db")
}

func addDerivationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagPath, "path", "p", "", "derivation path, e.g. m/0/1")
	cmd.Flags().StringVar(&flagChainCode, "chain-code", "", "hex chain code overriding the stored one")
}

func openStore() (storage.Store, error) {
	if !flagDB {
		return storage.NewFileStore(flagKeysFile), nil
	}
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	return storage.NewDBStore(db), nil
}

func loadBundle(ctx context.Context) (*tss.KeyShareBundle, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	if flagDB && (flagKeyID == "" || flagParty == 0) {
		return nil, errors.New("--db needs --key-id and --party")
	}
	rec, err := store.LoadKeyShare(ctx, flagKeyID, flagParty)
	if err != nil {
		return nil, err
	}
	curve := flagCurve
	if rec.Curve != "" {
		curve = rec.Curve
	}
	bundle, err := tss.DecodeBundle(curve, rec.Data)
	if err != nil {
		return nil, err
	}
	bundle.SessionUUID = rec.KeyID

	if flagChainCode != "" {
		raw, err := hex.DecodeString(strings.TrimPrefix(flagChainCode, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "chain code")
		}
		bundle.ChainCode = new(big.Int).SetBytes(raw)
	}
	return bundle, nil
}

func options() tss.Options {
	return tss.Options{
		PollDelay:     cfg.Timeouts.Delay(),
		PollTimeout:   cfg.Timeouts.PollTimeout(),
		SignupTimeout: cfg.Timeouts.SignupTimeout(),
	}
}

func newClient() *network.Client {
	return network.NewClient(cfg.Manager)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
