// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/hwproxy"
	"github.com/btcsuite/ethwallet/internal/cfgutil"
	"github.com/btcsuite/ethwallet/internal/zero"
	"github.com/btcsuite/ethwallet/keycrypt"
	"github.com/btcsuite/ethwallet/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	flags "github.com/jessevdk/go-flags"
)

// addCommands registers every wallet command with parser.
func addCommands(parser *flags.Parser) error {
	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"create", "Create the HD root",
			"Create the HD root from a new or existing mnemonic and " +
				"derive its first wallet.", &createCmd{Bits: 128}},
		{"derive", "Derive the next HD wallet",
			"Derive and select the HD wallet at the next free index.",
			&deriveCmd{}},
		{"importkey", "Import a raw private key",
			"Import a hex encoded private key read from the terminal.",
			&importKeyCmd{}},
		{"importjson", "Import a keystore file",
			"Import a version 3 keystore file, re-encrypting it under the " +
				"wallet password.", &importJSONCmd{}},
		{"watch", "Watch an address",
			"Add a watch-only wallet for an address.", &watchCmd{}},
		{"list", "List wallets",
			"List every wallet, marking the selected one.", &listCmd{}},
		{"select", "Select a wallet",
			"Select the wallet used by sign and signtx.", &selectCmd{}},
		{"remove", "Remove a wallet",
			"Remove a wallet and its stored keystore.", &removeCmd{}},
		{"sign", "Sign a message",
			"Sign a message as an Ethereum signed message.", &signCmd{}},
		{"signtx", "Sign a transaction",
			"Sign a legacy or dynamic fee transaction and print its raw " +
				"encoding.", newSignTxCmd()},
		{"export", "Export a keystore",
			"Print the encrypted keystore of a wallet.", &exportCmd{}},
		{"passwd", "Change the wallet password",
			"Re-encrypt every keystore under a new password.", &passwdCmd{}},
		{"hdpublic", "Cache the key tree of a mnemonic",
			"Store the encrypted account key of a mnemonic so its " +
				"children can be listed and adopted.", &hdPublicCmd{}},
		{"nextwallets", "List signer addresses",
			"List addresses of a hardware signer or cached key tree.",
			&nextWalletsCmd{Variant: "trezor", Limit: 5}},
		{"addchild", "Adopt a signer address",
			"Register the child at an index of a hardware signer or " +
				"cached key tree.", &addChildCmd{Variant: "trezor"}},
	}

	for _, c := range commands {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.data)
		if err != nil {
			return err
		}
	}
	return nil
}

// readHex reads a hex string with or without its 0x prefix.
func readHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// targetWallet returns the wallet at address, or the active wallet when
// address is empty.
func (a *app) targetWallet(address string) (wallet.Wallet, error) {
	if address == "" {
		return a.reg.ActiveWallet()
	}
	addr, err := wallet.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return a.reg.Wallet(addr)
}

// signingPassword prompts for the password of w unless its key lives on a
// device.
func (a *app) signingPassword(w wallet.Wallet) ([]byte, error) {
	if w.IsHardware() || w.IsPublic() {
		return nil, nil
	}
	return a.prompter.Password("Wallet password", false)
}

type createCmd struct {
	Bits int `long:"bits" description:"Entropy of a new mnemonic in bits" choice:"128" choice:"160" choice:"192" choice:"224" choice:"256"`
}

func (c *createCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		mnemonic, err := a.prompter.Mnemonic(c.Bits)
		if err != nil {
			return err
		}
		password, err := a.walletPassword()
		if err != nil {
			return err
		}
		defer zero.Bytes(password)

		child, err := a.reg.CreateHDRoot(ctx, mnemonic, password)
		if err != nil {
			return err
		}
		fmt.Printf("Created HD wallet %d: %v\n", child.Index(),
			child.Address())
		return nil
	})
}

type deriveCmd struct{}

func (c *deriveCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		password, err := a.prompter.Password("Wallet password", false)
		if err != nil {
			return err
		}
		defer zero.Bytes(password)

		child, err := a.reg.DeriveNextHDWallet(ctx, password)
		if err != nil {
			return err
		}
		fmt.Printf("Derived HD wallet %d: %v\n", child.Index(),
			child.Address())
		return nil
	})
}

type importKeyCmd struct{}

func (c *importKeyCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		secret, err := a.prompter.Secret("Private key (hex)")
		if err != nil {
			return err
		}
		key, err := readHex(string(secret))
		zero.Bytes(secret)
		if err != nil {
			return err
		}
		defer zero.Bytes(key)

		password, err := a.walletPassword()
		if err != nil {
			return err
		}
		defer zero.Bytes(password)

		w, err := a.reg.ImportPrivateKey(ctx, key, password)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %v\n", w.Address())
		return nil
	})
}

type importJSONCmd struct {
	Args struct {
		File string `positional-arg-name:"file" required:"yes"`
	} `positional-args:"yes"`
}

func (c *importJSONCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		keystoreJSON, err := os.ReadFile(cleanAndExpandPath(c.Args.File))
		if err != nil {
			return err
		}

		keystorePassword, err := a.prompter.Password("Keystore password",
			false)
		if err != nil {
			return err
		}
		defer zero.Bytes(keystorePassword)

		password, err := a.walletPassword()
		if err != nil {
			return err
		}
		defer zero.Bytes(password)

		w, err := a.reg.ImportKeystore(ctx, keystoreJSON,
			keystorePassword, password)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %v\n", w.Address())
		return nil
	})
}

type watchCmd struct {
	Args struct {
		Address string `positional-arg-name:"address" required:"yes"`
	} `positional-args:"yes"`
}

func (c *watchCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		w, err := a.reg.AddWatchOnly(ctx, c.Args.Address)
		if err != nil {
			return err
		}
		fmt.Printf("Watching %v\n", w.Address())
		return nil
	})
}

type listCmd struct{}

func (c *listCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		selected := a.reg.Selected()

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		a.reg.HDRoot().WhenSome(func(root *wallet.HDRoot) {
			fmt.Fprintf(tw, " \t%v\t%v\t%s\n", root.Address(),
				root.Kind(), root.XPub())
		})
		for _, w := range a.reg.Wallets() {
			mark := " "
			selected.WhenSome(func(addr common.Address) {
				if addr == w.Address() {
					mark = "*"
				}
			})

			var detail string
			switch w := w.(type) {
			case *wallet.HDChild:
				detail = fmt.Sprintf("index %d", w.Index())
			case *wallet.Hardware:
				detail = fmt.Sprintf("%v index %d", w.Variant(),
					w.Index())
			}
			fmt.Fprintf(tw, "%s\t%v\t%v\t%s\n", mark, w.Address(),
				w.Kind(), detail)
		}

		for _, v := range []hwproxy.Variant{
			hwproxy.VariantTrezor, hwproxy.VariantLedger,
			hwproxy.VariantHDPublic,
		} {
			a.reg.CachedExtendedPublicKey(v).WhenSome(
				func(rec *keycrypt.KeystoreRecord) {
					state := "public"
					if rec.IsEncrypted() {
						state = "encrypted"
					}
					fmt.Fprintf(tw, " \t%v cache\t%s\t%s\n", v,
						state, rec.Address)
				},
			)
		}
		return tw.Flush()
	})
}

type selectCmd struct {
	Args struct {
		Address string `positional-arg-name:"address" required:"yes"`
	} `positional-args:"yes"`
}

func (c *selectCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		addr, err := wallet.ParseAddress(c.Args.Address)
		if err != nil {
			return err
		}
		if err := a.reg.SelectWallet(addr); err != nil {
			return err
		}
		fmt.Printf("Selected %v\n", addr)
		return nil
	})
}

type removeCmd struct {
	Args struct {
		Address string `positional-arg-name:"address" required:"yes"`
	} `positional-args:"yes"`
}

func (c *removeCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		addr, err := wallet.ParseAddress(c.Args.Address)
		if err != nil {
			return err
		}
		ok, err := a.prompter.YesNo(fmt.Sprintf("Remove %v?", addr), "no")
		if err != nil || !ok {
			return err
		}
		if err := a.reg.RemoveWallet(ctx, addr); err != nil {
			return err
		}
		fmt.Printf("Removed %v\n", addr)
		return nil
	})
}

type signCmd struct {
	Address string `long:"address" description:"Wallet to sign with (default: selected wallet)"`
	Hex     bool   `long:"hex" description:"The message is hex encoded"`
	Args    struct {
		Message string `positional-arg-name:"message" required:"yes"`
	} `positional-args:"yes"`
}

func (c *signCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		message := []byte(c.Args.Message)
		if c.Hex {
			var err error
			message, err = readHex(c.Args.Message)
			if err != nil {
				return err
			}
		}

		w, err := a.targetWallet(c.Address)
		if err != nil {
			return err
		}
		password, err := a.signingPassword(w)
		if err != nil {
			return err
		}
		defer zero.Bytes(password)

		sig, err := w.Sign(ctx, message, password)
		if err != nil {
			return err
		}
		fmt.Println(sig)
		return nil
	})
}

type signTxCmd struct {
	Address  string              `long:"address" description:"Wallet to sign with (default: selected wallet)"`
	To       string              `long:"to" description:"Recipient address; omit to create a contract"`
	Value    *cfgutil.AmountFlag `long:"value" description:"Amount to send in ETH"`
	Nonce    uint64              `long:"nonce" description:"Account nonce"`
	Gas      uint64              `long:"gas" description:"Gas limit"`
	GasPrice *cfgutil.AmountFlag `long:"gasprice" description:"Gas price in gwei of a legacy transaction"`
	MaxFee   *cfgutil.AmountFlag `long:"maxfee" description:"Fee cap in gwei of a dynamic fee transaction"`
	TipCap   *cfgutil.AmountFlag `long:"tip" description:"Priority fee in gwei of a dynamic fee transaction"`
	Data     string              `long:"data" description:"Hex encoded call data"`
	ChainID  uint64              `long:"chainid" description:"Chain ID; zero signs without replay protection"`
}

func newSignTxCmd() *signTxCmd {
	return &signTxCmd{
		Value:    cfgutil.NewEtherFlag(),
		Gas:      21000,
		GasPrice: cfgutil.NewGweiFlag(),
		MaxFee:   cfgutil.NewGweiFlag(),
		TipCap:   cfgutil.NewGweiFlag(),
		ChainID:  1,
	}
}

func (c *signTxCmd) fields() (*wallet.TxFields, error) {
	fields := &wallet.TxFields{
		Nonce: c.Nonce,
		Value: c.Value.Wei,
		Gas:   c.Gas,
	}
	if c.To != "" {
		to, err := wallet.ParseAddress(c.To)
		if err != nil {
			return nil, err
		}
		fields.To = &to
	}
	if c.Data != "" {
		data, err := readHex(c.Data)
		if err != nil {
			return nil, err
		}
		fields.Data = data
	}
	if c.ChainID != 0 {
		fields.ChainID = new(big.Int).SetUint64(c.ChainID)
	}

	switch {
	case c.MaxFee.IsSet():
		if c.GasPrice.IsSet() {
			return nil, fmt.Errorf("--gasprice can not be combined " +
				"with --maxfee")
		}
		fields.GasFeeCap = c.MaxFee.Wei
		fields.GasTipCap = c.TipCap.Wei
	case c.TipCap.IsSet():
		return nil, fmt.Errorf("--tip requires --maxfee")
	default:
		fields.GasPrice = c.GasPrice.Wei
	}
	return fields, nil
}

func (c *signTxCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		fields, err := c.fields()
		if err != nil {
			return err
		}

		w, err := a.targetWallet(c.Address)
		if err != nil {
			return err
		}
		password, err := a.signingPassword(w)
		if err != nil {
			return err
		}
		defer zero.Bytes(password)

		raw, err := w.SignTransaction(ctx, fields, password)
		if err != nil {
			return err
		}
		fmt.Println(raw)
		return nil
	})
}

type exportCmd struct {
	Address string `long:"address" description:"Wallet to export (default: selected wallet)"`
	HDRoot  bool   `long:"hdroot" description:"Export the HD root keystore"`
}

func (c *exportCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		var w wallet.Wallet
		if c.HDRoot {
			root := a.reg.HDRoot().UnwrapOr(nil)
			if root == nil {
				return fmt.Errorf("the wallet has no HD root")
			}
			w = root
		} else {
			var err error
			w, err = a.targetWallet(c.Address)
			if err != nil {
				return err
			}
		}

		b, err := w.ExportKeystore()
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	})
}

type passwdCmd struct{}

func (c *passwdCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		oldPassword, err := a.prompter.Password("Current wallet password",
			false)
		if err != nil {
			return err
		}
		defer zero.Bytes(oldPassword)

		newPassword, err := a.prompter.Password("New wallet password",
			true)
		if err != nil {
			return err
		}
		defer zero.Bytes(newPassword)

		if err := a.rekey.ChangePassword(ctx, oldPassword,
			newPassword); err != nil {

			return err
		}
		fmt.Println("Password changed")
		return nil
	})
}

type hdPublicCmd struct{}

func (c *hdPublicCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		secret, err := a.prompter.Secret("Mnemonic")
		if err != nil {
			return err
		}
		mnemonic := hdkeys.NormalizeMnemonic(string(secret))
		zero.Bytes(secret)

		password, err := a.walletPassword()
		if err != nil {
			return err
		}
		defer zero.Bytes(password)

		xpub, err := a.reg.AddHDPublic(ctx, mnemonic, password)
		if err != nil {
			return err
		}
		fmt.Printf("Cached key tree %s\n", xpub)
		return nil
	})
}

type nextWalletsCmd struct {
	Variant string `long:"variant" description:"Signer to list" choice:"trezor" choice:"ledger" choice:"hdpublic"`
	Offset  uint32 `long:"offset" description:"Index of the first address"`
	Limit   uint32 `long:"limit" description:"Number of addresses, at most 100"`
}

func (c *nextWalletsCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		v, err := hwproxy.ParseVariant(c.Variant)
		if err != nil {
			return err
		}
		addrs, err := a.reg.NextWallets(ctx, v, c.Offset, c.Limit)
		if err != nil {
			return err
		}
		for i, addr := range addrs {
			fmt.Printf("%d\t%v\n", c.Offset+uint32(i), addr)
		}
		return nil
	})
}

type addChildCmd struct {
	Variant string `long:"variant" description:"Signer holding the key" choice:"trezor" choice:"ledger" choice:"hdpublic"`
	Index   uint32 `long:"index" description:"Child index of the address"`
	WithKey bool   `long:"withkey" description:"Decrypt the child key from the encrypted cache and store it in the wallet"`
	Args    struct {
		Address string `positional-arg-name:"address" required:"yes"`
	} `positional-args:"yes"`
}

func (c *addChildCmd) Execute([]string) error {
	return run(func(ctx context.Context, a *app) error {
		v, err := hwproxy.ParseVariant(c.Variant)
		if err != nil {
			return err
		}
		addr, err := wallet.ParseAddress(c.Args.Address)
		if err != nil {
			return err
		}

		var password []byte
		if c.WithKey {
			password, err = a.prompter.Password("Wallet password", false)
			if err != nil {
				return err
			}
			defer zero.Bytes(password)
		}

		w, err := a.reg.RegisterHardwareChild(ctx, v, password, addr,
			c.Index)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %v %v\n", w.Kind(), w.Address())
		return nil
	})
}
