// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/ethwallet/hdkeys"
	"github.com/btcsuite/ethwallet/internal/zero"
	"golang.org/x/term"
)

// ErrEmptyInput is returned when the input ends before a value was given.
var ErrEmptyInput = errors.New("no input")

// Prompter reads answers from a terminal.  Secrets are read without echo
// when the input is a terminal and as plain lines otherwise, so answers can
// be piped in.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

// New returns a Prompter reading from stdin and writing to stdout.
func New() *Prompter {
	fd := int(os.Stdin.Fd())
	return &Prompter{
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		fd:     fd,
		isTerm: term.IsTerminal(fd),
	}
}

// NewFromReader returns a Prompter reading plain lines from r.
func NewFromReader(r io.Reader, out io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(r), out: out, fd: -1}
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrEmptyInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) readSecret() ([]byte, error) {
	if !p.isTerm {
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}

	secret, err := term.ReadPassword(p.fd)
	fmt.Fprint(p.out, "\n")
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(secret), nil
}

// promptList prompts the user with the given prefix, list of valid responses,
// and default list entry to use.  The function will repeat the prompt to the
// user until they enter a valid response.
func (p *Prompter) promptList(prefix string, validResponses []string,
	defaultEntry string) (string, error) {

	// Setup the prompt according to the parameters.
	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	// Prompt the user until one of the valid responses is given.
	for {
		fmt.Fprint(p.out, prompt)
		reply, err := p.readLine()
		if err != nil {
			return "", err
		}
		reply = strings.ToLower(reply)
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// YesNo prompts the user for a boolean (yes/no) with the given prefix.
func (p *Prompter) YesNo(prefix string, defaultEntry string) (bool, error) {
	valid := []string{"n", "no", "y", "yes"}
	response, err := p.promptList(prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// Line prompts for a single line of plain text.
func (p *Prompter) Line(prefix string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", prefix)
	return p.readLine()
}

// Password prompts the user for a password with the given prefix.  When
// confirm is set the password is asked twice and the prompts repeat until
// both entries match.
func (p *Prompter) Password(prefix string, confirm bool) ([]byte, error) {
	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Fprint(p.out, prompt)
		pass, err := p.readSecret()
		if err != nil {
			return nil, err
		}
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Fprint(p.out, "Confirm password: ")
		again, err := p.readSecret()
		if err != nil {
			zero.Bytes(pass)
			return nil, err
		}
		match := bytes.Equal(pass, again)
		zero.Bytes(again)
		if !match {
			zero.Bytes(pass)
			fmt.Fprintln(p.out, "The entered passwords do not match")
			continue
		}

		return pass, nil
	}
}

// Secret prompts for a secret value such as a private key without echo.
func (p *Prompter) Secret(prefix string) ([]byte, error) {
	fmt.Fprintf(p.out, "%s: ", prefix)
	return p.readSecret()
}

// Mnemonic asks whether an existing mnemonic should be used.  If so it is
// read and validated, otherwise a new one of bits entropy is generated and
// shown until the user confirms it was written down.
func (p *Prompter) Mnemonic(bits int) (string, error) {
	existing, err := p.YesNo("Do you have an existing mnemonic you "+
		"want to use?", "no")
	if err != nil {
		return "", err
	}

	if existing {
		for {
			fmt.Fprint(p.out, "Enter the mnemonic: ")
			secret, err := p.readSecret()
			if err != nil {
				return "", err
			}
			mnemonic := hdkeys.NormalizeMnemonic(string(secret))
			zero.Bytes(secret)

			seed, err := hdkeys.SeedFromMnemonic(mnemonic)
			if err != nil {
				fmt.Fprintf(p.out, "Invalid mnemonic: %v\n", err)
				continue
			}
			zero.Bytes(seed)
			return mnemonic, nil
		}
	}

	mnemonic, err := hdkeys.NewMnemonic(bits)
	if err != nil {
		return "", err
	}

	fmt.Fprintln(p.out, "Your wallet generation mnemonic is:")
	fmt.Fprintln(p.out, mnemonic)
	fmt.Fprintln(p.out, "IMPORTANT: Keep the mnemonic in a safe place as "+
		"you will NOT be able to restore your wallet without it.")
	fmt.Fprintln(p.out, "Please keep in mind that anyone who has access "+
		"to the mnemonic can also restore your wallet thereby giving "+
		"them access to all your funds, so it is imperative that you "+
		"keep it in a secure location.")

	for {
		fmt.Fprint(p.out, `Once you have stored the mnemonic in a safe `+
			`and secure location, enter "OK" to continue: `)
		confirm, err := p.readLine()
		if err != nil {
			return "", err
		}
		if strings.EqualFold(confirm, "ok") {
			return mnemonic, nil
		}
	}
}
