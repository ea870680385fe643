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

	"golang.org/x/term"
)

// ErrNoTerminal is returned when a passphrase is needed but there is no
// terminal to ask for it.
var ErrNoTerminal = errors.New("passphrase required but stdin is not a " +
	"terminal")

// Prompter asks the user for passphrases and seed confirmations.  Passphrases
// are read without echo when input is a terminal.
type Prompter struct {
	reader   *bufio.Reader
	out      io.Writer
	readPass func() ([]byte, error)
}

// New returns a Prompter reading from in and writing prompts to out.  When in
// is a terminal, passphrases are read with echo disabled.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{
		reader: bufio.NewReader(in),
		out:    out,
	}
	p.readPass = p.readLine

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.readPass = func() ([]byte, error) {
			pass, err := term.ReadPassword(fd)
			fmt.Fprint(p.out, "\n")
			return pass, err
		}
	}

	return p
}

// Interactive reports whether stdin is attached to a terminal.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p *Prompter) readLine() ([]byte, error) {
	line, err := p.reader.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	return line, nil
}

// PassPrompt prompts the user for a passphrase with the given prefix.  When
// confirm is set the passphrase must be entered twice.  The prompts repeat
// until a non-empty (and matching) passphrase is entered.
func (p *Prompter) PassPrompt(prefix string, confirm bool) ([]byte, error) {
	for {
		fmt.Fprintf(p.out, "%s: ", prefix)
		pass, err := p.readPass()
		if err != nil {
			return nil, err
		}
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}
		if !confirm {
			return pass, nil
		}

		fmt.Fprint(p.out, "Confirm passphrase: ")
		again, err := p.readPass()
		if err != nil {
			return nil, err
		}
		again = bytes.TrimSpace(again)
		if !bytes.Equal(pass, again) {
			fmt.Fprintln(p.out, "The entered passphrases do not match")
			continue
		}

		return pass, nil
	}
}

// PrivatePass asks for the private passphrase of the named wallet.  A new
// wallet's passphrase is confirmed.
func (p *Prompter) PrivatePass(walletName string, create bool) ([]byte, error) {
	if create {
		return p.PassPrompt(fmt.Sprintf("Enter the private passphrase "+
			"for your new wallet %q", walletName), true)
	}
	return p.PassPrompt(fmt.Sprintf("Enter the private passphrase of "+
		"wallet %q", walletName), false)
}

// ShowSeed displays the generation seed of a freshly created wallet.  With
// waitOK set, it blocks until the user types OK.
func (p *Prompter) ShowSeed(walletName string, seed []byte, waitOK bool) error {
	fmt.Fprintf(p.out, "Your wallet generation seed for %q is:\n", walletName)
	fmt.Fprintf(p.out, "%x\n", seed)
	fmt.Fprintln(p.out, "IMPORTANT: Keep the seed in a safe place as you\n"+
		"will NOT be able to restore your wallet without it.")

	if !waitOK {
		return nil
	}

	for {
		fmt.Fprint(p.out, `Once you have stored the seed in a safe `+
			`and secure location, enter "OK" to continue: `)
		line, err := p.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return err
		}
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line == "OK" {
			return nil
		}
	}
}
