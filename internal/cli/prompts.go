package cli

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"
)

// stdinIsTerminal reports whether walletd is running interactively.
// Under a process supervisor there is no one to prompt.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// promptPassword prompts for a password with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// zeroBytes overwrites a byte slice with zeros.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
