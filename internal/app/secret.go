package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// SecretEnvVar holds the secret when no file is given.
const SecretEnvVar = "PANELCTL_SECRET"

// ErrNoSecret is returned when no secret source is available.
var ErrNoSecret = errors.New("no secret: use --secret-file, " + SecretEnvVar + " or run in a terminal")

// For mocking in tests
var (
	osLookupEnv   = os.LookupEnv
	isTerminal    = func(fd int) bool { return term.IsTerminal(fd) }
	readPassword  = term.ReadPassword
	terminalInput = func() int { return int(os.Stdin.Fd()) }
)

// ReadSecret resolves the secret: the secret file ("-" reads stdin), then
// PANELCTL_SECRET, then a no-echo prompt on the terminal. Trailing newlines
// are stripped. The caller owns the returned slice and should zero it.
func ReadSecret(cfg *Config) ([]byte, error) {
	secret, err := ReadStoredSecret(cfg)
	if !errors.Is(err, ErrNoSecret) {
		return secret, err
	}

	fd := terminalInput()
	if !isTerminal(fd) {
		return nil, ErrNoSecret
	}
	fmt.Fprint(cfg.Stderr, "Secret: ")
	secret, err = readPassword(fd)
	fmt.Fprintln(cfg.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return secret, nil
}

// ReadStoredSecret is ReadSecret without the terminal prompt. It returns
// ErrNoSecret when neither the file nor the environment provides one.
func ReadStoredSecret(cfg *Config) ([]byte, error) {
	switch {
	case cfg.SecretFile == "-":
		return readSecretFrom(cfg.Stdin, "stdin")
	case cfg.SecretFile != "":
		f, err := os.Open(cfg.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("reading secret file: %w", err)
		}
		defer f.Close()
		return readSecretFrom(f, cfg.SecretFile)
	}

	if v, ok := osLookupEnv(SecretEnvVar); ok && v != "" {
		return []byte(v), nil
	}
	return nil, ErrNoSecret
}

func readSecretFrom(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("reading secret from %s: %w", name, err)
	}
	secret := bytes.TrimRight(data, "\r\n")
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret from %s is empty", name)
	}
	return secret, nil
}
