package secureboot

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/term"
)

// PassphraseEnvVar supplies the signing key passphrase non-interactively.
const PassphraseEnvVar = "ESP_PACKAGER_KEY_PASSPHRASE"

// readPassphrase resolves the signing key passphrase. The environment
// variable wins; otherwise the terminal is prompted without echo.
func readPassphrase(prompt string) ([]byte, error) {
	if envPass := os.Getenv(PassphraseEnvVar); envPass != "" {
		return []byte(envPass), nil
	}

	fmt.Fprint(os.Stderr, prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		passphrase, err := term.ReadPassword(int(syscall.Stdin))
		// Keep the shell prompt off the input line.
		fmt.Fprintln(os.Stderr)

		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}

		return passphrase, nil
	}

	// STDIN is piped; fall back to the controlling terminal.
	tty, err := os.Open("/dev/tty")
	if err != nil {
		if runtime.GOOS == "windows" {
			return nil, fmt.Errorf("passphrase must be set via %s when STDIN is piped", PassphraseEnvVar)
		}

		return nil, fmt.Errorf("cannot prompt for passphrase, set %s: %w", PassphraseEnvVar, err)
	}

	defer func() {
		// Best-effort cleanup.
		_ = tty.Close()
	}()

	passphrase, err := term.ReadPassword(int(tty.Fd()))

	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}

	return passphrase, nil
}

// zeroBytes overwrites sensitive material after use.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}

	runtime.KeepAlive(b)
}
