package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Environment variables consulted when no password flag is given.
const (
	EnvPassword    = "PHASETRACK_PASSWORD"
	EnvNewPassword = "PHASETRACK_NEW_PASSWORD"
)

// passwordInput is one password a command needs. It is taken from the
// flag if set, else from the next line of stdin when --password-stdin is
// given, else from the environment.
type passwordInput struct {
	value string
	flag  string
	env   string
}

func (p passwordInput) resolve(stdin *bufio.Reader) (string, error) {
	if p.value != "" {
		return p.value, nil
	}
	if stdin != nil {
		line, err := stdin.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", &ExitError{Code: ExitFailure, Message: "reading password from stdin", Err: err, ErrCode: ErrCodeInput}
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if v, ok := os.LookupEnv(p.env); ok {
		return v, nil
	}
	return "", &ExitError{
		Code:    ExitFailure,
		Message: fmt.Sprintf("password required: use --%s, --password-stdin or %s", p.flag, p.env),
		ErrCode: ErrCodeInput,
	}
}

// passwordReader returns a reader over the session's stdin, or nil when
// the command was not asked to read passwords from it.
func (s *session) passwordReader(fromStdin bool) *bufio.Reader {
	if !fromStdin {
		return nil
	}
	return bufio.NewReader(s.in)
}
