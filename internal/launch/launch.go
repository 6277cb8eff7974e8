// Package launch renders the configured command line and starts the game
// detached from the launcher.
package launch

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tinoosan/launcher/internal/data"
)

var (
	ErrEmptyCommand = errors.New("empty command line")
	ErrUnterminated = errors.New("unterminated quote in command line")
)

// Render substitutes executable for every %command% in template. An empty
// template runs the executable alone. Paths with whitespace are quoted so
// Split keeps them in one argument.
func Render(template, executable string) string {
	if strings.TrimSpace(template) == "" {
		template = data.CommandPlaceholder
	}
	if strings.ContainsAny(executable, " \t") {
		executable = `"` + executable + `"`
	}
	return strings.ReplaceAll(template, data.CommandPlaceholder, executable)
}

// Split breaks a command line into argv. Single and double quotes group
// words; a backslash escapes the next character outside single quotes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 || escaped {
		return nil, ErrUnterminated
	}
	if inWord {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// Launcher starts processes without waiting for them.
type Launcher struct {
	log   *slog.Logger
	start func(*exec.Cmd) error
}

func New(log *slog.Logger) *Launcher {
	if log == nil {
		log = slog.Default()
	}
	return &Launcher{log: log, start: startDetached}
}

// Launch splits commandLine and starts it. The child's working directory is
// the directory of the program when it is given as a path.
func (l *Launcher) Launch(commandLine string) error {
	argv, err := Split(commandLine)
	if err != nil {
		return err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if strings.ContainsRune(argv[0], filepath.Separator) {
		cmd.Dir = filepath.Dir(argv[0])
	}
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("launch %s: %w", argv[0], err)
	}
	l.log.Info("game launched", "argv", argv)
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
