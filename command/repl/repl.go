// Package repl drives a db48x session from a terminal, the host spec
// C-session leaves to its caller: read a line, evaluate it, render the
// stack. Grounded on command/reader's ConsoleReader (same liner setup,
// same Prompt/AppendHistory/Ctrl-C-aborts loop), adapted from one core
// per command line to one session.Session, and from the emulator's
// device-command completer to a completer over internal/parse's
// command table.
package repl

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/dm42/db48x/internal/parse"
	"github.com/dm42/db48x/internal/session"
)

// Prompt is the leading text shown before each input line.
const Prompt = "db48x> "

// Run drives sess from stdin/stdout until the user aborts the prompt
// (Ctrl-D) or interrupts it (Ctrl-C), printing the stack after every
// line the way the physical calculator redraws its display after each
// keystroke that completes a command.
func Run(sess *session.Session) error {
	return RunIO(sess, nil)
}

// RunIO is Run with an explicit output writer, for tests that want to
// capture what a session would have printed without a real terminal.
func RunIO(sess *session.Session, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completer)

	for {
		input, err := line.Prompt(Prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			slog.Error("repl: error reading line", "error", err)

			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if err := sess.Eval(input); err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
		printStack(sess, out)
	}
}

// printStack renders the whole operand stack, deepest entry first,
// the order the physical calculator's stack display uses.
func printStack(sess *session.Session, out io.Writer) {
	lines, err := sess.Stack()
	if err != nil {
		fmt.Fprintln(out, "Error:", err)

		return
	}
	for i, text := range lines {
		fmt.Fprintf(out, "%d: %s\n", len(lines)-i, text)
	}
}

// completer offers every registered command name prefixed by the word
// being typed, mirroring command/parser's command-name completion but
// over internal/parse's command table instead of a device list.
func completer(input string) []string {
	word := input
	if i := strings.LastIndexAny(input, " \t"); i >= 0 {
		word = input[i+1:]
	}
	if word == "" {
		return nil
	}
	prefix := input[:len(input)-len(word)]

	var matches []string
	for _, name := range parse.CommandNames() {
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(word)) {
			matches = append(matches, prefix+name)
		}
	}
	sort.Strings(matches)

	return matches
}
