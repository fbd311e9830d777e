package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/doeshing/nixsay/internal/ports"
)

// Prompter implements ConfirmationPrompter on stdin/stdout. It only asks when stdin is
// a terminal, or when a line reader (the interactive shell) is attached.
type Prompter struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	assumeYes   bool
	readLine    func(prompt string) (string, error)
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: isTerminal(in),
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// AssumeYes approves every confirmation without asking (--yes).
func (p *Prompter) AssumeYes(yes bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assumeYes = yes
}

// UseLineReader routes answers through fn instead of stdin. Pass nil to detach.
func (p *Prompter) UseLineReader(fn func(prompt string) (string, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readLine = fn
}

// Enabled reports whether Confirm can get an answer.
func (p *Prompter) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assumeYes || p.interactive || p.readLine != nil
}

// Confirm shows the preview and asks for a yes/no answer.
func (p *Prompter) Confirm(preview string, privileged bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.assumeYes {
		return true, nil
	}

	fmt.Fprintf(p.out, "\n%s\n", preview)
	if privileged {
		fmt.Fprintln(p.out, "This runs with administrator rights.")
	}
	answer, err := p.ask("Proceed? [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func (p *Prompter) ask(prompt string) (string, error) {
	if p.readLine != nil {
		return p.readLine(prompt)
	}
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return line, nil
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
