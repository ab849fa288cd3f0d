package assistant

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// State is the position of an interactive session in its loop.
type State int

const (
	StateAwaitingInput State = iota
	StateProcessing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateProcessing:
		return "processing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	Banner        = "Ready. Ask me about commodities, world news or strategies (type 'exit' to quit):"
	PromptHeader  = "--- Prompt to LLM ---"
	AnswerHeader  = "--- Assistant's Answer ---"
	questionLabel = "Your question: "
)

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, q string) (*Response, error)
}

// Session is the plain line-oriented front end.
type Session struct {
	asker Asker
	in    *bufio.Scanner
	out   io.Writer
	state State
}

func NewSession(asker Asker, in io.Reader, out io.Writer) *Session {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Session{asker: asker, in: sc, out: out, state: StateAwaitingInput}
}

func (s *Session) State() State { return s.state }

// Run reads questions until an exit keyword, EOF or context cancellation.
// A pipeline error ends the session and is returned.
func (s *Session) Run(ctx context.Context) error {
	defer func() { s.state = StateTerminated }()
	fmt.Fprintf(s.out, "\n%s\n\n", Banner)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		s.state = StateAwaitingInput
		fmt.Fprint(s.out, questionLabel)
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		line := s.in.Text()
		if IsQuit(line) {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		s.state = StateProcessing
		resp, err := s.asker.Ask(ctx, line)
		if err != nil {
			return err
		}
		Render(s.out, resp)
	}
}

// Render prints the prompt and the cleaned answer under their headers.
func Render(w io.Writer, resp *Response) {
	fmt.Fprintf(w, "\n%s\n%s\n", PromptHeader, resp.Prompt)
	fmt.Fprintf(w, "\n%s\n%s\n\n", AnswerHeader, resp.Answer)
}
