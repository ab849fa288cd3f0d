package assistant

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"commodity-rag/internal/entity"
	"commodity-rag/internal/prompt"
)

type stubRetriever struct {
	commodities [][]string
	months      [][]string
	sections    prompt.Sections
	err         error
}

func (s *stubRetriever) Gather(_ context.Context, commodities, months []string) (prompt.Sections, error) {
	s.commodities = append(s.commodities, commodities)
	s.months = append(s.months, months)
	return s.sections, s.err
}

type stubModel struct {
	prompts []string
	reply   string
	err     error
}

func (m *stubModel) Name() string { return "stub" }

func (m *stubModel) Generate(_ context.Context, p string) (string, error) {
	m.prompts = append(m.prompts, p)
	return m.reply, m.err
}

func newAssistant(r *stubRetriever, m *stubModel, cfg Config) *Assistant {
	if cfg.DefaultCommodities == nil {
		cfg.DefaultCommodities = []string{"Gold", "Crude Oil"}
	}
	return New(entity.NewExtractor(nil), r, m, cfg, nil)
}

func TestResolveDefaults(t *testing.T) {
	a := newAssistant(&stubRetriever{}, &stubModel{}, Config{})

	ents := a.Resolve("What should I do?")
	require.Equal(t, []string{"Gold", "Crude Oil"}, ents.Commodities)
	require.Equal(t, []string{"2025-04"}, ents.Months)

	ents = a.Resolve("Is gold a buy in March 2024?")
	require.Equal(t, []string{"Gold"}, ents.Commodities)
	require.Equal(t, []string{"2024-03"}, ents.Months)
}

func TestAskBuildsPromptAndCleansAnswer(t *testing.T) {
	r := &stubRetriever{sections: prompt.Sections{
		Summaries: "Monthly Summary for Gold in 2025-04:\nup\n",
	}}
	m := &stubModel{reply: "Some reasoning...\nAnswer:\n</s> Buy gold now."}
	a := newAssistant(r, m, Config{})

	resp, err := a.Ask(context.Background(), "Gold outlook?")
	require.NoError(t, err)
	require.Equal(t, "Buy gold now.", resp.Answer)
	require.Equal(t, []string{"Gold"}, resp.Commodities)
	require.Equal(t, []string{"2025-04"}, resp.Months)
	require.Equal(t, [][]string{{"Gold"}}, r.commodities)

	want, err := prompt.Query("Monthly Summary for Gold in 2025-04:\nup\n\n\n\n", "Gold outlook?")
	require.NoError(t, err)
	require.Equal(t, want, resp.Prompt)
	require.Equal(t, []string{want}, m.prompts)
}

func TestAskTruncatesContext(t *testing.T) {
	r := &stubRetriever{sections: prompt.Sections{Summaries: strings.Repeat("x", 100)}}
	m := &stubModel{reply: "ok"}
	a := newAssistant(r, m, Config{MaxContextChars: 10})

	resp, err := a.Ask(context.Background(), "q")
	require.NoError(t, err)
	require.Contains(t, resp.Prompt, "Context:\nxxxxxxxxxx\n\nQuestion: q")
}

func TestAskErrors(t *testing.T) {
	_, err := newAssistant(&stubRetriever{}, &stubModel{}, Config{}).Ask(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptyQuestion)

	boom := errors.New("index unavailable")
	_, err = newAssistant(&stubRetriever{err: boom}, &stubModel{}, Config{}).Ask(context.Background(), "gold")
	require.ErrorIs(t, err, boom)

	llmErr := errors.New("rate limited")
	_, err = newAssistant(&stubRetriever{}, &stubModel{err: llmErr}, Config{}).Ask(context.Background(), "gold")
	require.ErrorIs(t, err, llmErr)
}

func TestIsQuit(t *testing.T) {
	for _, in := range []string{"exit", "QUIT", "  Exit  "} {
		require.True(t, IsQuit(in), in)
	}
	for _, in := range []string{"", "exit now", "q"} {
		require.False(t, IsQuit(in), in)
	}
}

func TestSessionRun(t *testing.T) {
	m := &stubModel{reply: "Answer: Hold."}
	a := newAssistant(&stubRetriever{}, m, Config{})
	var out bytes.Buffer
	s := NewSession(a, strings.NewReader("oil in may?\n\n   \nquit\nnever asked\n"), &out)

	require.Equal(t, StateAwaitingInput, s.State())
	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, StateTerminated, s.State())
	require.Len(t, m.prompts, 1)

	text := out.String()
	require.Contains(t, text, Banner)
	require.Contains(t, text, PromptHeader+"\n"+m.prompts[0]+"\n")
	require.Contains(t, text, AnswerHeader+"\nHold.\n")
	require.NotContains(t, text, "never asked")
}

func TestSessionStopsOnEOFAndErrors(t *testing.T) {
	m := &stubModel{reply: "x"}
	s := NewSession(newAssistant(&stubRetriever{}, m, Config{}), strings.NewReader("gold"), &bytes.Buffer{})
	require.NoError(t, s.Run(context.Background()))
	require.Len(t, m.prompts, 1)
	require.Equal(t, StateTerminated, s.State())

	boom := errors.New("down")
	s = NewSession(newAssistant(&stubRetriever{err: boom}, m, Config{}), strings.NewReader("gold\nquit\n"), &bytes.Buffer{})
	require.ErrorIs(t, s.Run(context.Background()), boom)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "awaiting_input", StateAwaitingInput.String())
	require.Equal(t, "processing", StateProcessing.String())
	require.Equal(t, "terminated", StateTerminated.String())
}
