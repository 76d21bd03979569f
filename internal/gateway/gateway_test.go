package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rahul/stepwright/internal/planning"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{""}, splitMessage("", 10))

	lines := "aaaa\nbbbb\ncccc"
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, splitMessage(lines, 10))

	assert.Equal(t, []string{"abcdefghij", "klm"}, splitMessage("abcdefghijklm", 10))

	long := strings.Repeat("é", 10) // 20 bytes
	chunks := splitMessage(long, 5)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 5)
		assert.True(t, utf8.ValidString(c), "chunk %q", c)
	}
	assert.Equal(t, long, strings.Join(chunks, ""))
}

func TestSplitMessageTelegramLimit(t *testing.T) {
	text := strings.Repeat(strings.Repeat("x", 99)+"\n", 100)
	chunks := splitMessage(text, maxMessageLength)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxMessageLength)
	}
}

type fakeBrain struct {
	answer string
	err    error
	plan   *planning.Plan
}

func (f *fakeBrain) Think(ctx context.Context, chatID, input string) (string, error) {
	return f.answer, f.err
}

func (f *fakeBrain) Plan(ctx context.Context, chatID, input string) *planning.Plan {
	p := *f.plan
	p.Request = input
	return &p
}

func TestRespond(t *testing.T) {
	brain := &fakeBrain{answer: "all good", plan: &planning.Plan{ID: "plan-1", Origin: planning.OriginFallback}}
	tg := &TelegramGateway{Brain: brain}
	ctx := context.Background()

	assert.Equal(t, "all good", tg.respond(ctx, "1", "status"))
	assert.Equal(t, "Usage: /plan <request>", tg.respond(ctx, "1", "/plan"))
	assert.True(t, strings.HasPrefix(tg.respond(ctx, "1", "/plan show the log"), "Plan plan-1 (fallback, 0 steps)"))

	brain.answer = "  "
	assert.Equal(t, "Done, nothing to report.", tg.respond(ctx, "1", "status"))

	brain.err = errors.New("down")
	assert.Equal(t, "I'm having trouble thinking right now...", tg.respond(ctx, "1", "status"))
}

type thinkOnly struct{}

func (thinkOnly) Think(ctx context.Context, chatID, input string) (string, error) { return "", nil }

func TestRespondWithoutPlanner(t *testing.T) {
	tg := &TelegramGateway{Brain: thinkOnly{}}
	assert.Equal(t, "Planning preview is not available.", tg.respond(context.Background(), "1", "/plan x"))
}
