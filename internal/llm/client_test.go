package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fyrsmithlabs/treedoc/internal/logging"
	"github.com/fyrsmithlabs/treedoc/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func fakeClient(maxRetries int, results ...error) (*langchainClient, *int) {
	calls := 0
	return &langchainClient{
		generate: func(ctx context.Context, model, prompt string) (string, error) {
			i := calls
			calls++
			if i < len(results) && results[i] != nil {
				return "", results[i]
			}
			return model + ":" + prompt, nil
		},
		maxRetries:  maxRetries,
		baseBackoff: time.Millisecond,
	}, &calls
}

func TestComplete_RetriesTransient(t *testing.T) {
	c, calls := fakeClient(2, errors.New("API returned unexpected status code: 429"), errors.New("503 overloaded"))

	out, err := c.Complete(context.Background(), "gpt-4", "hi")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4:hi", out)
	assert.Equal(t, 3, *calls)
}

func TestComplete_GivesUp(t *testing.T) {
	c, calls := fakeClient(1, Retryable(errors.New("a")), Retryable(errors.New("b")), nil)

	_, err := c.Complete(context.Background(), "m", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 2, *calls)
}

func TestComplete_PermanentErrorNotRetried(t *testing.T) {
	c, calls := fakeClient(3, errors.New("invalid_request_error: context length exceeded"))

	_, err := c.Complete(context.Background(), "m", "p")
	require.Error(t, err)
	assert.Equal(t, 1, *calls)
}

func TestComplete_CanceledDuringBackoff(t *testing.T) {
	c, _ := fakeClient(5, Retryable(errors.New("x")), Retryable(errors.New("x")))
	c.baseBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, "m", "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{Retryable(errors.New("anything")), true},
		{errors.New("Rate limit reached for requests"), true},
		{errors.New("status 502 bad gateway"), true},
		{errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), "%v", tt.err)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Provider: "openai"})
	assert.Error(t, err)

	_, err = New(Config{Provider: "cohere", APIKey: "k"})
	assert.Error(t, err)

	c, err := New(Config{Provider: "openai", APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = New(Config{Provider: "anthropic", APIKey: "sk-ant", BaseURL: "http://127.0.0.1:1"})
	assert.Error(t, err)

	c, err = New(Config{Provider: "anthropic", APIKey: "sk-ant"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestMock_RecordsCalls(t *testing.T) {
	m := &Mock{}
	out, err := m.Complete(context.Background(), "gpt-4", "p1")
	require.NoError(t, err)
	assert.Equal(t, "summary of gpt-4", out)

	m.Respond = func(ctx context.Context, model, prompt string) (string, error) {
		return "", errors.New("rejected")
	}
	_, err = m.Complete(context.Background(), "gpt-4", "p2")
	assert.Error(t, err)

	assert.Equal(t, []Call{{Model: "gpt-4", Prompt: "p1"}, {Model: "gpt-4", Prompt: "p2"}}, m.Calls())
}

func TestInstrumented(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	tl := logging.NewTestLogger()
	inst := &Instrumented{Inner: &Mock{}, Tracer: tel.Tracer("test"), Logger: tl.Logger}

	out, err := inst.Complete(context.Background(), "gpt-4", "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "summary of gpt-4", out)

	tel.AssertSpanExists(t, "llm.complete")
	tel.AssertSpanAttribute(t, "llm.complete", "llm.model", "gpt-4")
	tl.AssertLogged(t, logging.TraceLevel, "llm prompt")
	tl.AssertLogged(t, logging.TraceLevel, "llm response")

	inst.Inner = &Mock{Respond: func(ctx context.Context, model, prompt string) (string, error) {
		return "", errors.New("boom")
	}}
	_, err = inst.Complete(context.Background(), "gpt-4", "x")
	assert.Error(t, err)
	tl.AssertLogged(t, zapcore.DebugLevel, "llm call failed")
}

func TestOffline(t *testing.T) {
	_, err := Offline{}.Complete(context.Background(), "gpt-4", "x")
	assert.ErrorIs(t, err, ErrOffline)
	assert.False(t, isRetryableError(err))
}
