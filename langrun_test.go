package langrun_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aretw0/langrun"
	"github.com/aretw0/langrun/pkg/adapters/dryrun"
	"github.com/aretw0/langrun/pkg/adapters/memory"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixture = filepath.Join("pkg", "flow", "testdata", "basic.json")

func noEnv(string) (string, bool) { return "", false }

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func templateValue(t *testing.T, f *domain.Flow, nodeID, field string) any {
	t.Helper()
	for _, n := range f.Nodes() {
		if n.ID == nodeID {
			return n.Template[field].(map[string]any)["value"]
		}
	}
	t.Fatalf("node %s not found", nodeID)
	return nil
}

func TestRunFlowFromJSON_ForwardsInputUnmodified(t *testing.T) {
	exec := dryrun.New()

	resp, err := langrun.RunFlowFromJSON(context.Background(), fixture, langrun.RunInput{
		InputValue:        "message",
		SessionID:         "",
		FallbackToEnvVars: true,
		Tweaks: langrun.Tweaks{
			"ChatInput-5Jlkw":               map[string]any{},
			"GoogleGenerativeAIModel-VIX5X": map[string]any{},
		},
	}, langrun.WithExecutor(exec), langrun.WithEnvLookup(env(map[string]string{"GOOGLE_API_KEY": "k"})))
	require.NoError(t, err)
	assert.Equal(t, "message", resp.FirstText())

	call, ok := exec.Last()
	require.True(t, ok)
	assert.Equal(t, "message", call.Input.InputValue)
	assert.Equal(t, "", call.Input.SessionID)
	assert.True(t, call.Input.FallbackToEnvVars)
	assert.Equal(t, domain.InputTypeChat, call.Input.InputType)
	assert.Equal(t, domain.OutputTypeChat, call.Input.OutputType)
	assert.Equal(t, "k", templateValue(t, call.Flow, "GoogleGenerativeAIModel-VIX5X", "google_api_key"))
}

func TestEngine_RunAppliesTweaksToACopy(t *testing.T) {
	src, err := flow.ReadFile(fixture)
	require.NoError(t, err)

	exec := dryrun.New()
	eng, err := langrun.New(langrun.WithExecutor(exec), langrun.WithVariableStore(memory.NewVariables(map[string]string{"GOOGLE_API_KEY": "stored"})))
	require.NoError(t, err)

	tw := langrun.Tweaks{"Chat Input": map[string]any{"input_value": "hi"}}
	_, err = eng.Run(context.Background(), src, langrun.RunInput{InputValue: "hi", Tweaks: tw})
	require.NoError(t, err)

	call, _ := exec.Last()
	assert.Equal(t, "hi", templateValue(t, call.Flow, "ChatInput-5Jlkw", "input_value"))
	assert.Equal(t, "stored", templateValue(t, call.Flow, "GoogleGenerativeAIModel-VIX5X", "google_api_key"))
	assert.Equal(t, tw, call.Input.Tweaks)
	call.Input.Tweaks["Chat Input"].(map[string]any)["input_value"] = "changed"

	assert.Equal(t, "", templateValue(t, src, "ChatInput-5Jlkw", "input_value"))
	assert.Equal(t, "GOOGLE_API_KEY", templateValue(t, src, "GoogleGenerativeAIModel-VIX5X", "google_api_key"))
	assert.Equal(t, langrun.Tweaks{"Chat Input": map[string]any{"input_value": "hi"}}, tw)
}

func TestEngine_KeepsExplicitIOTypes(t *testing.T) {
	exec := dryrun.New()
	eng, err := langrun.New(langrun.WithExecutor(exec), langrun.WithEnvLookup(env(map[string]string{"GOOGLE_API_KEY": "k"})))
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), fixture, langrun.RunInput{
		InputType:         "text",
		OutputType:        "any",
		OutputComponent:   "ChatOutput-lMVlG",
		FallbackToEnvVars: true,
	})
	require.NoError(t, err)

	call, _ := exec.Last()
	assert.Equal(t, "text", call.Input.InputType)
	assert.Equal(t, "any", call.Input.OutputType)
	assert.Equal(t, "ChatOutput-lMVlG", call.Input.OutputComponent)
}

func TestEngine_Errors(t *testing.T) {
	exec := dryrun.New(dryrun.WithStrictVariables())
	eng, err := langrun.New(langrun.WithExecutor(exec), langrun.WithEnvLookup(noEnv), langrun.WithStrictTweaks(true))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.Run(ctx, filepath.Join(t.TempDir(), "missing.json"), langrun.RunInput{})
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	_, err = eng.Run(ctx, fixture, langrun.RunInput{FallbackToEnvVars: true})
	assert.ErrorIs(t, err, domain.ErrVariableNotFound)

	_, err = eng.Run(ctx, fixture, langrun.RunInput{Tweaks: langrun.Tweaks{"Nope-1": map[string]any{"x": 1}}})
	assert.ErrorIs(t, err, domain.ErrUnknownNode)

	assert.Empty(t, exec.Calls(), "nothing is executed when preparation fails")
}

func TestEngine_UnresolvedVariablesAreLeftForTheExecutor(t *testing.T) {
	exec := dryrun.New()
	_, err := langrun.RunFlowFromJSON(context.Background(), fixture, langrun.RunInput{InputValue: "message"},
		langrun.WithExecutor(exec), langrun.WithEnvLookup(env(map[string]string{"GOOGLE_API_KEY": "k"})))
	require.NoError(t, err)

	call, ok := exec.Last()
	require.True(t, ok)
	for _, n := range call.Flow.Nodes() {
		if n.ID == "GoogleGenerativeAIModel-VIX5X" {
			field := n.Template["google_api_key"].(map[string]any)
			assert.Equal(t, "GOOGLE_API_KEY", field["value"], "environment is not read without fallback")
			assert.Equal(t, true, field["load_from_db"])
		}
	}
}

func TestEngine_StrictExecutorRequiresVariables(t *testing.T) {
	exec := dryrun.New(dryrun.WithStrictVariables())
	_, err := langrun.RunFlowFromJSON(context.Background(), fixture, langrun.RunInput{InputValue: "message"},
		langrun.WithExecutor(exec), langrun.WithEnvLookup(noEnv))
	require.ErrorIs(t, err, domain.ErrVariableNotFound)
	assert.Empty(t, exec.Calls())
}

func TestEngine_EnvAllowlist(t *testing.T) {
	exec := dryrun.New()
	eng, err := langrun.New(
		langrun.WithExecutor(exec),
		langrun.WithEnvLookup(env(map[string]string{"GOOGLE_API_KEY": "k"})),
		langrun.WithEnvAllowlist("OPENAI_API_KEY"),
	)
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), fixture, langrun.RunInput{FallbackToEnvVars: true})
	require.NoError(t, err)

	call, _ := exec.Last()
	assert.Equal(t, "GOOGLE_API_KEY", templateValue(t, call.Flow, "GoogleGenerativeAIModel-VIX5X", "google_api_key"))
}

func TestEngine_ExecutorErrorIsReturned(t *testing.T) {
	eng, err := langrun.New(
		langrun.WithExecutor(dryrun.NewFailing(domain.ErrExecution)),
		langrun.WithEnvLookup(env(map[string]string{"GOOGLE_API_KEY": "k"})),
	)
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), fixture, langrun.RunInput{FallbackToEnvVars: true})
	assert.ErrorIs(t, err, domain.ErrExecution)
}

func TestEngine_Hooks(t *testing.T) {
	var mu sync.Mutex
	var started, finished []*domain.RunEvent
	var tweaked []string

	hooks := domain.LifecycleHooks{
		OnRunStart: func(_ context.Context, e *domain.RunEvent) {
			mu.Lock()
			defer mu.Unlock()
			started = append(started, e)
		},
		OnTweakApplied: func(_ context.Context, e *domain.TweakEvent) {
			mu.Lock()
			defer mu.Unlock()
			tweaked = append(tweaked, e.NodeID+"."+e.Field)
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			mu.Lock()
			defer mu.Unlock()
			finished = append(finished, e)
		},
	}

	eng, err := langrun.New(
		langrun.WithExecutor(dryrun.NewFailing(errors.New("boom"))),
		langrun.WithLifecycleHooks(hooks),
		langrun.WithEnvLookup(env(map[string]string{"GOOGLE_API_KEY": "k"})),
	)
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), fixture, langrun.RunInput{
		FallbackToEnvVars: true,
		Tweaks:            langrun.Tweaks{"ChatInput-5Jlkw": map[string]any{"input_value": "x"}},
	})
	require.Error(t, err)

	require.Len(t, started, 1)
	require.Len(t, finished, 1)
	assert.Equal(t, started[0].RunID, finished[0].RunID)
	assert.Equal(t, "Basic Prompting", finished[0].FlowName)
	assert.EqualError(t, finished[0].Err, "boom")
	assert.Equal(t, []string{"ChatInput-5Jlkw.input_value"}, tweaked)
}

func TestEngine_RecordsSessions(t *testing.T) {
	store := memory.NewStore()
	eng, err := langrun.New(
		langrun.WithExecutor(dryrun.New()),
		langrun.WithSessionStore(store),
		langrun.WithEnvLookup(env(map[string]string{"GOOGLE_API_KEY": "k"})),
	)
	require.NoError(t, err)
	ctx := context.Background()

	for _, msg := range []string{"first", "second"} {
		_, err := eng.Run(ctx, fixture, langrun.RunInput{InputValue: msg, SessionID: "chat-1", FallbackToEnvVars: true})
		require.NoError(t, err)
	}

	sess, err := store.Load(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, sess.Exchanges, 2)
	assert.Equal(t, "first", sess.Exchanges[0].Input)
	assert.Equal(t, "second", sess.Exchanges[1].Output)
	assert.Equal(t, "0b6a1f4e-2b7e-4c53-9d7a-6f1f0c1d9a11", sess.FlowID)

	_, err = eng.Run(ctx, fixture, langrun.RunInput{InputValue: "anon", FallbackToEnvVars: true})
	require.NoError(t, err)
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat-1"}, ids, "an empty session id persists nothing")
}

func TestEngine_FailedRunIsNotRecorded(t *testing.T) {
	store := memory.NewStore()
	eng, err := langrun.New(
		langrun.WithExecutor(dryrun.NewFailing(domain.ErrExecution)),
		langrun.WithSessionStore(store),
		langrun.WithEnvLookup(env(map[string]string{"GOOGLE_API_KEY": "k"})),
	)
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), fixture, langrun.RunInput{SessionID: "s", FallbackToEnvVars: true})
	require.ErrorIs(t, err, domain.ErrExecution)

	_, err = store.Load(context.Background(), "s")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestNew_DefaultExecutorIsLangflow(t *testing.T) {
	t.Setenv("LANGFLOW_BASE_URL", "http://langflow.internal:7860")
	eng, err := langrun.New()
	require.NoError(t, err)
	assert.NotNil(t, eng.Executor())
	assert.Nil(t, eng.Sessions())
}

func TestNew_EnvFileMissing(t *testing.T) {
	_, err := langrun.New(langrun.WithExecutor(dryrun.New()), langrun.WithEnvFile(filepath.Join(t.TempDir(), "nope.env")))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, langrun.Version)
}
