package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/aretw0/langrun/internal/presentation/tui"
	"github.com/aretw0/langrun/pkg/adapters/memory"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/flow"
	"github.com/aretw0/langrun/pkg/ports"
	"github.com/aretw0/langrun/pkg/runner"
	"github.com/aretw0/langrun/pkg/tweaks"
)

// RunOptions contains everything the run command accepts.
type RunOptions struct {
	// Flow is a path to a flow file or the name of a flow in the flows directory.
	Flow              string
	Input             string
	SessionID         string
	FallbackToEnvVars bool
	TweaksFile        string
	Tweaks            []string
	Presets           []string
	InputType         string
	OutputType        string
	OutputComponent   string
	JSON              bool
}

// Overrides reads the tweaks file and layers the Node.field=value assignments on top.
func (o RunOptions) Overrides() (domain.Tweaks, error) {
	var layers []domain.Tweaks
	if o.TweaksFile != "" {
		t, err := tweaks.ReadFile(o.TweaksFile)
		if err != nil {
			return nil, err
		}
		layers = append(layers, t)
	}
	if len(o.Tweaks) > 0 {
		t, err := tweaks.ParseAssignments(o.Tweaks)
		if err != nil {
			return nil, err
		}
		layers = append(layers, t)
	}
	if len(layers) == 0 {
		return nil, nil
	}
	return tweaks.Merge(layers...), nil
}

// Run executes one flow and writes its result to w.
func Run(ctx context.Context, app *App, opts RunOptions, w io.Writer) error {
	overrides, err := opts.Overrides()
	if err != nil {
		return err
	}

	svc, name, err := serviceFor(app, opts.Flow)
	if err != nil {
		return err
	}

	resp, err := svc.Run(ctx, runner.Request{
		Flow:              name,
		InputValue:        opts.Input,
		InputType:         opts.InputType,
		OutputType:        opts.OutputType,
		OutputComponent:   opts.OutputComponent,
		SessionID:         opts.SessionID,
		FallbackToEnvVars: opts.FallbackToEnvVars,
		Tweaks:            overrides,
		Presets:           opts.Presets,
	})
	if err != nil {
		return err
	}

	if opts.JSON {
		return WriteJSON(w, resp)
	}
	return WriteText(w, resp, tui.ForWriter(w))
}

// WriteText prints the first text output through render, or the whole
// response as JSON when the flow produced no text.
func WriteText(w io.Writer, resp *domain.RunResponse, render tui.Renderer) error {
	text := resp.FirstText()
	if text == "" {
		return WriteJSON(w, resp)
	}
	out, err := render(text)
	if err != nil {
		// Markdown rendering is cosmetic; fall back to the raw text.
		if out, err = tui.Plain(text); err != nil {
			return fmt.Errorf("render output: %w", err)
		}
	}
	_, err = io.WriteString(w, out)
	return err
}

// LoadFlow resolves a flow argument: an existing file, or a name served by the app's loader.
func LoadFlow(ctx context.Context, app *App, arg string) (*domain.Flow, error) {
	if isFile(arg) {
		return flow.ReadFile(arg)
	}
	return app.Service.Flow(ctx, arg)
}

// serviceFor returns a local service able to load arg by name. Files outside
// the flows directory are served by a one-flow loader sharing the app's engine and presets.
func serviceFor(app *App, arg string) (*runner.Service, string, error) {
	if !isFile(arg) {
		return localService(app, app.Service.Loader()), arg, nil
	}
	f, err := flow.ReadFile(arg)
	if err != nil {
		return nil, "", err
	}
	return localService(app, memory.NewFromFlows(f)), f.Name, nil
}

// localService serves runs started from the command line. The operator owns
// the environment here, so fallback_to_env_vars is honoured.
func localService(app *App, loader ports.FlowLoader) *runner.Service {
	return runner.NewService(app.Engine,
		runner.WithLoader(loader),
		runner.WithPresets(app.Service.Presets()),
		runner.WithLogger(app.Logger),
		runner.WithEnvFallback(true),
	)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err != nil || !info.IsDir()
}

// ErrorMessage renders err for the terminal.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrFlowNotFound):
		return fmt.Sprintf("%v (pass a flow file or set flows_dir)", err)
	case errors.Is(err, domain.ErrVariableNotFound):
		return fmt.Sprintf("%v (set it in the environment and use --fallback-to-env-vars)", err)
	}
	return err.Error()
}
