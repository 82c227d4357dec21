/*
Package runner is the request layer shared by langrun's remote surfaces.

A Request names a flow (or carries it inline), the input, the session and the
tweaks to apply. Service validates it and strips control characters from the
input and tweak values. The flow comes from a ports.FlowLoader; tweak presets
from a ports.PresetStore are layered under the explicit tweaks before the run
is handed to a langrun.Engine.

	svc := runner.NewService(engine,
		runner.WithLoader(flow.NewDirLoader("./flows")),
		runner.WithPresets(presets),
	)

	resp, err := svc.Run(ctx, runner.Request{
		Flow:       "astradb-rag",
		InputValue: "What is in the handbook?",
		Presets:    []string{"astra-prod"},
	})
*/
package runner
