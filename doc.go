/*
Package langrun runs Langflow flows from Go.

A flow is the JSON document Langflow exports: a graph of components (chat
input, prompt, model, vector store, memory, chat output...). langrun loads that
document, applies a Tweaks mapping of per-node field overrides, resolves
fields that reference stored variables, and hands the prepared flow to an
Executor. The default executor talks to a Langflow server over HTTP.

# Usage

	tweaks := langrun.Tweaks{
		"ChatInput-5Jlkw":              map[string]any{},
		"GoogleGenerativeAIModel-VIX5X": map[string]any{"temperature": 0.2},
	}

	resp, err := langrun.RunFlowFromJSON(ctx, "langflow.json", langrun.RunInput{
		InputValue:        "message",
		SessionID:         "",
		FallbackToEnvVars: true,
		Tweaks:            tweaks,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(resp.FirstText())

# Tweaks

Keys name a node by id ("ChatInput-5Jlkw") or by display name ("Chat Input").
Values are objects of field overrides. A key whose value is not an object
applies to every node that declares that field. See package tweaks for the
exact rules.

# Sessions

Runs that carry a session id are recorded when the Engine has a session
manager (WithSessionStore). Runs of the same session are serialised; an empty
session id persists nothing.
*/
package langrun
