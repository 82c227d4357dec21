package domain

// Default input and output component kinds.
const (
	InputTypeChat  = "chat"
	OutputTypeChat = "chat"
)

// RunInput is everything forwarded to an Executor alongside the prepared flow.
type RunInput struct {
	InputValue      string `json:"input_value"`
	InputType       string `json:"input_type,omitempty"`
	OutputType      string `json:"output_type,omitempty"`
	OutputComponent string `json:"output_component,omitempty"`

	// SessionID keys conversational state. Empty means no persistence was requested.
	SessionID string `json:"session_id"`

	// FallbackToEnvVars lets variable-backed fields resolve from the process environment.
	FallbackToEnvVars bool `json:"fallback_to_env_vars"`

	Tweaks Tweaks `json:"tweaks,omitempty"`
}

// RunResponse is the engine's answer. Its structure beyond the helpers below is opaque.
type RunResponse struct {
	SessionID string       `json:"session_id,omitempty"`
	Outputs   []RunOutputs `json:"outputs"`
}

// RunOutputs groups the results produced for one set of inputs.
type RunOutputs struct {
	Inputs  map[string]any `json:"inputs,omitempty"`
	Outputs []ResultData   `json:"outputs"`
}

// ResultData is the output of one terminal component.
type ResultData struct {
	ComponentID          string         `json:"component_id,omitempty"`
	ComponentDisplayName string         `json:"component_display_name,omitempty"`
	Results              map[string]any `json:"results,omitempty"`
	Artifacts            map[string]any `json:"artifacts,omitempty"`
	Messages             []ChatMessage  `json:"messages,omitempty"`
}

// ChatMessage is a message emitted by a chat output component.
type ChatMessage struct {
	Message     any    `json:"message"`
	Sender      string `json:"sender,omitempty"`
	SenderName  string `json:"sender_name,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
}

// Texts collects every textual message found in the response, in order.
func (r *RunResponse) Texts() []string {
	if r == nil {
		return nil
	}
	var texts []string
	for _, group := range r.Outputs {
		for _, out := range group.Outputs {
			if text, ok := messageText(out.Results["message"]); ok {
				texts = append(texts, text)
				continue
			}
			for _, msg := range out.Messages {
				if text, ok := messageText(msg.Message); ok {
					texts = append(texts, text)
				}
			}
		}
	}
	return texts
}

// FirstText returns the first textual message, or "" if there is none.
func (r *RunResponse) FirstText() string {
	texts := r.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}

func messageText(v any) (string, bool) {
	switch m := v.(type) {
	case string:
		return m, m != ""
	case map[string]any:
		if text, ok := m["text"].(string); ok {
			return text, true
		}
	}
	return "", false
}
