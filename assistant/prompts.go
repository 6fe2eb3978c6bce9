package assistant

import (
	"encoding/json"
	"strings"
	"text/template"
)

var promptFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
}

var selectPrompt = template.Must(template.New("select").Funcs(promptFuncs).Parse(`
You are a task assistant. The user may request multiple actions in one prompt.

Available tools:
{{json .Tools}}

Conversation context:
{{.Input}}

Analyze the request and identify ALL needed tools. Respond ONLY as JSON with:
{
  "tools": [
    {"tool": "tool_name1"},
    {"tool": "tool_name2"}
  ]
}
If no tools are needed, respond with:
{
  "user_message": "your answer, giving the user the information they need without using any tools"
}
`))

var extractPrompt = template.Must(template.New("extract").Funcs(promptFuncs).Parse(`
The user requested one or more actions. For each needed tool, extract the arguments.

Today's date: {{.Today}}
User categories: {{json .Categories}}

Conversation context:
{{.Input}}

Tools needed: {{json .Tools}}

For each tool, here's the schema:
{{json .Schemas}}

Respond ONLY as JSON in this format:
{
  "tool_calls": [
    {"tool": "tool_name1", "args": {}},
    {"tool": "tool_name2", "args": {}}
  ]
}
`))

var summarizePrompt = template.Must(template.New("summarize").Funcs(promptFuncs).Parse(`
You are an AI assistant for a task management application. You executed tools with these results:
{{json .Results}}

Conversation context: {{.Input}}

Respond ONLY in JSON format like this:
{
  "user_message": "Your final message summarizing all actions in the user's language",
  "details": [
    "Brief description of action 1",
    "Brief description of action 2"
  ],
  "language": "The language the user is using (e.g., English, Spanish, etc.)"
}

Make your response clear, concise, and helpful. Summarize all actions taken in the same language the user used in the conversation context.
`))

var nativeSystemPrompt = template.Must(template.New("native").Funcs(promptFuncs).Parse(`
You are a task assistant for a task management application. Use the provided tools to act on the user's request; you may call several tools. When you are done, reply with a short summary of what you did in the language the user wrote in.

Today's date: {{.Today}}
User categories: {{json .Categories}}
`))

// categoryRef is how categories are shown to the model.
type categoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
