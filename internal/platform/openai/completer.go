package openai

import "context"

// Completer adapts a Client to the single-call completion contract of the
// minutes extractor, always requesting the given output schema.
type Completer struct {
	client     Client
	schemaName string
	schema     map[string]any
}

func NewCompleter(c Client, schemaName string, schema map[string]any) *Completer {
	return &Completer{client: c, schemaName: schemaName, schema: schema}
}

func (c *Completer) Complete(ctx context.Context, system, user string) (string, error) {
	if c.schema == nil {
		return c.client.GenerateText(ctx, system, user)
	}
	return c.client.GenerateJSON(ctx, system, user, c.schemaName, c.schema)
}
