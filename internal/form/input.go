package form

import "context"

type inputKey struct{}

// WithInput returns a context carrying values posted by the browser. The
// controller types them into the form it resolves for a submit, after the
// loading check, so a dropped attempt leaves the form untouched.
func WithInput(ctx context.Context, values map[string]string) context.Context {
	return context.WithValue(ctx, inputKey{}, values)
}

func inputFrom(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	values, _ := ctx.Value(inputKey{}).(map[string]string)
	return values
}
