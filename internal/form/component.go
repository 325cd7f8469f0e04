package form

import (
	"context"
	"errors"
	"io"

	"github.com/a-h/templ"
)

// Component renders the form's current markup as a templ component, so it
// can be written directly to a response or embedded in a page.
func (c *Controller) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		c.mu.Lock()
		markup, err := c.renderLocked()
		c.mu.Unlock()
		if err != nil {
			return err
		}
		if markup == "" {
			return errors.New("form: empty markup")
		}
		_, err = io.WriteString(w, markup)
		return err
	})
}
