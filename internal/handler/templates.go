package handler

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/campuscircle/internal/csrf"
	"github.com/DukeRupert/campuscircle/internal/notify"
)

// TemplateFuncs returns the functions available to page templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},

		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"title": func(v any) string {
			return cases.Title(language.English).String(fmt.Sprint(v))
		},
		"hasPrefix": strings.HasPrefix,

		"ternary": func(condition bool, trueVal, falseVal any) any {
			if condition {
				return trueVal
			}
			return falseVal
		},
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil
				}
				dict[key] = values[i+1]
			}
			return dict
		},

		"csrfField": func(token string) template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`,
				csrf.FormFieldName, template.HTMLEscapeString(token)))
		},

		// Toast styling by notification type
		"toastAccent": func(t notify.Type) string {
			switch t {
			case notify.TypeSuccess:
				return "border-green-500 text-green-800"
			case notify.TypeError:
				return "border-red-500 text-red-800"
			case notify.TypeWarning:
				return "border-yellow-500 text-yellow-800"
			default:
				return "border-blue-500 text-blue-800"
			}
		},
		"flashClass": func(kind string) string {
			switch kind {
			case "success":
				return "bg-green-50 text-green-800"
			case "error":
				return "bg-red-50 text-red-800"
			default:
				return "bg-blue-50 text-blue-800"
			}
		},
	}
}
