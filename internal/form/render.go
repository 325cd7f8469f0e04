package form

import (
	"bytes"
	"html/template"
	"sort"

	twmerge "github.com/Oudwins/tailwind-merge-go"
)

const (
	inputBaseClass  = "block w-full rounded-md border-0 px-3 py-2 text-gray-900 shadow-sm ring-1 ring-inset ring-gray-300 placeholder:text-gray-400 focus:ring-2 focus:ring-inset focus:ring-indigo-600 sm:text-sm"
	inputErrorClass = "is-invalid text-red-900 ring-red-500 placeholder:text-red-300 focus:ring-red-600"
	buttonBaseClass = "flex w-full items-center justify-center gap-2 rounded-md bg-indigo-600 px-3 py-2 text-sm font-semibold text-white shadow-sm hover:bg-indigo-500"
	buttonBusyClass = "cursor-not-allowed bg-indigo-400 hover:bg-indigo-400"
)

var formTemplate = template.Must(template.New("form").Funcs(template.FuncMap{
	"cx": func(classes ...string) string { return twmerge.Merge(classes...) },
}).Parse(`<form id="{{.ID}}" method="post" action="{{.Action}}" novalidate hx-post="{{.Action}}" hx-target="this" hx-swap="outerHTML" hx-disabled-elt="find button[type='submit']"{{if .Loading}} aria-busy="true"{{end}}>
{{- range .Hidden}}<input type="hidden" name="{{.Name}}" value="{{.Value}}">{{end}}
{{- if .GeneralError}}<div id="{{.ID}}-error" class="mb-4 rounded-md bg-red-50 p-4 text-sm text-red-700" role="alert">{{.GeneralError}}</div>{{end}}
{{- range .Fields}}<div class="mb-4">
<label for="{{.DOMID}}" class="block text-sm font-medium text-gray-900">{{.Label}}{{if .Required}} <span class="text-red-600">*</span>{{end}}</label>
{{- if eq .InputType "textarea"}}<textarea id="{{.DOMID}}" name="{{.Name}}" class="{{.Class}}" rows="3"{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Required}} required{{end}}>{{.Value}}</textarea>
{{- else}}<input type="{{.InputType}}" id="{{.DOMID}}" name="{{.Name}}" class="{{.Class}}" value="{{.Value}}"{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Required}} required{{end}}{{if .Error}} aria-invalid="true"{{end}}>{{end}}
{{- if .Error}}<div class="invalid-feedback mt-1 text-sm text-red-600">{{.Error}}</div>{{end}}
{{- if .HelpText}}<p class="form-text mt-1 text-xs text-gray-500">{{.HelpText}}</p>{{end}}
</div>{{end}}
<button type="submit" id="{{.SubmitID}}" name="{{.SubmitName}}" value="submit" class="{{cx .ButtonBase .ButtonState}}"{{if .Loading}} disabled{{end}}>
{{- if .Loading}}<span class="spinner-border size-4 animate-spin rounded-full border-2 border-white border-t-transparent" aria-hidden="true"></span>{{.BusyLabel}}{{else}}{{.SubmitLabel}}{{end -}}
</button>
</form>`))

// SubmitControlName is the name attribute of every submit control. Browsers
// include it in the posted values only when the control itself was clicked.
const SubmitControlName = "_submit"

type hiddenView struct {
	Name  string
	Value string
}

type fieldView struct {
	FieldSpec
	Value string
	Error string
	Class string
}

type formView struct {
	ID           string
	Action       string
	Hidden       []hiddenView
	GeneralError string
	Fields       []fieldView
	SubmitID     string
	SubmitName   string
	SubmitLabel  string
	BusyLabel    string
	Loading      bool
	ButtonBase   string
	ButtonState  string
}

// renderMarkup is a pure function of the definition, the hidden inputs and the state.
func renderMarkup(def Definition, hidden map[string]string, st State) (string, error) {
	view := formView{
		ID:           def.ID,
		Action:       def.Action,
		GeneralError: st.GeneralError,
		SubmitID:     def.SubmitID(),
		SubmitName:   SubmitControlName,
		SubmitLabel:  def.SubmitLabel,
		BusyLabel:    def.BusyLabel,
		Loading:      st.Loading,
		ButtonBase:   buttonBaseClass,
	}
	if view.BusyLabel == "" {
		view.BusyLabel = DefaultBusyLabel
	}
	if st.Loading {
		view.ButtonState = buttonBusyClass
	}

	names := make([]string, 0, len(hidden))
	for name := range hidden {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		view.Hidden = append(view.Hidden, hiddenView{Name: name, Value: hidden[name]})
	}

	for _, f := range def.Fields {
		fv := fieldView{FieldSpec: f, Error: st.FieldErrors[f.Name], Class: inputBaseClass}
		if !f.Secret() {
			fv.Value = st.Values[f.Name]
		}
		if fv.Error != "" {
			fv.Class = twmerge.Merge(inputBaseClass, inputErrorClass)
		}
		view.Fields = append(view.Fields, fv)
	}

	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
