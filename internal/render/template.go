package render

const pageTemplate = `
{{define "field"}}<div class="flex gap-6 py-6 border-zinc-300" data-field-id="{{.Field.ID}}"{{if .Config}} data-dependency-config="{{.Config}}"{{with .Single}} data-dependency-field="{{.Field}}" data-dependency-operator="{{.Operator}}" data-dependency-value="{{.Value.String}}"{{end}}{{end}}{{if not .Visible}} style="display:none;"{{end}}>
{{- if .Field.Title}}<h4 class="mt-0! w-40">{{.Field.Title}}</h4>{{end -}}
<div class="flex flex-col gap-4">
{{- if .Field.Type.IsToggle -}}
<label class="flex cursor-pointer"><input type="checkbox" class="hidden! peer" name="{{.Name}}" value="1"{{if .Checked}} checked{{end}} /><span class="bg-zinc-300 w-15 h-6 rounded-full relative {{.ActiveColor}} transition-bg duration-300"></span></label>
{{- else if eq .Field.Type "dropdown" -}}
<select class="opticore-input-select w-80!" name="{{.Name}}">
{{- range .Field.Options}}<option value="{{.Value}}"{{if eq $.Current .Value}} selected{{end}}>{{.Label}}</option>{{end -}}
</select>
{{- else if eq .Field.Type "number" -}}
<input type="number" class="opticore-input-number w-80!" name="{{.Name}}" value="{{.Current}}"{{if .Field.Bounds}} min="{{.Min}}" max="{{.Max}}" step="{{.Step}}"{{end}}>
{{- else if eq .Field.Type "textarea" -}}
<textarea class="opticore-input-textarea w-full! h-40!" rows="20" name="{{.Name}}" placeholder="{{.Field.Placeholder}}">{{.Current}}</textarea>
{{- else -}}
<input type="text" class="opticore-input-text w-80!" name="{{.Name}}" value="{{.Current}}">
{{- end -}}
{{- if .Description}}<div class="text-zinc-500">{{.Description}}</div>{{end -}}
</div></div>
{{end}}

{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.StaticURL}}/css/opticore.css">
</head>
<body>
<form method="post" action="{{.SaveURL}}" class="flex flex-col gap-4 opticore-settings-form">
<input type="hidden" name="opticore-nonce" value="{{.Nonce}}">
<input type="hidden" name="action" value="opticore-save-settings">
<header class="flex justify-between items-center p-6">
<h1>Settings</h1>
<div class="flex gap-4 items-center">
<button type="reset" class="opticore-button-reset">Reset All</button>
<button type="submit" class="opticore-button-save">Save Changes</button>
</div>
</header>
<div class="flex gap-4">
<div class="flex flex-col w-75">
<nav class="opticore-menu">
{{- range .Sections}}
<a href="#{{.ID}}" class="settings-menu-item{{if .Active}} active{{end}}"><span class="material-symbols-outlined">{{.Icon}}</span>{{.Title}}</a>
{{- end}}
</nav>
<span class="text-zinc-500 opticore-version">Version {{.Version}}</span>
</div>
<div class="flex flex-col grow">
{{- range .Sections}}
<section class="settings-menu-section" id="section-{{.ID}}"{{if not .Active}} style="display:none;"{{end}}>
{{- if .Title}}<h3><span class="material-symbols-outlined">{{.Icon}}</span>{{.Title}}</h3>{{end}}
{{range .Fields}}{{template "field" .}}{{end -}}
</section>
{{- end}}
</div>
</div>
<div class="opticore-notice" role="status" hidden></div>
</form>
<script>window.opticore = {ajaxUrl: {{.SaveURL}}, nonce: {{.Nonce}}};</script>
<script src="{{.StaticURL}}/js/opticore.js"></script>
</body>
</html>
{{end}}
`
