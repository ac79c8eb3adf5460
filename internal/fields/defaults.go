package fields

import "fmt"

// DefaultSections returns the built-in catalog. stylesheetURI is shown as
// an example entry of the CSS exclusion list.
func DefaultSections(stylesheetURI string) []Section {
	return []Section{
		{
			ID:    "general",
			Title: "General",
			Icon:  "settings",
			Fields: []Field{
				toggle("disable-emojis", "Disable Emojis", "Remove emoji detection scripts and styles from the page head."),
				toggle("disable-dashicons", "Disable Dashicons", "Disable Dashicons on frontend."),
				toggle("disable-embeds", "Disable Embeds", "Disable oEmbed discovery links and the embed host script."),
				toggle("disable-shortlink", "Disable Shortlink", "Disable shortlink meta tag from head section."),
				toggle("disable-rss-feeds", "Disable RSS Feeds", "Disable generated RSS feeds and point visitors to the home page."),
				toggle("disable-self-pingback", "Disable Self Pingback", "Disable self-pingback to reduce server load."),
				toggle("disable-comments", "Disable Comments", "Completely disable comments functionality. This will also disable comment URLs."),
				{
					ID:          "disable-comment-urls",
					Title:       "Disable Comment URLs",
					Description: "Disable comment author URLs on posts.",
					Type:        TypeSwitch,
					Dependency:  []any{"disable-comments", "!==", "1"},
				},
				toggle("add-blank-favicon", "Add Blank Favicon", "Add a blank favicon to the page head, which prevents a missing favicon request. Leave this off if the site already has a favicon."),
				{
					ID:          "disable-heartbeat",
					Title:       "Disable Heartbeat",
					Description: "Disable the heartbeat API.",
					Type:        TypeDropdown,
					Options: []Option{
						{Value: "default", Label: "Default"},
						{Value: "disable", Label: "Disable"},
						{Value: "only-editing", Label: "Only When Editing Posts/Pages"},
					},
				},
				{
					ID:          "heartbeat-frequency",
					Title:       "Heartbeat Frequency",
					Description: "Set the heartbeat frequency in seconds.",
					Type:        TypeNumber,
					Bounds:      &Bounds{Min: 10, Max: 120, Step: 1},
					Default:     "60",
					Dependency:  []any{"disable-heartbeat", "!==", "disable"},
				},
				{
					ID:          "limit-post-revisions",
					Title:       "Limit Post Revisions",
					Description: "Limit the number of stored post revisions.",
					Type:        TypeNumber,
					Bounds:      &Bounds{Min: -1, Max: 9999, Step: 1},
					Default:     "5",
				},
				{
					ID:          "autosave-interval",
					Title:       "Autosave Interval",
					Description: "Set the autosave interval in seconds.",
					Type:        TypeNumber,
					Bounds:      &Bounds{Min: 60, Max: 600, Step: 10},
					Default:     "60",
				},
			},
		},
		{
			ID:    "html",
			Title: "HTML",
			Icon:  "html",
			Fields: []Field{
				toggle("remove-html-comments", "Remove HTML Comments", "Remove HTML comments from the rendered page."),
				toggle("minify-html", "Minify HTML", "Minify HTML to reduce file size and improve load times."),
			},
		},
		{
			ID:    "css",
			Title: "CSS",
			Icon:  "css",
			Fields: []Field{
				toggle("remove-global-styles", "Remove Global Styles", "Remove the inline global styles related to core blocks."),
				toggle("separate-block-styles", "Separate Block Styles", "Load core block styles only when they are rendered instead of in a global stylesheet."),
				toggle("minify-css", "Minify CSS", "Minify CSS files to reduce file size and improve load times."),
				{
					ID:          "exclude-css",
					Title:       "Exclude CSS",
					Description: "Exclude specific CSS files from minification and combination by adding the source URL. Format: one per line.",
					Type:        TypeTextarea,
					Placeholder: fmt.Sprintf("Example: \nhttps://example.com/style.css\n%s", stylesheetURI),
					Dependency: map[string]any{
						"relation": "OR",
						"conditions": []any{
							map[string]any{"field": "minify-css", "operator": "==", "value": "1"},
							map[string]any{"field": "combine-css", "operator": "==", "value": "1"},
						},
					},
				},
				{
					ID:          "output-type-css",
					Title:       "Output Type",
					Description: "Serve minified CSS as a cached file or inline in the page head.",
					Type:        TypeDropdown,
					Options: []Option{
						{Value: "file", Label: "File"},
						{Value: "internal", Label: "Internal"},
					},
					Default: "file",
				},
			},
		},
		{
			ID:    "javascript",
			Title: "JavaScript",
			Icon:  "javascript",
			Fields: []Field{
				toggle("remove-jquery-migrate", "Remove jQuery Migrate", "Remove jQuery Migrate script if not needed by your plugins."),
			},
		},
		{
			ID:    "media",
			Title: "Assets & Media",
			Icon:  "animated_images",
		},
		{
			ID:    "security",
			Title: "Security",
			Icon:  "shield",
			Fields: []Field{
				toggle("hide-wp-version", "Hide Version", "Remove the generator version meta tag."),
				toggle("disable-xml-rpc", "Disable XML-RPC", "Disable XML-RPC for better security (may break mobile apps)."),
				{
					ID:          "disable-rest-api",
					Title:       "REST API Access",
					Description: "Restrict or disable the REST API.",
					Type:        TypeDropdown,
					Options: []Option{
						{Value: "active", Label: "Active"},
						{Value: "admin-only", Label: "Only For Administrator"},
						{Value: "disable", Label: "Disable"},
					},
				},
				{
					ID:          "remove-rest-api-link",
					Title:       "Remove REST API Link",
					Description: "Remove REST API link from head. API still works if accessed directly.",
					Type:        TypeSwitch,
					Dependency:  []any{"disable-rest-api", "!==", "disable"},
				},
			},
		},
	}
}

func toggle(id, title, description string) Field {
	return Field{ID: id, Title: title, Description: description, Type: TypeSwitch}
}
