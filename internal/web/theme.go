package web

// Theme holds the colors injected into the form page.
type Theme struct {
	Name      string
	Primary   string
	PrimaryHi string
	Secondary string
	Neutral   string
}

var themes = map[string]Theme{
	"orange": {Name: "orange", Primary: "#f97316", PrimaryHi: "#ea580c", Secondary: "#06b6d4", Neutral: "#64748b"},
	"blue":   {Name: "blue", Primary: "#3b82f6", PrimaryHi: "#2563eb", Secondary: "#06b6d4", Neutral: "#64748b"},
	"purple": {Name: "purple", Primary: "#a855f7", PrimaryHi: "#9333ea", Secondary: "#ec4899", Neutral: "#71717a"},
	"green":  {Name: "green", Primary: "#22c55e", PrimaryHi: "#16a34a", Secondary: "#14b8a6", Neutral: "#737373"},
}

// themeByName returns the named theme, falling back to orange.
func themeByName(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["orange"]
}
