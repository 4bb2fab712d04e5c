package catalog

// Module represents a content module loaded from YAML. The progress engine
// treats its exercise counts as the default denominator for percentage
// calculations; the exercise UI remains the authority at answer time.
type Module struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Subject  string `yaml:"subject"`
	Level    string `yaml:"level"`
	Parts    []Part `yaml:"parts"`
	Viewer   Viewer `yaml:"viewer"`
	Revision int    `yaml:"revision"`
}

// Part is a subdivision of a module containing exercises.
type Part struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Exercises int    `yaml:"exercises"`
}

// Viewer holds presentation-layer hints the engine never interprets.
type Viewer struct {
	Scene   string `yaml:"scene,omitempty"`
	ARModel string `yaml:"ar_model,omitempty"`
}

// TotalExercises sums the exercise counts across all parts.
func (m Module) TotalExercises() int {
	total := 0
	for _, p := range m.Parts {
		total += p.Exercises
	}
	return total
}
