package language

// Default returns the built-in registry. Commands run with the workspace as
// working directory, so every path below is relative to it.
func Default() *Registry {
	r, err := NewRegistry(builtin...)
	if err != nil {
		// The table is static; a failure here is a programming error.
		panic(err)
	}
	return r
}

var builtin = []Profile{
	{
		ID:        "python",
		Name:      "Python",
		Extension: ".py",
		Probe:     []string{"python3", "--version"},
		Run:       []string{"python3", "{source}"},
		Image:     "python:3.12-alpine",
	},
	{
		ID:        "javascript",
		Name:      "JavaScript",
		Extension: ".js",
		Probe:     []string{"node", "--version"},
		Run:       []string{"node", "{source}"},
		Image:     "node:22-alpine",
	},
	{
		ID:        "typescript",
		Name:      "TypeScript",
		Extension: ".ts",
		Probe:     []string{"tsc", "--version"},
		Compile:   []string{"tsc", "--outDir", ".", "{source}"},
		Run:       []string{"node", "{name}.js"},
		Image:     "coderunner/typescript:5",
	},
	{
		ID:                "java",
		Name:              "Java",
		Extension:         ".java",
		Probe:             []string{"javac", "-version"},
		Compile:           []string{"javac", "{source}"},
		Run:               []string{"java", "-cp", ".", "{name}"},
		RequiresClassName: true,
		DefaultName:       "Main",
		Image:             "eclipse-temurin:21-jdk-alpine",
	},
	{
		ID:        "c",
		Name:      "C",
		Extension: ".c",
		Probe:     []string{"gcc", "--version"},
		Compile:   []string{"gcc", "{source}", "-o", "program"},
		Run:       []string{"./program"},
		Image:     "gcc:14",
	},
	{
		ID:        "cpp",
		Name:      "C++",
		Extension: ".cpp",
		Probe:     []string{"g++", "--version"},
		Compile:   []string{"g++", "{source}", "-o", "program"},
		Run:       []string{"./program"},
		Image:     "gcc:14",
	},
	{
		ID:        "go",
		Name:      "Go",
		Extension: ".go",
		Probe:     []string{"go", "version"},
		Compile:   []string{"go", "build", "-o", "program", "{source}"},
		Run:       []string{"./program"},
		Image:     "golang:1.25-alpine",
	},
	{
		ID:        "rust",
		Name:      "Rust",
		Extension: ".rs",
		Probe:     []string{"rustc", "--version"},
		Compile:   []string{"rustc", "{source}", "-o", "program"},
		Run:       []string{"./program"},
		Image:     "rust:1-slim",
	},
	{
		ID:        "php",
		Name:      "PHP",
		Extension: ".php",
		Probe:     []string{"php", "-v"},
		Run:       []string{"php", "{source}"},
		Image:     "php:8.3-cli-alpine",
	},
	{
		ID:        "ruby",
		Name:      "Ruby",
		Extension: ".rb",
		Probe:     []string{"ruby", "-v"},
		Run:       []string{"ruby", "{source}"},
		Image:     "ruby:3.3-alpine",
	},
	{
		ID:        "swift",
		Name:      "Swift",
		Extension: ".swift",
		Probe:     []string{"swift", "--version"},
		Run:       []string{"swift", "{source}"},
		Image:     "swift:6.0-slim",
	},
	{
		ID:        "kotlin",
		Name:      "Kotlin",
		Extension: ".kt",
		Probe:     []string{"kotlinc", "-version"},
		Compile:   []string{"kotlinc", "{source}", "-include-runtime", "-d", "program.jar"},
		Run:       []string{"java", "-jar", "program.jar"},
		Image:     "coderunner/kotlin:2",
	},
}
