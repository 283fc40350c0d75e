// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Prerequisite types and tool definitions

package prereq

// Tool represents a prerequisite tool
type Tool struct {
	Name         string   // Tool name
	Command      string   // Command to check existence
	VersionCmd   string   // Command to get version
	Alternatives []string // Alternative command names
	InstallGuide string   // Installation instructions
	Category     string   // Category (renderer, media, typesetting, container)
	Optional     bool     // Missing optional tools only degrade some scenes
}

// Renderer backends
const (
	BackendLocal  = "local"
	BackendDocker = "docker"
)

// DefaultTools returns the list of supported tools
func DefaultTools() map[string]*Tool {
	return map[string]*Tool{
		"manim": {
			Name:       "manim",
			Command:    "manim",
			VersionCmd: "manim --version",
			Category:   "renderer",
			InstallGuide: `Install Manim Community:
  pip:     pip install manim
  macOS:   brew install py3cairo ffmpeg && pip install manim
  Ubuntu:  sudo apt install libcairo2-dev libpango1.0-dev ffmpeg && pip install manim
  Docs:    https://docs.manim.community/en/stable/installation.html`,
		},
		"python": {
			Name:         "python",
			Command:      "python3",
			VersionCmd:   "python3 --version",
			Alternatives: []string{"python"},
			Category:     "renderer",
			InstallGuide: `Install Python:
  macOS:   brew install python
  Ubuntu:  sudo apt install python3 python3-pip python3-venv
  Fedora:  sudo dnf install python3 python3-pip
  Windows: https://www.python.org/downloads/`,
		},
		"ffmpeg": {
			Name:       "ffmpeg",
			Command:    "ffmpeg",
			VersionCmd: "ffmpeg -version",
			Category:   "media",
			InstallGuide: `Install FFmpeg:
  macOS:   brew install ffmpeg
  Ubuntu:  sudo apt install ffmpeg
  Fedora:  sudo dnf install ffmpeg
  Windows: choco install ffmpeg`,
		},
		"latex": {
			Name:         "latex",
			Command:      "latex",
			VersionCmd:   "latex --version",
			Alternatives: []string{"pdflatex"},
			Category:     "typesetting",
			Optional:     true,
			InstallGuide: `Install a TeX distribution (needed for Tex and MathTex):
  macOS:   brew install --cask mactex-no-gui
  Ubuntu:  sudo apt install texlive texlive-latex-extra
  Windows: https://miktex.org/download`,
		},
		"dvisvgm": {
			Name:       "dvisvgm",
			Command:    "dvisvgm",
			VersionCmd: "dvisvgm --version",
			Category:   "typesetting",
			Optional:   true,
			InstallGuide: `dvisvgm ships with most TeX distributions.
  Ubuntu:  sudo apt install dvisvgm`,
		},
		"docker": {
			Name:       "docker",
			Command:    "docker",
			VersionCmd: "docker --version",
			Category:   "container",
			InstallGuide: `Install Docker:
  macOS:   brew install --cask docker
  Ubuntu:  https://docs.docker.com/engine/install/ubuntu/
  Fedora:  https://docs.docker.com/engine/install/fedora/
  Windows: https://docs.docker.com/desktop/install/windows-install/`,
		},
	}
}

// RequiredTools returns the tools a renderer backend depends on
func RequiredTools(backend string) []string {
	if backend == BackendDocker {
		return []string{"docker"}
	}
	return []string{"python", "manim", "ffmpeg", "latex", "dvisvgm"}
}

// CheckResult contains the result of checking a tool
type CheckResult struct {
	Name     string // Tool name
	Found    bool   // Whether tool was found
	Optional bool   // Whether the tool is optional
	Version  string // Detected version (if found)
	Path     string // Path to tool (if found)
}

// CheckSummary contains results for all checks
type CheckSummary struct {
	Results      []CheckResult // Individual results
	AllFound     bool          // Whether all required tools were found
	MissingTools []string      // List of missing tool names, optional ones included
}

// NewCheckSummary creates a new check summary
func NewCheckSummary() *CheckSummary {
	return &CheckSummary{
		Results:      []CheckResult{},
		AllFound:     true,
		MissingTools: []string{},
	}
}

// AddResult adds a check result to the summary
func (s *CheckSummary) AddResult(result CheckResult) {
	s.Results = append(s.Results, result)
	if !result.Found {
		if !result.Optional {
			s.AllFound = false
		}
		s.MissingTools = append(s.MissingTools, result.Name)
	}
}
