// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Tests for code extraction

package extract_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sony-level/scene-runner/internal/extract"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  extract.Extraction
	}{
		{
			name:  "single python block",
			input: "Here is your scene:\n\n```python\nprint(1)\n```\n\nEnjoy!",
			want:  extract.Extraction{Code: "print(1)", Language: "python", Fenced: true},
		},
		{
			name:  "block without language hint",
			input: "```\n  x = 1\n  y = 2\n```",
			want:  extract.Extraction{Code: "x = 1\n  y = 2", Fenced: true},
		},
		{
			name:  "no fence echoes trimmed input",
			input: "   from manim import *\nclass A(Scene): pass\n\n",
			want:  extract.Extraction{Code: "from manim import *\nclass A(Scene): pass"},
		},
		{
			name:  "multiple blocks take the first",
			input: "```py\nfirst()\n```\ntext\n```python\nsecond()\n```",
			want:  extract.Extraction{Code: "first()", Language: "py", Fenced: true},
		},
		{
			name:  "unterminated block runs to end",
			input: "intro\n```python\nfrom manim import *\nprint(2)\n",
			want:  extract.Extraction{Code: "from manim import *\nprint(2)", Language: "python", Fenced: true},
		},
		{
			name:  "single line fence after prose",
			input: "use ```print(3)``` please",
			want:  extract.Extraction{Code: "print(3)", Fenced: true},
		},
		{
			name:  "single line fence with language tag",
			input: "```python print(1)```",
			want:  extract.Extraction{Code: "print(1)", Language: "python", Fenced: true},
		},
		{
			name:  "opening fence after prose on the same line",
			input: "Sure! ```python\nprint(1)\n```",
			want:  extract.Extraction{Code: "print(1)", Language: "python", Fenced: true},
		},
		{
			name:  "closing fence is not taken as an opening fence",
			input: "Here you go: ```py\nfrom manim import *\n```\nand that's it.",
			want:  extract.Extraction{Code: "from manim import *", Language: "py", Fenced: true},
		},
		{
			name:  "closing fence at the end of a code line",
			input: "```python\nprint(1)```\ntrailing",
			want:  extract.Extraction{Code: "print(1)", Language: "python", Fenced: true},
		},
		{
			name:  "lone opening marker",
			input: "text ```python",
			want:  extract.Extraction{Language: "python", Fenced: true},
		},
		{
			name:  "single line fence at line start",
			input: "```print(3)```",
			want:  extract.Extraction{Code: "print(3)", Fenced: true},
		},
		{
			name:  "empty input",
			input: "",
			want:  extract.Extraction{},
		},
		{
			name:  "empty block",
			input: "```python\n```",
			want:  extract.Extraction{Code: "", Language: "python", Fenced: true},
		},
		{
			name:  "language hint is lowercased",
			input: "```Python3 title=scene\ncode\n```",
			want:  extract.Extraction{Code: "code", Language: "python3", Fenced: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extract.Extract(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodeIdempotent(t *testing.T) {
	inputs := []string{
		"```python\nprint(1)\n```",
		"no fences at all\n",
		"```a\nb\n```\n```c\nd\n```",
		"```\nunterminated",
		"   \n\t",
		"text with ``` inside a line\nmore",
		"Sure! ```python\nprint(1)\n```",
		"```python print(1)```",
	}

	for _, input := range inputs {
		once := extract.Code(input)
		twice := extract.Code(once)
		if once != twice {
			t.Errorf("Code() not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestSceneName(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		fallback string
		want     string
	}{
		{"plain scene", "from manim import *\n\nclass PowerRuleScene(Scene):\n    pass", "GeneratedScene", "PowerRuleScene"},
		{"three d scene", "class Cube(ThreeDScene):\n  pass", "GeneratedScene", "Cube"},
		{"qualified base", "class Cam(manim.MovingCameraScene):\n  pass", "X", "Cam"},
		{"first scene wins", "class Helper(object):\n  pass\nclass One(Scene):\n  pass\nclass Two(Scene):\n  pass", "X", "One"},
		{"no scene", "print(1)", "GeneratedScene", "GeneratedScene"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.SceneName(tt.code, tt.fallback); got != tt.want {
				t.Errorf("SceneName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"GeneratedScene", "_x", "A1"}
	invalid := []string{"", "1A", "a-b", "a b", "../x"}

	for _, name := range valid {
		if !extract.ValidIdentifier(name) {
			t.Errorf("ValidIdentifier(%q) = false, want true", name)
		}
	}
	for _, name := range invalid {
		if extract.ValidIdentifier(name) {
			t.Errorf("ValidIdentifier(%q) = true, want false", name)
		}
	}
}
