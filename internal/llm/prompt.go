// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Prompt building for scene generation

package llm

import (
	"fmt"
	"strings"
)

// DefaultSceneName is the class name the model is asked to use
const DefaultSceneName = "GeneratedScene"

// PromptBuilder constructs LLM prompts
type PromptBuilder struct {
	sceneName string
}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder(sceneName string) *PromptBuilder {
	if sceneName == "" {
		sceneName = DefaultSceneName
	}
	return &PromptBuilder{sceneName: sceneName}
}

// SystemInstruction returns the fixed instruction sent with every prompt
func (b *PromptBuilder) SystemInstruction() string {
	return fmt.Sprintf(`You are an expert at writing Manim Community Edition animations.

IMPORTANT RULES:
1. Reply with one complete Python file inside a single `+"```python"+` code block.
2. Start with "from manim import *".
3. Define exactly one class named %s that derives from Scene, ThreeDScene or MovingCameraScene.
4. Do not render the scene yourself and do not add a __main__ block.
5. Do not read or write files, start processes or use the network.
6. Keep the animation under 60 seconds and use only built-in Manim objects.
7. Prefer Text over Tex and MathTex unless a formula is needed.
`, b.sceneName)
}

// BuildScenePrompt wraps the user's request
func (b *PromptBuilder) BuildScenePrompt(prompt string) string {
	var sb strings.Builder
	sb.WriteString("Create an educational animation for the following request.\n\n")
	sb.WriteString("## Request\n")
	sb.WriteString(strings.TrimSpace(prompt))
	sb.WriteString("\n\n## Output\n")
	sb.WriteString(fmt.Sprintf("Return only the code block defining %s.\n", b.sceneName))
	return sb.String()
}
