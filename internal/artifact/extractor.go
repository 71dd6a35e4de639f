// Package artifact promotes fenced blocks in completion text to typed
// artifacts.
package artifact

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/expedition-ai/expedition/internal/journey"
)

// MinContentLength is the noise threshold: fenced blocks whose trimmed
// content is shorter than this are discarded.
const MinContentLength = 10

var fencedBlock = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \t]*\n(.*?)```")

// typeByTag classifies language tags into artifact types. Unknown tags
// fall through to document.
var typeByTag = map[string]journey.ArtifactType{
	// programming languages
	"go":         journey.ArtifactCode,
	"python":     journey.ArtifactCode,
	"javascript": journey.ArtifactCode,
	"typescript": journey.ArtifactCode,
	"java":       journey.ArtifactCode,
	"c":          journey.ArtifactCode,
	"cpp":        journey.ArtifactCode,
	"rust":       journey.ArtifactCode,
	"ruby":       journey.ArtifactCode,
	"bash":       journey.ArtifactCode,
	"sh":         journey.ArtifactCode,
	"sql":        journey.ArtifactCode,
	"r":          journey.ArtifactCode,
	"kotlin":     journey.ArtifactCode,
	"swift":      journey.ArtifactCode,

	// diagram description languages
	"mermaid":  journey.ArtifactVisualization,
	"dot":      journey.ArtifactVisualization,
	"graphviz": journey.ArtifactVisualization,
	"plantuml": journey.ArtifactVisualization,

	// structured data formats
	"json": journey.ArtifactData,
	"yaml": journey.ArtifactData,
	"yml":  journey.ArtifactData,
	"csv":  journey.ArtifactData,
	"xml":  journey.ArtifactData,
	"toml": journey.ArtifactData,

	// prose formats
	"markdown": journey.ArtifactDocument,
	"md":       journey.ArtifactDocument,
	"text":     journey.ArtifactDocument,
	"txt":      journey.ArtifactDocument,
}

// Classify maps a fence language tag to an artifact type.
func Classify(tag string) journey.ArtifactType {
	if t, ok := typeByTag[strings.ToLower(tag)]; ok {
		return t
	}
	return journey.ArtifactDocument
}

// Extract scans text for tagged fenced blocks and returns them as typed
// artifacts. Deterministic in count, type, and content for a fixed
// input; only the generated ids and timestamps vary between runs.
func Extract(text string) []journey.Artifact {
	matches := fencedBlock.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	now := time.Now().UTC()
	out := make([]journey.Artifact, 0, len(matches))
	for i, m := range matches {
		tag := strings.ToLower(strings.TrimSpace(m[1]))
		content := strings.TrimRight(m[2], "\n")
		if tag == "" || len(strings.TrimSpace(content)) < MinContentLength {
			continue
		}

		typ := Classify(tag)
		out = append(out, journey.Artifact{
			ID:      uuid.New().String(),
			Type:    typ,
			Title:   fmt.Sprintf("%s %s #%d", tag, typ, i+1),
			Content: content,
			Metadata: map[string]string{
				"language": tag,
				"lines":    fmt.Sprintf("%d", strings.Count(content, "\n")+1),
			},
			CreatedAt: now,
		})
	}
	return out
}
