// Package report renders annotation collections into detail-tiered Markdown.
// Generation is pure: input collections are never mutated, and identical
// inputs produce identical content (the timestamp field excepted).
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agentation/agentation-server/pkg/models"
)

// PreviewTruncateLength caps nearby/selected text in popup preview contexts.
const PreviewTruncateLength = 80

// noAnnotationsMessage is the fixed empty-collection short circuit.
const noAnnotationsMessage = "No annotations yet."

// searchTips is the fixed hint block closing detailed-tier reports.
const searchTips = `**Search tips:**
- Search for the component name to find its definition
- Use the file:line locations to jump straight to the source
- Parent component chains show where the element is composed`

// Report is the rendered result.
type Report struct {
	Content   string    `json:"content"`
	Count     int       `json:"count"`
	Screen    string    `json:"screen"`
	Timestamp time.Time `json:"timestamp"`
}

// Generate renders the annotation collection at the given detail level.
// Annotations are sorted by y ascending (top-to-bottom reading order) before
// rendering, regardless of creation order.
func Generate(annotations []models.Annotation, screen string, level models.DetailLevel) Report {
	now := time.Now()

	if len(annotations) == 0 {
		return Report{
			Content:   fmt.Sprintf("# Page Feedback: %s\n\n%s", screen, noAnnotationsMessage),
			Count:     0,
			Screen:    screen,
			Timestamp: now,
		}
	}

	sorted := make([]models.Annotation, len(annotations))
	copy(sorted, annotations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	var b strings.Builder
	writeHeader(&b, sorted, screen, level, now)

	for i, a := range sorted {
		writeEntry(&b, a, i+1, level)
	}

	if level.AtLeast(models.LevelDetailed) {
		b.WriteString("\n---\n\n")
		b.WriteString(searchTips)
		b.WriteString("\n")
	}

	return Report{
		Content:   b.String(),
		Count:     len(sorted),
		Screen:    screen,
		Timestamp: now,
	}
}

// writeHeader renders the document header for the tier.
func writeHeader(b *strings.Builder, annotations []models.Annotation, screen string, level models.DetailLevel, now time.Time) {
	fmt.Fprintf(b, "# Page Feedback: %s\n\n", screen)

	if !level.AtLeast(models.LevelStandard) {
		return
	}

	env := environmentOf(annotations)

	if level.AtLeast(models.LevelForensic) {
		b.WriteString("**Environment**\n")
		if env.screen != nil {
			fmt.Fprintf(b, "- Screen: %dx%d\n", env.screen.Width, env.screen.Height)
		}
		if env.platform != "" {
			fmt.Fprintf(b, "- Platform: %s\n", env.platform)
		}
		if env.route != "" {
			fmt.Fprintf(b, "- Route: %s\n", env.route)
		}
		if env.navigationPath != "" {
			fmt.Fprintf(b, "- Navigation path: %s\n", env.navigationPath)
		}
		if env.pixelRatio != 0 {
			fmt.Fprintf(b, "- Pixel ratio: %g\n", env.pixelRatio)
		}
		fmt.Fprintf(b, "- Generated: %s\n", now.UTC().Format(time.RFC3339))
		b.WriteString("\n")
		return
	}

	if env.screen != nil {
		fmt.Fprintf(b, "Screen: %dx%d", env.screen.Width, env.screen.Height)
		if env.platform != "" {
			fmt.Fprintf(b, " (%s)", env.platform)
		}
		b.WriteString("\n")
	} else if env.platform != "" {
		fmt.Fprintf(b, "Platform: %s\n", env.platform)
	}

	if level.AtLeast(models.LevelDetailed) {
		if env.route != "" {
			fmt.Fprintf(b, "Route: %s\n", env.route)
		}
		if env.navigationPath != "" {
			fmt.Fprintf(b, "Navigation path: %s\n", env.navigationPath)
		}
	}

	if env.screen != nil || env.platform != "" || (level.AtLeast(models.LevelDetailed) && (env.route != "" || env.navigationPath != "")) {
		b.WriteString("\n")
	}

	if level.AtLeast(models.LevelDetailed) {
		b.WriteString("---\n\n")
	}
}

// writeEntry renders one annotation at the tier.
func writeEntry(b *strings.Builder, a models.Annotation, n int, level models.DetailLevel) {
	location := a.ElementPath
	if location == "" {
		location = a.Element
	}

	if level == models.LevelCompact {
		fmt.Fprintf(b, "%d. %s (%s)\n   %s\n", n, location, a.Element, a.Comment)
		return
	}

	fmt.Fprintf(b, "## %d. %s\n\n", n, a.Element)
	fmt.Fprintf(b, "- Location: %s\n", location)
	if a.ComponentType != "" {
		fmt.Fprintf(b, "- Component type: %s\n", a.ComponentType)
	}

	if level.AtLeast(models.LevelDetailed) {
		if len(a.ParentComponents) > 0 {
			fmt.Fprintf(b, "- Parent components: %s\n", strings.Join(a.ParentComponents, " > "))
		}
		if a.BoundingBox != nil {
			fmt.Fprintf(b, "- Bounding box: x=%d y=%d w=%d h=%d\n",
				round(a.BoundingBox.X), round(a.BoundingBox.Y),
				round(a.BoundingBox.Width), round(a.BoundingBox.Height))
		}
	} else if a.BoundingBox != nil {
		fmt.Fprintf(b, "- Position: %d, %d\n", round(a.BoundingBox.X), round(a.BoundingBox.Y))
	}

	if level.AtLeast(models.LevelForensic) {
		if a.FullPath != "" {
			fmt.Fprintf(b, "- Hierarchy: %s\n", a.FullPath)
		}
		if a.TestID != "" {
			fmt.Fprintf(b, "- TestID: %s\n", a.TestID)
		}
		fmt.Fprintf(b, "- Tap position: %d, %d\n", round(a.X), round(a.Y))
		if a.NearbyElements != "" {
			fmt.Fprintf(b, "- Nearby elements: %s\n", a.NearbyElements)
		}
	}

	if level.AtLeast(models.LevelDetailed) {
		if a.NearbyText != "" {
			fmt.Fprintf(b, "- Nearby text: %s\n", a.NearbyText)
		}
		if a.SelectedText != "" {
			fmt.Fprintf(b, "- Selected text: %s\n", a.SelectedText)
		}
		if a.Accessibility != "" {
			fmt.Fprintf(b, "- Accessibility: %s\n", a.Accessibility)
		}
	}

	fmt.Fprintf(b, "\nFeedback: %s\n\n", a.Comment)
}

// environment is the merged header snapshot, taken from the first annotation
// that carries each field.
type environment struct {
	screen         *models.ScreenDimensions
	platform       string
	route          string
	navigationPath string
	pixelRatio     float64
}

func environmentOf(annotations []models.Annotation) environment {
	var env environment
	for _, a := range annotations {
		if env.screen == nil && a.ScreenDimensions != nil {
			env.screen = a.ScreenDimensions
		}
		if env.platform == "" {
			env.platform = a.Platform
		}
		if env.route == "" {
			env.route = a.RouteName
		}
		if env.navigationPath == "" {
			env.navigationPath = a.NavigationPath
		}
		if env.pixelRatio == 0 {
			env.pixelRatio = a.PixelRatio
		}
	}
	return env
}

// TruncatePreview shortens text for popup preview contexts, appending an
// ellipsis marker when trimmed. Report bodies show text untruncated.
func TruncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewTruncateLength {
		return s
	}
	return string(runes[:PreviewTruncateLength]) + "…"
}

// round converts a display coordinate to the nearest integer pixel. Raw float
// values are never shown.
func round(v float64) int {
	return int(math.Round(v))
}
