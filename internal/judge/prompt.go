package judge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/logoforge/internal/domain"
)

// Request is the artifact and context every judge sees.
type Request struct {
	SVG              string
	Brand            domain.BrandInfo
	Concept          *domain.Concept
	PreviousFeedback []string
}

// BuildPrompt returns the system and user prompts for one judge.
func BuildPrompt(p Profile, req Request) (system, prompt string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the %s judge on a logo review panel.\n", p.Name)
	if p.Instructions != "" {
		sb.WriteString(p.Instructions)
		sb.WriteString("\n")
	}
	sb.WriteString("Score each criterion from 0 to 10: ")
	sb.WriteString(strings.Join(p.Criteria, ", "))
	sb.WriteString(".\nList anything that makes the logo unusable under critical_issues; leave it empty otherwise.\n")
	sb.WriteString("Reply with exactly one JSON object of this shape:\n")
	sb.WriteString(`{"scores": {"<criterion>": {"score": 0, "reasoning": "", "issues": [], "suggestions": []}}, "critical_issues": [], "suggestions": []}`)
	system = sb.String()

	var pb strings.Builder
	pb.WriteString("## Brand\n")
	pb.WriteString(toJSON(req.Brand))
	if req.Concept != nil {
		pb.WriteString("\n\n## Concept\n")
		fmt.Fprintf(&pb, "%s: %s\n", req.Concept.Name, req.Concept.Description)
		if req.Concept.Rationale != "" {
			fmt.Fprintf(&pb, "Rationale: %s\n", req.Concept.Rationale)
		}
		pb.WriteString(toJSON(req.Concept.Config))
	}
	if len(req.PreviousFeedback) > 0 {
		pb.WriteString("\n\n## Feedback on earlier versions\nCheck whether each point has been addressed.\n")
		for _, f := range req.PreviousFeedback {
			fmt.Fprintf(&pb, "- %s\n", f)
		}
	}
	pb.WriteString("\n\n## SVG\n```svg\n")
	pb.WriteString(req.SVG)
	pb.WriteString("\n```\n")
	return system, pb.String()
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
