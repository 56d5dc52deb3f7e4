package domain

import "time"

// ResearchResult is one finding gathered during research, typically a
// similar reference logo returned by the vector search service.
type ResearchResult struct {
	ID          string    `json:"id"`
	Query       string    `json:"query,omitempty"`
	Source      string    `json:"source,omitempty"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Score       float64   `json:"score,omitempty"`
	Description string    `json:"description,omitempty"`
	LogoType    string    `json:"logo_type,omitempty"`
	Theme       string    `json:"theme,omitempty"`
	SVGURL      string    `json:"svg_url,omitempty"`
	Findings    string    `json:"findings,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LogoConfig captures the generator parameters behind a concept.
type LogoConfig struct {
	Type        string      `json:"type,omitempty"`
	Text        string      `json:"text,omitempty"`
	Shape       string      `json:"shape,omitempty"`
	Theme       string      `json:"theme,omitempty"`
	Colors      ColorConfig `json:"colors,omitempty"`
	FontFamily  string      `json:"font_family,omitempty"`
	FontWeight  string      `json:"font_weight,omitempty"`
	FontSize    int         `json:"font_size,omitempty"`
	LetterSpace int         `json:"letter_spacing,omitempty"`
}

// ColorConfig is the primary/accent palette of a concept.
type ColorConfig struct {
	Primary string `json:"primary,omitempty"`
	Accent  string `json:"accent,omitempty"`
}

// Concept is a candidate design direction.
type Concept struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Description    string                `json:"description,omitempty"`
	Rationale      string                `json:"rationale,omitempty"`
	Config         LogoConfig            `json:"config"`
	PreviewSVG     string                `json:"preview_svg,omitempty"`
	ApprovalStatus ApprovalStatus        `json:"approval_status"`
	Feedback       string                `json:"feedback,omitempty"`
	Evaluation     *AggregatedEvaluation `json:"evaluation,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// ConceptPatch lists the concept fields a caller may change.
type ConceptPatch struct {
	Name           *string               `json:"name,omitempty"`
	Description    *string               `json:"description,omitempty"`
	Rationale      *string               `json:"rationale,omitempty"`
	Config         *LogoConfig           `json:"config,omitempty"`
	PreviewSVG     *string               `json:"preview_svg,omitempty"`
	ApprovalStatus *ApprovalStatus       `json:"approval_status,omitempty"`
	Feedback       *string               `json:"feedback,omitempty"`
	Evaluation     *AggregatedEvaluation `json:"evaluation,omitempty"`
}

// Apply returns c with the patch applied.
func (p ConceptPatch) Apply(c Concept) Concept {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Rationale != nil {
		c.Rationale = *p.Rationale
	}
	if p.Config != nil {
		c.Config = *p.Config
	}
	if p.PreviewSVG != nil {
		c.PreviewSVG = *p.PreviewSVG
	}
	if p.ApprovalStatus != nil {
		c.ApprovalStatus = *p.ApprovalStatus
	}
	if p.Feedback != nil {
		c.Feedback = *p.Feedback
	}
	if p.Evaluation != nil {
		c.Evaluation = p.Evaluation
	}
	return c
}

// SVGVersion is one rendered iteration of the selected concept.
type SVGVersion struct {
	ID             string                `json:"id"`
	ConceptID      string                `json:"concept_id,omitempty"`
	Version        int                   `json:"version"`
	SVG            string                `json:"svg"`
	Notes          string                `json:"notes,omitempty"`
	ApprovalStatus ApprovalStatus        `json:"approval_status"`
	Feedback       string                `json:"feedback,omitempty"`
	Evaluation     *AggregatedEvaluation `json:"evaluation,omitempty"`
	ExportKey      string                `json:"export_key,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// SVGVersionPatch lists the SVG version fields a caller may change.
type SVGVersionPatch struct {
	SVG            *string               `json:"svg,omitempty"`
	Notes          *string               `json:"notes,omitempty"`
	ApprovalStatus *ApprovalStatus       `json:"approval_status,omitempty"`
	Feedback       *string               `json:"feedback,omitempty"`
	Evaluation     *AggregatedEvaluation `json:"evaluation,omitempty"`
	ExportKey      *string               `json:"export_key,omitempty"`
}

// Apply returns v with the patch applied.
func (p SVGVersionPatch) Apply(v SVGVersion) SVGVersion {
	if p.SVG != nil {
		v.SVG = *p.SVG
	}
	if p.Notes != nil {
		v.Notes = *p.Notes
	}
	if p.ApprovalStatus != nil {
		v.ApprovalStatus = *p.ApprovalStatus
	}
	if p.Feedback != nil {
		v.Feedback = *p.Feedback
	}
	if p.Evaluation != nil {
		v.Evaluation = p.Evaluation
	}
	if p.ExportKey != nil {
		v.ExportKey = *p.ExportKey
	}
	return v
}
