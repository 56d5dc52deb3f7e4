package domain

// BrandInfo holds what discovery learned about the brand.
type BrandInfo struct {
	Name             string         `json:"name,omitempty"`
	Industry         string         `json:"industry,omitempty"`
	TargetAudience   string         `json:"target_audience,omitempty"`
	Description      string         `json:"description,omitempty"`
	Personality      []string       `json:"personality,omitempty"`
	StylePreferences []string       `json:"style_preferences,omitempty"`
	ColorPreferences []string       `json:"color_preferences,omitempty"`
	Avoid            []string       `json:"avoid,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// Merge overwrites the fields set in patch and keeps everything else.
// Extra attributes are merged key by key.
func (b BrandInfo) Merge(patch BrandInfo) BrandInfo {
	out := b
	if patch.Name != "" {
		out.Name = patch.Name
	}
	if patch.Industry != "" {
		out.Industry = patch.Industry
	}
	if patch.TargetAudience != "" {
		out.TargetAudience = patch.TargetAudience
	}
	if patch.Description != "" {
		out.Description = patch.Description
	}
	if len(patch.Personality) > 0 {
		out.Personality = append([]string(nil), patch.Personality...)
	}
	if len(patch.StylePreferences) > 0 {
		out.StylePreferences = append([]string(nil), patch.StylePreferences...)
	}
	if len(patch.ColorPreferences) > 0 {
		out.ColorPreferences = append([]string(nil), patch.ColorPreferences...)
	}
	if len(patch.Avoid) > 0 {
		out.Avoid = append([]string(nil), patch.Avoid...)
	}
	if len(patch.Extra) > 0 {
		merged := make(map[string]any, len(b.Extra)+len(patch.Extra))
		for k, v := range b.Extra {
			merged[k] = v
		}
		for k, v := range patch.Extra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out
}

// IsEmpty reports whether nothing has been captured yet.
func (b BrandInfo) IsEmpty() bool {
	return b.Name == "" && b.Industry == "" && b.TargetAudience == "" &&
		b.Description == "" && len(b.Personality) == 0 &&
		len(b.StylePreferences) == 0 && len(b.ColorPreferences) == 0 &&
		len(b.Avoid) == 0 && len(b.Extra) == 0
}
