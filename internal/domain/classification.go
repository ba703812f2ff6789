package domain

// ClassificationSource records which tier of the classification pipeline
// produced a Classification.
type ClassificationSource string

const (
	SourceProject     ClassificationSource = "project"
	SourceWindowRule  ClassificationSource = "window_rule"
	SourceAppClasses  ClassificationSource = "app_classes"
	SourceDefault     ClassificationSource = "default"
)

// Classification is the {scope, workspace} decision for a window, plus
// provenance.
type Classification struct {
	Scope       Scope                `json:"scope"`
	Workspace   *int                 `json:"workspace,omitempty"` // 1..9, nil if undetermined by this source
	Source      ClassificationSource `json:"source"`
	MatchedRule *WindowRule          `json:"-"` // nil unless Source == SourceWindowRule; not wire-serialized (contains a compiled regexp)
}
