package rules

import "alertrank/pkg/models"

// Engine tags alerts with matching rules.
type Engine interface {
	Apply(alert *models.Alert) []models.Tag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(alert *models.Alert) []models.Tag {
	return nil
}

// Enrich appends matched tags to the alert. When the alert carries no
// category of its own (category equal to name) the first ATT&CK tactic
// becomes its category. It returns the number of tags added.
func Enrich(engine Engine, alert *models.Alert) int {
	if engine == nil || alert == nil {
		return 0
	}
	tags := engine.Apply(alert)
	if len(tags) == 0 {
		return 0
	}
	alert.Tags = append(alert.Tags, tags...)
	if alert.Category == alert.Name {
		for _, tag := range tags {
			if tag.Tactic != "" {
				alert.Category = tag.Tactic
				break
			}
		}
	}
	return len(tags)
}
