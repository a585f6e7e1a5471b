package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"alertrank/pkg/models"
)

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles        int
	Loaded            int
	SkippedComplex    int
	SkippedDatasource int
	SkippedInvalid    int
}

type compiledSigmaRule struct {
	rule  sigma.Rule
	eval  *sigmaevaluator.RuleEvaluator
	label models.Tag
}

// SigmaEngine evaluates Sigma rules against individual IDS alerts.
type SigmaEngine struct {
	rules []compiledSigmaRule
	ctx   context.Context
}

// NewSigmaEngine loads Sigma rules from a file or directory and compiles evaluators.
// Rules that cannot apply to a single IDS alert are skipped and counted in stats.
func NewSigmaEngine(path string) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	files, err := ruleFiles(path)
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	engine := &SigmaEngine{ctx: context.Background()}
	for _, file := range files {
		rule, err := parseSigmaRuleFile(file)
		switch {
		case err != nil:
			stats.SkippedInvalid++
		case !isAlertCompatible(rule):
			stats.SkippedDatasource++
		case unsupported(rule) != nil:
			stats.SkippedComplex++
		default:
			engine.rules = append(engine.rules, compiledSigmaRule{
				rule:  rule,
				eval:  sigmaevaluator.ForRule(rule),
				label: tagFromRule(rule),
			})
			stats.Loaded++
		}
	}
	return engine, stats, nil
}

// ruleFiles lists the YAML files under path, or path itself when it is a file.
func ruleFiles(path string) ([]string, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}
	if !info.IsDir() {
		if !isYAMLFile(root) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", root)
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() && isYAMLFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	return files, nil
}

// Apply evaluates all loaded Sigma rules and returns tags for matched rules.
func (e *SigmaEngine) Apply(alert *models.Alert) []models.Tag {
	if e == nil || alert == nil || len(e.rules) == 0 {
		return nil
	}

	eventMap := sigmaEventFrom(alert)
	out := make([]models.Tag, 0, 4)
	for _, rule := range e.rules {
		res, err := rule.eval.Matches(e.ctx, eventMap)
		if err != nil {
			continue
		}
		if res.Match {
			out = append(out, rule.label)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

var (
	alertProducts   = map[string]bool{"": true, "ids": true, "suricata": true, "snort": true, "zeek": true}
	alertCategories = map[string]bool{"": true, "ids": true, "network": true, "network_connection": true, "firewall": true}
)

func isAlertCompatible(rule sigma.Rule) bool {
	product := strings.ToLower(strings.TrimSpace(rule.Logsource.Product))
	category := strings.ToLower(strings.TrimSpace(rule.Logsource.Category))
	return alertProducts[product] && alertCategories[category]
}

var (
	errTimeframe   = errors.New("timeframe is not supported")
	errAggregation = errors.New("aggregation condition is not supported")
	errExpression  = errors.New("complex condition expression is not supported")
	errKeywords    = errors.New("keyword search is not supported")
	errNoMatchers  = errors.New("search has no event matchers")
)

// unsupported reports why a rule cannot be evaluated against one alert at a
// time, or nil when it can.
func unsupported(rule sigma.Rule) error {
	if rule.Detection.Timeframe > 0 {
		return errTimeframe
	}
	for _, cond := range rule.Detection.Conditions {
		if cond.Aggregation != nil {
			return errAggregation
		}
		if !isSimpleSearchExpression(cond.Search) {
			return errExpression
		}
	}
	for _, search := range rule.Detection.Searches {
		if len(search.Keywords) > 0 {
			return errKeywords
		}
		if len(search.EventMatchers) == 0 {
			return errNoMatchers
		}
	}
	return nil
}

func isSimpleSearchExpression(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.And:
		return allSimple(e)
	case sigma.Or:
		return allSimple(e)
	case sigma.Not:
		return isSimpleSearchExpression(e.Expr)
	default:
		return false
	}
}

func allSimple(exprs []sigma.SearchExpr) bool {
	for _, child := range exprs {
		if !isSimpleSearchExpression(child) {
			return false
		}
	}
	return true
}

// sigmaEventFrom exposes the alert under its own field names and the Sysmon
// network-connection names so either rule style can match.
func sigmaEventFrom(alert *models.Alert) map[string]interface{} {
	return map[string]interface{}{
		"key":             alert.Key,
		"name":            alert.Name,
		"signature":       alert.Name,
		"category":        alert.Category,
		"src_ip":          alert.SourceIP,
		"src_port":        alert.SourcePort,
		"dest_ip":         alert.DestIP,
		"dest_port":       alert.DestPort,
		"count":           alert.Count,
		"SourceIp":        alert.SourceIP,
		"SourcePort":      alert.SourcePort,
		"DestinationIp":   alert.DestIP,
		"DestinationPort": alert.DestPort,
	}
}

func tagFromRule(rule sigma.Rule) models.Tag {
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = strings.TrimSpace(rule.Title)
	}

	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}

	tactic, technique := parseAttackTags(rule.Tags)
	return models.Tag{
		ID:        id,
		Name:      strings.TrimSpace(rule.Title),
		Severity:  level,
		Tactic:    tactic,
		Technique: technique,
	}
}

func parseAttackTags(tags []string) (string, string) {
	var tactic string
	var technique string

	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !strings.HasPrefix(tag, "attack.") {
			continue
		}
		suffix := strings.TrimPrefix(tag, "attack.")
		if technique == "" && techniqueTagRegex.MatchString(tag) {
			technique = strings.ToUpper(strings.ReplaceAll(suffix, ".", "/"))
			continue
		}
		if tactic == "" && !strings.HasPrefix(suffix, "t") {
			tactic = strings.ReplaceAll(suffix, "_", "-")
		}
	}

	return tactic, technique
}
