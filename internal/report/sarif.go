package report

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	sarifSchemaURI = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion   = "2.1.0"
)

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	InformationURI string      `json:"informationUri,omitempty"`
	Version        string      `json:"version,omitempty"`
	Rules          []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name,omitempty"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	Help             *sarifMessage          `json:"help,omitempty"`
	Properties       map[string]interface{} `json:"properties,omitempty"`
}

type sarifResult struct {
	RuleID     string                 `json:"ruleId"`
	Level      string                 `json:"level,omitempty"`
	Message    sarifMessage           `json:"message"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifRuleBuilder struct {
	rules map[string]sarifRule
}

func newSARIFRuleBuilder() *sarifRuleBuilder {
	return &sarifRuleBuilder{rules: make(map[string]sarifRule)}
}

func (b *sarifRuleBuilder) add(rule sarifRule) {
	if _, ok := b.rules[rule.ID]; ok {
		return
	}
	b.rules[rule.ID] = rule
}

func (b *sarifRuleBuilder) list() []sarifRule {
	ids := make([]string, 0, len(b.rules))
	for id := range b.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	items := make([]sarifRule, 0, len(ids))
	for _, id := range ids {
		items = append(items, b.rules[id])
	}
	return items
}

func formatSARIF(r Report) (string, error) {
	rules := newSARIFRuleBuilder()
	results := make([]sarifResult, 0, len(r.Findings))
	for _, f := range r.Findings {
		ruleID := "linkage-checker/" + normalizeRuleToken(f.Kind)
		rules.add(sarifRule{
			ID:               ruleID,
			Name:             f.Kind,
			ShortDescription: sarifMessage{Text: sarifKindSummary(f.Kind)},
			Help:             &sarifMessage{Text: "See the finding's cause and detail fields for how to resolve it."},
			Properties:       map[string]interface{}{"category": "linkage"},
		})

		results = append(results, sarifResult{
			RuleID:  ruleID,
			Level:   sarifLevel(f.Cause),
			Message: sarifMessage{Text: fmt.Sprintf("%s: %s references %s (%s)", f.SourceClass, f.Kind, f.Symbol, f.Cause)},
			Properties: map[string]interface{}{
				"sourceClass": f.SourceClass,
				"symbol":      f.Symbol,
				"cause":       f.Cause,
			},
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RuleID != results[j].RuleID {
			return results[i].RuleID < results[j].RuleID
		}
		return results[i].Message.Text < results[j].Message.Text
	})

	log := sarifLog{
		Schema:  sarifSchemaURI,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "linkage-checker",
						InformationURI: "",
						Version:        r.SchemaVersion,
						Rules:          rules.list(),
					},
				},
				Results: results,
			},
		},
	}

	payload, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", err
	}
	return string(payload) + "\n", nil
}

func sarifKindSummary(kind string) string {
	switch kind {
	case "ClassNotFound":
		return "A referenced class could not be found on the classpath"
	case "SymbolNotFound", "FieldNotFound":
		return "A referenced method or field could not be found"
	case "InaccessibleMember":
		return "A referenced member is not accessible from its reference site"
	case "IncompatibleClassChange":
		return "A reference's expected class/interface kind mismatches the actual class file"
	case "AbstractMethodNotImplemented":
		return "A concrete class leaves an abstract method unimplemented"
	default:
		return "Linkage problem"
	}
}

func sarifLevel(causeName string) string {
	switch causeName {
	case "MissingArtifact", "ExcludedArtifact":
		return "error"
	case "DependencyConflict":
		return "warning"
	default:
		return "note"
	}
}

func normalizeRuleToken(value string) string {
	var b []byte
	for _, ch := range value {
		if ch >= 'A' && ch <= 'Z' {
			if len(b) > 0 {
				b = append(b, '-')
			}
			ch = ch - 'A' + 'a'
		}
		b = append(b, byte(ch))
	}
	return string(b)
}
