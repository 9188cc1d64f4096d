package usecase

import (
	"encoding/json"
	"strings"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// Keyword groups for the automation boost pass.
var (
	workflowSignals = []string{
		"automat", "workflow", "manual", "repetitive", "recurring",
		"scheduled", "trigger", "batch process", "bulk", "routine",
		"streamline", "eliminate manual",
	}
	integrationVerbs = []string{"integrat", "connect", "sync", "link", "bridge"}
	systemNames      = []string{
		"crm", "erp", "salesforce", "slack", "teams", "jira", "asana",
		"hubspot", "mailchimp", "stripe", "quickbooks", "excel", "spreadsheet",
		"notion", "airtable", "shopify", "zendesk",
	}
	reportingSignals = []string{
		"report", "dashboard", "analytic", "metric", "kpi", "visibility",
		"insight", "track", "monitor", "measure", "visualiz", "chart", "graph",
	}
	complianceSignals = []string{
		"compliance", "audit", "regulatory", "govern", "policy", "rule",
		"approval", "permission", "access control", "security", "gdpr", "hipaa",
	}
	processSignals = []string{
		"process", "procedure", "checklist", "template", "standardiz", "optimize",
	}
)

// AnalyzeAutomation scores how strongly an idea leans into workflow
// automation. Boosts from independent keyword groups accumulate; the first
// group to fire names the category. Process optimization only applies when
// nothing else fired.
func AnalyzeAutomation(idea domain.Idea, clusterTheme string) (boost int, category string, signals []string) {
	features, _ := json.Marshal(idea.CoreFeatures)
	hay := strings.ToLower(strings.Join([]string{
		idea.Name, idea.OneLiner, idea.Rationale, string(features), clusterTheme,
	}, " "))

	fire := func(name string, points int) {
		boost += points
		signals = append(signals, name)
		if category == "" {
			category = name
		}
	}

	if containsAny(hay, workflowSignals) {
		fire("workflow_automation", 15)
	}
	if containsAny(hay, integrationVerbs) && countTerms(hay, systemNames) >= 2 {
		fire("integration_platform", 12)
	}
	if containsAny(hay, reportingSignals) {
		fire("reporting_dashboard", 10)
	}
	if containsAny(hay, complianceSignals) {
		fire("compliance_automation", 8)
	}
	if boost == 0 && containsAny(hay, processSignals) {
		fire("process_optimization", 5)
	}
	return boost, category, signals
}
