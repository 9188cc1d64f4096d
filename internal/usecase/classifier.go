// Package usecase contains the mining engine and its orchestration.
package usecase

import (
	"strings"

	"github.com/signalforge/opportunity-miner/internal/domain"
)

// Classification is the classifier verdict for one post.
type Classification struct {
	IsOpportunity bool
	Type          string
	Signals       []string
}

// Keyword groups for the database-scored path, checked in order.
var scoredTypeRules = []struct {
	typ      string
	keywords []string
}{
	{domain.OppWorkflowAutomation, []string{"automation", "workflow", "manual", "repetitive", "process"}},
	{domain.OppIntegration, []string{"integration", "connect", "sync", "api", "data flow"}},
	{domain.OppCompliance, []string{"compliance", "security", "audit", "regulation"}},
	{domain.OppAnalytics, []string{"analytics", "reporting", "dashboard", "metrics", "tracking"}},
}

// Phrase sets for the heuristic path.
var (
	wishlistPhrases = []string{
		"wish there was", "wish there were", "looking for", "need a tool",
		"is there a tool", "is there an app", "any recommendations",
		"need something that", "if only there was", "does anyone know a tool",
	}
	diyPhrases = []string{
		"i built", "i created", "i made", "my script", "i wrote a script",
		"i automated", "my own tool", "i hacked together", "i put together",
	}
	gapPhrases = []string{
		"no good tool", "nothing out there", "can't find a tool",
		"couldn't find anything", "missing feature", "doesn't support",
		"no solution", "lacks",
	}
	researchPhrases = []string{
		"would you pay", "would anyone use", "is there demand",
		"validating an idea", "market research", "survey", "feedback on my idea",
	}
	businessTerms = []string{
		"workflow", "process", "automation", "integration", "crm", "erp",
		"invoicing", "onboarding", "pipeline", "spreadsheet", "reporting",
		"compliance",
	}
	frustrationWords = []string{
		"hate", "awful", "broken", "terrible", "frustrating", "nightmare",
		"sucks", "worst", "annoying", "infuriating",
	}
)

func containsAny(haystack string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(haystack, p) {
			return true
		}
	}
	return false
}

func countTerms(haystack string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			n++
		}
	}
	return n
}

func postHaystack(p domain.Post) string {
	parts := []string{p.Title, p.Body}
	parts = append(parts, p.PainPoints...)
	return strings.ToLower(strings.Join(parts, " "))
}

// Classify labels one post. Pure and deterministic.
//
// Posts carrying a database saas_score use the score as the opportunity
// gate and a keyword search for the type. Unscored posts go through the
// heuristic rules: every firing rule appends its signal, the first
// non-complaint rule to fire captures the type, and a negative-sentiment
// complaint with no other signal falls back to the complaint type.
func Classify(p domain.Post, minSaaSScore int, complaintSentimentMax float64) Classification {
	hay := postHaystack(p)

	if p.SaaSScore != nil {
		c := Classification{IsOpportunity: *p.SaaSScore >= minSaaSScore}
		if !c.IsOpportunity {
			return c
		}
		c.Signals = append(c.Signals, p.PainPoints...)
		for _, rule := range scoredTypeRules {
			if containsAny(hay, rule.keywords) {
				c.Type = rule.typ
				return c
			}
		}
		if p.IsComplaint {
			c.Type = domain.OppComplaint
		} else {
			c.Type = domain.OppFeatureRequest
		}
		return c
	}

	var c Classification
	complaintFired := false
	fire := func(typ, signal string) {
		c.IsOpportunity = true
		c.Signals = append(c.Signals, signal)
		if c.Type == "" {
			c.Type = typ
		}
	}

	if p.IsComplaint && p.Sentiment < complaintSentimentMax {
		c.IsOpportunity = true
		complaintFired = true
		c.Signals = append(c.Signals, "Negative sentiment complaint")
	}
	if containsAny(hay, wishlistPhrases) {
		fire(domain.OppFeatureRequest, "Explicit tool wishlist phrase")
	}
	if containsAny(hay, diyPhrases) {
		fire(domain.OppDIYSolution, "Self-built workaround described")
	}
	if containsAny(hay, gapPhrases) && p.Sentiment > -0.5 {
		fire(domain.OppToolGap, "Tooling gap mentioned")
	}
	if containsAny(hay, researchPhrases) {
		fire(domain.OppMarketResearch, "Market-research language")
	}
	if countTerms(hay, businessTerms) >= 2 {
		fire(domain.OppBusinessProcess, "Multiple business-process terms")
	}
	if containsAny(hay, frustrationWords) {
		fire(domain.OppFrustration, "Strong frustration language")
	}

	if c.IsOpportunity && c.Type == "" && complaintFired {
		c.Type = domain.OppComplaint
	}
	return c
}
