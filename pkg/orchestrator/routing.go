package orchestrator

import "strings"

// TeamName identifies a roster graph
type TeamName string

const (
	TeamBase                TeamName = "base"
	TeamForensics           TeamName = "forensics"
	TeamLegalResearch       TeamName = "legal_research"
	TeamDocumentIngestion   TeamName = "document_ingestion"
	TeamLitigationSupport   TeamName = "litigation_support"
	TeamSoftwareDevelopment TeamName = "software_development"
	TeamQAOversight         TeamName = "qa_oversight"
)

type route struct {
	team     TeamName
	keywords []string
}

// routes is checked in order; the first team with a matching keyword wins
var routes = []route{
	{TeamForensics, []string{"forensic", "authenticity", "crypto", "financial analysis"}},
	{TeamLegalResearch, []string{"research", "case law", "statute", "regulation"}},
	{TeamDocumentIngestion, []string{"ingestion", "document processing", "knowledge graph"}},
	{TeamLitigationSupport, []string{"litigation", "strategy", "motion", "case theory"}},
	{TeamSoftwareDevelopment, []string{"develop", "code", "bug", "feature"}},
	{TeamQAOversight, []string{"qa", "oversight", "audit", "testing"}},
}

// RouteQuestion picks the specialized team for a question by case-insensitive
// substring match, or TeamBase when nothing matches.
func RouteQuestion(question string) TeamName {
	q := strings.ToLower(question)
	for _, r := range routes {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.team
			}
		}
	}
	return TeamBase
}

// RoutedTeams lists the specialized teams in routing priority order
func RoutedTeams() []TeamName {
	out := make([]TeamName, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.team)
	}
	return out
}
