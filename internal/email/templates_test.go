package email

import (
	"strings"
	"testing"
)

func TestRenderFollowUpDigest(t *testing.T) {
	html, err := renderEmailTemplate("followup_digest.html", subjectFollowUpDigest, FollowUpDigestData{
		RecipientName: "Marta",
		Date:          "Mar 10, 2026",
		Leads: []DigestLead{
			{Name: "Omar Haddad", Status: "contacted", PriorityScore: 82, NextFollowUp: "Mar 10, 2026"},
		},
	})
	if err != nil {
		t.Fatalf("renderEmailTemplate: %v", err)
	}
	for _, want := range []string{"Marta", "Omar Haddad", "82", "Mar 10, 2026"} {
		if !strings.Contains(html, want) {
			t.Errorf("digest missing %q", want)
		}
	}
}

func TestRenderStaleReport(t *testing.T) {
	html, err := renderEmailTemplate("stale_report.html", "Weekly stale lead report", StaleReportData{
		ThresholdDays: 14,
		GeneratedAt:   "Mar 10, 2026",
		Leads:         []DigestLead{{Name: "Dana Velez", Status: "nurturing", PriorityScore: 35, LastContact: "Feb 1, 2026"}},
	})
	if err != nil {
		t.Fatalf("renderEmailTemplate: %v", err)
	}
	for _, want := range []string{"14", "Dana Velez", "nurturing"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderInsightsDigest(t *testing.T) {
	html, err := renderEmailTemplate("insights_digest.html", "Lead insights", InsightsDigestData{
		RecipientName: "Admin",
		Period:        "14:00-15:00",
		Summary:       "Three leads moved forward this hour.",
		KeyFindings:   []string{"Cart abandoners respond fastest"},
		Leads:         []DigestLead{{Name: "Priya Shah", Status: "qualified", PriorityScore: 74}},
	})
	if err != nil {
		t.Fatalf("renderEmailTemplate: %v", err)
	}
	for _, want := range []string{"Three leads moved forward", "Cart abandoners", "Priya Shah"} {
		if !strings.Contains(html, want) {
			t.Errorf("digest missing %q", want)
		}
	}
}

func TestTemplatesEscapeHTML(t *testing.T) {
	html, err := renderEmailTemplate("followup_digest.html", subjectFollowUpDigest, FollowUpDigestData{
		RecipientName: "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("renderEmailTemplate: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("template did not escape HTML in user data")
	}
}
