package evaluate

import (
	"fmt"
	"strings"

	"github.com/rekrytera/signals-cli/internal/model"
)

// maxDescriptionChars is the truncation limit for the description sent to
// the model.
const maxDescriptionChars = 8000

// evaluateSystemPrompt encodes the staffing business's fit rules: hard
// exclusions first, then scored criteria. The evaluator itself only
// consumes the returned JSON.
const evaluateSystemPrompt = `You are a lead qualifier for a Swedish staffing agency. The agency supplies hourly and contract workers in warehouse/logistics, construction, industrial production, transport, cleaning and service roles across Sweden. You receive one recruitment signal at a time: a job posting scraped from a job board, or a business lead from a company directory.

Hard exclusions - if any of these apply, the signal is invalid (isValid=false, score 0-20):
- Licensed professions the agency cannot staff: healthcare, legal, accounting, clergy, aviation.
- Pure white-collar specialist roles (software engineering, finance, marketing management).
- Positions inside government agencies or positions requiring security clearance.
- Internships, thesis projects, volunteer work.

Otherwise score the signal 0-100 on staffing potential:
- Role fit (40): blue-collar or high-volume roles the agency actually staffs.
- Volume potential (25): multiple openings, recurring need, shift work, seasonal peaks.
- Company fit (20): logistics centers, construction firms, manufacturers, facility services; for business leads, companies likely to hire hourly workers.
- Urgency (15): immediate start, explicit staffing-shortage language, short application window.

A signal scoring 60 or above is valid.

Respond with ONLY a valid JSON object, no other text:
{
  "isValid": true,
  "score": 0,
  "category": "one of: Warehouse & Logistics, Construction & Trades, Industrial & Manufacturing, Transport & Delivery, Service & Hospitality, Cleaning & Facilities, Office & Administration, Business Lead, Other",
  "experience": "experience level the role requires, or empty string",
  "reasoning": "2-3 sentences explaining the verdict",
  "applicationEmail": "application email address found in the text, or empty string",
  "duration": "employment duration or contract length if stated, or empty string"
}`

// buildUserPrompt renders one item for evaluation. Optional fields are
// omitted rather than sent empty.
func buildUserPrompt(item model.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", item.Source)
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	fmt.Fprintf(&b, "Company: %s\n", item.Company)
	if item.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", item.Location)
	}
	if item.JobType != "" {
		fmt.Fprintf(&b, "Employment type: %s\n", item.JobType)
	}
	if item.Salary != "" {
		fmt.Fprintf(&b, "Salary: %s\n", item.Salary)
	}
	if item.PostedAt != nil {
		fmt.Fprintf(&b, "Posted: %s\n", item.PostedAt.Format("2006-01-02"))
	}

	description := item.Description
	if len(description) > maxDescriptionChars {
		description = description[:maxDescriptionChars]
	}
	if description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", description)
	}

	return b.String()
}
