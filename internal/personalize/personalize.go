// internal/personalize/personalize.go
package personalize

import (
	"strings"
	"time"

	"github.com/outreachkit/outreach-backend/internal/model"
)

// Personalize substitutes double-brace placeholders with recipient fields,
// then sender/profile fields when a sender profile is supplied, then
// dynamic date/time values. Unknown placeholders stay literal and missing
// fields become empty strings. Safe to run twice: substituted text
// contains no placeholder syntax left to re-match.
func Personalize(template string, contact model.Contact, sender *model.SenderProfile) string {
	if template == "" || !strings.Contains(template, "{{") {
		return template
	}

	now := time.Now()
	pairs := []string{
		"{{contactName}}", contact.Name,
		"{{firstName}}", firstName(contact.Name),
		"{{contactEmail}}", contact.Email,
		"{{contactPhone}}", contact.Phone,
		"{{position}}", contact.Position,
		"{{companyName}}", contact.Company,
		"{{website}}", contact.Website,
		"{{industry}}", contact.Industry,
		"{{painPoints}}", contact.PainPoints,
	}
	if sender != nil {
		pairs = append(pairs,
			"{{senderName}}", sender.FromName,
			"{{senderEmail}}", sender.FromEmail,
			"{{myName}}", sender.Name,
			"{{myCompany}}", sender.Company,
			"{{myPhone}}", sender.Phone,
			"{{myIndustry}}", sender.Industry,
			"{{myPosition}}", sender.Position,
			"{{myWebsite}}", sender.Website,
			"{{myLocation}}", sender.Location,
		)
	}
	pairs = append(pairs,
		"{{currentDate}}", now.Format("January 2, 2006"),
		"{{currentTime}}", now.Format("3:04 PM"),
		"{{dayOfWeek}}", now.Weekday().String(),
	)

	return strings.NewReplacer(pairs...).Replace(template)
}

// firstName returns the first whitespace-separated word of a full name.
func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
