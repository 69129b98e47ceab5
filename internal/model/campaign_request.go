// internal/model/campaign_request.go
package model

// CampaignRequest describes one dispatch invocation: either a single
// contact or a whole mailing list, plus the pre-personalization templates.
type CampaignRequest struct {
	ContactID  int    `json:"contact_id,omitempty"`
	ListID     int    `json:"list_id,omitempty"`
	Subject    string `json:"subject"`
	HTMLBody   string `json:"html_body"`
	TextBody   string `json:"text_body,omitempty"`
	TemplateID *int   `json:"template_id,omitempty"`
	ScriptID   *int   `json:"script_id,omitempty"`
}
