package wizard

import (
	"regexp"
	"strings"

	"github.com/interfix/helpdesk/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const msgRequired = "required"

func validateBasicInfo(in domain.BasicInfo) (domain.BasicInfo, error) {
	out := domain.BasicInfo{
		Title:         strings.TrimSpace(in.Title),
		ReporterName:  strings.TrimSpace(in.ReporterName),
		ReporterEmail: strings.TrimSpace(in.ReporterEmail),
		Category:      strings.TrimSpace(in.Category),
		Description:   strings.TrimSpace(in.Description),
	}
	fields := map[string]string{}
	required(fields, "title", out.Title)
	required(fields, "reporter_name", out.ReporterName)
	required(fields, "category", out.Category)
	required(fields, "description", out.Description)
	if out.ReporterEmail == "" {
		fields["reporter_email"] = msgRequired
	} else if !emailPattern.MatchString(out.ReporterEmail) {
		fields["reporter_email"] = "invalid email format"
	}
	if len(fields) > 0 {
		return out, &ValidationError{Stage: domain.StageBasicInfo, Fields: fields}
	}
	return out, nil
}

func validateAffectedScope(in domain.AffectedScope) (domain.AffectedScope, error) {
	out := domain.AffectedScope{AffectedParty: strings.TrimSpace(in.AffectedParty)}
	if out.AffectedParty == "" {
		return out, &ValidationError{Stage: domain.StageAffectedScope, Fields: map[string]string{"affected_party": msgRequired}}
	}
	return out, nil
}

func validateContestation(priority, justification string) (domain.TicketPriority, string, error) {
	fields := map[string]string{}
	p, ok := domain.ParsePriority(priority)
	if strings.TrimSpace(priority) == "" {
		fields["priority"] = msgRequired
	} else if !ok {
		fields["priority"] = "unknown priority"
	}
	justification = strings.TrimSpace(justification)
	required(fields, "justification", justification)
	if len(fields) > 0 {
		return "", "", &ValidationError{Stage: domain.StageContestation, Fields: fields}
	}
	return p, justification, nil
}

func required(fields map[string]string, name, value string) {
	if value == "" {
		fields[name] = msgRequired
	}
}

// payloadShape describes a submission for logs without exposing its content.
func payloadShape(b domain.BasicInfo) map[string]int {
	return map[string]int{
		"title_len":       len(b.Title),
		"reporter_len":    len(b.ReporterName),
		"category_len":    len(b.Category),
		"description_len": len(b.Description),
	}
}
