package classification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/interfix/helpdesk/internal/domain"
)

// ErrMalformedResponse is returned when a 2xx body has no usable object.
var ErrMalformedResponse = errors.New("malformed classification response")

const (
	defaultJustification  = "Análise automática"
	fallbackJustification = "Sistema indisponível temporariamente"
)

// Shape tells how the service wrapped its reply.
type Shape int

const (
	ShapeObject Shape = iota + 1
	ShapeList
)

func (s Shape) String() string {
	switch s {
	case ShapeObject:
		return "object"
	case ShapeList:
		return "list"
	}
	return "unknown"
}

// Reply is a normalized classification response.
type Reply struct {
	Shape         Shape
	RawPriority   string
	Justification string
	Status        string
}

// Priority parses RawPriority. A missing or unrecognized label yields Medium.
func (r Reply) Priority() (domain.TicketPriority, bool) {
	if p, ok := domain.ParsePriority(r.RawPriority); ok {
		return p, true
	}
	return domain.TicketPriorityMedium, false
}

// Normalize accepts either a JSON object or a non-empty JSON array whose
// first element is an object. Anything else is ErrMalformedResponse.
func Normalize(body []byte) (Reply, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	trimmed := strings.TrimSpace(string(raw))
	shape := ShapeObject
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return Reply{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if len(list) == 0 {
			return Reply{}, fmt.Errorf("%w: empty list", ErrMalformedResponse)
		}
		raw = list[0]
		shape = ShapeList
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Reply{}, fmt.Errorf("%w: expected an object", ErrMalformedResponse)
	}

	return Reply{
		Shape:         shape,
		RawPriority:   firstString(fields, "prioridade", "userPriority"),
		Justification: firstString(fields, "justificativa", "userPriorityReason"),
		Status:        firstString(fields, "status"),
	}, nil
}

func firstString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
