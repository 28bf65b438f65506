package detect

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"prospector/internal/domain"
)

// ldEntity is the loosely-typed shape of an embedded linked-data node. Pages
// embed all kinds of garbage here, so every field is optional.
type ldEntity struct {
	Type         json.RawMessage `json:"@type"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Telephone    string          `json:"telephone"`
	ContactPoint json.RawMessage `json:"contactPoint"`
	Graph        []ldEntity      `json:"@graph"`
}

// structuredDataContacts parses every ld+json script defensively: a parse
// failure on one script tag never aborts extraction of the others.
func structuredDataContacts(p *page) []domain.Contact {
	var out []domain.Contact
	p.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		for _, ent := range parseLDEntities(raw) {
			out = append(out, contactsFromEntity(ent)...)
		}
	})
	return out
}

func parseLDEntities(raw string) []ldEntity {
	var single ldEntity
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		if len(single.Graph) > 0 {
			return single.Graph
		}
		return []ldEntity{single}
	}
	var list []ldEntity
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	return nil
}

func contactsFromEntity(ent ldEntity) []domain.Contact {
	var out []domain.Contact
	entityType := ldType(ent.Type)

	if ent.Email != "" || ent.Telephone != "" {
		ctype := domain.ContactSchema
		if entityType == "person" {
			ctype = domain.ContactPersonal
		}
		out = append(out, domain.Contact{
			Email:  strings.ToLower(strings.TrimPrefix(ent.Email, "mailto:")),
			Phone:  ent.Telephone,
			Name:   ent.Name,
			Type:   ctype,
			Source: domain.SourceStructuredData,
		})
	}

	// contactPoint may be an object or a list of objects.
	if len(ent.ContactPoint) > 0 {
		var points []ldEntity
		var one ldEntity
		if err := json.Unmarshal(ent.ContactPoint, &one); err == nil {
			points = []ldEntity{one}
		} else if err := json.Unmarshal(ent.ContactPoint, &points); err != nil {
			points = nil
		}
		for _, cp := range points {
			if cp.Email == "" && cp.Telephone == "" {
				continue
			}
			out = append(out, domain.Contact{
				Email:  strings.ToLower(strings.TrimPrefix(cp.Email, "mailto:")),
				Phone:  cp.Telephone,
				Name:   cp.Name,
				Type:   domain.ContactContactPoint,
				Source: domain.SourceStructuredData,
			})
		}
	}
	return out
}

// ldType tolerates both "Organization" and ["Organization", ...].
func ldType(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.ToLower(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.ToLower(list[0])
	}
	return ""
}
