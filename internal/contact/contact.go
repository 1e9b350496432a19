// Package contact derives contact candidates from an evaluated item.
package contact

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rekrytera/signals-cli/internal/model"
)

// Extractor builds contacts from an item and its evaluation. Extraction is
// pure: no I/O, no mutation of the inputs. Contacts are returned without
// company or record IDs; the caller stamps those before persisting.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns zero or more contacts for the item. The default rule
// derives a contact from the application email the evaluation surfaced.
// LinkedIn items additionally yield the job poster when the raw payload
// carries one. Platsbanken items fall back to the ad's structured
// application email when the evaluation produced none. Contacts with
// neither an email nor a profile URL are never emitted.
func (e *Extractor) Extract(item model.Item, eval model.Evaluation) []model.Contact {
	var contacts []model.Contact

	if c, ok := fromEmail(item.Source, eval.ApplicationEmail, model.ContactAIExtracted); ok {
		contacts = append(contacts, c)
	}

	switch item.Source {
	case model.SourceLinkedIn:
		if c, ok := fromLinkedInPoster(item); ok {
			contacts = append(contacts, c)
		}
	case model.SourcePlatsbanken:
		if len(contacts) == 0 {
			if c, ok := fromPlatsbankenAd(item); ok {
				contacts = append(contacts, c)
			}
		}
	}

	return contacts
}

// fromEmail builds a contact from an email address. The local part doubles
// as the name: split on the common separators, two or more tokens become
// first and last name, a single token becomes the first name alone.
func fromEmail(source model.Source, email string, method model.ContactMethod) (model.Contact, bool) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return model.Contact{}, false
	}

	first, last := namesFromLocalPart(email[:strings.Index(email, "@")])
	return model.Contact{
		Source:    source,
		Method:    method,
		FirstName: first,
		LastName:  last,
		Email:     email,
	}, true
}

// namesFromLocalPart splits an email local part into name tokens. With two
// or more tokens the first and the final one are used, so
// "anna.maria.svensson" becomes Anna Svensson.
func namesFromLocalPart(local string) (first, last string) {
	tokens := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(tokens) == 0 {
		return "", ""
	}

	caser := cases.Title(language.Swedish)
	first = caser.String(tokens[0])
	if len(tokens) > 1 {
		last = caser.String(tokens[len(tokens)-1])
	}
	return first, last
}

// linkedInPoster is the slice of the raw LinkedIn payload the extractor
// reads.
type linkedInPoster struct {
	PosterFullName   string `json:"posterFullName"`
	PosterProfileURL string `json:"posterProfileUrl"`
}

func fromLinkedInPoster(item model.Item) (model.Contact, bool) {
	if len(item.Raw) == 0 {
		return model.Contact{}, false
	}
	var poster linkedInPoster
	if err := json.Unmarshal(item.Raw, &poster); err != nil {
		return model.Contact{}, false
	}
	if poster.PosterProfileURL == "" {
		return model.Contact{}, false
	}

	var first, last string
	if fields := strings.Fields(poster.PosterFullName); len(fields) > 0 {
		first = fields[0]
		last = strings.Join(fields[1:], " ")
	}

	return model.Contact{
		Source:     item.Source,
		Method:     model.ContactAPIExtracted,
		FirstName:  first,
		LastName:   last,
		ProfileURL: poster.PosterProfileURL,
	}, true
}

// platsbankenAd is the slice of the raw Platsbanken payload the extractor
// reads.
type platsbankenAd struct {
	ApplicationDetails struct {
		Email string `json:"email"`
	} `json:"application_details"`
}

func fromPlatsbankenAd(item model.Item) (model.Contact, bool) {
	if len(item.Raw) == 0 {
		return model.Contact{}, false
	}
	var ad platsbankenAd
	if err := json.Unmarshal(item.Raw, &ad); err != nil {
		return model.Contact{}, false
	}
	return fromEmail(item.Source, ad.ApplicationDetails.Email, model.ContactAPIExtracted)
}
