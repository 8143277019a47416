package contacts

import "errors"

// SourceKind tags where a campaign's contacts come from.
type SourceKind string

const (
	SourceContactList SourceKind = "contact_list"
	SourceCSVFile     SourceKind = "csv_file"
)

func (k SourceKind) Valid() bool {
	return k == SourceContactList || k == SourceCSVFile
}

// SourceRef identifies one backing store row set: a contact list or an uploaded CSV file.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
}

// Contact is a callable target. The engine treats it as read-only apart from
// the do-not-call flag, which an outcome update may set.
type Contact struct {
	ID     string     `json:"id"`
	Source SourceKind `json:"source"`

	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	DoNotCall bool   `json:"do_not_call"`
}

// ListContactID is the id to store on campaign_calls.contact_id.
// CSV rows are not contacts in their own right and leave it empty.
func (c Contact) ListContactID() string {
	if c.Source == SourceContactList {
		return c.ID
	}
	return ""
}

var (
	ErrUnknownSource = errors.New("contacts: unknown source kind")
	ErrSourceMissing = errors.New("contacts: source id required")
	ErrNotFound      = errors.New("contacts: source not found")
)
