package model

import "time"

// AuthKind tags how a feed authenticates. The secret itself lives in the
// credential store, keyed by feed ID; the feed record only carries the kind.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBasic  AuthKind = "basic"
	AuthBearer AuthKind = "bearer"
)

func (k AuthKind) Valid() bool {
	switch k {
	case AuthNone, AuthBasic, AuthBearer:
		return true
	}
	return false
}

type Feed struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	CustomTitle  bool       `json:"customTitle,omitempty"`
	IconURL      *string    `json:"iconUrl,omitempty"`
	LastFetched  *time.Time `json:"lastFetched,omitempty"`
	ETag         *string    `json:"etag,omitempty"`
	LastModified *string    `json:"lastModified,omitempty"`
	Auth         AuthKind   `json:"auth,omitempty"`
}
