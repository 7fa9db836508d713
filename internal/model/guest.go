package model

import "time"

// GuestStatus is the RSVP state of a guest.
type GuestStatus string

const (
	GuestPending   GuestStatus = "pending"
	GuestConfirmed GuestStatus = "confirmed"
	GuestDeclined  GuestStatus = "declined"
)

func (s GuestStatus) Valid() bool {
	switch s {
	case GuestPending, GuestConfirmed, GuestDeclined:
		return true
	}
	return false
}

// Guest is a person (or party) invited to the wedding.  Members lists the
// named companions; ExtraMembersCount is how many people come along in
// addition to the guest and feeds the head count in GuestStats.
type Guest struct {
	ID                string      `json:"id"`
	UserID            string      `json:"userId"`
	Name              string      `json:"name"`
	Contact           string      `json:"contact"`
	Email             string      `json:"email"`
	Address           string      `json:"address"`
	Members           []string    `json:"members"`
	ExtraMembersCount int         `json:"extraMembersCount"`
	InvitationSent    bool        `json:"invitationSent"`
	Status            GuestStatus `json:"status"`
	PlusOne           bool        `json:"plusOne"`
	Notes             string      `json:"notes"`
	Tags              []string    `json:"tags"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}
