package service

import (
	"context"
	"fmt"

	"github.com/unclebandit/scoutier-backend/internal/model"
)

// ContactStore is the read-only view of the contact vault used by dispatch.
type ContactStore interface {
	GetContactsByIDs(ctx context.Context, userID string, ids []string) ([]model.Contact, error)
}

// ResolvedTarget is one position of a campaign's target list. Recipient is
// nil when the contact no longer exists.
type ResolvedTarget struct {
	ContactID string
	Recipient *model.Recipient
}

// Resolution is the outcome of resolving an ordered list of contact ids.
// len(Recipients) + len(Missing) == len(Targets) == number of ids asked for.
type Resolution struct {
	Targets    []ResolvedTarget
	Recipients []model.Recipient
	Missing    []string
}

type RecipientResolver struct {
	Contacts ContactStore
}

func NewRecipientResolver(contacts ContactStore) *RecipientResolver {
	return &RecipientResolver{Contacts: contacts}
}

// Resolve looks up ids for ownerID and returns them in input order,
// duplicates included. Unknown ids are reported in Missing.
func (r *RecipientResolver) Resolve(ctx context.Context, ownerID string, ids []string) (Resolution, error) {
	res := Resolution{
		Targets:    make([]ResolvedTarget, 0, len(ids)),
		Recipients: make([]model.Recipient, 0, len(ids)),
		Missing:    []string{},
	}
	if len(ids) == 0 {
		return res, nil
	}

	contacts, err := r.Contacts.GetContactsByIDs(ctx, ownerID, uniqueIDs(ids))
	if err != nil {
		return res, fmt.Errorf("resolve recipients: %w", err)
	}
	byID := make(map[string]model.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			res.Targets = append(res.Targets, ResolvedTarget{ContactID: id})
			res.Missing = append(res.Missing, id)
			continue
		}
		rec := model.RecipientFromContact(c)
		res.Targets = append(res.Targets, ResolvedTarget{ContactID: id, Recipient: &rec})
		res.Recipients = append(res.Recipients, rec)
	}
	return res, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
