// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultSearchBatch bounds how many payloads one search hydrates at
// once.
const DefaultSearchBatch = 16

// searchIDs keeps the ids whose hydrated payload satisfies match.
// Batches run one after another; ids within a batch hydrate
// concurrently. An id whose hydration fails is dirtied and dropped.
// Results keep input order. The only error is ctx ending between
// batches.
func searchIDs[V any](
	ctx context.Context,
	p *Puppet,
	kind PayloadKind,
	ids []string,
	hydrate func(context.Context, string) (V, error),
	match func(V) bool,
	dirty func(string) bool,
) ([]string, error) {
	batch := p.searchBatch
	keep := make([]bool, len(ids))

	for start := 0; start < len(ids); start += batch {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("puppet: %s search: %w", kind, err)
		}
		end := min(start+batch, len(ids))

		var group errgroup.Group
		for index := start; index < end; index++ {
			group.Go(func() error {
				payload, err := hydrate(ctx, ids[index])
				if err != nil {
					p.logger.Debug("search hydration failed, dropping id",
						"payload_kind", kind,
						"payload_id", ids[index],
						"error", err,
					)
					dirty(ids[index])
					return nil
				}
				keep[index] = match(payload)
				return nil
			})
		}
		group.Wait()
	}

	result := make([]string, 0, len(ids))
	for index, id := range ids {
		if keep[index] {
			result = append(result, id)
		}
	}
	return result, nil
}

// ContactSearch returns the ids among ids whose contact matches
// filter. A nil ids searches ContactList. An empty filter returns the
// list unchanged without hydrating anything.
func (p *Puppet) ContactSearch(ctx context.Context, filter ContactQueryFilter, ids []string) ([]string, error) {
	if ids == nil {
		list, err := p.ContactList(ctx)
		if err != nil {
			return nil, err
		}
		ids = list
	}
	if filter.IsEmpty() {
		return ids, nil
	}
	return searchIDs(ctx, p, PayloadKindContact, ids, p.ContactPayload, filter.Matches, p.ContactPayloadDirty)
}

// RoomSearch returns the ids among ids whose room matches filter. A
// nil ids searches RoomList.
func (p *Puppet) RoomSearch(ctx context.Context, filter RoomQueryFilter, ids []string) ([]string, error) {
	if ids == nil {
		list, err := p.RoomList(ctx)
		if err != nil {
			return nil, err
		}
		ids = list
	}
	if filter.IsEmpty() {
		return ids, nil
	}
	return searchIDs(ctx, p, PayloadKindRoom, ids, p.RoomPayload, filter.Matches, p.RoomPayloadDirty)
}

// MessageSearch returns the ids among ids whose message matches
// filter. A nil ids searches MessageList.
func (p *Puppet) MessageSearch(ctx context.Context, filter MessageQueryFilter, ids []string) ([]string, error) {
	if ids == nil {
		ids = p.MessageList()
	}
	if filter.IsEmpty() {
		return ids, nil
	}
	return searchIDs(ctx, p, PayloadKindMessage, ids, p.MessagePayload, filter.Matches, p.MessagePayloadDirty)
}

// RoomMemberSearch returns the contact ids of roomID's members that
// match filter.
func (p *Puppet) RoomMemberSearch(ctx context.Context, roomID string, filter RoomMemberQueryFilter) ([]string, error) {
	ids, err := p.RoomMemberList(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if filter.IsEmpty() {
		return ids, nil
	}

	type member struct {
		payload RoomMemberPayload
		contact ContactPayload
	}
	hydrate := func(ctx context.Context, contactID string) (member, error) {
		payload, err := p.RoomMemberPayload(ctx, roomID, contactID)
		if err != nil {
			return member{}, err
		}
		result := member{payload: payload}
		if filter.ContactAlias.IsSet() {
			contact, err := p.ContactPayload(ctx, contactID)
			if err != nil {
				return member{}, err
			}
			result.contact = contact
		}
		return result, nil
	}
	match := func(m member) bool {
		return filter.Name.Matches(m.payload.Name) &&
			filter.RoomAlias.Matches(m.payload.RoomAlias) &&
			filter.ContactAlias.Matches(m.contact.Alias)
	}
	dirty := func(contactID string) bool { return p.RoomMemberPayloadDirty(roomID, contactID) }
	return searchIDs(ctx, p, PayloadKindRoomMember, ids, hydrate, match, dirty)
}
