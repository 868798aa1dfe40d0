package store

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/taskplan/pkg/model"
)

// ProfileRepository stores the single user profile.
type ProfileRepository struct {
	docs *DocStore
}

func NewProfileRepository(docs *DocStore) *ProfileRepository {
	return &ProfileRepository{docs: docs}
}

// Get returns the first stored profile, or the all-empty profile when none
// exists.
func (r *ProfileRepository) Get(ctx context.Context) (model.Profile, error) {
	docs, err := r.docs.List(ctx, ProfilesCollection)
	if err != nil {
		return model.Profile{}, fmt.Errorf("list profiles: %w", err)
	}
	if len(docs) == 0 {
		return model.Profile{}, nil
	}
	var p model.Profile
	if err := docs[0].Decode(&p); err != nil {
		return model.Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

// Put updates the existing profile, or creates one if none exists.
func (r *ProfileRepository) Put(ctx context.Context, p model.Profile) (model.Profile, error) {
	fields, err := toFields(p)
	if err != nil {
		return model.Profile{}, err
	}
	docs, err := r.docs.List(ctx, ProfilesCollection)
	if err != nil {
		return model.Profile{}, fmt.Errorf("list profiles: %w", err)
	}
	if len(docs) > 0 {
		p.ID = docs[0].ID
		if err := r.docs.Update(ctx, ProfilesCollection, p.ID, fields); err != nil {
			return model.Profile{}, err
		}
		return p, nil
	}
	id, err := r.docs.Create(ctx, ProfilesCollection, fields)
	if err != nil {
		return model.Profile{}, err
	}
	p.ID = id
	return p, nil
}
