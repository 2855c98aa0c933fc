package reminder

import (
	"context"
	"encoding/json"
	"fmt"
)

// load reads the stored list. A missing key is an empty list.
func (s *Service) load(ctx context.Context) ([]Reminder, error) {
	key := s.config().StoreKey
	b, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(b) == 0 {
		return nil, nil
	}
	var list []Reminder
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return list, nil
}

func (s *Service) save(ctx context.Context, list []Reminder) error {
	key := s.config().StoreKey
	if list == nil {
		list = []Reminder{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, b); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func indexOf(list []Reminder, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func without(list []Reminder, drop func(Reminder) bool) (kept, dropped []Reminder) {
	kept = list[:0:0]
	for _, r := range list {
		if drop(r) {
			dropped = append(dropped, r)
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}
