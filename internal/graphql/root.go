package graphql

import (
	"context"
	"encoding/json"
	"fmt"
)

// decodeArgs copies coerced field arguments into a typed struct.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: arguments cannot be encoded: %v", errBadInput, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadInput, err)
	}
	return nil
}

type idArgs struct {
	ID string `json:"id"`
}

type entityTypeArgs struct {
	EntityType *string `json:"entityType"`
}

func (r *Resolver) queryResolvers() map[string]rootResolver {
	return map[string]rootResolver{
		"fields": func(ctx context.Context, args map[string]any) (any, error) {
			var in struct {
				EntityType string `json:"entityType"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.Fields(ctx, in.EntityType)
		},
		"smartLists": func(ctx context.Context, args map[string]any) (any, error) {
			var in entityTypeArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.SmartLists(ctx, in.EntityType)
		},
		"smartList": func(ctx context.Context, args map[string]any) (any, error) {
			var in idArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.SmartList(ctx, in.ID)
		},
		"smartListMembers": func(ctx context.Context, args map[string]any) (any, error) {
			var in idArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.SmartListMembers(ctx, in.ID)
		},
		"previewSmartList": func(ctx context.Context, args map[string]any) (any, error) {
			var in struct {
				Input PreviewInput `json:"input"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.PreviewSmartList(ctx, in.Input)
		},
	}
}

func (r *Resolver) mutationResolvers() map[string]rootResolver {
	return map[string]rootResolver{
		"createSmartList": func(ctx context.Context, args map[string]any) (any, error) {
			var in struct {
				Input SmartListInput `json:"input"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.CreateSmartList(ctx, in.Input)
		},
		"updateSmartList": func(ctx context.Context, args map[string]any) (any, error) {
			var in struct {
				ID    string         `json:"id"`
				Input SmartListInput `json:"input"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.UpdateSmartList(ctx, in.ID, in.Input)
		},
		"deleteSmartList": func(ctx context.Context, args map[string]any) (any, error) {
			var in idArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.DeleteSmartList(ctx, in.ID)
		},
		"refreshSmartList": func(ctx context.Context, args map[string]any) (any, error) {
			var in idArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.RefreshSmartList(ctx, in.ID)
		},
		"refreshSmartLists": func(ctx context.Context, args map[string]any) (any, error) {
			var in entityTypeArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return r.RefreshSmartLists(ctx, in.EntityType)
		},
	}
}
