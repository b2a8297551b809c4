// backend-go/internal/storage/blueprints.go
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
)

// LoadBlueprints parses every blueprint object under prefix. Two objects for the same
// kind are an error.
func LoadBlueprints(ctx context.Context, store ObjectStorage, prefix string) (map[domain.Kind]*domain.Blueprint, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.Kind]*domain.Blueprint)
	from := make(map[domain.Kind]string)
	for _, obj := range objects {
		if !blueprint.IsBlueprintFile(obj.Key) {
			continue
		}
		data, err := store.GetObject(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		bp, err := blueprint.Parse(data, blueprint.FormatFromPath(obj.Key))
		if err != nil {
			return nil, fmt.Errorf("blueprint object %s: %w", obj.Key, err)
		}
		if prev, dup := from[bp.AgentType]; dup {
			return nil, &domain.ConfigError{Msg: fmt.Sprintf("objects %s and %s both define the %s blueprint", prev, obj.Key, bp.AgentType)}
		}
		out[bp.AgentType] = bp
		from[bp.AgentType] = obj.Key
	}
	return out, nil
}

// SyncBlueprints downloads blueprint objects under prefix into dir so a directory
// watcher picks them up. It returns the number of files written.
func SyncBlueprints(ctx context.Context, store ObjectStorage, prefix, dir string) (int, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, obj := range objects {
		if !blueprint.IsBlueprintFile(obj.Key) {
			continue
		}
		dest := filepath.Join(dir, path.Base(obj.Key))
		if err := store.DownloadObject(ctx, obj.Key, dest); err != nil {
			return n, err
		}
		log.Debug().Str("key", obj.Key).Str("dest", dest).Msg("Downloaded blueprint")
		n++
	}
	log.Info().Int("count", n).Str("prefix", prefix).Msg("Synced blueprints from object storage")
	return n, nil
}

// PublishBlueprint uploads bp as <prefix><kind>.json.
func PublishBlueprint(ctx context.Context, store ObjectStorage, prefix string, bp *domain.Blueprint) (string, error) {
	data, err := blueprint.Marshal(bp, blueprint.FormatJSON)
	if err != nil {
		return "", err
	}
	key := prefix + string(bp.AgentType) + ".json"
	if err := store.UploadObject(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}
