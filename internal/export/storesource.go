package export

import (
	"context"
	"path"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/zio"
)

// StoreSource adapts an existing zstore-backed tree (read through a BIE
// Engine) into an export.Source, so zarrio's own stores can export onto
// one another without a foreign adapter.
type StoreSource struct {
	Engine *zio.Engine
	Opts   api.Options
}

func (s *StoreSource) SourceName() string { return s.Engine.Source }

func (s *StoreSource) Root() (*api.GroupBuilder, error) {
	return s.Engine.Read("/", s.Opts)
}

func (s *StoreSource) Walk(fn func(path string, node any) error) error {
	root, err := s.Root()
	if err != nil {
		return err
	}
	return walkBuilder("/", root, fn)
}

// ChunkingHint reuses whatever chunk shape the source dataset already
// declared; StoreSource has no other hint to offer since both ends speak
// the same chunked layout.
func (s *StoreSource) ChunkingHint(p string) ([]int, string, bool) {
	ds, err := s.Engine.ReadValueAt(context.Background(), p)
	if err != nil {
		return nil, "", false
	}
	arr, ok := ds.(*api.ArrayValue)
	if !ok || len(arr.ChunkShape) == 0 {
		return nil, "", false
	}
	return arr.ChunkShape, "", true
}

func walkBuilder(p string, g *api.GroupBuilder, fn func(path string, node any) error) error {
	if err := fn(p, g); err != nil {
		return err
	}
	for pair := g.Groups.Oldest(); pair != nil; pair = pair.Next() {
		if err := walkBuilder(path.Join(p, pair.Key), pair.Value, fn); err != nil {
			return err
		}
	}
	for pair := g.Datasets.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(path.Join(p, pair.Key), pair.Value); err != nil {
			return err
		}
	}
	return nil
}
