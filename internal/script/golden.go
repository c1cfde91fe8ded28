package script

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs s and compares its transcript against
// testdata/golden/{s.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/script -update
func RunWithGolden(t *testing.T, s *Script, opts ...Option) (*Result, error) {
	t.Helper()

	res, err := Run(context.Background(), s, opts...)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, []byte(res.Transcript))
	return res, nil
}
