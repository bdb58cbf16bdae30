package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// snapshot is the golden file shape: the settled sheet plus the change
// log of every recompute pass, all in display form.
type snapshot struct {
	Scenario  string             `json:"scenario"`
	UsedRange string             `json:"used_range,omitempty"`
	Cells     []cellSnapshot     `json:"cells"`
	Changes   [][]changeSnapshot `json:"changes,omitempty"`
}

type cellSnapshot struct {
	Cell  string `json:"cell"`
	Raw   string `json:"raw"`
	Value string `json:"value"`
}

type changeSnapshot struct {
	Cell string `json:"cell"`
	Old  string `json:"old,omitempty"`
	New  string `json:"new,omitempty"`
}

// Snapshot renders a run's settled sheet and change log as the
// canonical golden-file bytes.
func Snapshot(name string, res *Result) ([]byte, error) {
	snap := snapshot{Scenario: name, Cells: []cellSnapshot{}}
	if r, ok := res.Engine.UsedRange(); ok {
		snap.UsedRange = r.A1()
	}
	for _, cv := range res.Engine.Cells() {
		snap.Cells = append(snap.Cells, cellSnapshot{
			Cell:  cv.Coord.A1(),
			Raw:   cv.Raw,
			Value: display(cv.Value),
		})
	}
	for _, batch := range res.Batches {
		changes := make([]changeSnapshot, len(batch))
		for i, ch := range batch {
			changes[i] = changeSnapshot{
				Cell: ch.Coord.A1(),
				Old:  display(ch.Old),
				New:  display(ch.New),
			}
		}
		snap.Changes = append(snap.Changes, changes)
	}

	return json.MarshalIndent(snap, "", "  ")
}

// assertGolden compares the run against testdata/golden/{name}.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
func assertGolden(t *testing.T, name string, res *Result) {
	t.Helper()

	data, err := Snapshot(name, res)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
