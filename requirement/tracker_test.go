package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ref(doc, target string) *Reference {
	return &Reference{Source: Location{Document: doc}, Target: target}
}

func TestTracker_AnchorsPerDocument(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, "ref-00001", tr.Record(ref("a", "X")))
	assert.Equal(t, "ref-00002", tr.Record(ref("a", "Y")))
	assert.Equal(t, "ref-00001", tr.Record(ref("b", "X")))
	assert.Equal(t, 3, tr.Len())
}

func TestTracker_PurgeResetsDocument(t *testing.T) {
	tr := NewTracker()
	tr.Record(ref("a", "X"))
	tr.Record(ref("b", "X"))
	tr.Record(ref("a", "Y"))

	assert.Equal(t, 2, tr.Purge("a"))
	assert.Equal(t, 0, tr.Purge("a"))
	assert.Len(t, tr.All(), 1)

	// anchors restart so re-extraction reproduces them
	assert.Equal(t, "ref-00001", tr.Record(ref("a", "X")))
	assert.Equal(t, "ref-00002", tr.Record(ref("b", "Z")))
}

func TestTracker_FindTargeting(t *testing.T) {
	tr := NewTracker()
	r1 := ref("a", "REQ-1")
	r2 := ref("b", "login")
	r3 := ref("b", "REQ-2")
	tr.Record(r1)
	tr.Record(r2)
	tr.Record(r3)

	assert.Equal(t, []*Reference{r1}, tr.FindTargeting(&Record{ID: "REQ-1"}))
	assert.Equal(t, []*Reference{r1, r2}, tr.FindTargeting(&Record{ID: "REQ-1", Label: "login"}))
	assert.Equal(t, []*Reference{r3}, tr.FindTargeting(&Record{ID: "X", DisplayName: "REQ-2"}))
	assert.Empty(t, tr.FindTargeting(&Record{ID: "REQ-9"}))
}
