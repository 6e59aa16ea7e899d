package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdeck/craftdeck-backend/internal/graphs/domain"
)

func exportGraph() domain.Graph {
	return domain.Graph{
		ID:   "w1",
		Kind: domain.GraphKindWorkspace,
		Data: domain.Data{"name": "Test"},
		Nodes: []domain.Node{
			{ID: "n1", Kind: domain.NodeKindCollection, Data: domain.Data{"name": "Users"}},
			{ID: "n2", Kind: domain.NodeKindInstruction, Data: domain.Data{"name": `Create "User"`}},
			{ID: "n3", Kind: domain.NodeKindSigner, Data: domain.Data{}},
		},
		Edges: []domain.Edge{{ID: "e1", Source: "n1", Target: "n2"}},
	}
}

func TestToDOT(t *testing.T) {
	out, err := ToDOT(exportGraph())
	require.NoError(t, err)
	dot := string(out)

	assert.True(t, strings.HasPrefix(dot, "digraph G {"))
	assert.Contains(t, dot, `"n1" [label="Users\n(collection)"];`)
	assert.Contains(t, dot, `\"User\"`, "quotes in names are escaped")
	assert.Contains(t, dot, `"n3" [label="n3\n(signer)"];`, "nameless nodes fall back to the id")
	assert.Contains(t, dot, `"n1" -> "n2";`)
	assert.True(t, strings.HasSuffix(dot, "}\n"))
}

func TestToJSON(t *testing.T) {
	out, err := ToJSON(exportGraph())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Len(t, decoded["nodes"], 3)
	assert.Len(t, decoded["edges"], 1)
}
